package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect. libPath may be empty, in which
// case the runtime's default shared-library lookup applies.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// onnxPredictor runs a binary classifier exported as ONNX: one
// (1,224,224,3) float32 input, one (1,1) sigmoid output.
type onnxPredictor struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewONNXPredictor loads the model at modelPath and creates an inference
// session with pre-allocated input and output tensors.
func NewONNXPredictor(modelPath, libPath string) (Predictor, error) {
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	// Inspect the model to discover its tensor names instead of assuming
	// the exporter used "input"/"output".
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected a single input tensor, got %d", len(inputs))
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("onnx: expected a single output tensor, got %d", len(outputs))
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, ImageSize, ImageSize, Channels))
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &onnxPredictor{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (p *onnxPredictor) Predict(tensor []float32) (float32, error) {
	if len(tensor) != TensorSize {
		return 0, fmt.Errorf("onnx: expected tensor of %d values, got %d", TensorSize, len(tensor))
	}

	// The session owns its tensors, so concurrent Run calls would race on
	// the shared buffers.
	p.mu.Lock()
	defer p.mu.Unlock()

	copy(p.inputTensor.GetData(), tensor)
	if err := p.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx: inference failed: %w", err)
	}
	return p.outputTensor.GetData()[0], nil
}

func (p *onnxPredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inputTensor.Destroy()
	p.outputTensor.Destroy()
	return p.session.Destroy()
}
