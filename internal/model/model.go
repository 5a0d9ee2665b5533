package model

// Input tensor contract shared by the preprocessor and every Predictor:
// NHWC, batch of 1, 224x224 RGB, values in [0,1].
const (
	ImageSize  = 224
	Channels   = 3
	TensorSize = 1 * ImageSize * ImageSize * Channels
)

// Predictor produces the pneumonia probability for one preprocessed image
// tensor. Implementations must be safe for concurrent use.
type Predictor interface {
	// Predict takes a flat tensor of TensorSize float32 values and returns
	// p = P(PNEUMONIA) in [0,1].
	Predict(tensor []float32) (float32, error)
	Close() error
}

// Handle is the immutable reference to whichever candidate model loaded at
// startup. It is built once in main and shared read-only by all requests.
type Handle struct {
	Name      string
	predictor Predictor
}

// NewHandle wraps a loaded predictor with its human-readable name.
func NewHandle(name string, p Predictor) *Handle {
	return &Handle{Name: name, predictor: p}
}

func (h *Handle) Predict(tensor []float32) (float32, error) {
	return h.predictor.Predict(tensor)
}

func (h *Handle) Close() error {
	return h.predictor.Close()
}
