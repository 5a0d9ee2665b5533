package model

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Candidate names a model file and its human-readable label.
type Candidate struct {
	File string
	Name string
}

// DefaultCandidates is the fixed priority order in which model files are
// probed at startup. The fine-tuned VGG16 is preferred; the baseline CNN is
// the fallback of last resort.
var DefaultCandidates = []Candidate{
	{File: "vgg16_finetuned.onnx", Name: "VGG16 Fine-tuned"},
	{File: "vgg16_best.onnx", Name: "VGG16 Best"},
	{File: "baseline_best.onnx", Name: "CNN Baseline"},
}

// Loader probes candidate model files in priority order and wraps the first
// one that loads. Open is injectable so the probing logic is testable
// without the ONNX runtime.
type Loader struct {
	Dir        string
	Candidates []Candidate
	Open       func(path string) (Predictor, error)
}

// NewLoader builds a Loader over dir using the default candidate list and
// the ONNX backend.
func NewLoader(dir, ortLibPath string) *Loader {
	return &Loader{
		Dir:        dir,
		Candidates: DefaultCandidates,
		Open: func(path string) (Predictor, error) {
			return NewONNXPredictor(path, ortLibPath)
		},
	}
}

// Load returns a handle to the first candidate that exists and loads, or nil
// when none do. A nil handle means the server starts degraded: /health
// reports it and prediction endpoints return 503.
func (l *Loader) Load(logger *slog.Logger) *Handle {
	for _, c := range l.Candidates {
		path := filepath.Join(l.Dir, c.File)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		p, err := l.Open(path)
		if err != nil {
			logger.Error("model failed to load, trying next candidate",
				"model", c.Name, "path", path, "error", err)
			continue
		}

		logger.Info("model loaded", "model", c.Name, "path", path)
		return NewHandle(c.Name, p)
	}

	logger.Error("no candidate model could be loaded", "dir", l.Dir)
	return nil
}
