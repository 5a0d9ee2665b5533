// Package inference orchestrates the classification of raw image bytes:
// size check, decode, normalize, predict, response shaping.
package inference

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xraylab/pneumonia-api/internal/model"
	"github.com/xraylab/pneumonia-api/internal/preprocess"
)

// DefaultMaxImageBytes caps uploads at 10 MiB.
const DefaultMaxImageBytes = 10 << 20

// Service classifies chest X-ray images. It holds no mutable state beyond
// read-only access to the model handle, so it is safe for concurrent use.
type Service struct {
	handle   *model.Handle
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a Service around the model handle loaded at startup. handle may
// be nil, in which case every Classify call fails with ErrModelUnavailable.
func New(handle *model.Handle, maxBytes int64, logger *slog.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Service{
		handle:   handle,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}
}

// ModelLoaded reports whether a model is available for predictions.
func (s *Service) ModelLoaded() bool {
	return s.handle != nil
}

// ModelName returns the human-readable name of the loaded model, or "" when
// none loaded.
func (s *Service) ModelName() string {
	if s.handle == nil {
		return ""
	}
	return s.handle.Name
}

// MaxImageBytes returns the upload size limit enforced before decoding.
func (s *Service) MaxImageBytes() int64 {
	return s.maxBytes
}

// Classify runs the full pipeline on raw JPEG/PNG bytes and returns the
// structured result. Failures are reported through the package error
// taxonomy: ErrPayloadTooLarge for oversized input, ErrInvalidInput for
// bytes that do not decode as an image, ErrModelUnavailable when no model
// loaded at startup.
func (s *Service) Classify(raw []byte) (*Result, error) {
	if int64(len(raw)) > s.maxBytes {
		return nil, fmt.Errorf("%w: image is %d bytes, limit is %d", ErrPayloadTooLarge, len(raw), s.maxBytes)
	}

	img, err := preprocess.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if s.handle == nil {
		return nil, ErrModelUnavailable
	}

	tensor := preprocess.Normalize(img)

	p, err := s.handle.Predict(tensor)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	result := s.shape(float64(p))
	s.logger.Info("classified image",
		"prediction", result.Prediction,
		"confidence", result.Confidence,
		"bytes", len(raw))
	return result, nil
}

// shape derives the response fields from the raw model output
// p = P(PNEUMONIA). A strict greater-than test decides PNEUMONIA, so
// p == 0.5 exactly classifies as NORMAL.
func (s *Service) shape(p float64) *Result {
	p = clamp01(p)

	label := LabelNormal
	confidence := 1 - p
	if p > 0.5 {
		label = LabelPneumonia
		confidence = p
	}

	return &Result{
		Prediction: label,
		Confidence: confidence,
		Probabilities: Probabilities{
			Normal:    1 - p,
			Pneumonia: p,
		},
		ModelUsed: s.handle.Name,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
