package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/xraylab/pneumonia-api/internal/inference"
)

const apiVersion = "1.0.0"

// Handler serves the HTTP endpoints on top of the inference service.
type Handler struct {
	svc    *inference.Service
	logger *slog.Logger
}

// NewHandler wires the inference service into the HTTP layer.
func NewHandler(svc *inference.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type base64Request struct {
	Image string `json:"image" binding:"required"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Root reports service metadata and the endpoint map.
func (h *Handler) Root(c *gin.Context) {
	modelName := "Not available"
	if h.svc.ModelLoaded() {
		modelName = h.svc.ModelName()
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Pneumonia Detection API",
		"version": apiVersion,
		"status":  "online",
		"model":   modelName,
		"endpoints": gin.H{
			"/":               "General information",
			"/health":         "Service health",
			"/predict":        "POST - Prediction from an image file",
			"/predict_base64": "POST - Prediction from a base64 string",
		},
		"usage": gin.H{
			"example_curl":   `curl -X POST "http://api-url/predict" -F "file=@xray.jpg"`,
			"example_python": `requests.post("http://api-url/predict", files={"file": open("xray.jpg", "rb")})`,
		},
	})
}

// Health reports whether a model is loaded. The service stays up without
// one, so this is the endpoint that distinguishes healthy from degraded.
func (h *Handler) Health(c *gin.Context) {
	status := "healthy"
	message := "API running"
	modelName := "None"

	if h.svc.ModelLoaded() {
		modelName = h.svc.ModelName()
	} else {
		status = "degraded"
		message = "API running without a loaded model"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"model_loaded": h.svc.ModelLoaded(),
		"model_name":   modelName,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"message":      message,
	})
}

// Predict classifies an uploaded image file (multipart field "file").
func (h *Handler) Predict(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid request",
			Details: `an image file is required in the "file" form field`,
		})
		return
	}

	declared := fileHeader.Header.Get("Content-Type")
	if declared != "" && !strings.HasPrefix(declared, "image/") {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid request",
			Details: "file must be an image, got " + declared,
		})
		return
	}

	maxBytes := h.svc.MaxImageBytes()
	if fileHeader.Size > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{
			Error:   "payload too large",
			Details: "image exceeds the upload limit",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.internalError(c, err)
		return
	}
	defer file.Close()

	// LimitReader guards against part headers that understate the size.
	raw, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		h.internalError(c, err)
		return
	}
	if int64(len(raw)) > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{
			Error:   "payload too large",
			Details: "image exceeds the upload limit",
		})
		return
	}

	// No declared content type on the part: sniff the bytes instead.
	if declared == "" && !strings.HasPrefix(mimetype.Detect(raw).String(), "image/") {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid request",
			Details: "file content is not a recognized image format",
		})
		return
	}

	h.classify(c, raw)
}

// PredictBase64 classifies an image supplied as a base64 string in a JSON
// envelope: {"image": "<base64>"}.
func (h *Handler) PredictBase64(c *gin.Context) {
	var req base64Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid request",
			Details: `field "image" with a base64 string is required`,
		})
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid request",
			Details: `field "image" is not valid base64`,
		})
		return
	}

	h.classify(c, raw)
}

// classify is the shared tail of both prediction endpoints.
func (h *Handler) classify(c *gin.Context, raw []byte) {
	result, err := h.svc.Classify(raw)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// renderError maps the inference error taxonomy to HTTP status codes.
// Undecodable image bytes count as client errors.
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inference.ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{
			Error:   "payload too large",
			Details: "image exceeds the upload limit",
		})
	case errors.Is(err, inference.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid request",
			Details: "could not decode the supplied bytes as a JPEG or PNG image",
		})
	case errors.Is(err, inference.ErrModelUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse{
			Error:   "model unavailable",
			Details: "no model is loaded; check the models/ directory",
		})
	default:
		h.internalError(c, err)
	}
}

// internalError logs the failure and returns a generic 500. Only the
// message text leaves the process.
func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.Error("request failed",
		"request_id", RequestIDFrom(c),
		"path", c.FullPath(),
		"error", err)
	c.JSON(http.StatusInternalServerError, errorResponse{
		Error:   "internal error",
		Details: "error processing image",
	})
}
