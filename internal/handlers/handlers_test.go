package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraylab/pneumonia-api/internal/inference"
	"github.com/xraylab/pneumonia-api/internal/model"
)

type stubPredictor struct{ p float32 }

func (s stubPredictor) Predict([]float32) (float32, error) { return s.p, nil }
func (s stubPredictor) Close() error                       { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter builds the full router over a stub model. handle may be nil
// to exercise degraded mode.
func newTestRouter(handle *model.Handle, maxBytes int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := discardLogger()
	svc := inference.New(handle, maxBytes, logger)
	return NewRouter(NewHandler(svc, logger), logger, []string{"*"})
}

func loadedRouter(p float32) *gin.Engine {
	return newTestRouter(model.NewHandle("Test Model", stubPredictor{p: p}), 0)
}

func xrayPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 96, 96))
	for y := 0; y < 96; y++ {
		for x := 0; x < 96; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartBody builds a multipart form with a single file part. An empty
// contentType omits the part's Content-Type header entirely.
func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func doRequest(router *gin.Engine, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRoot(t *testing.T) {
	rec := doRequest(loadedRouter(0.5), http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "Pneumonia Detection API", body["message"])
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "Test Model", body["model"])
	assert.Contains(t, body, "endpoints")
	assert.Contains(t, body, "usage")
}

func TestHealthLoaded(t *testing.T) {
	rec := doRequest(loadedRouter(0.5), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["model_loaded"])
	assert.Equal(t, "Test Model", body["model_name"])
	assert.Contains(t, body, "timestamp")
}

func TestHealthDegraded(t *testing.T) {
	rec := doRequest(newTestRouter(nil, 0), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["model_loaded"])
	assert.Equal(t, "None", body["model_name"])
}

func TestPredictSuccess(t *testing.T) {
	buf, contentType := multipartBody(t, "file", "xray.png", "image/png", xrayPNG(t))
	rec := doRequest(loadedRouter(0.9), http.MethodPost, "/predict", contentType, buf)
	require.Equal(t, http.StatusOK, rec.Code)

	var res inference.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, inference.LabelPneumonia, res.Prediction)
	assert.InDelta(t, 0.9, res.Confidence, 1e-6)
	assert.InDelta(t, 0.1, res.Probabilities.Normal, 1e-6)
	assert.InDelta(t, 0.9, res.Probabilities.Pneumonia, 1e-6)
	assert.Equal(t, "Test Model", res.ModelUsed)
}

func TestPredictSniffsUndeclaredContentType(t *testing.T) {
	buf, contentType := multipartBody(t, "file", "xray.png", "", xrayPNG(t))
	rec := doRequest(loadedRouter(0.3), http.MethodPost, "/predict", contentType, buf)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPredictRejectsNonImageContentType(t *testing.T) {
	buf, contentType := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello"))
	rec := doRequest(loadedRouter(0.9), http.MethodPost, "/predict", contentType, buf)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictRejectsMissingFileField(t *testing.T) {
	buf, contentType := multipartBody(t, "wrong_field", "xray.png", "image/png", xrayPNG(t))
	rec := doRequest(loadedRouter(0.9), http.MethodPost, "/predict", contentType, buf)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictRejectsOversizedUpload(t *testing.T) {
	router := newTestRouter(model.NewHandle("Test Model", stubPredictor{p: 0.9}), 1024)

	buf, contentType := multipartBody(t, "file", "huge.png", "image/png", make([]byte, 2048))
	rec := doRequest(router, http.MethodPost, "/predict", contentType, buf)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPredictRejectsCorruptImage(t *testing.T) {
	buf, contentType := multipartBody(t, "file", "xray.png", "image/png", []byte("corrupt bytes"))
	rec := doRequest(loadedRouter(0.9), http.MethodPost, "/predict", contentType, buf)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictWithoutModel(t *testing.T) {
	buf, contentType := multipartBody(t, "file", "xray.png", "image/png", xrayPNG(t))
	rec := doRequest(newTestRouter(nil, 0), http.MethodPost, "/predict", contentType, buf)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPredictBase64Success(t *testing.T) {
	payload := fmt.Sprintf(`{"image": %q}`, base64.StdEncoding.EncodeToString(xrayPNG(t)))
	rec := doRequest(loadedRouter(0.2), http.MethodPost, "/predict_base64", "application/json", strings.NewReader(payload))
	require.Equal(t, http.StatusOK, rec.Code)

	var res inference.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, inference.LabelNormal, res.Prediction)
	assert.InDelta(t, 0.8, res.Confidence, 1e-6)
}

func TestPredictBase64RejectsMissingField(t *testing.T) {
	rec := doRequest(loadedRouter(0.9), http.MethodPost, "/predict_base64", "application/json",
		strings.NewReader(`{"wrong_field": "x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictBase64RejectsInvalidBase64(t *testing.T) {
	rec := doRequest(loadedRouter(0.9), http.MethodPost, "/predict_base64", "application/json",
		strings.NewReader(`{"image": "not-valid-base64!!!"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictBase64RejectsUndecodableImage(t *testing.T) {
	payload := fmt.Sprintf(`{"image": %q}`, base64.StdEncoding.EncodeToString([]byte("hello")))
	rec := doRequest(loadedRouter(0.9), http.MethodPost, "/predict_base64", "application/json",
		strings.NewReader(payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictBase64WithoutModel(t *testing.T) {
	payload := fmt.Sprintf(`{"image": %q}`, base64.StdEncoding.EncodeToString(xrayPNG(t)))
	rec := doRequest(newTestRouter(nil, 0), http.MethodPost, "/predict_base64", "application/json",
		strings.NewReader(payload))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// Both entry points must agree on the same underlying bytes.
func TestPredictEndpointsAgree(t *testing.T) {
	router := loadedRouter(0.73)
	raw := xrayPNG(t)

	buf, contentType := multipartBody(t, "file", "xray.png", "image/png", raw)
	fromFile := doRequest(router, http.MethodPost, "/predict", contentType, buf)
	require.Equal(t, http.StatusOK, fromFile.Code)

	payload := fmt.Sprintf(`{"image": %q}`, base64.StdEncoding.EncodeToString(raw))
	fromBase64 := doRequest(router, http.MethodPost, "/predict_base64", "application/json",
		strings.NewReader(payload))
	require.Equal(t, http.StatusOK, fromBase64.Code)

	var a, b inference.Result
	require.NoError(t, json.Unmarshal(fromFile.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(fromBase64.Body.Bytes(), &b))

	assert.Equal(t, a.Prediction, b.Prediction)
	assert.Equal(t, a.Confidence, b.Confidence)
	assert.Equal(t, a.Probabilities, b.Probabilities)
	assert.Equal(t, a.ModelUsed, b.ModelUsed)
}

func TestRequestIDHeader(t *testing.T) {
	rec := doRequest(loadedRouter(0.5), http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	echo := httptest.NewRecorder()
	loadedRouter(0.5).ServeHTTP(echo, req)
	assert.Equal(t, "fixed-id", echo.Header().Get("X-Request-ID"))
}
