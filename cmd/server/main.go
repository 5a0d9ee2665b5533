package main

import (
	"net/http"
	"os"

	"github.com/xraylab/pneumonia-api/internal/config"
	"github.com/xraylab/pneumonia-api/internal/handlers"
	"github.com/xraylab/pneumonia-api/internal/inference"
	"github.com/xraylab/pneumonia-api/internal/model"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.NewLogger("info").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.LogLevel)

	// Probe candidate model files in priority order. A nil handle is fine:
	// the server starts degraded and prediction endpoints return 503.
	loader := model.NewLoader(cfg.ModelDir, cfg.OrtLibraryPath)
	handle := loader.Load(logger)
	if handle != nil {
		defer handle.Close()
	}

	svc := inference.New(handle, cfg.MaxImageBytes, logger)
	handler := handlers.NewHandler(svc, logger)
	router := handlers.NewRouter(handler, logger, cfg.AllowedOrigins)

	modelName := "None"
	if handle != nil {
		modelName = handle.Name
	}
	logger.Info("server starting",
		"addr", cfg.Addr(),
		"model", modelName,
		"model_dir", cfg.ModelDir,
		"max_image_bytes", cfg.MaxImageBytes)
	logger.Info("endpoints registered",
		"root", "GET /",
		"health", "GET /health",
		"predict", "POST /predict",
		"predict_base64", "POST /predict_base64")

	if err := http.ListenAndServe(cfg.Addr(), router); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
