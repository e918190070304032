// taskcam watches a handwritten TODO card through a webcam, waits for the
// page to hold still, and turns it into structured tasks in Firestore.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskcam/internal/config"
	"taskcam/internal/log"
	"taskcam/pkg/detect"
	"taskcam/pkg/scanner"
	"taskcam/pkg/stability"
	"taskcam/pkg/structurer"
	"taskcam/pkg/taskstore"
	"taskcam/pkg/web"
)

func main() {
	cfg := config.Load()
	log.Init(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("taskcam stopped", "error", err)
		os.Exit(1)
	}
	log.Info("taskcam stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	// Detector: no weights, no scanner
	yoloCfg := detect.DefaultYOLOConfig()
	yoloCfg.ModelPath = cfg.ModelPath
	detector, err := detect.NewYOLO(yoloCfg)
	if err != nil {
		return fmt.Errorf("load detector: %w", err)
	}
	defer detector.Close()

	// Persistence sink, also the project catalog for the prompt
	store, err := taskstore.NewClient(ctx, cfg.CredentialsPath, tz)
	if err != nil {
		return fmt.Errorf("connect firestore: %w", err)
	}

	engine, err := buildEngine(cfg, store)
	if err != nil {
		return err
	}

	cache, err := scanner.NewCache(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("open scan cache: %w", err)
	}

	monitor := stability.NewMonitor(stability.DefaultConfig())
	worker := scanner.NewWorker(engine, store, cache)

	scanCfg := scanner.DefaultConfig()
	scanCfg.CameraIndex = cfg.CameraIndex
	scanCfg.Orientation = cfg.Orientation
	scan := scanner.New(scanCfg, detector, monitor, worker)

	srv := web.NewServer(cfg.HTTPAddr, monitor)
	srv.StatusFunc = scan.Status
	srv.FrameFunc = scan.LatestFrame
	srv.PageFunc = cache.Page
	srv.OnPause = scan.SetPaused
	srv.OnScan = func() error { return scan.ForceScan(ctx) }
	srv.StartAsync()
	defer srv.Shutdown()

	log.Info("taskcam started",
		"camera", cfg.CameraIndex,
		"orientation", cfg.Orientation,
		"timezone", cfg.Timezone,
		"dashboard", cfg.HTTPAddr)

	return scan.Run(ctx)
}

// buildEngine picks the structuring engine: Gemini when an API key is
// configured, otherwise the offline OCR fallback in degraded mode.
func buildEngine(cfg *config.Config, catalog structurer.Catalog) (structurer.Engine, error) {
	if cfg.GeminiAPIKey == "" {
		log.Warn("GOOGLE_API_KEY not set, running with offline OCR (statuses will read NOT_STARTED)")
		return structurer.NewTesseract(), nil
	}

	engine, err := structurer.NewGemini(structurer.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Catalog: catalog,
	})
	if err != nil {
		return nil, fmt.Errorf("create structuring engine: %w", err)
	}
	return engine, nil
}
