package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/vision-ocr/internal/common"
	"github.com/joseph-ayodele/vision-ocr/internal/ingest"
	"github.com/joseph-ayodele/vision-ocr/internal/ocr"
	"github.com/joseph-ayodele/vision-ocr/internal/pipeline"
	repo "github.com/joseph-ayodele/vision-ocr/internal/repository"
)

func main() {
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <image-url-or-path-or-dir>")
		os.Exit(2)
	}
	target := os.Args[1]
	info, statErr := os.Stat(target)
	isDir := statErr == nil && info.IsDir()
	if !isDir {
		cfg.OCR.ImageURL = target
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.InitStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	rec, err := ocr.NewRecognizer(cfg, logger)
	if err != nil {
		logger.Error("build recognizer", "error", err)
		os.Exit(2)
	}
	p := pipeline.NewPipeline(rec, ocr.NewPoller(rec, ocr.PollConfigFrom(cfg.Poll), logger), repo.NewTextRowRepository(store, logger), logger)

	if isDir {
		results, stats, err := ingest.NewDirectory(p, true, logger).Run(ctx, target)
		if err != nil {
			logger.Error("directory run failed", "dir", target, "error", err)
			stop()
			store.Close()
			os.Exit(1)
		}
		for _, r := range results {
			if r.Err != "" {
				logger.Warn("file failed", "path", r.Path, "error", r.Err)
			}
		}
		if stats.Failed > 0 {
			stop()
			store.Close()
			os.Exit(1)
		}
		return
	}

	res, err := p.Run(ctx, target)
	if err != nil {
		logger.Error("text extraction failed",
			"run_id", res.RunID,
			"stage", res.Stage.String(),
			"inserted", len(res.Inserted),
			"error", err,
			"duration_ms", res.Duration.Milliseconds(),
		)
		stop()
		store.Close()
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"run_id", res.RunID,
		"lines", len(res.Lines),
		"ids", res.Inserted,
		"duration_ms", res.Duration.Milliseconds(),
	)
}
