package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/vision-ocr/internal/common"
	"github.com/joseph-ayodele/vision-ocr/internal/ocr"
	"github.com/joseph-ayodele/vision-ocr/internal/pipeline"
	"github.com/joseph-ayodele/vision-ocr/internal/repository"
	"github.com/joseph-ayodele/vision-ocr/internal/shell"
)

func main() {
	// .env is optional
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	// stdout carries the console session; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove time and level attributes, keep message and other variables
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.InitStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	rows := repository.NewTextRowRepository(store, logger)

	rec, err := ocr.NewRecognizer(cfg, logger)
	if err != nil {
		logger.Error("failed to build recognizer", "error", err)
		os.Exit(2)
	}
	poller := ocr.NewPoller(rec, ocr.PollConfigFrom(cfg.Poll), logger)
	p := pipeline.NewPipeline(rec, poller, rows, logger)

	sh := shell.NewShell(rows, os.Stdin, os.Stdout, logger)
	session(ctx, stop, p, sh, cfg.OCR.ImageURL, logger)
}

type runner interface {
	Run(ctx context.Context, imageURL string) (pipeline.Result, error)
}

type prompter interface {
	PromptAndMaybeDump(ctx context.Context) error
}

// session runs the pipeline once, logs its outcome, and then hands the console
// to the shell. Signal handling is released before the prompt.
func session(ctx context.Context, stop context.CancelFunc, p runner, sh prompter, imageURL string, logger *slog.Logger) {
	res, err := p.Run(ctx, imageURL)
	if err != nil {
		logger.Error("ocr run failed",
			"run_id", res.RunID,
			"stage", res.Stage,
			"code", common.ErrorCode(err),
			"error", err,
		)
	} else {
		logger.Info("ocr run complete",
			"run_id", res.RunID,
			"lines", len(res.Lines),
			"rows", len(res.Inserted),
			"duration_ms", res.Duration.Milliseconds(),
		)
	}

	stop()
	if err := sh.PromptAndMaybeDump(context.WithoutCancel(ctx)); err != nil {
		logger.Error("console session failed", "error", err)
	}
}
