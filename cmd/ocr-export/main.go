package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/vision-ocr/internal/common"
	"github.com/joseph-ayodele/vision-ocr/internal/export"
	repo "github.com/joseph-ayodele/vision-ocr/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	out := flag.String("out", "ocr_data.xlsx", "output XLSX file path")
	flag.Parse()
	if flag.NArg() == 1 {
		*out = flag.Arg(0)
	} else if flag.NArg() > 1 {
		printError("usage: ocr-export [-out path] [path]\n")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	store, err := repo.InitStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	svc := export.NewService(repo.NewTextRowRepository(store, logger), logger)
	xlsxBytes, err := svc.ExportXLSX(ctx)
	if err != nil {
		logger.Error("failed to export rows", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("export complete", "path", *out, "bytes", len(xlsxBytes))
}
