package repository

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/vision-ocr/internal/common"
)

// InitStore opens the configured database and makes sure the ocr_data table
// exists. The caller owns the returned Store and must Close it.
func InitStore(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	s, err := Open(ctx, Config{
		DSN:         cfg.DSN,
		DialTimeout: cfg.DialTimeout,
		BusyTimeout: cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
