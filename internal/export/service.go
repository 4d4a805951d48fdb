package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/vision-ocr/internal/repository"
)

const SheetName = "OCR Data"

// Service produces XLSX dumps of the ocr_data table.
type Service struct {
	rows   repository.TextRowRepository
	logger *slog.Logger
}

func NewService(rows repository.TextRowRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{rows: rows, logger: logger}
}

// ExportXLSX returns a workbook (as bytes) with one sheet: an ID/Text header
// row followed by every stored row in id order.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	rows, err := s.rows.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("query ocr rows: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	// Reuse the default sheet.
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(SheetName, cell, v)
	}

	write(1, 1, "ID")
	write(2, 1, "Text")
	for i, r := range rows {
		write(1, i+2, r.ID)
		write(2, i+2, r.Text)
	}

	_ = f.SetColWidth(SheetName, "A", "A", 10)
	_ = f.SetColWidth(SheetName, "B", "B", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
