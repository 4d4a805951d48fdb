package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// recognizePDF rasterizes every page with pdftoppm and runs tesseract on each
// image. Page numbers in the result follow the PDF, not tesseract's per-image 1.
func (t *TesseractRecognizer) recognizePDF(ctx context.Context, pdfPath string) ([]PageResult, error) {
	tmpDir, err := os.MkdirTemp("", "vo-pp-*")
	if err != nil {
		return nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			t.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := t.runner.Run(ctx, t.cfg.Pdftoppm, "-r", strconv.Itoa(t.cfg.DPI), "-png", pdfPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	// prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })
	if t.cfg.MaxPages > 0 && len(matches) > t.cfg.MaxPages {
		matches = matches[:t.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images for %s", pdfPath)
	}

	var pages []PageResult
	for i, img := range matches {
		got, err := t.recognizeImage(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		page := PageResult{Page: i + 1}
		for _, p := range got {
			page.Lines = append(page.Lines, p.Lines...)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// pageNumber extracts N from ".../page-N.png"; pdftoppm zero-pads N for long documents.
func pageNumber(p string) int {
	base := strings.TrimSuffix(filepath.Base(p), ".png")
	i := strings.LastIndexByte(base, '-')
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0
	}
	return n
}
