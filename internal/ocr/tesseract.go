package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vision-ocr/constants"
)

type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	Pdftoppm string // poppler rasterizer for PDFs; default "pdftoppm"
	DPI      int    // rasterization DPI, default 300
	MaxPages int    // 0 = all pages

	DownloadTimeout time.Duration // for http(s) images, default 30s
}

// TesseractRecognizer runs recognition locally. Work happens in Submit, so the
// returned job is already terminal and Poll just hands it back.
type TesseractRecognizer struct {
	cfg    TesseractConfig
	runner Runner
	http   *http.Client
	logger *slog.Logger
}

func NewTesseractRecognizer(cfg TesseractConfig, logger *slog.Logger) *TesseractRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 30 * time.Second
	}
	return &TesseractRecognizer{
		cfg:    cfg,
		runner: execRunner{logger: logger},
		http:   &http.Client{Timeout: cfg.DownloadTimeout},
		logger: logger,
	}
}

func (t *TesseractRecognizer) Submit(ctx context.Context, imageURL string) (*Job, error) {
	imgPath := imageURL
	if isRemote(imageURL) {
		p, cleanup, err := t.download(ctx, imageURL)
		if err != nil {
			return nil, submissionError(imageURL, err)
		}
		defer cleanup()
		imgPath = p
	} else if _, err := os.Stat(imageURL); err != nil {
		return nil, submissionError(imageURL, err)
	}

	pages, err := t.recognize(ctx, imgPath)
	if err != nil {
		return nil, submissionError(imageURL, err)
	}
	job := &Job{
		SourceURL:       imageURL,
		OperationHandle: uuid.NewString(),
		Status:          constants.JobStatusSucceeded,
		Pages:           pages,
		Provider:        constants.ProviderTesseract,
	}
	t.logger.Info("tesseract.recognized", "operation", job.OperationHandle, "pages", len(pages))
	return job, nil
}

func (t *TesseractRecognizer) Poll(_ context.Context, job *Job) (*Job, error) {
	next := *job
	return &next, nil
}

func (t *TesseractRecognizer) recognize(ctx context.Context, imgPath string) ([]PageResult, error) {
	if constants.NormalizeExt(filepath.Ext(imgPath)) == "pdf" {
		return t.recognizePDF(ctx, imgPath)
	}
	return t.recognizeImage(ctx, imgPath)
}

// recognizeImage runs `tesseract <img> stdout -l <lang> ... tsv`.
func (t *TesseractRecognizer) recognizeImage(ctx context.Context, imgPath string) ([]PageResult, error) {
	args := []string{imgPath, "stdout", "-l", t.cfg.Lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract TSV: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return parseTSV(string(out)), nil
}

// TSV levels: 1 page, 2 block, 3 paragraph, 4 line, 5 word.
const (
	tsvLevelPage = 1
	tsvLevelLine = 4
	tsvLevelWord = 5
)

// parseTSV groups tesseract TSV rows into pages and lines, in output order.
func parseTSV(tsv string) []PageResult {
	type lineKey struct{ page, block, par, line int }

	var pages []PageResult
	pageIdx := map[int]int{}
	lineIdx := map[lineKey]int{}

	pageFor := func(num int) *PageResult {
		i, ok := pageIdx[num]
		if !ok {
			pages = append(pages, PageResult{Page: num})
			i = len(pages) - 1
			pageIdx[num] = i
		}
		return &pages[i]
	}
	lineFor := func(k lineKey) *Line {
		p := pageFor(k.page)
		i, ok := lineIdx[k]
		if !ok {
			p.Lines = append(p.Lines, Line{})
			i = len(p.Lines) - 1
			lineIdx[k] = i
		}
		return &p.Lines[i]
	}

	for i, ln := range strings.Split(tsv, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if i == 0 || ln == "" {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		nums := make([]int, 6)
		valid := true
		for j := range nums {
			n, err := strconv.Atoi(cols[j])
			if err != nil {
				valid = false
				break
			}
			nums[j] = n
		}
		if !valid {
			continue
		}
		level := nums[0]
		k := lineKey{page: nums[1], block: nums[2], par: nums[3], line: nums[4]}

		switch level {
		case tsvLevelPage:
			pageFor(k.page)
		case tsvLevelLine:
			lineFor(k)
		case tsvLevelWord:
			text := strings.TrimSpace(cols[11])
			if text == "" {
				continue
			}
			var conf float64
			if c, err := strconv.ParseFloat(cols[10], 64); err == nil && c >= 0 {
				conf = c / 100.0
			}
			l := lineFor(k)
			l.Words = append(l.Words, Word{Text: text, Confidence: conf})
		}
	}

	for pi := range pages {
		for li := range pages[pi].Lines {
			l := &pages[pi].Lines[li]
			words := make([]string, len(l.Words))
			for wi, w := range l.Words {
				words[wi] = w.Text
			}
			l.Text = strings.Join(words, " ")
		}
	}
	return pages
}

// download fetches a remote image into a temp dir. Call cleanup() to remove it.
func (t *TesseractRecognizer) download(ctx context.Context, imageURL string) (string, func(), error) {
	raw, _, _, err := send(ctx, t.http, http.MethodGet, imageURL, nil, nil, t.logger)
	if err != nil {
		return "", nil, fmt.Errorf("download image: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "vo-img-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", err)
		}
	}

	ext := ".png"
	if u, err := url.Parse(imageURL); err == nil && constants.IsImageExt(path.Ext(u.Path)) {
		ext = "." + constants.NormalizeExt(path.Ext(u.Path))
	}
	out := filepath.Join(tmpDir, "image"+ext)
	if err := os.WriteFile(out, raw, 0o600); err != nil {
		cleanup()
		return "", nil, err
	}
	t.logger.Debug("tesseract.downloaded", "url", imageURL, "bytes", len(raw), "path", out)
	return out, cleanup, nil
}

var (
	_ Recognizer = (*AzureClient)(nil)
	_ Recognizer = (*TesseractRecognizer)(nil)
)
