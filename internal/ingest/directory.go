package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/vision-ocr/constants"
	"github.com/joseph-ayodele/vision-ocr/internal/pipeline"
)

// Runner is the single-image pipeline the directory walk drives.
type Runner interface {
	Run(ctx context.Context, imageURL string) (pipeline.Result, error)
}

type FileResult struct {
	Path         string
	HashHex      string
	Deduplicated bool
	Rows         int
	Err          string
}

// DirStats summarizes a directory run.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Directory runs the pipeline over every image under a root, one at a time.
type Directory struct {
	Runner     Runner
	SkipHidden bool
	Log        *slog.Logger
}

func NewDirectory(r Runner, skipHidden bool, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{Runner: r, SkipHidden: skipHidden, Log: log}
}

// Run walks root in lexical order and runs the pipeline on each image file.
// Files whose content was already seen in this walk are skipped. A failing
// file is recorded and the walk continues; cancellation stops it.
func (d *Directory) Run(ctx context.Context, root string) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var paths []string
	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, e fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if d.SkipHidden && path != root && IsHidden(path) {
			if e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if e.IsDir() || !constants.IsImageExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	sort.Strings(paths)

	seen := map[string]string{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}

		sum, err := hashFile(path)
		if err != nil {
			d.Log.Error("ingest.hash_failed", "path", path, "error", err)
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			continue
		}
		if first, ok := seen[sum]; ok {
			d.Log.Info("ingest.duplicate", "path", path, "same_as", first)
			results = append(results, FileResult{Path: path, HashHex: sum, Deduplicated: true})
			stats.Deduplicated++
			continue
		}
		seen[sum] = path

		res, err := d.Runner.Run(ctx, path)
		if err != nil {
			d.Log.Error("ingest.run_failed", "path", path, "stage", res.Stage.String(), "error", err)
			results = append(results, FileResult{Path: path, HashHex: sum, Rows: len(res.Inserted), Err: err.Error()})
			stats.Failed++
			continue
		}
		results = append(results, FileResult{Path: path, HashHex: sum, Rows: len(res.Inserted)})
		stats.Succeeded++
	}

	d.Log.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
