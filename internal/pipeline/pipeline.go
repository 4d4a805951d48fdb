package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vision-ocr/internal/common"
	"github.com/joseph-ayodele/vision-ocr/internal/ocr"
	"github.com/joseph-ayodele/vision-ocr/internal/repository"
)

// Stage is the last step a run reached.
type Stage int

const (
	StageNone Stage = iota
	StageSubmitted
	StagePolling
	StageFlattened
	StageStored
)

func (s Stage) String() string {
	switch s {
	case StageSubmitted:
		return "SUBMITTED"
	case StagePolling:
		return "POLLING"
	case StageFlattened:
		return "FLATTENED"
	case StageStored:
		return "STORED"
	default:
		return "NONE"
	}
}

// Result summarizes one run. Inserted holds the ids of rows written so far,
// which may be a prefix of Lines when a write fails.
type Result struct {
	RunID    uuid.UUID
	Stage    Stage
	Lines    []string
	Inserted []int64
	Duration time.Duration
}

// Pipeline runs submit -> poll -> flatten -> store for a single image.
type Pipeline struct {
	Recognizer ocr.Recognizer
	Poller     *ocr.Poller
	Rows       repository.TextRowRepository
	Log        *slog.Logger
}

func NewPipeline(rec ocr.Recognizer, poller *ocr.Poller, rows repository.TextRowRepository, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{Recognizer: rec, Poller: poller, Rows: rows, Log: log}
}

// Run recognizes imageURL and inserts one row per non-empty line, in order.
// The first failing stage aborts the run; rows already inserted are kept.
func (p *Pipeline) Run(ctx context.Context, imageURL string) (res Result, err error) {
	res.RunID = uuid.New()
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	ctx = common.WithRunID(ctx, res.RunID)
	log := p.Log.With("run_id", res.RunID)

	if err = common.NewValidator().
		Field("image_url", imageURL, common.Required, common.ImageSource).
		Err(common.CodeInvalidInput); err != nil {
		log.Error("pipeline.invalid_input", "error", err)
		return res, err
	}

	// 1) submit
	job, err := p.Recognizer.Submit(ctx, imageURL)
	if err != nil {
		log.Error("pipeline.submit.failed", "image_url", imageURL, "error", err)
		return res, err
	}
	res.Stage = StageSubmitted
	log.Info("pipeline.submitted", "operation", job.OperationHandle, "provider", job.Provider)

	// 2) poll until terminal
	res.Stage = StagePolling
	pages, err := p.Poller.AwaitCompletion(ctx, job)
	if err != nil {
		log.Error("pipeline.poll.failed", "operation", job.OperationHandle, "error", err)
		return res, err
	}

	// 3) flatten
	res.Lines = ocr.Flatten(pages)
	res.Stage = StageFlattened
	log.Info("pipeline.flattened", "pages", len(pages), "lines", len(res.Lines))

	// 4) store, one row per line
	for i, line := range res.Lines {
		id, err := p.Rows.Insert(ctx, line)
		if err != nil {
			log.Error("pipeline.insert.failed", "line", i, "text", line, "error", err)
			return res, err
		}
		res.Inserted = append(res.Inserted, id)
		log.Info("pipeline.insert.ok", "id", id, "text", line)
	}
	res.Stage = StageStored
	log.Info("pipeline.stored", "rows", len(res.Inserted), "elapsed_ms", time.Since(start).Milliseconds())
	return res, nil
}
