package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/vision-ocr/constants"
	"github.com/joseph-ayodele/vision-ocr/internal/common"
)

// PollConfig bounds AwaitCompletion. A zero MaxAttempts or Timeout disables that bound.
type PollConfig struct {
	Interval    time.Duration // default 1s
	MaxAttempts int
	Timeout     time.Duration
}

type Poller struct {
	rec    Recognizer
	cfg    PollConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPoller(rec Recognizer, cfg PollConfig, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Poller{rec: rec, cfg: cfg, logger: logger, sleep: sleepCtx}
}

// AwaitCompletion polls job until it reaches a terminal status and returns its pages.
// An already terminal job is returned without polling; no sleep precedes the first poll.
func (p *Poller) AwaitCompletion(ctx context.Context, job *Job) ([]PageResult, error) {
	if job == nil {
		return nil, common.NewAppError(common.CodePoll, "nil job", common.ErrInvalidInput, nil)
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	for attempt := 0; ; {
		switch job.Status {
		case constants.JobStatusSucceeded:
			p.logger.Info("ocr.await.succeeded",
				"operation", job.OperationHandle,
				"polls", attempt,
				"pages", len(job.Pages),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return job.Pages, nil
		case constants.JobStatusFailed:
			p.logger.Error("ocr.await.failed", "operation", job.OperationHandle, "polls", attempt)
			return nil, common.NewAppError(common.CodeRecognitionFailed,
				fmt.Sprintf("operation %s reported failure", job.OperationHandle), common.ErrRecognitionFailed, nil)
		}

		if p.cfg.MaxAttempts > 0 && attempt >= p.cfg.MaxAttempts {
			p.logger.Warn("ocr.await.max_attempts", "operation", job.OperationHandle, "polls", attempt)
			return nil, common.NewAppError(common.CodeRecognitionTimeout,
				fmt.Sprintf("operation %s still running after %d polls", job.OperationHandle, attempt),
				common.ErrRecognitionTimeout, nil)
		}
		if attempt > 0 {
			if err := p.sleep(ctx, p.cfg.Interval); err != nil {
				return nil, p.interrupted(job, attempt, err)
			}
		}

		attempt++
		next, err := p.rec.Poll(ctx, job)
		if err != nil {
			if ctx.Err() != nil {
				return nil, p.interrupted(job, attempt, ctx.Err())
			}
			return nil, err
		}
		p.logger.Debug("ocr.await.poll", "operation", job.OperationHandle, "attempt", attempt, "status", next.Status)
		job = next
	}
}

func (p *Poller) interrupted(job *Job, polls int, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		p.logger.Warn("ocr.await.deadline", "operation", job.OperationHandle, "polls", polls, "timeout", p.cfg.Timeout)
		return common.NewAppError(common.CodeRecognitionTimeout,
			fmt.Sprintf("operation %s not finished before deadline", job.OperationHandle),
			common.ErrRecognitionTimeout, err)
	}
	p.logger.Warn("ocr.await.canceled", "operation", job.OperationHandle, "polls", polls)
	return fmt.Errorf("await operation %s: %w", job.OperationHandle, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
