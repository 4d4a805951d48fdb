package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joseph-ayodele/vision-ocr/constants"
	"github.com/joseph-ayodele/vision-ocr/internal/common"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedRecognizer returns the scripted statuses one per Poll call.
type scriptedRecognizer struct {
	statuses []constants.JobStatus
	pages    []PageResult
	polls    int
	err      error
}

func (s *scriptedRecognizer) Submit(_ context.Context, imageURL string) (*Job, error) {
	return &Job{SourceURL: imageURL, OperationHandle: "op-1", Status: constants.JobStatusRunning}, nil
}

func (s *scriptedRecognizer) Poll(_ context.Context, job *Job) (*Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	next := *job
	next.Status = constants.JobStatusRunning
	if s.polls < len(s.statuses) {
		next.Status = s.statuses[s.polls]
	}
	s.polls++
	if next.Status == constants.JobStatusSucceeded {
		next.Pages = s.pages
	}
	return &next, nil
}

func newTestPoller(rec Recognizer, cfg PollConfig) (*Poller, *int) {
	p := NewPoller(rec, cfg, discardLogger())
	sleeps := 0
	p.sleep = func(ctx context.Context, _ time.Duration) error {
		sleeps++
		return ctx.Err()
	}
	return p, &sleeps
}

func TestAwaitCompletion_AlreadySucceeded(t *testing.T) {
	rec := &scriptedRecognizer{}
	p, sleeps := newTestPoller(rec, PollConfig{})
	pages := []PageResult{{Page: 1, Lines: []Line{{Words: words("HELLO", "WORLD")}}}}

	got, err := p.AwaitCompletion(context.Background(), &Job{OperationHandle: "op", Status: constants.JobStatusSucceeded, Pages: pages})
	if err != nil {
		t.Fatalf("AwaitCompletion: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 page, got %d", len(got))
	}
	if *sleeps != 0 || rec.polls != 0 {
		t.Errorf("expected no sleeps and no polls, got %d sleeps, %d polls", *sleeps, rec.polls)
	}
}

func TestAwaitCompletion_FailedOnFirstPoll(t *testing.T) {
	rec := &scriptedRecognizer{statuses: []constants.JobStatus{constants.JobStatusFailed}}
	p, sleeps := newTestPoller(rec, PollConfig{})

	_, err := p.AwaitCompletion(context.Background(), &Job{OperationHandle: "op", Status: constants.JobStatusRunning})
	if !errors.Is(err, common.ErrRecognitionFailed) {
		t.Fatalf("expected ErrRecognitionFailed, got %v", err)
	}
	if *sleeps != 0 {
		t.Errorf("expected no sleeps, got %d", *sleeps)
	}
	if rec.polls != 1 {
		t.Errorf("expected 1 poll, got %d", rec.polls)
	}
}

func TestAwaitCompletion_SucceedsAfterRunning(t *testing.T) {
	rec := &scriptedRecognizer{
		statuses: []constants.JobStatus{constants.JobStatusRunning, constants.JobStatusRunning, constants.JobStatusSucceeded},
		pages:    []PageResult{{Page: 1}},
	}
	p, sleeps := newTestPoller(rec, PollConfig{Interval: time.Millisecond})

	got, err := p.AwaitCompletion(context.Background(), &Job{OperationHandle: "op", Status: constants.JobStatusRunning})
	if err != nil {
		t.Fatalf("AwaitCompletion: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 page, got %d", len(got))
	}
	if rec.polls != 3 || *sleeps != 2 {
		t.Errorf("expected 3 polls and 2 sleeps, got %d polls and %d sleeps", rec.polls, *sleeps)
	}
}

func TestAwaitCompletion_MaxAttempts(t *testing.T) {
	rec := &scriptedRecognizer{} // always running
	p, sleeps := newTestPoller(rec, PollConfig{MaxAttempts: 4})

	_, err := p.AwaitCompletion(context.Background(), &Job{OperationHandle: "op", Status: constants.JobStatusRunning})
	if !errors.Is(err, common.ErrRecognitionTimeout) {
		t.Fatalf("expected ErrRecognitionTimeout, got %v", err)
	}
	if rec.polls != 4 {
		t.Errorf("expected 4 polls, got %d", rec.polls)
	}
	if *sleeps != 3 {
		t.Errorf("expected 3 sleeps, got %d", *sleeps)
	}
}

func TestAwaitCompletion_Deadline(t *testing.T) {
	rec := &scriptedRecognizer{}
	p := NewPoller(rec, PollConfig{Interval: time.Millisecond, Timeout: 20 * time.Millisecond}, discardLogger())

	start := time.Now()
	_, err := p.AwaitCompletion(context.Background(), &Job{OperationHandle: "op", Status: constants.JobStatusRunning})
	if !errors.Is(err, common.ErrRecognitionTimeout) {
		t.Fatalf("expected ErrRecognitionTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("deadline not honoured, took %s", elapsed)
	}
}

func TestAwaitCompletion_Canceled(t *testing.T) {
	rec := &scriptedRecognizer{}
	p := NewPoller(rec, PollConfig{Interval: time.Hour}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := p.AwaitCompletion(ctx, &Job{OperationHandle: "op", Status: constants.JobStatusRunning})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, common.ErrRecognitionTimeout) {
		t.Errorf("cancellation must not be reported as a timeout")
	}
}

func TestAwaitCompletion_PollError(t *testing.T) {
	pollErr := errors.New("boom")
	rec := &scriptedRecognizer{err: pollErr}
	p, _ := newTestPoller(rec, PollConfig{})

	_, err := p.AwaitCompletion(context.Background(), &Job{OperationHandle: "op", Status: constants.JobStatusRunning})
	if !errors.Is(err, pollErr) {
		t.Fatalf("expected poll error to propagate, got %v", err)
	}
}
