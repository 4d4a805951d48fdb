package ocr

import (
	"context"

	"github.com/joseph-ayodele/vision-ocr/constants"
)

// Job is a recognition job as seen by the client. It is mutated only by polling.
type Job struct {
	SourceURL       string
	OperationHandle string
	Status          constants.JobStatus
	Pages           []PageResult // set once Status is SUCCEEDED
	Provider        string
}

// PageResult mirrors one page of the provider response.
type PageResult struct {
	Page  int
	Lines []Line
}

// Line is an ordered sequence of words. Text is the provider's own rendering of the line, if any.
type Line struct {
	Text  string
	Words []Word
}

type Word struct {
	Text       string
	Confidence float64
}

// Recognizer submits an image reference and reports job status.
type Recognizer interface {
	Submit(ctx context.Context, imageURL string) (*Job, error)
	Poll(ctx context.Context, job *Job) (*Job, error)
}
