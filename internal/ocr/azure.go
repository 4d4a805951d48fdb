package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vision-ocr/constants"
	"github.com/joseph-ayodele/vision-ocr/internal/common"
)

const (
	readStatusNotStarted = "notStarted"
	readStatusRunning    = "running"
	readStatusFailed     = "failed"
	readStatusSucceeded  = "succeeded"

	subscriptionKeyHeader   = "Ocp-Apim-Subscription-Key"
	operationLocationHeader = "Operation-Location"
)

// AzureConfig for the Computer Vision Read client.
type AzureConfig struct {
	Endpoint     string        // e.g. https://<resource>.cognitiveservices.azure.com
	Key          string        // sent as Ocp-Apim-Subscription-Key
	APIVersion   string        // default v3.2
	Language     string        // optional BCP-47 hint
	ReadingOrder string        // "basic" | "natural"; empty leaves the service default
	Timeout      time.Duration // per request
}

// AzureClient talks to the Read API: analyze submits, analyzeResults polls.
type AzureClient struct {
	cfg    AzureConfig
	http   *http.Client
	logger *slog.Logger
}

func NewAzureClient(cfg AzureConfig, logger *slog.Logger) *AzureClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v3.2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AzureClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *AzureClient) baseURL() string {
	return strings.TrimRight(c.cfg.Endpoint, "/") + "/vision/" + c.cfg.APIVersion + "/read"
}

// Submit sends imageURL to the Read API. http(s) URLs are passed by reference,
// anything else is treated as a local file and uploaded.
func (c *AzureClient) Submit(ctx context.Context, imageURL string) (*Job, error) {
	ctx = common.WithRequestID(ctx, uuid.NewString())
	analyzeURL := c.baseURL() + "/analyze"
	q := url.Values{}
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}
	if c.cfg.ReadingOrder != "" {
		q.Set("readingOrder", c.cfg.ReadingOrder)
	}
	if len(q) > 0 {
		analyzeURL += "?" + q.Encode()
	}

	headers := map[string]string{subscriptionKeyHeader: c.cfg.Key}
	var body io.Reader
	if isRemote(imageURL) {
		b, err := json.Marshal(map[string]string{"url": imageURL})
		if err != nil {
			return nil, submissionError(imageURL, err)
		}
		body = bytes.NewReader(b)
		headers["Content-Type"] = "application/json"
	} else {
		b, err := os.ReadFile(imageURL)
		if err != nil {
			c.logger.Error("vision.submit.read_file_error", "path", imageURL, "error", err)
			return nil, submissionError(imageURL, err)
		}
		body = bytes.NewReader(b)
		headers["Content-Type"] = "application/octet-stream"
	}

	c.logger.Info("vision.submit",
		"source", imageURL,
		"req_id", common.RequestIDFromContext(ctx),
		"run_id", common.RunIDFromContext(ctx),
	)
	raw, hdr, status, err := send(ctx, c.http, http.MethodPost, analyzeURL, body, headers, c.logger)
	if err != nil {
		if status != 0 {
			err = fmt.Errorf("%w: %s", err, describeAzureError(raw))
		}
		c.logger.Error("vision.submit.rejected", "source", imageURL, "status", status, "error", err)
		return nil, submissionError(imageURL, err)
	}
	if status != http.StatusAccepted {
		return nil, submissionError(imageURL, fmt.Errorf("unexpected status %d", status))
	}

	handle, err := operationHandle(hdr.Get(operationLocationHeader))
	if err != nil {
		return nil, submissionError(imageURL, err)
	}
	c.logger.Info("vision.submit.accepted", "operation", handle)
	return &Job{
		SourceURL:       imageURL,
		OperationHandle: handle,
		Status:          constants.JobStatusRunning,
		Provider:        constants.ProviderAzure,
	}, nil
}

// Poll queries the operation once and returns an updated copy of job.
func (c *AzureClient) Poll(ctx context.Context, job *Job) (*Job, error) {
	ctx = common.WithRequestID(ctx, uuid.NewString())
	resultURL := c.baseURL() + "/analyzeResults/" + url.PathEscape(job.OperationHandle)
	headers := map[string]string{subscriptionKeyHeader: c.cfg.Key}

	raw, _, status, err := send(ctx, c.http, http.MethodGet, resultURL, nil, headers, c.logger)
	if err != nil {
		if status != 0 {
			err = fmt.Errorf("%w: %s", err, describeAzureError(raw))
		}
		return nil, pollError(job, err)
	}
	if err := validateReadResult(raw); err != nil {
		c.logger.Error("vision.poll.schema_validation_failed", "operation", job.OperationHandle, "error", err)
		return nil, pollError(job, err)
	}

	var res readOperationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, pollError(job, fmt.Errorf("decode read result: %w", err))
	}

	next := *job
	switch res.Status {
	case readStatusSucceeded:
		next.Status = constants.JobStatusSucceeded
		next.Pages = res.pages()
	case readStatusFailed:
		next.Status = constants.JobStatusFailed
	default:
		next.Status = constants.JobStatusRunning
	}
	return &next, nil
}

type readOperationResult struct {
	Status        string `json:"status"`
	AnalyzeResult *struct {
		ReadResults []struct {
			Page  int `json:"page"`
			Lines []struct {
				Text  string `json:"text"`
				Words []struct {
					Text       string  `json:"text"`
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

func (r readOperationResult) pages() []PageResult {
	if r.AnalyzeResult == nil {
		return nil
	}
	pages := make([]PageResult, 0, len(r.AnalyzeResult.ReadResults))
	for _, rr := range r.AnalyzeResult.ReadResults {
		page := PageResult{Page: rr.Page, Lines: make([]Line, 0, len(rr.Lines))}
		for _, l := range rr.Lines {
			line := Line{Text: l.Text, Words: make([]Word, 0, len(l.Words))}
			for _, w := range l.Words {
				line.Words = append(line.Words, Word{Text: w.Text, Confidence: w.Confidence})
			}
			page.Lines = append(page.Lines, line)
		}
		pages = append(pages, page)
	}
	return pages
}

// operationHandle returns the last path segment of an Operation-Location URL.
func operationHandle(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("response has no %s header", operationLocationHeader)
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", operationLocationHeader, err)
	}
	handle := path.Base(u.Path)
	if handle == "" || handle == "." || handle == "/" {
		return "", fmt.Errorf("no operation id in %q", location)
	}
	return handle, nil
}

// describeAzureError renders {"error":{"code":..,"message":..}} bodies, falling back to the raw text.
func describeAzureError(raw []byte) string {
	var e struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && (e.Error.Code != "" || e.Error.Message != "") {
		return e.Error.Code + ": " + e.Error.Message
	}
	return truncate(strings.TrimSpace(string(raw)), 512)
}

func isRemote(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

func submissionError(source string, err error) error {
	return common.NewAppError(common.CodeSubmission, "submit "+source, common.ErrSubmission, err)
}

func pollError(job *Job, err error) error {
	return common.NewAppError(common.CodePoll, "poll operation "+job.OperationHandle, common.ErrPoll, err)
}
