package ocr

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vision-ocr/constants"
	"github.com/joseph-ayodele/vision-ocr/internal/common"
)

const succeededBody = `{
  "status": "succeeded",
  "createdDateTime": "2024-01-01T00:00:00Z",
  "analyzeResult": {
    "version": "3.2.0",
    "readResults": [
      {
        "page": 1, "angle": 0, "width": 338, "height": 479, "unit": "pixel",
        "lines": [
          {"boundingBox": [1,2,3,4,5,6,7,8], "text": "HELLO WORLD",
           "words": [{"boundingBox": [1,2,3,4,5,6,7,8], "text": "HELLO", "confidence": 0.99},
                     {"boundingBox": [1,2,3,4,5,6,7,8], "text": "WORLD", "confidence": 0.98}]},
          {"boundingBox": [1,2,3,4,5,6,7,8], "text": "", "words": []}
        ]
      }
    ]
  }
}`

// fakeReadAPI serves analyze and analyzeResults. Polls return "running" until
// runningPolls is exhausted, then finalBody.
type fakeReadAPI struct {
	key          string
	runningPolls int32
	finalBody    string
	polls        atomic.Int32

	mu       sync.Mutex
	lastBody []byte
	lastType string
}

func (f *fakeReadAPI) lastSubmission() (string, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastType, f.lastBody
}

func (f *fakeReadAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/vision/v3.2/read/analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get(subscriptionKeyHeader) != f.key {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"code":"401","message":"Access denied due to invalid subscription key."}}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lastType, f.lastBody = r.Header.Get("Content-Type"), body
		f.mu.Unlock()
		w.Header().Set(operationLocationHeader, "http://"+r.Host+"/vision/v3.2/read/analyzeResults/op-123")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/vision/v3.2/read/analyzeResults/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/op-123") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		n := f.polls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n <= f.runningPolls {
			_, _ = io.WriteString(w, `{"status":"running","createdDateTime":"2024-01-01T00:00:00Z"}`)
			return
		}
		_, _ = io.WriteString(w, f.finalBody)
	})
	return mux
}

func newFakeAzure(t *testing.T, f *fakeReadAPI) *AzureClient {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewAzureClient(AzureConfig{Endpoint: srv.URL + "/", Key: f.key, Timeout: 5 * time.Second}, discardLogger())
}

func TestAzureClient_SubmitAndAwait(t *testing.T) {
	f := &fakeReadAPI{key: "secret", runningPolls: 2, finalBody: succeededBody}
	c := newFakeAzure(t, f)
	ctx := context.Background()

	job, err := c.Submit(ctx, common.SampleImageURL)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.OperationHandle != "op-123" {
		t.Errorf("expected handle op-123, got %q", job.OperationHandle)
	}
	if job.Status != constants.JobStatusRunning {
		t.Errorf("expected RUNNING, got %s", job.Status)
	}
	contentType, body := f.lastSubmission()
	if contentType != "application/json" {
		t.Errorf("expected json submission, got %q", contentType)
	}
	var sent map[string]string
	if err := json.Unmarshal(body, &sent); err != nil || sent["url"] != common.SampleImageURL {
		t.Errorf("unexpected submission body %s (err %v)", body, err)
	}

	p := NewPoller(c, PollConfig{Interval: time.Millisecond, MaxAttempts: 10}, discardLogger())
	pages, err := p.AwaitCompletion(ctx, job)
	if err != nil {
		t.Fatalf("AwaitCompletion: %v", err)
	}
	if got := f.polls.Load(); got != 3 {
		t.Errorf("expected 3 polls, got %d", got)
	}
	lines := Flatten(pages)
	if len(lines) != 1 || lines[0] != "HELLO WORLD" {
		t.Errorf("expected [HELLO WORLD], got %q", lines)
	}
	if c := pages[0].Lines[0].Words[0].Confidence; c != 0.99 {
		t.Errorf("expected confidence 0.99, got %v", c)
	}
}

func TestAzureClient_SubmitLocalFile(t *testing.T) {
	f := &fakeReadAPI{key: "secret"}
	c := newFakeAzure(t, f)

	img := filepath.Join(t.TempDir(), "scan.png")
	if err := os.WriteFile(img, []byte("\x89PNG fake"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Submit(context.Background(), img); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	contentType, body := f.lastSubmission()
	if contentType != "application/octet-stream" {
		t.Errorf("expected octet-stream upload, got %q", contentType)
	}
	if string(body) != "\x89PNG fake" {
		t.Errorf("unexpected upload body %q", body)
	}
}

func TestAzureClient_SubmitRejected(t *testing.T) {
	f := &fakeReadAPI{key: "secret"}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()
	c := NewAzureClient(AzureConfig{Endpoint: srv.URL, Key: "wrong"}, discardLogger())

	_, err := c.Submit(context.Background(), common.SampleImageURL)
	if !errors.Is(err, common.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid subscription key") {
		t.Errorf("expected provider message in error, got %v", err)
	}
}

func TestAzureClient_MissingEndpoint(t *testing.T) {
	c := NewAzureClient(AzureConfig{}, discardLogger())
	_, err := c.Submit(context.Background(), common.SampleImageURL)
	if !errors.Is(err, common.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
}

func TestAzureClient_PollFailed(t *testing.T) {
	f := &fakeReadAPI{key: "k", finalBody: `{"status":"failed"}`}
	c := newFakeAzure(t, f)

	job, err := c.Submit(context.Background(), common.SampleImageURL)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	next, err := c.Poll(context.Background(), job)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if next.Status != constants.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", next.Status)
	}
	if job.Status != constants.JobStatusRunning {
		t.Errorf("Poll must not mutate its argument, got %s", job.Status)
	}
}

func TestAzureClient_PollRejectsMalformedPayload(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "unknown status", body: `{"status":"exploded"}`},
		{name: "succeeded without result", body: `{"status":"succeeded"}`},
		{name: "word without text", body: `{"status":"succeeded","analyzeResult":{"readResults":[{"page":1,"lines":[{"words":[{"confidence":0.5}]}]}]}}`},
		{name: "not json", body: `<html>oops</html>`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeReadAPI{key: "k", finalBody: tc.body}
			c := newFakeAzure(t, f)
			_, err := c.Poll(context.Background(), &Job{OperationHandle: "op-123", Status: constants.JobStatusRunning})
			if !errors.Is(err, common.ErrPoll) {
				t.Errorf("expected ErrPoll, got %v", err)
			}
		})
	}
}

func TestOperationHandle(t *testing.T) {
	testCases := []struct {
		location string
		expected string
		wantErr  bool
	}{
		{location: "https://x.cognitiveservices.azure.com/vision/v3.2/read/analyzeResults/abc-123", expected: "abc-123"},
		{location: "https://x/vision/v3.2/read/analyzeResults/abc-123?foo=bar", expected: "abc-123"},
		{location: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.location, func(t *testing.T) {
			actual, err := operationHandle(tc.location)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", actual)
				}
				return
			}
			if err != nil || actual != tc.expected {
				t.Errorf("expected %q, got %q (err %v)", tc.expected, actual, err)
			}
		})
	}
}

func TestAzureClient_HTTPLogsCarryRunID(t *testing.T) {
	f := &fakeReadAPI{key: "k", finalBody: succeededBody}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := NewAzureClient(AzureConfig{Endpoint: srv.URL, Key: "k"}, logger)

	runID := uuid.New()
	ctx := common.WithRunID(context.Background(), runID)
	job, err := c.Submit(ctx, common.SampleImageURL)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := c.Poll(ctx, job); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	reqIDs := map[string]string{} // req_id -> method
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", sc.Text(), err)
		}
		msg, _ := entry["msg"].(string)
		if !strings.HasPrefix(msg, "vision.http.") {
			continue
		}
		if entry["run_id"] != runID.String() {
			t.Errorf("%s: expected run_id %s, got %v", msg, runID, entry["run_id"])
		}
		reqID, _ := entry["req_id"].(string)
		if reqID == "" {
			t.Errorf("%s: missing req_id", msg)
		}
		if m, ok := entry["method"].(string); ok {
			reqIDs[reqID] = m
		}
	}
	if len(reqIDs) != 2 {
		t.Errorf("expected one request id per call, got %v", reqIDs)
	}
}
