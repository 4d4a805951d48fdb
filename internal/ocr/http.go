package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vision-ocr/internal/common"
)

// send issues one request and returns the raw response body, headers and status.
// A non-2xx status is returned as an error together with the body so callers can
// decode the provider's error payload.
func send(ctx context.Context, client *http.Client, method, url string, body io.Reader, headers map[string]string, logger *slog.Logger) ([]byte, http.Header, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	logger = logger.With("req_id", common.RequestIDFromContext(ctx))
	if runID := common.RunIDFromContext(ctx); runID != uuid.Nil {
		logger = logger.With("run_id", runID)
	}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		logger.Error("vision.http.build_request_error", "error", err)
		return nil, nil, 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("vision.http.request",
		"method", method,
		"url", url,
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("vision.http.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logger.Warn("vision.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("vision.http.read_error", "error", err)
		return nil, resp.Header, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	logger.Debug("vision.http.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.Header, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.Header, resp.StatusCode, nil
}
