// Package endpoint calls the remote answer-generation service and hands its
// chunked response body to the turn processor's decode loop.
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/datachat-ai/datachat/internal/chat"
)

// Client posts conversation requests. One call per turn, no retries. The
// streaming client carries no timeout so a slow response body is never cut
// off mid-frame.
type Client struct {
	url             string
	logger          *slog.Logger
	httpClient      *http.Client
	streamingClient *http.Client
}

// NewClient creates a client for the answer endpoint.
func NewClient(log *slog.Logger, url string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:             strings.TrimRight(strings.TrimSpace(url), "/"),
		logger:          log.With(slog.String("service", "endpoint")),
		httpClient:      &http.Client{Timeout: timeout},
		streamingClient: &http.Client{},
	}
}

// Converse posts the accumulated transcript and returns the streamed
// response body. The caller owns closing the returned reader.
func (c *Client) Converse(ctx context.Context, req chat.ConversationRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode conversation request: %w", err)
	}
	c.logger.Info("endpoint request",
		slog.String("url", c.url),
		slog.String("conversation_id", req.ConversationID),
		slog.Int("messages", len(req.Messages)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.streamingClient.Do(httpReq)
	if err != nil {
		c.logger.Error("endpoint connect failed", slog.String("url", c.url), slog.Any("error", err))
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.logger.Error("endpoint error",
			slog.String("url", c.url),
			slog.Int("status", resp.StatusCode),
			slog.String("body_prefix", truncate(string(errBody), 300)),
		)
		return nil, fmt.Errorf("answer endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	return resp.Body, nil
}

// Ping probes the answer endpoint with a bounded HEAD request.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("answer endpoint status %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
