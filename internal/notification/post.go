package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	sendTimeout       = 10 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

// poster delivers JSON payloads, retrying once on 429 and 5xx responses.
type poster struct {
	client     *http.Client
	retryDelay time.Duration
}

func newPoster() poster {
	return poster{client: &http.Client{Timeout: sendTimeout}, retryDelay: defaultRetryDelay}
}

func (p poster) postJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	for attempt := 0; ; attempt++ {
		retry, wait, err := p.do(ctx, url, body)
		if err == nil || !retry || attempt > 0 {
			return err
		}
		if wait <= 0 {
			wait = p.retryDelay
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (after %v)", ctx.Err(), err)
		case <-time.After(min(wait, maxRetryDelay)):
		}
	}
}

// do sends one request and reports whether a failure is worth retrying.
func (p poster) do(ctx context.Context, url string, body []byte) (retry bool, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, 0, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, 0, nil
	}
	retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	if s, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil {
		wait = time.Duration(s) * time.Second
	}
	return retry, wait, fmt.Errorf("unexpected status %d", resp.StatusCode)
}
