package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mehedi/stockhook/internal/signing"
)

// Wire contract headers carried on every outbound request.
const (
	HeaderSignature = "X-Stockhook-Signature"
	HeaderEvent     = "X-Stockhook-Event"
	HeaderDelivery  = "X-Stockhook-Delivery"
)

type SendResult struct {
	StatusCode int
	Body       string
	Err        string
	Latency    time.Duration
}

// TransportError reports whether the attempt failed before an HTTP status was
// received (timeout, connection refused, DNS failure). Those are always
// retryable.
func (r *SendResult) TransportError() bool {
	return r.Err != ""
}

type Sender struct {
	client    *http.Client
	userAgent string
}

func NewSender(timeout time.Duration, version string) *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: fmt.Sprintf("Stockhook/%s", version),
	}
}

// Send issues exactly one signed POST to url and reports the raw outcome.
// Classification of the outcome belongs to the executor.
func (s *Sender) Send(ctx context.Context, url, secret, deliveryID, eventType string, payload []byte) *SendResult {
	start := time.Now()

	signature := signing.Sign(secret, payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &SendResult{
			Err:     fmt.Sprintf("failed to create request: %v", err),
			Latency: time.Since(start),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderDelivery, deliveryID)

	resp, err := s.client.Do(req)
	if err != nil {
		return &SendResult{
			Err:     fmt.Sprintf("request failed: %v", err),
			Latency: time.Since(start),
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	return &SendResult{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Latency:    time.Since(start),
	}
}
