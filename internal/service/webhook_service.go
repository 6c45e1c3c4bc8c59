package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// defaultWebhookRetryIntervals is the delay before each retry of a failed delivery.
var defaultWebhookRetryIntervals = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	30 * time.Second,
}

const (
	HeaderAuditSignature = "X-Audit-Signature"
	HeaderAuditTimestamp = "X-Audit-Timestamp"
)

// WebhookPayload is the JSON body POSTed to the indexer.
type WebhookPayload struct {
	Seq        uint64          `json:"seq"`
	Kind       string          `json:"kind"`
	OccurredAt int64           `json:"occurred_at"`
	Event      json.RawMessage `json:"event"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookSink implements ports.AuditSink by pushing each audit record to the
// indexer webhook. The body is signed with HMAC-SHA256 over
// "TIMESTAMP|BODY" using the shared webhook secret.
type WebhookSink struct {
	url        string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	retries    []time.Duration
	log        zerolog.Logger
}

// NewWebhookSink creates a new indexer webhook sink.
func NewWebhookSink(url, secret string, sigSvc ports.SignatureService, httpClient HTTPClient, log zerolog.Logger) *WebhookSink {
	return &WebhookSink{
		url:        url,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		retries:    defaultWebhookRetryIntervals,
		log:        log,
	}
}

// WithRetryIntervals overrides the retry schedule.
func (s *WebhookSink) WithRetryIntervals(intervals []time.Duration) *WebhookSink {
	s.retries = intervals
	return s
}

func (s *WebhookSink) Name() string { return "indexer-webhook" }

// Append delivers rec, retrying on transport errors and non-2xx responses.
// It returns an error once every attempt failed or ctx is done.
func (s *WebhookSink) Append(ctx context.Context, rec domain.AuditRecord) error {
	event, err := rec.Payload()
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	body, err := json.Marshal(WebhookPayload{
		Seq:        rec.Seq,
		Kind:       string(rec.Kind),
		OccurredAt: rec.OccurredAt.Unix(),
		Event:      event,
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(s.retries); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retries[attempt-1]):
			case <-ctx.Done():
				return fmt.Errorf("webhook delivery of seq %d abandoned: %w", rec.Seq, ctx.Err())
			}
		}

		lastErr = s.deliver(ctx, body)
		if lastErr == nil {
			s.log.Debug().Uint64("seq", rec.Seq).Int("attempt", attempt+1).Msg("webhook: delivered")
			return nil
		}
		s.log.Warn().Err(lastErr).Uint64("seq", rec.Seq).Int("attempt", attempt+1).Msg("webhook: delivery failed")
	}

	return fmt.Errorf("webhook delivery of seq %d failed after %d attempts: %w", rec.Seq, len(s.retries)+1, lastErr)
}

func (s *WebhookSink) deliver(ctx context.Context, body []byte) error {
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAuditTimestamp, ts)
	req.Header.Set(HeaderAuditSignature, s.sigSvc.Sign(s.secret, ts+"|"+string(body)))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("indexer responded %d", resp.StatusCode)
	}
	return nil
}
