package redis

import (
	"context"
	"fmt"
	"strconv"

	"order-pay-gateway/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// StreamSink publishes audit records to a Redis stream so indexers can
// consume them with XREAD / consumer groups.
type StreamSink struct {
	client goredis.Cmdable
	stream string
	maxLen int64
}

// NewStreamSink creates an audit sink writing to stream. A positive maxLen
// caps the stream length approximately.
func NewStreamSink(client goredis.Cmdable, stream string, maxLen int64) *StreamSink {
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Name() string { return "redis-stream" }

// Append adds rec as one stream entry.
func (s *StreamSink) Append(ctx context.Context, rec domain.AuditRecord) error {
	payload, err := rec.Payload()
	if err != nil {
		return fmt.Errorf("encoding audit payload: %w", err)
	}

	args := &goredis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"seq":         strconv.FormatUint(rec.Seq, 10),
			"kind":        string(rec.Kind),
			"occurred_at": rec.OccurredAt.UTC().UnixMilli(),
			"payload":     string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", s.stream, err)
	}
	return nil
}
