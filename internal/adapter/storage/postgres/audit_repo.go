package postgres

import (
	"context"
	"fmt"

	"order-pay-gateway/internal/core/domain"
)

const defaultAuditPage = 1000

// AuditRepo implements ports.AuditRepository on the audit_events table.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append stores rec. A seq that is already taken is an error, never a silent
// overwrite or skip.
func (r *AuditRepo) Append(ctx context.Context, rec domain.AuditRecord) error {
	payload, err := rec.Payload()
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO audit_events (seq, kind, payload, occurred_at)
		 VALUES ($1, $2, $3, $4)`,
		int64(rec.Seq), string(rec.Kind), payload, rec.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event %d: %w", rec.Seq, err)
	}
	return nil
}

// LastSeq returns the highest stored seq, 0 for an empty log.
func (r *AuditRepo) LastSeq(ctx context.Context) (uint64, error) {
	var last int64
	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM audit_events`).Scan(&last); err != nil {
		return 0, fmt.Errorf("max audit seq: %w", err)
	}
	return uint64(last), nil
}

// ListAfter returns up to limit events with seq > afterSeq in seq order.
func (r *AuditRepo) ListAfter(ctx context.Context, afterSeq uint64, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = defaultAuditPage
	}

	rows, err := r.pool.Query(ctx,
		`SELECT seq, kind, payload, occurred_at FROM audit_events
		 WHERE seq > $1 ORDER BY seq ASC LIMIT $2`,
		int64(afterSeq), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditRecord, 0)
	for rows.Next() {
		var (
			seq     int64
			kind    string
			payload []byte
			rec     domain.AuditRecord
		)
		if err := rows.Scan(&seq, &kind, &payload, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		rec.Seq = uint64(seq)
		rec.Kind = domain.EventKind(kind)
		if rec.Event, err = domain.DecodeEvent(rec.Kind, payload); err != nil {
			return nil, fmt.Errorf("decode audit event %d: %w", seq, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
