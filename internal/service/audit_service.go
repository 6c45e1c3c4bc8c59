package service

import (
	"context"
	"sync"
	"time"

	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	defaultAuditRetain  = 10000
	defaultAuditBacklog = 1024
	auditSinkTimeout    = 2 * time.Minute
	auditBackfillPage   = 500
)

// AuditOptions tunes the in-memory window and the per-sink backlogs.
type AuditOptions struct {
	Retain int
	// QueueSize bounds each sink's backlog. A sink that falls further behind
	// loses its oldest pending records and re-reads them from the repository.
	QueueSize int
}

// AuditService implements ports.AuditLog.
//
// Record writes the event to the repository before returning, inside the
// caller's transaction when ctx carries one, and reserves the next sequence
// number. Publish makes the record visible to History and hands it to the
// sinks. Each sink has its own backlog and worker goroutine, so a sink sees
// records in sequence order, and Publish never waits on a sink. Callers
// serialize Record/Publish pairs; the gateway does so under the ConfigStore
// lock.
type AuditService struct {
	mu      sync.Mutex
	seq     uint64
	records []domain.AuditRecord
	retain  int
	closed  bool

	repo    ports.AuditRepository
	workers []*sinkWorker
	wg      sync.WaitGroup
	log     zerolog.Logger
	now     func() time.Time
}

type sinkWorker struct {
	sink  ports.AuditSink
	limit int
	wake  chan struct{}

	mu      sync.Mutex
	pending []domain.AuditRecord
	closed  bool

	// delivered is owned by the worker goroutine.
	delivered uint64
}

// push queues rec without blocking. It reports whether the oldest pending
// record had to be dropped to make room.
func (w *sinkWorker) push(rec domain.AuditRecord) (dropped bool) {
	w.mu.Lock()
	if len(w.pending) >= w.limit {
		copy(w.pending, w.pending[1:])
		w.pending = w.pending[:len(w.pending)-1]
		dropped = true
	}
	w.pending = append(w.pending, rec)
	w.mu.Unlock()
	w.signal()
	return dropped
}

func (w *sinkWorker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// take hands over everything pending. ok turns false once the worker has been
// closed and drained.
func (w *sinkWorker) take() (batch []domain.AuditRecord, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch, w.pending = w.pending, nil
	return batch, len(batch) > 0 || !w.closed
}

func (w *sinkWorker) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.signal()
}

// NewAuditService creates the audit log. When repo is set the sequence
// resumes from its highest stored seq, History falls back to it for records
// that left the in-memory window, and lagging sinks backfill from it.
func NewAuditService(
	ctx context.Context,
	repo ports.AuditRepository,
	sinks []ports.AuditSink,
	opts AuditOptions,
	log zerolog.Logger,
) (*AuditService, error) {
	if opts.Retain <= 0 {
		opts.Retain = defaultAuditRetain
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultAuditBacklog
	}

	s := &AuditService{
		retain: opts.Retain,
		repo:   repo,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if repo != nil {
		last, err := repo.LastSeq(ctx)
		if err != nil {
			return nil, err
		}
		s.seq = last
		log.Info().Uint64("last_seq", last).Msg("audit log resumed")
	}

	for _, sink := range sinks {
		w := &sinkWorker{
			sink:      sink,
			limit:     opts.QueueSize,
			wake:      make(chan struct{}, 1),
			delivered: s.seq,
		}
		s.workers = append(s.workers, w)
		s.wg.Add(1)
		go s.run(w)
	}

	return s, nil
}

// Record stores evt under the next sequence number. Nothing is visible to
// History or the sinks until Publish; if the surrounding transaction rolls
// back, the next Record reuses the number.
func (s *AuditService) Record(ctx context.Context, evt domain.Event) (domain.AuditRecord, error) {
	s.mu.Lock()
	rec := domain.AuditRecord{
		Seq:        s.seq + 1,
		Kind:       evt.Kind(),
		OccurredAt: s.now(),
		Event:      evt,
	}
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Append(ctx, rec); err != nil {
			s.log.Error().Err(err).Uint64("seq", rec.Seq).Str("kind", string(rec.Kind)).Msg("audit append failed")
			return domain.AuditRecord{}, apperror.ErrDatabaseError(err)
		}
	}
	return rec, nil
}

// Publish exposes a recorded entry and dispatches it to every sink.
func (s *AuditService) Publish(rec domain.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Seq <= s.seq {
		s.log.Error().Uint64("seq", rec.Seq).Uint64("last_seq", s.seq).Msg("audit record published out of order, ignored")
		return
	}
	s.seq = rec.Seq

	s.records = append(s.records, rec)
	if len(s.records) > s.retain {
		s.records = append(s.records[:0:0], s.records[len(s.records)-s.retain:]...)
	}

	if s.closed {
		s.log.Error().Uint64("seq", rec.Seq).Str("kind", string(rec.Kind)).Msg("audit log closed, record not dispatched")
		return
	}
	for _, w := range s.workers {
		if w.push(rec) {
			s.log.Warn().Str("sink", w.sink.Name()).Uint64("seq", rec.Seq).Msg("audit sink lagging, oldest pending record dropped")
		}
	}
}

// After returns up to limit retained records with Seq > seq. limit <= 0 means all.
func (s *AuditService) After(seq uint64, limit int) []domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.afterLocked(seq, limit)
}

func (s *AuditService) afterLocked(seq uint64, limit int) []domain.AuditRecord {
	out := make([]domain.AuditRecord, 0)
	for _, rec := range s.records {
		if rec.Seq <= seq {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// History serves replay requests. Records still in memory are served from the
// window; older ones come from the repository.
func (s *AuditService) History(ctx context.Context, after uint64, limit int) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	covered := s.repo == nil || (len(s.records) > 0 && s.records[0].Seq <= after+1) || after >= s.seq
	if covered {
		out := s.afterLocked(after, limit)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	return s.repo.ListAfter(ctx, after, limit)
}

// LastSeq returns the sequence number of the most recent published record.
func (s *AuditService) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close stops dispatching and waits for the sinks to drain their backlogs.
func (s *AuditService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		for _, w := range s.workers {
			w.close()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AuditService) run(w *sinkWorker) {
	defer s.wg.Done()
	for {
		batch, ok := w.take()
		if !ok {
			return
		}
		if len(batch) == 0 {
			<-w.wake
			continue
		}
		for _, rec := range batch {
			if rec.Seq > w.delivered+1 {
				s.backfill(w, rec.Seq)
			}
			s.deliver(w, rec)
		}
	}
}

// backfill re-reads from the repository the records a sink lost to backlog
// overflow, up to but excluding upTo.
func (s *AuditService) backfill(w *sinkWorker, upTo uint64) {
	if s.repo == nil {
		s.log.Warn().Str("sink", w.sink.Name()).
			Uint64("from", w.delivered+1).Uint64("to", upTo-1).
			Msg("audit records skipped by lagging sink")
		return
	}
	for w.delivered+1 < upTo {
		ctx, cancel := context.WithTimeout(context.Background(), auditSinkTimeout)
		missed, err := s.repo.ListAfter(ctx, w.delivered, auditBackfillPage)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Str("sink", w.sink.Name()).Uint64("after", w.delivered).Msg("audit backfill failed")
			return
		}
		progressed := false
		for _, rec := range missed {
			if rec.Seq >= upTo {
				return
			}
			s.deliver(w, rec)
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

func (s *AuditService) deliver(w *sinkWorker, rec domain.AuditRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), auditSinkTimeout)
	err := w.sink.Append(ctx, rec)
	cancel()
	w.delivered = rec.Seq
	if err != nil {
		s.log.Warn().Err(err).
			Str("sink", w.sink.Name()).
			Uint64("seq", rec.Seq).
			Str("kind", string(rec.Kind)).
			Msg("audit sink append failed")
		return
	}
	s.log.Debug().Str("sink", w.sink.Name()).Uint64("seq", rec.Seq).Msg("audit record dispatched")
}
