package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// ConfigStore owns the merchant configuration and the gateway's critical
// section. Payments run inside Serialize and every mutator takes the same lock,
// so a payment observes exactly one configuration and audit records are
// sequenced in the order the state changes happened.
type ConfigStore struct {
	mu     sync.Mutex
	cfg    domain.MerchantConfig
	policy ports.AccessPolicy
	repo   ports.ConfigRepository // nil keeps the config in memory only
	audit  ports.AuditLog
	tx     ports.Transactor
	log    zerolog.Logger
	now    func() time.Time
}

// NewConfigStore validates the initial parameters and, when repo is set,
// resumes from the stored configuration if one exists.
func NewConfigStore(
	ctx context.Context,
	recipient, signer common.Address,
	policy ports.AccessPolicy,
	repo ports.ConfigRepository,
	audit ports.AuditLog,
	log zerolog.Logger,
) (*ConfigStore, error) {
	initial, err := domain.NewMerchantConfig(recipient, signer)
	if err != nil {
		return nil, apperror.ErrZeroAddress()
	}

	s := &ConfigStore{
		cfg:    initial,
		policy: policy,
		repo:   repo,
		audit:  audit,
		tx:     inlineTx{},
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if repo == nil {
		return s, nil
	}

	stored, err := repo.Load(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if stored != nil {
		if err := stored.Validate(); err != nil {
			return nil, apperror.ErrDatabaseError(errors.New("stored config has a zero address"))
		}
		s.cfg = *stored
		log.Info().
			Str("recipient", stored.Recipient.Hex()).
			Str("signer", stored.Signer.Hex()).
			Bool("enabled", stored.Enabled).
			Bool("delegated_pay_enabled", stored.DelegatedPayEnabled).
			Msg("resumed gateway config")
		return s, nil
	}

	if err := repo.Save(ctx, initial); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return s, nil
}

// WithTransactor makes each change and its audit record commit together.
func (s *ConfigStore) WithTransactor(tx ports.Transactor) *ConfigStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx != nil {
		s.tx = tx
	}
	return s
}

// Owner returns the account allowed to change the configuration.
func (s *ConfigStore) Owner() common.Address {
	return s.policy.Owner()
}

// Snapshot returns a copy of the current configuration.
func (s *ConfigStore) Snapshot() domain.MerchantConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Serialize runs fn with the store locked. No mutation can land while fn runs.
func (s *ConfigStore) Serialize(ctx context.Context, fn func(cfg domain.MerchantConfig) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s.cfg)
}

// ChangeRecipient replaces the payment destination.
func (s *ConfigStore) ChangeRecipient(ctx context.Context, caller, newRecipient common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.policy.Authorize(ctx, caller); err != nil {
		return err
	}
	if domain.IsZeroAddress(newRecipient) {
		return apperror.ErrZeroAddress()
	}

	old := s.cfg.Recipient
	next := s.cfg
	next.Recipient = newRecipient
	if err := s.commit(ctx, next, domain.RecipientChanged{Old: old, New: newRecipient}); err != nil {
		return err
	}

	s.log.Info().Str("old", old.Hex()).Str("new", newRecipient.Hex()).Msg("recipient changed")
	return nil
}

// ChangeSigner replaces the authority whose signatures authorize orders.
// Signatures made by the previous signer stop verifying immediately.
func (s *ConfigStore) ChangeSigner(ctx context.Context, caller, newSigner common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.policy.Authorize(ctx, caller); err != nil {
		return err
	}
	if domain.IsZeroAddress(newSigner) {
		return apperror.ErrZeroAddress()
	}

	old := s.cfg.Signer
	next := s.cfg
	next.Signer = newSigner
	if err := s.commit(ctx, next, domain.SignerChanged{Old: old, New: newSigner}); err != nil {
		return err
	}

	s.log.Info().Str("old", old.Hex()).Str("new", newSigner.Hex()).Msg("signer changed")
	return nil
}

// ToggleEnabled flips the master switch and returns the new value.
func (s *ConfigStore) ToggleEnabled(ctx context.Context, caller common.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.policy.Authorize(ctx, caller); err != nil {
		return false, err
	}

	next := s.cfg
	next.Enabled = !next.Enabled
	if err := s.commit(ctx, next, domain.StatusChanged{Enabled: next.Enabled}); err != nil {
		return false, err
	}

	s.log.Info().Bool("enabled", next.Enabled).Msg("gateway status changed")
	return next.Enabled, nil
}

// ToggleDelegatedPay flips the delegated-payment switch and returns the new value.
func (s *ConfigStore) ToggleDelegatedPay(ctx context.Context, caller common.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.policy.Authorize(ctx, caller); err != nil {
		return false, err
	}

	next := s.cfg
	next.DelegatedPayEnabled = !next.DelegatedPayEnabled
	if err := s.commit(ctx, next, domain.StatusForDelegatedPayChanged{DelegatedEnabled: next.DelegatedPayEnabled}); err != nil {
		return false, err
	}

	s.log.Info().Bool("delegated_pay_enabled", next.DelegatedPayEnabled).Msg("delegated pay status changed")
	return next.DelegatedPayEnabled, nil
}

// commit persists next together with the audit record for evt, then installs
// it and publishes the record. Caller holds s.mu. If either write fails the
// in-memory config is left untouched and nothing is published.
func (s *ConfigStore) commit(ctx context.Context, next domain.MerchantConfig, evt domain.Event) error {
	next.UpdatedAt = s.now()

	var rec domain.AuditRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if s.repo != nil {
			if err := s.repo.Save(ctx, next); err != nil {
				return apperror.ErrDatabaseError(err)
			}
		}
		var err error
		rec, err = s.audit.Record(ctx, evt)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Str("event", string(evt.Kind())).Msg("failed to persist gateway config change")
		return asAppError(err)
	}

	s.cfg = next
	s.audit.Publish(rec)
	return nil
}

// inlineTx runs the unit of work without a transaction, for stores that keep
// everything in memory.
type inlineTx struct{}

func (inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// asAppError passes AppErrors through and reports anything else as a
// storage failure.
func asAppError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.ErrDatabaseError(err)
}
