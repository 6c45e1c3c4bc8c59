package service

import (
	"context"
	"math/big"

	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/pkg/apperror"
	"order-pay-gateway/pkg/ethsig"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService over the built-in ledger.
// Allowances are always granted to the gateway's own ledger identity.
type LedgerServiceImpl struct {
	repo    ports.LedgerRepository
	gateway common.Address
	policy  ports.AccessPolicy
	log     zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(repo ports.LedgerRepository, gateway common.Address, policy ports.AccessPolicy, log zerolog.Logger) *LedgerServiceImpl {
	return &LedgerServiceImpl{repo: repo, gateway: gateway, policy: policy, log: log}
}

func (s *LedgerServiceImpl) Balance(ctx context.Context, coin, holder common.Address) (*big.Int, error) {
	bal, err := s.repo.BalanceOf(ctx, coin, holder)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return bal, nil
}

// Allowance returns what owner has approved the gateway to pull.
func (s *LedgerServiceImpl) Allowance(ctx context.Context, coin, owner common.Address) (*big.Int, error) {
	allowance, err := s.repo.Allowance(ctx, coin, owner, s.gateway)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return allowance, nil
}

// Approve sets caller's allowance toward the gateway, replacing any previous value.
func (s *LedgerServiceImpl) Approve(ctx context.Context, caller, coin common.Address, amount *big.Int) error {
	if amount == nil || !ethsig.ValidAmount(amount) {
		return apperror.Validation("amount must be an unsigned 256-bit integer")
	}
	if err := s.repo.Approve(ctx, coin, caller, s.gateway, amount); err != nil {
		return apperror.ErrDatabaseError(err)
	}
	s.log.Info().Str("coin", coin.Hex()).Str("owner", caller.Hex()).Str("amount", amount.String()).Msg("ledger approval set")
	return nil
}

// Mint credits to with amount of coin. Owner only.
func (s *LedgerServiceImpl) Mint(ctx context.Context, caller, coin, to common.Address, amount *big.Int) error {
	if err := s.policy.Authorize(ctx, caller); err != nil {
		return err
	}
	if domain.IsZeroAddress(to) {
		return apperror.ErrZeroAddress()
	}
	if amount == nil || !ethsig.ValidAmount(amount) {
		return apperror.Validation("amount must be an unsigned 256-bit integer")
	}
	if err := s.repo.Mint(ctx, coin, to, amount); err != nil {
		return apperror.ErrDatabaseError(err)
	}
	s.log.Info().Str("coin", coin.Hex()).Str("to", to.Hex()).Str("amount", amount.String()).Msg("ledger mint")
	return nil
}

// LedgerTransferer implements ports.TokenTransferer on the built-in ledger,
// acting as the gateway spender. Insufficient balance or allowance is reported
// as a false return, the way a non-reverting ERC-20 would.
type LedgerTransferer struct {
	repo    ports.LedgerRepository
	gateway common.Address
}

func NewLedgerTransferer(repo ports.LedgerRepository, gateway common.Address) *LedgerTransferer {
	return &LedgerTransferer{repo: repo, gateway: gateway}
}

func (t *LedgerTransferer) TransferFrom(ctx context.Context, coin, from, to common.Address, amount *big.Int) (domain.TransferOutcome, error) {
	entry, err := t.repo.TransferFrom(ctx, coin, t.gateway, from, to, amount)
	if err != nil {
		return domain.TransferOutcome{}, err
	}
	if entry == nil {
		return domain.TransferOutcome{Returned: true, Success: false}, nil
	}
	return domain.TransferOutcome{Returned: true, Success: true, Reference: entry.ID.String()}, nil
}
