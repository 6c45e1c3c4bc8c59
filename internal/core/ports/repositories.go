package ports

import (
	"context"
	"math/big"

	"order-pay-gateway/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

// Transactor runs fn as one unit of work. Repository calls made with the ctx
// handed to fn join it; a nested unit of work becomes a savepoint.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ConfigRepository persists the gateway configuration (a single row).
type ConfigRepository interface {
	// Load returns nil, nil when no configuration has been stored yet.
	Load(ctx context.Context) (*domain.MerchantConfig, error)
	Save(ctx context.Context, cfg domain.MerchantConfig) error
}

// AuditRepository is the durable, ordered store of audit records.
type AuditRepository interface {
	Append(ctx context.Context, rec domain.AuditRecord) error
	LastSeq(ctx context.Context) (uint64, error)
	ListAfter(ctx context.Context, afterSeq uint64, limit int) ([]domain.AuditRecord, error)
}

// LedgerRepository is the built-in token ledger used when no chain is configured.
// TransferFrom follows ERC-20 semantics: the spender moves tokens out of from's
// balance within the allowance from granted it.
type LedgerRepository interface {
	BalanceOf(ctx context.Context, coin, holder common.Address) (*big.Int, error)
	Allowance(ctx context.Context, coin, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, coin, owner, spender common.Address, amount *big.Int) error
	Mint(ctx context.Context, coin, to common.Address, amount *big.Int) error
	// TransferFrom returns nil, nil when balance or allowance is insufficient.
	TransferFrom(ctx context.Context, coin, spender, from, to common.Address, amount *big.Int) (*domain.LedgerTransfer, error)
}
