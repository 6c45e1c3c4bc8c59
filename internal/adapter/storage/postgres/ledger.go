package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"order-pay-gateway/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// errInsufficient aborts a transferFrom transaction without surfacing an error.
var errInsufficient = errors.New("insufficient balance or allowance")

// LedgerRepo implements ports.LedgerRepository. Amounts are NUMERIC(78,0) and
// cross the driver as decimal text so the full uint256 range survives.
type LedgerRepo struct {
	pool Pool
	tx   *Transactor
	now  func() time.Time
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{
		pool: pool,
		tx:   NewTransactor(pool),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// BalanceOf returns holder's balance of coin; unknown holders have 0.
func (r *LedgerRepo) BalanceOf(ctx context.Context, coin, holder common.Address) (*big.Int, error) {
	return r.amount(ctx, r.pool,
		`SELECT balance::text FROM ledger_balances WHERE coin = $1 AND holder = $2`,
		coin.Hex(), holder.Hex())
}

// Allowance returns what owner allows spender to move.
func (r *LedgerRepo) Allowance(ctx context.Context, coin, owner, spender common.Address) (*big.Int, error) {
	return r.amount(ctx, r.pool,
		`SELECT amount::text FROM ledger_allowances WHERE coin = $1 AND owner = $2 AND spender = $3`,
		coin.Hex(), owner.Hex(), spender.Hex())
}

// Approve sets (not adds to) the allowance.
func (r *LedgerRepo) Approve(ctx context.Context, coin, owner, spender common.Address, amount *big.Int) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO ledger_allowances (coin, owner, spender, amount, updated_at)
		 VALUES ($1, $2, $3, $4::numeric, $5)
		 ON CONFLICT (coin, owner, spender) DO UPDATE SET amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at`,
		coin.Hex(), owner.Hex(), spender.Hex(), amount.String(), r.now(),
	)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

// Mint credits amount to holder.
func (r *LedgerRepo) Mint(ctx context.Context, coin, to common.Address, amount *big.Int) error {
	if err := credit(ctx, conn(ctx, r.pool), coin, to, amount, r.now()); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	return nil
}

// TransferFrom moves amount from from to to on behalf of spender. Allowance and
// balance rows are locked FOR UPDATE for the duration of the transaction. When
// ctx carries a unit of work the transfer commits or rolls back with it.
func (r *LedgerRepo) TransferFrom(ctx context.Context, coin, spender, from, to common.Address, amount *big.Int) (*domain.LedgerTransfer, error) {
	now := r.now()
	entry := &domain.LedgerTransfer{
		ID:        uuid.New(),
		Coin:      coin,
		From:      from,
		To:        to,
		Spender:   spender,
		Amount:    new(big.Int).Set(amount),
		CreatedAt: now,
	}
	value := amount.String()

	err := r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		allowance, err := r.amount(ctx, tx,
			`SELECT amount::text FROM ledger_allowances
			 WHERE coin = $1 AND owner = $2 AND spender = $3 FOR UPDATE`,
			coin.Hex(), from.Hex(), spender.Hex())
		if err != nil {
			return err
		}
		balance, err := r.amount(ctx, tx,
			`SELECT balance::text FROM ledger_balances WHERE coin = $1 AND holder = $2 FOR UPDATE`,
			coin.Hex(), from.Hex())
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 || balance.Cmp(amount) < 0 {
			return errInsufficient
		}

		if _, err := tx.Exec(ctx,
			`UPDATE ledger_allowances SET amount = amount - $4::numeric, updated_at = $5
			 WHERE coin = $1 AND owner = $2 AND spender = $3`,
			coin.Hex(), from.Hex(), spender.Hex(), value, now); err != nil {
			return fmt.Errorf("debit allowance: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE ledger_balances SET balance = balance - $3::numeric, updated_at = $4
			 WHERE coin = $1 AND holder = $2`,
			coin.Hex(), from.Hex(), value, now); err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
		if err := credit(ctx, tx, coin, to, amount, now); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO ledger_transfers (id, coin, from_addr, to_addr, spender, amount, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)`,
			entry.ID, coin.Hex(), from.Hex(), to.Hex(), spender.Hex(), value, now); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		return nil
	})
	if errors.Is(err, errInsufficient) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transferFrom: %w", err)
	}
	return entry, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// amount scans a single NUMERIC text column; a missing row reads as zero.
func (r *LedgerRepo) amount(ctx context.Context, q querier, query string, args ...any) (*big.Int, error) {
	var text string
	if err := q.QueryRow(ctx, query, args...).Scan(&text); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("read amount: %w", err)
	}
	v, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("read amount: invalid numeric %q", text)
	}
	return v, nil
}

func credit(ctx context.Context, q querier, coin, to common.Address, amount *big.Int, now time.Time) error {
	_, err := q.Exec(ctx,
		`INSERT INTO ledger_balances (coin, holder, balance, updated_at)
		 VALUES ($1, $2, $3::numeric, $4)
		 ON CONFLICT (coin, holder) DO UPDATE SET balance = ledger_balances.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at`,
		coin.Hex(), to.Hex(), amount.String(), now,
	)
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	return nil
}
