package handler_test

import (
	"context"
	"math/big"
	"sync"
	"time"

	"order-pay-gateway/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// inMemoryLedger is a LedgerRepository with the same non-reverting ERC-20
// semantics as the Postgres ledger.
type inMemoryLedger struct {
	mu         sync.Mutex
	balances   map[[2]common.Address]*big.Int
	allowances map[[3]common.Address]*big.Int
	transfers  []domain.LedgerTransfer
}

func newInMemoryLedger() *inMemoryLedger {
	return &inMemoryLedger{
		balances:   make(map[[2]common.Address]*big.Int),
		allowances: make(map[[3]common.Address]*big.Int),
	}
}

func (l *inMemoryLedger) get(m map[[2]common.Address]*big.Int, k [2]common.Address) *big.Int {
	if v, ok := m[k]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (l *inMemoryLedger) BalanceOf(_ context.Context, coin, holder common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(l.balances, [2]common.Address{coin, holder}), nil
}

func (l *inMemoryLedger) Allowance(_ context.Context, coin, owner, spender common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.allowances[[3]common.Address{coin, owner, spender}]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (l *inMemoryLedger) Approve(_ context.Context, coin, owner, spender common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[[3]common.Address{coin, owner, spender}] = new(big.Int).Set(amount)
	return nil
}

func (l *inMemoryLedger) Mint(_ context.Context, coin, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := [2]common.Address{coin, to}
	l.balances[k] = new(big.Int).Add(l.get(l.balances, k), amount)
	return nil
}

func (l *inMemoryLedger) TransferFrom(_ context.Context, coin, spender, from, to common.Address, amount *big.Int) (*domain.LedgerTransfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fromKey, toKey := [2]common.Address{coin, from}, [2]common.Address{coin, to}
	allowKey := [3]common.Address{coin, from, spender}

	bal := l.get(l.balances, fromKey)
	allowance := new(big.Int)
	if v, ok := l.allowances[allowKey]; ok {
		allowance.Set(v)
	}
	if bal.Cmp(amount) < 0 || allowance.Cmp(amount) < 0 {
		return nil, nil
	}

	l.balances[fromKey] = bal.Sub(bal, amount)
	l.balances[toKey] = new(big.Int).Add(l.get(l.balances, toKey), amount)
	l.allowances[allowKey] = allowance.Sub(allowance, amount)

	entry := domain.LedgerTransfer{
		ID:        uuid.New(),
		Coin:      coin,
		From:      from,
		To:        to,
		Spender:   spender,
		Amount:    new(big.Int).Set(amount),
		CreatedAt: time.Now().UTC(),
	}
	l.transfers = append(l.transfers, entry)
	return &entry, nil
}
