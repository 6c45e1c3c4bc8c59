package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// LedgerBalance is a holder's balance of one coin in the built-in token ledger.
type LedgerBalance struct {
	Coin      common.Address `json:"coin"`
	Holder    common.Address `json:"holder"`
	Balance   *big.Int       `json:"balance"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LedgerTransfer is an immutable ledger entry for a movement made on behalf of
// a spender (the gateway) out of an owner's balance.
type LedgerTransfer struct {
	ID        uuid.UUID      `json:"id"`
	Coin      common.Address `json:"coin"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Spender   common.Address `json:"spender"`
	Amount    *big.Int       `json:"amount"`
	CreatedAt time.Time      `json:"created_at"`
}
