package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PaymentRequest is one signed order presented for payment. It only lives for
// the duration of a single call.
type PaymentRequest struct {
	Buyer     common.Address
	Coin      common.Address
	Amount    *big.Int
	OrderID   string
	Signature []byte
}

// Authorization is derived from a PaymentRequest during verification.
type Authorization struct {
	Digest          common.Hash
	PrefixedDigest  common.Hash
	RecoveredSigner common.Address
}

// TransferOutcome is what the token collaborator reported for a transferFrom.
// Returned is false when the token produced no boolean at all.
type TransferOutcome struct {
	Returned  bool
	Success   bool
	Reference string // ledger transfer id or chain tx hash
}

// Succeeded reports whether the outcome is a well-formed true.
func (o TransferOutcome) Succeeded() bool {
	return o.Returned && o.Success
}

// Payment is the result of a completed pay or payFrom call.
type Payment struct {
	Payer       common.Address `json:"payer"`
	Buyer       common.Address `json:"buyer"`
	Recipient   common.Address `json:"recipient"`
	Coin        common.Address `json:"coin"`
	Amount      *big.Int       `json:"amount"`
	OrderID     string         `json:"order_id"`
	TransferRef string         `json:"transfer_ref"`
	Seq         uint64         `json:"seq"`
	PaidAt      time.Time      `json:"paid_at"`
}
