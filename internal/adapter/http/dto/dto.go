package dto

import "encoding/json"

// PayRequest is the body of POST /api/v1/payments. The caller is the buyer.
type PayRequest struct {
	Coin      string `json:"coin" binding:"required,eth_addr"`
	Amount    string `json:"amount" binding:"required,uint256"`
	OrderID   string `json:"order_id"`
	Signature string `json:"signature"`
}

// DelegatedPayRequest is the body of POST /api/v1/payments/delegated. The
// caller pays on behalf of Buyer.
type DelegatedPayRequest struct {
	Buyer     string `json:"buyer" binding:"required,eth_addr"`
	Coin      string `json:"coin" binding:"required,eth_addr"`
	Amount    string `json:"amount" binding:"required,uint256"`
	OrderID   string `json:"order_id"`
	Signature string `json:"signature"`
}

// PaymentResponse describes a settled payment.
type PaymentResponse struct {
	Payer       string `json:"payer"`
	Buyer       string `json:"buyer"`
	Recipient   string `json:"recipient"`
	Coin        string `json:"coin"`
	Amount      string `json:"amount"`
	OrderID     string `json:"order_id"`
	TransferRef string `json:"transfer_ref"`
	Seq         uint64 `json:"seq"`
	PaidAt      string `json:"paid_at"`
}

// SessionResponse is returned by POST /api/v1/auth/session.
type SessionResponse struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// AddressRequest carries a single address for the admin setters.
// The zero address passes binding and is rejected by the gateway.
type AddressRequest struct {
	Address string `json:"address" binding:"required,eth_addr"`
}

// ToggleResponse reports the flag value after a toggle.
type ToggleResponse struct {
	Enabled bool `json:"enabled"`
}

// GatewayConfigResponse is the current gateway configuration.
type GatewayConfigResponse struct {
	Owner            string `json:"owner"`
	Recipient        string `json:"recipient"`
	Signer           string `json:"signer"`
	Enabled          bool   `json:"enabled"`
	DelegatedEnabled bool   `json:"delegated_enabled"`
}

// EventsQuery selects audit records for replay.
type EventsQuery struct {
	After uint64 `form:"after"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// AuditRecordResponse is one audit record.
type AuditRecordResponse struct {
	Seq        uint64          `json:"seq"`
	Kind       string          `json:"kind"`
	OccurredAt string          `json:"occurred_at"`
	Event      json.RawMessage `json:"event"`
}

// EventListResponse wraps a page of audit records.
type EventListResponse struct {
	Items   []AuditRecordResponse `json:"items"`
	LastSeq uint64                `json:"last_seq"`
}

// ApproveRequest sets the gateway's allowance over the caller's ledger balance.
type ApproveRequest struct {
	Coin   string `json:"coin" binding:"required,eth_addr"`
	Amount string `json:"amount" binding:"required,uint256"`
}

// MintRequest credits ledger balance. Owner only.
type MintRequest struct {
	Coin   string `json:"coin" binding:"required,eth_addr"`
	To     string `json:"to" binding:"required,eth_addr"`
	Amount string `json:"amount" binding:"required,uint256"`
}

// HolderQuery selects the account for ledger reads.
type HolderQuery struct {
	Holder string `form:"holder" binding:"required,eth_addr"`
}

// LedgerAmountResponse is a ledger balance or allowance.
type LedgerAmountResponse struct {
	Coin    string `json:"coin"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}
