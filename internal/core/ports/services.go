package ports

import (
	"context"
	"math/big"
	"time"

	"order-pay-gateway/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
)

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

// --- Collaborator Ports ---

// TokenTransferer is the fungible-token transfer primitive.
type TokenTransferer interface {
	TransferFrom(ctx context.Context, coin, from, to common.Address, amount *big.Int) (domain.TransferOutcome, error)
}

// AccessPolicy decides whether caller may mutate the gateway configuration.
type AccessPolicy interface {
	Authorize(ctx context.Context, caller common.Address) error
	Owner() common.Address
}

// AuditSink receives audit records in sequence order.
type AuditSink interface {
	Name() string
	Append(ctx context.Context, rec domain.AuditRecord) error
}

// AuditLog is the gateway's append-only, ordered event stream. Record and
// Publish are called in pairs by one writer at a time.
type AuditLog interface {
	// Record durably stores evt under the next sequence number. ctx may carry
	// a Transactor unit of work; the record stays invisible until Publish.
	Record(ctx context.Context, evt domain.Event) (domain.AuditRecord, error)
	// Publish exposes a recorded entry to History and the sinks. It never
	// waits on a sink.
	Publish(rec domain.AuditRecord)
	// History returns up to limit records with Seq > after, oldest first.
	History(ctx context.Context, after uint64, limit int) ([]domain.AuditRecord, error)
}

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and the canonical request string.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// CallerVerifier recovers the address that personally signed a request.
type CallerVerifier interface {
	RecoverCaller(canonical string, signature string) (common.Address, error)
}

// TokenService handles JWT session tokens.
type TokenService interface {
	Generate(caller common.Address) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Caller    common.Address
	SessionID string
}

// NonceStore manages request nonce uniqueness.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, caller string, nonce string, ttl time.Duration) (bool, error)
}

// --- Service Ports (Business Logic) ---

// AuthorizationVerifier checks that a payment request was signed by signer.
type AuthorizationVerifier interface {
	Verify(req domain.PaymentRequest, signer common.Address) (*domain.Authorization, error)
}

// TransferExecutor moves funds from payer to recipient.
type TransferExecutor interface {
	Execute(ctx context.Context, payer, recipient, coin common.Address, amount *big.Int) (domain.TransferOutcome, error)
}

// PaymentService is the payment orchestrator.
type PaymentService interface {
	Pay(ctx context.Context, caller common.Address, params PayParams) (*domain.Payment, error)
	PayFrom(ctx context.Context, caller common.Address, req domain.PaymentRequest) (*domain.Payment, error)
}

// PayParams is a direct payment where the caller is also the buyer.
type PayParams struct {
	Coin      common.Address
	Amount    *big.Int
	OrderID   string
	Signature []byte
}

// AdminService holds the owner-gated configuration operations.
type AdminService interface {
	ChangeRecipient(ctx context.Context, caller, newRecipient common.Address) error
	ChangeSigner(ctx context.Context, caller, newSigner common.Address) error
	ToggleEnabled(ctx context.Context, caller common.Address) (bool, error)
	ToggleDelegatedPay(ctx context.Context, caller common.Address) (bool, error)
	Snapshot() domain.MerchantConfig
	Owner() common.Address
}

// LedgerService exposes the built-in token ledger.
type LedgerService interface {
	Balance(ctx context.Context, coin, holder common.Address) (*big.Int, error)
	Allowance(ctx context.Context, coin, owner common.Address) (*big.Int, error)
	Approve(ctx context.Context, caller, coin common.Address, amount *big.Int) error
	Mint(ctx context.Context, caller, coin, to common.Address, amount *big.Int) error
}
