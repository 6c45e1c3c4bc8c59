package service

import (
	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/pkg/apperror"
	"order-pay-gateway/pkg/ethsig"

	"github.com/ethereum/go-ethereum/common"
)

// OrderSignatureVerifier implements ports.AuthorizationVerifier.
// It is pure: no state, no side effects.
type OrderSignatureVerifier struct{}

func NewOrderSignatureVerifier() *OrderSignatureVerifier {
	return &OrderSignatureVerifier{}
}

// Verify recomputes the order digest, recovers the signer of its EIP-191
// prefixed form and compares it with the configured signer. Malformed
// signatures are reported as PAY_002, never as a panic or a system error.
func (v *OrderSignatureVerifier) Verify(req domain.PaymentRequest, signer common.Address) (*domain.Authorization, error) {
	digest, err := ethsig.OrderDigest(req.Buyer, req.Coin, req.Amount, req.OrderID)
	if err != nil {
		return nil, apperror.Validation("amount must be an unsigned 256-bit integer")
	}
	prefixed := ethsig.PrefixedHash(digest.Bytes())

	recovered, err := ethsig.Recover(prefixed, req.Signature)
	if err != nil {
		return nil, apperror.ErrBadSignatureCause(err)
	}
	if recovered != signer {
		return nil, apperror.ErrBadSignature()
	}

	return &domain.Authorization{
		Digest:          digest,
		PrefixedDigest:  prefixed,
		RecoveredSigner: recovered,
	}, nil
}
