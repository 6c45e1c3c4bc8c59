package service

import (
	"math/big"
	"testing"

	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/pkg/apperror"
	"order-pay-gateway/pkg/ethsig"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderSignatureVerifier_Valid(t *testing.T) {
	key, signer := newKey(t)
	_, buyer := newKey(t)
	req := domain.PaymentRequest{Buyer: buyer, Coin: tokenAddr, Amount: big.NewInt(100), OrderID: "ord-1"}
	req.Signature = signOrder(t, key, buyer, tokenAddr, 100, "ord-1")

	auth, err := NewOrderSignatureVerifier().Verify(req, signer)
	require.NoError(t, err)

	digest, err := ethsig.OrderDigest(buyer, tokenAddr, big.NewInt(100), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, digest, auth.Digest)
	assert.Equal(t, ethsig.PrefixedHash(digest.Bytes()), auth.PrefixedDigest)
	assert.Equal(t, signer, auth.RecoveredSigner)
}

func TestOrderSignatureVerifier_AcceptsZeroOneRecoveryID(t *testing.T) {
	key, signer := newKey(t)
	_, buyer := newKey(t)
	sig := signOrder(t, key, buyer, tokenAddr, 7, "o")
	sig[64] -= 27

	_, err := NewOrderSignatureVerifier().Verify(domain.PaymentRequest{
		Buyer: buyer, Coin: tokenAddr, Amount: big.NewInt(7), OrderID: "o", Signature: sig,
	}, signer)
	assert.NoError(t, err)
}

func TestOrderSignatureVerifier_RejectsUnprefixedDigestSignature(t *testing.T) {
	key, signer := newKey(t)
	_, buyer := newKey(t)
	digest, err := ethsig.OrderDigest(buyer, tokenAddr, big.NewInt(1), "o")
	require.NoError(t, err)

	// Signing the raw digest instead of the EIP-191 form must not verify.
	raw, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	raw[64] += 27

	_, err = NewOrderSignatureVerifier().Verify(domain.PaymentRequest{
		Buyer: buyer, Coin: tokenAddr, Amount: big.NewInt(1), OrderID: "o", Signature: raw,
	}, signer)
	assert.True(t, apperror.HasCode(err, apperror.CodeBadSignature))
}

func TestOrderSignatureVerifier_Malformed(t *testing.T) {
	_, signer := newKey(t)
	_, buyer := newKey(t)
	base := domain.PaymentRequest{Buyer: buyer, Coin: tokenAddr, Amount: big.NewInt(1), OrderID: "o"}

	bad := [][]byte{
		nil,
		make([]byte, 64),
		make([]byte, 66),
		append(make([]byte, 64), 29),
		append(make([]byte, 64), 27), // r = s = 0
	}
	for _, sig := range bad {
		req := base
		req.Signature = sig
		_, err := NewOrderSignatureVerifier().Verify(req, signer)
		assert.True(t, apperror.HasCode(err, apperror.CodeBadSignature), "sig len %d", len(sig))
	}
}
