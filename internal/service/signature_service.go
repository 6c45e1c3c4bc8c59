package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"order-pay-gateway/pkg/ethsig"

	"github.com/ethereum/go-ethereum/common"
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
// The gateway uses it to sign audit deliveries to the indexer and to build the
// canonical request string that callers sign.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign computes HMAC-SHA256 of payload using secretKey.
// Returns lowercase hex-encoded signature.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// BuildCanonicalString constructs the canonical payload for signing.
// Format: METHOD|PATH|TIMESTAMP|NONCE|BODY
func (s *HMACSignatureService) BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", method, path, timestamp, nonce, body)
}

// EthCallerVerifier implements ports.CallerVerifier with EIP-191 personal
// signatures, the same envelope wallets produce for personal_sign.
type EthCallerVerifier struct{}

func NewEthCallerVerifier() *EthCallerVerifier {
	return &EthCallerVerifier{}
}

// RecoverCaller returns the address that signed canonical. signature is 0x-hex.
func (v *EthCallerVerifier) RecoverCaller(canonical string, signature string) (common.Address, error) {
	sig, err := ethsig.DecodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}
	return ethsig.RecoverPersonal([]byte(canonical), sig)
}
