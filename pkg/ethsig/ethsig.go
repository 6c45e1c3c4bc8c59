// Package ethsig implements the order authorization scheme shared with the
// off-chain signing backend.
//
// A signer authorizes an order by signing
//
//	keccak256("\x19Ethereum Signed Message:\n32" ++ keccak256(abi.encode(buyer, coin, amount, orderId)))
//
// with a secp256k1 key. Every byte of this construction is part of the wire
// contract with the backend, so nothing here may change without a matching
// change on the signing side.
package ethsig

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// SignatureLength is the size of an r || s || v signature.
const SignatureLength = crypto.SignatureLength

// PersonalMessagePrefix is the legacy personal_sign envelope prefix.
const PersonalMessagePrefix = "\x19Ethereum Signed Message:\n"

var (
	ErrSignatureLength  = errors.New("ethsig: signature must be 65 bytes")
	ErrRecoveryID       = errors.New("ethsig: invalid recovery id")
	ErrSignatureValues  = errors.New("ethsig: signature r/s out of range")
	ErrAmountOutOfRange = errors.New("ethsig: amount must fit in uint256")
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var orderArguments = mustArguments("address", "address", "uint256", "string")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("ethsig: abi type %q: %v", t, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// Keccak256 hashes the concatenation of data with legacy Keccak-256.
func Keccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// ValidAmount reports whether amount is a uint256.
func ValidAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0 && amount.Cmp(maxUint256) <= 0
}

// EncodeOrder returns abi.encode(buyer, coin, amount, orderID).
func EncodeOrder(buyer, coin common.Address, amount *big.Int, orderID string) ([]byte, error) {
	if !ValidAmount(amount) {
		return nil, ErrAmountOutOfRange
	}
	return orderArguments.Pack(buyer, coin, amount, orderID)
}

// OrderDigest is the canonical hash of an order, before prefixing.
func OrderDigest(buyer, coin common.Address, amount *big.Int, orderID string) (common.Hash, error) {
	encoded, err := EncodeOrder(buyer, coin, amount, orderID)
	if err != nil {
		return common.Hash{}, err
	}
	return Keccak256(encoded), nil
}

// PrefixedHash wraps data in the personal message envelope and hashes it.
// For a 32 byte digest the length suffix is the literal "32".
func PrefixedHash(data []byte) common.Hash {
	return Keccak256([]byte(PersonalMessagePrefix+strconv.Itoa(len(data))), data)
}

// Recover returns the address that produced sig over hash. It accepts
// recovery ids 27/28 as well as 0/1 and rejects high-s signatures.
func Recover(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrSignatureLength
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)

	v := normalized[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, ErrRecoveryID
	}
	normalized[64] = v

	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, ErrSignatureValues
	}

	pub, err := crypto.SigToPub(hash[:], normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("ethsig: recover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign signs hash and returns r || s || v with v in {27, 28}.
func Sign(hash common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		return nil, fmt.Errorf("ethsig: sign: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// SignOrder produces the signature the gateway expects for an order.
func SignOrder(key *ecdsa.PrivateKey, buyer, coin common.Address, amount *big.Int, orderID string) ([]byte, error) {
	digest, err := OrderDigest(buyer, coin, amount, orderID)
	if err != nil {
		return nil, err
	}
	return Sign(PrefixedHash(digest[:]), key)
}

// SignPersonal signs an arbitrary message with the personal message envelope.
func SignPersonal(key *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	return Sign(PrefixedHash(msg), key)
}

// RecoverPersonal is the inverse of SignPersonal.
func RecoverPersonal(msg, sig []byte) (common.Address, error) {
	return Recover(PrefixedHash(msg), sig)
}

// DecodeSignature parses a hex signature with or without the 0x prefix.
func DecodeSignature(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	sig, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("ethsig: decode signature: %w", err)
	}
	if len(sig) != SignatureLength {
		return nil, ErrSignatureLength
	}
	return sig, nil
}
