package dto

import (
	"math/big"
	"strings"

	"order-pay-gateway/pkg/ethsig"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("uint256", validateUint256)
	}
}

// validateUint256 accepts a base-10 integer in [0, 2^256).
func validateUint256(fl validator.FieldLevel) bool {
	_, ok := ParseAmount(fl.Field().String())
	return ok
}

// SignatureBytes decodes a 0x-hex order signature. Anything undecodable
// yields nil so the verifier reports it as a bad signature, after the
// enabled and delegation checks have had their say.
func SignatureBytes(s string) []byte {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil
	}
	return raw
}

// ParseAmount parses a base-10 uint256. Signs, spaces and leading "+" are rejected.
func ParseAmount(s string) (*big.Int, bool) {
	if s == "" || strings.ContainsAny(s, "+- \t") {
		return nil, false
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || !ethsig.ValidAmount(n) {
		return nil, false
	}
	return n, true
}
