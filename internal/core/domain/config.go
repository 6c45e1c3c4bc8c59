package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MerchantConfig is the gateway's mutable configuration.
// Recipient and Signer are never the zero address.
type MerchantConfig struct {
	Recipient           common.Address `json:"recipient"`
	Signer              common.Address `json:"signer"`
	Enabled             bool           `json:"enabled"`
	DelegatedPayEnabled bool           `json:"delegated_pay_enabled"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// NewMerchantConfig builds the initial configuration. Payments start enabled,
// delegated payments start disabled.
func NewMerchantConfig(recipient, signer common.Address) (MerchantConfig, error) {
	if IsZeroAddress(recipient) || IsZeroAddress(signer) {
		return MerchantConfig{}, ErrZeroAddress
	}
	return MerchantConfig{
		Recipient: recipient,
		Signer:    signer,
		Enabled:   true,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Validate checks the config invariants.
func (c MerchantConfig) Validate() error {
	if IsZeroAddress(c.Recipient) || IsZeroAddress(c.Signer) {
		return ErrZeroAddress
	}
	return nil
}

// IsZeroAddress reports whether addr is the null identity.
func IsZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}
