package service

import (
	"context"

	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
)

// OwnerPolicy implements ports.AccessPolicy with a single fixed owner.
type OwnerPolicy struct {
	owner common.Address
}

// NewOwnerPolicy creates a policy that only admits owner.
func NewOwnerPolicy(owner common.Address) (*OwnerPolicy, error) {
	if domain.IsZeroAddress(owner) {
		return nil, apperror.ErrZeroAddress()
	}
	return &OwnerPolicy{owner: owner}, nil
}

// Authorize returns AUTH_002 unless caller is the owner.
func (p *OwnerPolicy) Authorize(_ context.Context, caller common.Address) error {
	if caller != p.owner {
		return apperror.ErrUnauthorized()
	}
	return nil
}

// Owner returns the administrative identity.
func (p *OwnerPolicy) Owner() common.Address {
	return p.owner
}
