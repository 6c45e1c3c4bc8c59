package service

import (
	"context"
	"errors"
	"math/big"

	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

var (
	errTransferNoReturn = errors.New("token returned no boolean")
	errTransferFalse    = errors.New("token returned false")
)

// TokenTransferExecutor implements ports.TransferExecutor on top of a token
// collaborator. Only an explicit true counts as success.
type TokenTransferExecutor struct {
	token ports.TokenTransferer
	log   zerolog.Logger
}

func NewTokenTransferExecutor(token ports.TokenTransferer, log zerolog.Logger) *TokenTransferExecutor {
	return &TokenTransferExecutor{token: token, log: log}
}

// Execute moves amount of coin from payer to recipient. A revert, a false
// return and a missing return all map to PAY_004. A transfer whose outcome is
// unknown maps to PAY_005.
func (e *TokenTransferExecutor) Execute(ctx context.Context, payer, recipient, coin common.Address, amount *big.Int) (domain.TransferOutcome, error) {
	out, err := e.token.TransferFrom(ctx, coin, payer, recipient, amount)
	var pending *domain.PendingTransferError
	if errors.As(err, &pending) {
		e.log.Error().Err(err).
			Str("coin", coin.Hex()).
			Str("payer", payer.Hex()).
			Str("transfer_ref", pending.Reference).
			Msg("transferFrom outcome unknown, needs reconciliation")
		return out, apperror.ErrTransferPending(pending.Reference, err)
	}
	if err != nil {
		e.log.Warn().Err(err).
			Str("coin", coin.Hex()).
			Str("payer", payer.Hex()).
			Msg("transferFrom reverted")
		return out, apperror.ErrTransferFailure(err)
	}

	switch {
	case !out.Returned:
		return out, apperror.ErrTransferFailure(errTransferNoReturn)
	case !out.Success:
		return out, apperror.ErrTransferFailure(errTransferFalse)
	}
	return out, nil
}
