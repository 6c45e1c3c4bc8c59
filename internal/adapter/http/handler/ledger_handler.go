package handler

import (
	"context"
	"math/big"

	"order-pay-gateway/internal/adapter/http/dto"
	"order-pay-gateway/internal/adapter/http/middleware"
	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/pkg/apperror"
	"order-pay-gateway/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// LedgerHandler exposes the built-in token ledger.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// Balance handles GET /api/v1/ledger/:coin/balance?holder=.
func (h *LedgerHandler) Balance(c *gin.Context) {
	h.read(c, h.ledgerSvc.Balance)
}

// Allowance handles GET /api/v1/ledger/:coin/allowance?holder=. It reports
// what the gateway may still pull from holder.
func (h *LedgerHandler) Allowance(c *gin.Context) {
	h.read(c, h.ledgerSvc.Allowance)
}

func (h *LedgerHandler) read(c *gin.Context, get func(ctx context.Context, coin, account common.Address) (*big.Int, error)) {
	coinHex := c.Param("coin")
	if !common.IsHexAddress(coinHex) {
		response.Error(c, apperror.Validation("coin must be a hex address"))
		return
	}
	var q dto.HolderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	coin, holder := common.HexToAddress(coinHex), common.HexToAddress(q.Holder)
	amount, err := get(c.Request.Context(), coin, holder)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.LedgerAmountResponse{
		Coin:    coin.Hex(),
		Account: holder.Hex(),
		Amount:  amount.String(),
	})
}

// Approve handles POST /api/v1/ledger/approve.
func (h *LedgerHandler) Approve(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, _ := dto.ParseAmount(req.Amount)
	coin := common.HexToAddress(req.Coin)

	if err := h.ledgerSvc.Approve(c.Request.Context(), caller, coin, amount); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.LedgerAmountResponse{Coin: coin.Hex(), Account: caller.Hex(), Amount: amount.String()})
}

// Mint handles POST /api/v1/admin/ledger/mint.
func (h *LedgerHandler) Mint(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, _ := dto.ParseAmount(req.Amount)
	coin, to := common.HexToAddress(req.Coin), common.HexToAddress(req.To)

	if err := h.ledgerSvc.Mint(c.Request.Context(), caller, coin, to, amount); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.LedgerAmountResponse{Coin: coin.Hex(), Account: to.Hex(), Amount: amount.String()})
}

// LedgerDisabled answers ledger routes when the EVM backend is active.
func LedgerDisabled(c *gin.Context) {
	response.Error(c, apperror.ErrLedgerUnavailable())
}
