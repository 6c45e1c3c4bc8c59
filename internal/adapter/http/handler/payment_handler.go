package handler

import (
	"time"

	"order-pay-gateway/internal/adapter/http/dto"
	"order-pay-gateway/internal/adapter/http/middleware"
	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/pkg/apperror"
	"order-pay-gateway/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// PaymentHandler handles the pay and payFrom endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Pay handles POST /api/v1/payments. The signed caller is the buyer.
func (h *PaymentHandler) Pay(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrMissingCredentials())
		return
	}

	var req dto.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, _ := dto.ParseAmount(req.Amount)

	payment, err := h.paymentSvc.Pay(c.Request.Context(), caller, ports.PayParams{
		Coin:      common.HexToAddress(req.Coin),
		Amount:    amount,
		OrderID:   req.OrderID,
		Signature: dto.SignatureBytes(req.Signature),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toPaymentResponse(payment))
}

// PayFrom handles POST /api/v1/payments/delegated. The signed caller pays
// for the buyer named in the body.
func (h *PaymentHandler) PayFrom(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrMissingCredentials())
		return
	}

	var req dto.DelegatedPayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, _ := dto.ParseAmount(req.Amount)

	payment, err := h.paymentSvc.PayFrom(c.Request.Context(), caller, domain.PaymentRequest{
		Buyer:     common.HexToAddress(req.Buyer),
		Coin:      common.HexToAddress(req.Coin),
		Amount:    amount,
		OrderID:   req.OrderID,
		Signature: dto.SignatureBytes(req.Signature),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toPaymentResponse(payment))
}

func toPaymentResponse(p *domain.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		Payer:       p.Payer.Hex(),
		Buyer:       p.Buyer.Hex(),
		Recipient:   p.Recipient.Hex(),
		Coin:        p.Coin.Hex(),
		Amount:      p.Amount.String(),
		OrderID:     p.OrderID,
		TransferRef: p.TransferRef,
		Seq:         p.Seq,
		PaidAt:      p.PaidAt.UTC().Format(time.RFC3339),
	}
}
