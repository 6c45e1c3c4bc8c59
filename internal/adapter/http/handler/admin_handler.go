package handler

import (
	"context"
	"time"

	"order-pay-gateway/internal/adapter/http/dto"
	"order-pay-gateway/internal/adapter/http/middleware"
	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/pkg/apperror"
	"order-pay-gateway/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const defaultEventPage = 100

// AdminHandler serves the gateway configuration and the owner-only setters.
// Ownership is enforced by the service; the handler only passes the caller.
type AdminHandler struct {
	adminSvc ports.AdminService
	audit    ports.AuditLog
}

func NewAdminHandler(adminSvc ports.AdminService, audit ports.AuditLog) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc, audit: audit}
}

// Config handles GET /api/v1/gateway/config.
func (h *AdminHandler) Config(c *gin.Context) {
	cfg := h.adminSvc.Snapshot()
	response.OK(c, dto.GatewayConfigResponse{
		Owner:            h.adminSvc.Owner().Hex(),
		Recipient:        cfg.Recipient.Hex(),
		Signer:           cfg.Signer.Hex(),
		Enabled:          cfg.Enabled,
		DelegatedEnabled: cfg.DelegatedPayEnabled,
	})
}

// Events handles GET /api/v1/gateway/events.
func (h *AdminHandler) Events(c *gin.Context) {
	var q dto.EventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultEventPage
	}

	records, err := h.audit.History(c.Request.Context(), q.After, q.Limit)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	resp := dto.EventListResponse{Items: make([]dto.AuditRecordResponse, 0, len(records)), LastSeq: q.After}
	for _, rec := range records {
		payload, err := rec.Payload()
		if err != nil {
			response.Error(c, apperror.InternalError(err))
			return
		}
		resp.Items = append(resp.Items, dto.AuditRecordResponse{
			Seq:        rec.Seq,
			Kind:       string(rec.Kind),
			OccurredAt: rec.OccurredAt.UTC().Format(time.RFC3339Nano),
			Event:      payload,
		})
		resp.LastSeq = rec.Seq
	}
	response.OK(c, resp)
}

// ChangeRecipient handles PUT /api/v1/admin/recipient.
func (h *AdminHandler) ChangeRecipient(c *gin.Context) {
	h.setAddress(c, h.adminSvc.ChangeRecipient)
}

// ChangeSigner handles PUT /api/v1/admin/signer.
func (h *AdminHandler) ChangeSigner(c *gin.Context) {
	h.setAddress(c, h.adminSvc.ChangeSigner)
}

// ToggleEnabled handles POST /api/v1/admin/enabled/toggle.
func (h *AdminHandler) ToggleEnabled(c *gin.Context) {
	h.toggle(c, h.adminSvc.ToggleEnabled)
}

// ToggleDelegatedPay handles POST /api/v1/admin/delegated-pay/toggle.
func (h *AdminHandler) ToggleDelegatedPay(c *gin.Context) {
	h.toggle(c, h.adminSvc.ToggleDelegatedPay)
}

type addressSetter func(ctx context.Context, caller, addr common.Address) error

func (h *AdminHandler) setAddress(c *gin.Context, set addressSetter) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := set(c.Request.Context(), caller, common.HexToAddress(req.Address)); err != nil {
		response.Error(c, err)
		return
	}
	h.Config(c)
}

func (h *AdminHandler) toggle(c *gin.Context, flip func(ctx context.Context, caller common.Address) (bool, error)) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	enabled, err := flip(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToggleResponse{Enabled: enabled})
}
