package handler

import (
	"net/http"
	"sync"

	"order-pay-gateway/internal/adapter/http/dto"
	"order-pay-gateway/internal/adapter/http/middleware"
	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/pkg/apperror"
	"order-pay-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// SessionHandler exchanges a signed request for a JWT session.
type SessionHandler struct {
	tokenSvc ports.TokenService
}

func NewSessionHandler(tokenSvc ports.TokenService) *SessionHandler {
	return &SessionHandler{tokenSvc: tokenSvc}
}

// Issue handles POST /api/v1/auth/session.
func (h *SessionHandler) Issue(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrMissingCredentials())
		return
	}

	token, expiry, err := h.tokenSvc.Generate(caller)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	response.Created(c, dto.SessionResponse{
		Caller: caller.Hex(),
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are pinged concurrently so
// one slow RPC endpoint does not add to the others' latency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make([]dependencyStatus, len(checkers))
		var wg sync.WaitGroup
		for i, checker := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := checker.Ping(c.Request.Context()); err != nil {
					results[i] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
					return
				}
				results[i] = dependencyStatus{Status: "healthy"}
			}()
		}
		wg.Wait()

		status, code := "healthy", http.StatusOK
		deps := make(map[string]dependencyStatus, len(checkers))
		for i, checker := range checkers {
			deps[checker.Name()] = results[i]
			if results[i].Status != "healthy" {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}

		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
