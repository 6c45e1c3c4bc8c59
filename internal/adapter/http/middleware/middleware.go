package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/pkg/apperror"
	"order-pay-gateway/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Header names for signed-request authentication
	HeaderCaller    = "X-Caller-Address"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxCaller    = "caller"
	CtxSession   = "session_id"
	CtxRequestID = "request_id"
)

// AuthOptions bounds signed requests.
type AuthOptions struct {
	MaxSkew  time.Duration
	NonceTTL time.Duration
	Now      func() time.Time
}

// SignedRequestAuth verifies that the request was personally signed by the
// address in X-Caller-Address.
// Pipeline: Check timestamp -> Verify signature -> Consume nonce.
func SignedRequestAuth(
	verifier ports.CallerVerifier,
	sigSvc ports.SignatureService,
	nonceStore ports.NonceStore,
	opts AuthOptions,
	log zerolog.Logger,
) gin.HandlerFunc {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return func(c *gin.Context) {
		callerHex := c.GetHeader(HeaderCaller)
		signature := c.GetHeader(HeaderSignature)
		timestampStr := c.GetHeader(HeaderTimestamp)
		nonce := c.GetHeader(HeaderNonce)

		if callerHex == "" || signature == "" || timestampStr == "" || nonce == "" {
			abort(c, apperror.ErrMissingCredentials())
			return
		}
		if !common.IsHexAddress(callerHex) {
			abort(c, apperror.ErrMissingCredentials())
			return
		}
		caller := common.HexToAddress(callerHex)

		// Step 1: Timestamp check
		timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
		if err != nil {
			abort(c, apperror.ErrTimestampExpired())
			return
		}
		drift := opts.Now().Sub(time.Unix(timestamp, 0))
		if drift < 0 {
			drift = -drift
		}
		if drift > opts.MaxSkew {
			abort(c, apperror.ErrTimestampExpired())
			return
		}

		// Step 2: Signature verification
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abort(c, apperror.Validation("cannot read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		canonical := sigSvc.BuildCanonicalString(
			c.Request.Method,
			c.Request.URL.Path,
			timestamp,
			nonce,
			string(bodyBytes),
		)
		signer, err := verifier.RecoverCaller(canonical, signature)
		if err != nil || signer != caller {
			abort(c, apperror.ErrInvalidSignature())
			return
		}

		// Step 3: Nonce is consumed only for authentic requests
		isNew, err := nonceStore.CheckAndSet(c.Request.Context(), caller.Hex(), nonce, opts.NonceTTL)
		if err != nil {
			log.Warn().Err(err).Str("caller", caller.Hex()).Msg("nonce store error, allowing request")
		} else if !isNew {
			abort(c, apperror.ErrNonceUsed())
			return
		}

		c.Set(CtxCaller, caller)
		c.Next()
	}
}

// JWTAuth validates session tokens issued by /api/v1/auth/session.
func JWTAuth(tokenSvc ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || tokenStr == "" {
			abort(c, apperror.ErrInvalidToken())
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			abort(c, apperror.ErrInvalidToken())
			return
		}

		c.Set(CtxCaller, claims.Caller)
		c.Set(CtxSession, claims.SessionID)
		c.Next()
	}
}

// Caller returns the authenticated caller set by SignedRequestAuth or JWTAuth.
func Caller(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(CtxCaller)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}

// RequestID assigns every request an id, honouring a well-formed inbound one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		if err := c.Errors.Last(); err != nil {
			event = event.Err(err.Err)
		}
		if caller, ok := Caller(c); ok {
			event = event.Str("caller", caller.Hex())
		}
		if sid := c.GetString(CtxSession); sid != "" {
			event = event.Str("session_id", sid)
		}

		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
