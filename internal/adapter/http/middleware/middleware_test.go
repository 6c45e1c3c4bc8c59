package middleware

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/internal/core/ports/mocks"
	"order-pay-gateway/internal/service"
	"order-pay-gateway/pkg/ethsig"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Unix(1_700_000_000, 0)

type signedReq struct {
	method, path, body, nonce string
	ts                        int64
}

func (s signedReq) build(t *testing.T, key *ecdsa.PrivateKey, caller common.Address) *http.Request {
	t.Helper()
	canonical := service.NewHMACSignatureService().BuildCanonicalString(s.method, s.path, s.ts, s.nonce, s.body)
	sig, err := ethsig.SignPersonal(key, []byte(canonical))
	require.NoError(t, err)

	req := httptest.NewRequest(s.method, s.path, bytes.NewReader([]byte(s.body)))
	req.Header.Set(HeaderCaller, caller.Hex())
	req.Header.Set(HeaderSignature, hexutil.Encode(sig))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(s.ts, 10))
	req.Header.Set(HeaderNonce, s.nonce)
	return req
}

func signedRouter(nonceStore ports.NonceStore) *gin.Engine {
	router := gin.New()
	auth := SignedRequestAuth(
		service.NewEthCallerVerifier(),
		service.NewHMACSignatureService(),
		nonceStore,
		AuthOptions{MaxSkew: time.Minute, NonceTTL: 5 * time.Minute, Now: func() time.Time { return fixedNow }},
		zerolog.Nop(),
	)
	router.POST("/api/v1/payments", auth, func(c *gin.Context) {
		caller, ok := Caller(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"caller": caller.Hex()})
	})
	return router
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func TestSignedRequestAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	caller := crypto.PubkeyToAddress(key.PublicKey)

	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), caller.Hex(), "n-1", 5*time.Minute).Return(true, nil)

	req := signedReq{http.MethodPost, "/api/v1/payments", `{"amount":"1"}`, "n-1", fixedNow.Unix()}.build(t, key, caller)
	w := httptest.NewRecorder()
	signedRouter(nonceStore).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), caller.Hex())
}

func TestSignedRequestAuth_MissingHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := signedRouter(mocks.NewMockNonceStore(ctrl))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SEC_001", errorCode(t, w))
}

func TestSignedRequestAuth_BadCallerHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	key, _ := crypto.GenerateKey()
	caller := crypto.PubkeyToAddress(key.PublicKey)

	req := signedReq{http.MethodPost, "/api/v1/payments", "{}", "n", fixedNow.Unix()}.build(t, key, caller)
	req.Header.Set(HeaderCaller, "not-an-address")
	w := httptest.NewRecorder()
	signedRouter(mocks.NewMockNonceStore(ctrl)).ServeHTTP(w, req)

	assert.Equal(t, "SEC_001", errorCode(t, w))
}

func TestSignedRequestAuth_ExpiredTimestamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	key, _ := crypto.GenerateKey()
	caller := crypto.PubkeyToAddress(key.PublicKey)

	for name, ts := range map[string]int64{
		"too old":   fixedNow.Add(-2 * time.Minute).Unix(),
		"in future": fixedNow.Add(2 * time.Minute).Unix(),
	} {
		t.Run(name, func(t *testing.T) {
			req := signedReq{http.MethodPost, "/api/v1/payments", "{}", "n", ts}.build(t, key, caller)
			w := httptest.NewRecorder()
			signedRouter(mocks.NewMockNonceStore(ctrl)).ServeHTTP(w, req)

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "SEC_003", errorCode(t, w))
		})
	}
}

func TestSignedRequestAuth_WrongSigner(t *testing.T) {
	ctrl := gomock.NewController(t)
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	claimed := crypto.PubkeyToAddress(other.PublicKey)

	// signed by key but claims to be other; nonce must not be consumed
	req := signedReq{http.MethodPost, "/api/v1/payments", "{}", "n", fixedNow.Unix()}.build(t, key, claimed)
	w := httptest.NewRecorder()
	signedRouter(mocks.NewMockNonceStore(ctrl)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SEC_002", errorCode(t, w))
}

func TestSignedRequestAuth_TamperedBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	key, _ := crypto.GenerateKey()
	caller := crypto.PubkeyToAddress(key.PublicKey)

	req := signedReq{http.MethodPost, "/api/v1/payments", `{"amount":"1"}`, "n", fixedNow.Unix()}.build(t, key, caller)
	req.Body = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"amount":"9"}`))).Body
	w := httptest.NewRecorder()
	signedRouter(mocks.NewMockNonceStore(ctrl)).ServeHTTP(w, req)

	assert.Equal(t, "SEC_002", errorCode(t, w))
}

func TestSignedRequestAuth_NonceReplay(t *testing.T) {
	ctrl := gomock.NewController(t)
	key, _ := crypto.GenerateKey()
	caller := crypto.PubkeyToAddress(key.PublicKey)

	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), caller.Hex(), "dup", gomock.Any()).Return(false, nil)

	req := signedReq{http.MethodPost, "/api/v1/payments", "{}", "dup", fixedNow.Unix()}.build(t, key, caller)
	w := httptest.NewRecorder()
	signedRouter(nonceStore).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SEC_004", errorCode(t, w))
}

func TestSignedRequestAuth_NonceStoreDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	key, _ := crypto.GenerateKey()
	caller := crypto.PubkeyToAddress(key.PublicKey)

	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	req := signedReq{http.MethodPost, "/api/v1/payments", "{}", "n", fixedNow.Unix()}.build(t, key, caller)
	w := httptest.NewRecorder()
	signedRouter(nonceStore).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	caller := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	router := gin.New()
	router.GET("/me", JWTAuth(tokenSvc), func(c *gin.Context) {
		addr, _ := Caller(c)
		c.Header("X-Session", c.GetString(CtxSession))
		c.String(http.StatusOK, addr.Hex())
	})

	t.Run("valid token", func(t *testing.T) {
		tokenSvc.EXPECT().Validate("good").Return(&ports.TokenClaims{Caller: caller, SessionID: "sess-1"}, nil)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, caller.Hex(), w.Body.String())
		assert.Equal(t, "sess-1", w.Header().Get("X-Session"))
	})

	t.Run("invalid token", func(t *testing.T) {
		tokenSvc.EXPECT().Validate("bad").Return(nil, errors.New("expired"))
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "AUTH_003", errorCode(t, w))
	})

	for _, header := range []string{"", "Bearer ", "Basic abc"} {
		t.Run("malformed header "+strconv.Quote(header), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxRequestID)) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "4f2d5a52-8d8e-4b4e-9b59-0f5f0b3c7a11")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "4f2d5a52-8d8e-4b4e-9b59-0f5f0b3c7a11", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "<script>")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Body.String())
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_001", errorCode(t, w))
}

func TestRequestLogger_LogsCallerAndError(t *testing.T) {
	var buf bytes.Buffer
	caller := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	router := gin.New()
	router.Use(RequestID(), RequestLogger(zerolog.New(&buf)))
	router.GET("/x", func(c *gin.Context) {
		c.Set(CtxCaller, caller)
		_ = c.Error(errors.New("ledger timeout"))
		c.Status(http.StatusBadGateway)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "ledger timeout", entry["error"])
	assert.Equal(t, caller.Hex(), entry["caller"])
	assert.Equal(t, float64(http.StatusBadGateway), entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}
