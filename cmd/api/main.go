package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-pay-gateway/config"
	"order-pay-gateway/internal/adapter/chain"
	httpHandler "order-pay-gateway/internal/adapter/http/handler"
	"order-pay-gateway/internal/adapter/http/middleware"
	pgStorage "order-pay-gateway/internal/adapter/storage/postgres"
	redisStorage "order-pay-gateway/internal/adapter/storage/redis"
	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/internal/service"
	"order-pay-gateway/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("OPG_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("token_backend", cfg.Token.Backend).
		Msg("Starting Order Pay Gateway")

	ctx := context.Background()

	owner, recipient, signer, err := gatewayAddresses(cfg.Gateway)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid gateway addresses")
	}

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	if err := pgStorage.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Audit log: Postgres first, then the Redis stream and the optional indexer webhook
	sinks := []ports.AuditSink{redisStorage.NewStreamSink(rdb, cfg.Audit.Stream, int64(cfg.Audit.Retain))}
	if cfg.Audit.WebhookURL != "" {
		sinks = append(sinks, service.NewWebhookSink(
			cfg.Audit.WebhookURL,
			cfg.Audit.WebhookSecret,
			sigSvc,
			&http.Client{Timeout: 10 * time.Second},
			logger.Component(log, "webhook"),
		))
	}
	auditSvc, err := service.NewAuditService(ctx, pgStorage.NewAuditRepo(pool), sinks, service.AuditOptions{
		Retain:    cfg.Audit.Retain,
		QueueSize: cfg.Audit.QueueSize,
	}, logger.Component(log, "audit"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audit log")
	}

	policy, err := service.NewOwnerPolicy(owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid gateway owner")
	}
	txm := pgStorage.NewTransactor(pool)
	store, err := service.NewConfigStore(ctx, recipient, signer, policy, pgStorage.NewConfigRepo(pool), auditSvc, logger.Component(log, "config"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize gateway config")
	}
	store.WithTransactor(txm)

	healthCheckers := []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)}

	// Token backend
	var (
		token     ports.TokenTransferer
		ledgerSvc ports.LedgerService
		paymentTx ports.Transactor // ledger transfers commit with their OrderPaid record
	)
	switch cfg.Token.Backend {
	case config.BackendEVM:
		client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to chain RPC")
		}
		defer client.Close()

		key, err := service.OpenPrivateKey(encSvc, cfg.Chain.KeyEnc)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open gateway hot key")
		}
		erc20, err := chain.NewERC20Transferer(client, key, chain.Options{
			ChainID:        big.NewInt(cfg.Chain.ChainID),
			GasLimit:       cfg.Chain.GasLimit,
			ReceiptTimeout: cfg.Chain.ReceiptTimeout,
		}, logger.Component(log, "chain"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize ERC-20 transferer")
		}
		log.Info().Str("spender", erc20.Spender().Hex()).Int64("chain_id", cfg.Chain.ChainID).Msg("EVM token backend ready")
		token = erc20
		healthCheckers = append(healthCheckers, chain.NewHealthCheck(client))
	default:
		spender, err := parseAddress("gateway.spender", cfg.Gateway.Spender)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid ledger spender")
		}
		ledgerRepo := pgStorage.NewLedgerRepo(pool)
		token = service.NewLedgerTransferer(ledgerRepo, spender)
		ledgerSvc = service.NewLedgerService(ledgerRepo, spender, policy, logger.Component(log, "ledger"))
		paymentTx = txm
		log.Info().Str("spender", spender.Hex()).Msg("Ledger token backend ready")
	}

	executor := service.NewTokenTransferExecutor(token, logger.Component(log, "transfer"))
	paymentSvc := service.NewPaymentService(store, service.NewOrderSignatureVerifier(), executor, auditSvc, logger.Component(log, "payment")).
		WithTransactor(paymentTx)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:     paymentSvc,
		AdminSvc:       store,
		AuditLog:       auditSvc,
		LedgerSvc:      ledgerSvc,
		TokenSvc:       tokenSvc,
		CallerVerifier: service.NewEthCallerVerifier(),
		SigSvc:         sigSvc,
		NonceStore:     redisStorage.NewNonceStore(rdb),
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		HealthCheckers: healthCheckers,
		Auth: middleware.AuthOptions{
			MaxSkew:  cfg.Auth.MaxSkew,
			NonceTTL: cfg.Auth.NonceTTL,
		},
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		RateLimit:    cfg.Server.RateLimit,
		RateWindow:   cfg.Server.RateWindow,
		Logger:       log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	drainAudit(shutdownCtx, auditSvc, log)

	log.Info().Msg("Server exited")
}

// drainAudit flushes queued audit records to every sink before exit.
func drainAudit(ctx context.Context, audit *service.AuditService, log zerolog.Logger) {
	if err := audit.Close(ctx); err != nil {
		log.Error().Err(err).Uint64("last_seq", audit.LastSeq()).Msg("Audit sinks not drained")
		return
	}
	log.Info().Uint64("last_seq", audit.LastSeq()).Msg("Audit sinks drained")
}

func gatewayAddresses(g config.GatewayConfig) (owner, recipient, signer common.Address, err error) {
	if owner, err = parseAddress("gateway.owner", g.Owner); err != nil {
		return
	}
	if recipient, err = parseAddress("gateway.recipient", g.Recipient); err != nil {
		return
	}
	signer, err = parseAddress("gateway.signer", g.Signer)
	return
}

func parseAddress(key, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: %q is not a hex address", key, value)
	}
	return common.HexToAddress(value), nil
}
