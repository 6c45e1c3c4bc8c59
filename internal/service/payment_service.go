package service

import (
	"context"
	"math/big"
	"time"

	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/internal/core/ports"
	"order-pay-gateway/pkg/apperror"
	"order-pay-gateway/pkg/ethsig"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	store    *ConfigStore
	verifier ports.AuthorizationVerifier
	executor ports.TransferExecutor
	audit    ports.AuditLog
	tx       ports.Transactor
	log      zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	store *ConfigStore,
	verifier ports.AuthorizationVerifier,
	executor ports.TransferExecutor,
	audit ports.AuditLog,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		store:    store,
		verifier: verifier,
		executor: executor,
		audit:    audit,
		tx:       inlineTx{},
		log:      log,
	}
}

// WithTransactor runs each transfer and its OrderPaid record in one unit of
// work. Only backends whose transfer joins that unit of work (the ledger)
// should be given one.
func (s *PaymentServiceImpl) WithTransactor(tx ports.Transactor) *PaymentServiceImpl {
	if tx != nil {
		s.tx = tx
	}
	return s
}

// Pay settles an order where the caller is both buyer and payer.
func (s *PaymentServiceImpl) Pay(ctx context.Context, caller common.Address, params ports.PayParams) (*domain.Payment, error) {
	req := domain.PaymentRequest{
		Buyer:     caller,
		Coin:      params.Coin,
		Amount:    params.Amount,
		OrderID:   params.OrderID,
		Signature: params.Signature,
	}
	return s.pay(ctx, caller, req, false)
}

// PayFrom settles an order on behalf of req.Buyer. Funds are still pulled from
// the caller; the buyer is only an attribution recorded in the OrderPaid event.
func (s *PaymentServiceImpl) PayFrom(ctx context.Context, caller common.Address, req domain.PaymentRequest) (*domain.Payment, error) {
	return s.pay(ctx, caller, req, true)
}

// pay runs the whole payment under the config store lock: enabled check,
// delegation check, amount check, signature check, then the transfer and the
// durable OrderPaid record. Any failure leaves no event behind, and no
// transfer either when the transfer joins the unit of work.
func (s *PaymentServiceImpl) pay(ctx context.Context, payer common.Address, req domain.PaymentRequest, delegated bool) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.store.Serialize(ctx, func(cfg domain.MerchantConfig) error {
		if !cfg.Enabled {
			return apperror.ErrContractDisabled()
		}
		if delegated && !cfg.DelegatedPayEnabled {
			return apperror.ErrDelegationDisabled()
		}
		if req.Amount == nil || !ethsig.ValidAmount(req.Amount) {
			return apperror.Validation("amount must be an unsigned 256-bit integer")
		}
		amount := new(big.Int).Set(req.Amount)
		req.Amount = amount

		if _, err := s.verifier.Verify(req, cfg.Signer); err != nil {
			return err
		}

		var (
			out domain.TransferOutcome
			rec domain.AuditRecord
		)
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			out, err = s.executor.Execute(ctx, payer, cfg.Recipient, req.Coin, amount)
			if err != nil {
				return err
			}
			rec, err = s.audit.Record(ctx, domain.OrderPaid{
				Buyer:   req.Buyer,
				OrderID: req.OrderID,
				Coin:    req.Coin,
				Amount:  new(big.Int).Set(amount),
			})
			if err != nil {
				s.log.Error().Err(err).
					Str("order_id", req.OrderID).
					Str("transfer_ref", out.Reference).
					Msg("OrderPaid not recorded")
			}
			return err
		})
		if err != nil {
			return asAppError(err)
		}
		s.audit.Publish(rec)

		payment = &domain.Payment{
			Payer:       payer,
			Buyer:       req.Buyer,
			Recipient:   cfg.Recipient,
			Coin:        req.Coin,
			Amount:      amount,
			OrderID:     req.OrderID,
			TransferRef: out.Reference,
			Seq:         rec.Seq,
			PaidAt:      time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).
			Str("order_id", req.OrderID).
			Str("buyer", req.Buyer.Hex()).
			Str("payer", payer.Hex()).
			Bool("delegated", delegated).
			Msg("payment rejected")
		return nil, err
	}

	s.log.Info().
		Str("order_id", payment.OrderID).
		Str("buyer", payment.Buyer.Hex()).
		Str("payer", payment.Payer.Hex()).
		Str("coin", payment.Coin.Hex()).
		Str("amount", payment.Amount.String()).
		Str("transfer_ref", payment.TransferRef).
		Uint64("seq", payment.Seq).
		Msg("order paid")

	return payment, nil
}
