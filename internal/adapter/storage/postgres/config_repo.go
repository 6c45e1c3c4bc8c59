package postgres

import (
	"context"
	"errors"
	"fmt"

	"order-pay-gateway/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// ConfigRepo implements ports.ConfigRepository on the single-row gateway_config table.
type ConfigRepo struct {
	pool Pool
}

// NewConfigRepo creates a new ConfigRepo.
func NewConfigRepo(pool Pool) *ConfigRepo {
	return &ConfigRepo{pool: pool}
}

// Load returns the stored configuration, or nil when none was saved yet.
func (r *ConfigRepo) Load(ctx context.Context) (*domain.MerchantConfig, error) {
	query := `SELECT recipient, signer, enabled, delegated_pay_enabled, updated_at
		FROM gateway_config WHERE id = 1`

	var recipient, signer string
	cfg := &domain.MerchantConfig{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&recipient, &signer, &cfg.Enabled, &cfg.DelegatedPayEnabled, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load gateway config: %w", err)
	}

	if cfg.Recipient, err = parseAddress(recipient); err != nil {
		return nil, fmt.Errorf("load gateway config: recipient: %w", err)
	}
	if cfg.Signer, err = parseAddress(signer); err != nil {
		return nil, fmt.Errorf("load gateway config: signer: %w", err)
	}
	return cfg, nil
}

// Save upserts the configuration row.
func (r *ConfigRepo) Save(ctx context.Context, cfg domain.MerchantConfig) error {
	query := `INSERT INTO gateway_config (id, recipient, signer, enabled, delegated_pay_enabled, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			recipient = EXCLUDED.recipient,
			signer = EXCLUDED.signer,
			enabled = EXCLUDED.enabled,
			delegated_pay_enabled = EXCLUDED.delegated_pay_enabled,
			updated_at = EXCLUDED.updated_at`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		cfg.Recipient.Hex(), cfg.Signer.Hex(), cfg.Enabled, cfg.DelegatedPayEnabled, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save gateway config: %w", err)
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
