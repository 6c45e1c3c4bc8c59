package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"order-pay-gateway/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRecipient = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	testSigner    = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

func configColumns() []string {
	return []string{"recipient", "signer", "enabled", "delegated_pay_enabled", "updated_at"}
}

func TestConfigRepo_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	updated := time.Now().UTC().Truncate(time.Microsecond)
	mock.ExpectQuery("SELECT recipient, signer, enabled, delegated_pay_enabled, updated_at\\s+FROM gateway_config").
		WillReturnRows(pgxmock.NewRows(configColumns()).
			AddRow(testRecipient.Hex(), testSigner.Hex(), true, false, updated))

	cfg, err := NewConfigRepo(mock).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, testRecipient, cfg.Recipient)
	assert.Equal(t, testSigner, cfg.Signer)
	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.DelegatedPayEnabled)
	assert.Equal(t, updated, cfg.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigRepo_Load_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM gateway_config").WillReturnRows(pgxmock.NewRows(configColumns()))

	cfg, err := NewConfigRepo(mock).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestConfigRepo_Load_CorruptAddress(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM gateway_config").
		WillReturnRows(pgxmock.NewRows(configColumns()).AddRow("nope", testSigner.Hex(), true, false, time.Now()))

	_, err = NewConfigRepo(mock).Load(context.Background())
	assert.ErrorContains(t, err, "recipient")
}

func TestConfigRepo_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := domain.MerchantConfig{
		Recipient:           testRecipient,
		Signer:              testSigner,
		Enabled:             true,
		DelegatedPayEnabled: true,
		UpdatedAt:           time.Now().UTC(),
	}
	mock.ExpectExec("INSERT INTO gateway_config .+ ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs(testRecipient.Hex(), testSigner.Hex(), true, true, cfg.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewConfigRepo(mock).Save(context.Background(), cfg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigRepo_Save_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO gateway_config").WillReturnError(errors.New("read-only transaction"))

	err = NewConfigRepo(mock).Save(context.Background(), domain.MerchantConfig{Recipient: testRecipient, Signer: testSigner})
	assert.ErrorContains(t, err, "save gateway config")
}
