package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	signer    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestNewMerchantConfig(t *testing.T) {
	tests := []struct {
		name      string
		recipient common.Address
		signer    common.Address
		wantErr   error
	}{
		{"valid", recipient, signer, nil},
		{"zero recipient", common.Address{}, signer, ErrZeroAddress},
		{"zero signer", recipient, common.Address{}, ErrZeroAddress},
		{"both zero", common.Address{}, common.Address{}, ErrZeroAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewMerchantConfig(tt.recipient, tt.signer)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.recipient, cfg.Recipient)
			assert.Equal(t, tt.signer, cfg.Signer)
			assert.True(t, cfg.Enabled, "payments start enabled")
			assert.False(t, cfg.DelegatedPayEnabled, "delegated payments start disabled")
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestMerchantConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, MerchantConfig{Recipient: recipient}.Validate(), ErrZeroAddress)
	assert.ErrorIs(t, MerchantConfig{Signer: signer}.Validate(), ErrZeroAddress)
}

func TestTransferOutcome_Succeeded(t *testing.T) {
	assert.True(t, TransferOutcome{Returned: true, Success: true}.Succeeded())
	assert.False(t, TransferOutcome{Returned: true, Success: false}.Succeeded())
	assert.False(t, TransferOutcome{Returned: false, Success: true}.Succeeded())
	assert.False(t, TransferOutcome{}.Succeeded())
}

func TestEventKinds(t *testing.T) {
	assert.Equal(t, EventOrderPaid, OrderPaid{}.Kind())
	assert.Equal(t, EventRecipientChanged, RecipientChanged{}.Kind())
	assert.Equal(t, EventSignerChanged, SignerChanged{}.Kind())
	assert.Equal(t, EventStatusChanged, StatusChanged{}.Kind())
	assert.Equal(t, EventStatusForDelegatedPayChanged, StatusForDelegatedPayChanged{}.Kind())
}

func TestOrderPaid_FieldOrder(t *testing.T) {
	rec := AuditRecord{Event: OrderPaid{
		Buyer:   signer,
		OrderID: "ord-1",
		Coin:    recipient,
		Amount:  big.NewInt(100),
	}}

	payload, err := rec.Payload()
	require.NoError(t, err)
	assert.Equal(t,
		`{"buyer":"0x00000000000000000000000000000000000000bb","orderId":"ord-1","coin":"0x00000000000000000000000000000000000000aa","amount":100}`,
		string(payload))
}

func TestDecodeEvent_RoundTrip(t *testing.T) {
	events := []Event{
		OrderPaid{Buyer: signer, OrderID: "ord-9", Coin: recipient, Amount: big.NewInt(7)},
		RecipientChanged{Old: recipient, New: signer},
		SignerChanged{Old: signer, New: recipient},
		StatusChanged{Enabled: false},
		StatusForDelegatedPayChanged{DelegatedEnabled: true},
	}

	for _, evt := range events {
		t.Run(string(evt.Kind()), func(t *testing.T) {
			payload, err := AuditRecord{Event: evt}.Payload()
			require.NoError(t, err)

			decoded, err := DecodeEvent(evt.Kind(), payload)
			require.NoError(t, err)
			assert.Equal(t, evt, decoded)
		})
	}
}

func TestDecodeEvent_UnknownKind(t *testing.T) {
	_, err := DecodeEvent("Nope", []byte(`{}`))
	assert.Error(t, err)
}
