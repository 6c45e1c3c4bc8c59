package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"order-pay-gateway/internal/core/domain"
	"order-pay-gateway/internal/core/ports/mocks"
	"order-pay-gateway/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var gatewayAddr = common.HexToAddress("0x0000000000000000000000000000000000006a7e")

func setupLedgerService(t *testing.T) (*LedgerServiceImpl, *mocks.MockLedgerRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockLedgerRepository(ctrl)
	policy, err := NewOwnerPolicy(ownerAddr)
	require.NoError(t, err)
	return NewLedgerService(repo, gatewayAddr, policy, zerolog.Nop()), repo
}

func TestLedgerService_ApproveTargetsGateway(t *testing.T) {
	svc, repo := setupLedgerService(t)
	_, holder := newKey(t)

	repo.EXPECT().Approve(gomock.Any(), tokenAddr, holder, gatewayAddr, bigIntEq{big.NewInt(500)}).Return(nil)
	require.NoError(t, svc.Approve(context.Background(), holder, tokenAddr, big.NewInt(500)))

	err := svc.Approve(context.Background(), holder, tokenAddr, big.NewInt(-5))
	assert.True(t, apperror.HasCode(err, "REQ_001"))
}

func TestLedgerService_Allowance(t *testing.T) {
	svc, repo := setupLedgerService(t)
	_, holder := newKey(t)

	repo.EXPECT().Allowance(gomock.Any(), tokenAddr, holder, gatewayAddr).Return(big.NewInt(12), nil)
	got, err := svc.Allowance(context.Background(), tokenAddr, holder)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.Int64())
}

func TestLedgerService_Balance_DBError(t *testing.T) {
	svc, repo := setupLedgerService(t)

	repo.EXPECT().BalanceOf(gomock.Any(), tokenAddr, ownerAddr).Return(nil, errors.New("timeout"))
	_, err := svc.Balance(context.Background(), tokenAddr, ownerAddr)
	assert.True(t, apperror.HasCode(err, "SYS_001"))
}

func TestLedgerService_Mint(t *testing.T) {
	svc, repo := setupLedgerService(t)
	ctx := context.Background()
	_, holder := newKey(t)

	err := svc.Mint(ctx, holder, tokenAddr, holder, big.NewInt(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	err = svc.Mint(ctx, ownerAddr, tokenAddr, common.Address{}, big.NewInt(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeZeroAddress))

	repo.EXPECT().Mint(gomock.Any(), tokenAddr, holder, bigIntEq{big.NewInt(1000)}).Return(nil)
	require.NoError(t, svc.Mint(ctx, ownerAddr, tokenAddr, holder, big.NewInt(1000)))
}

func TestLedgerTransferer_TransferFrom(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockLedgerRepository(ctrl)
	tr := NewLedgerTransferer(repo, gatewayAddr)
	ctx := context.Background()
	_, payer := newKey(t)

	id := uuid.New()
	repo.EXPECT().TransferFrom(gomock.Any(), tokenAddr, gatewayAddr, payer, recipientAddr, bigIntEq{big.NewInt(10)}).
		Return(&domain.LedgerTransfer{ID: id}, nil)
	out, err := tr.TransferFrom(ctx, tokenAddr, payer, recipientAddr, big.NewInt(10))
	require.NoError(t, err)
	assert.True(t, out.Succeeded())
	assert.Equal(t, id.String(), out.Reference)

	repo.EXPECT().TransferFrom(gomock.Any(), tokenAddr, gatewayAddr, payer, recipientAddr, gomock.Any()).Return(nil, nil)
	out, err = tr.TransferFrom(ctx, tokenAddr, payer, recipientAddr, big.NewInt(10))
	require.NoError(t, err)
	assert.True(t, out.Returned)
	assert.False(t, out.Success)

	repo.EXPECT().TransferFrom(gomock.Any(), tokenAddr, gatewayAddr, payer, recipientAddr, gomock.Any()).Return(nil, errors.New("deadlock"))
	_, err = tr.TransferFrom(ctx, tokenAddr, payer, recipientAddr, big.NewInt(10))
	assert.Error(t, err)
}
