package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"order-pay-gateway/internal/core/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	coinAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	buyerAddr = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	payeeAddr = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type fakeBackend struct {
	mu sync.Mutex

	callRet  []byte
	callErr  error
	lastCall ethereum.CallMsg

	sent       []*types.Transaction
	pending    int // receipts reported as not found before success
	status     uint64
	logs       []*types.Log
	receiptErr error
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCall = msg
	return f.callRet, f.callErr
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.pending > 0 {
		f.pending--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status, TxHash: hash, BlockNumber: big.NewInt(42), Logs: f.logs}, nil
}

func transferLog(coin, from, to common.Address, amount int64) *types.Log {
	return &types.Log{
		Address: coin,
		Topics:  []common.Hash{transferTopic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
	}
}

func boolWord(v bool) []byte {
	word := make([]byte, 32)
	if v {
		word[31] = 1
	}
	return word
}

func newTransferer(t *testing.T, backend Backend) *ERC20Transferer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tr, err := NewERC20Transferer(backend, key, Options{
		ChainID:        big.NewInt(1337),
		ReceiptTimeout: 200 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)
	return tr
}

func TestERC20Transferer_Success(t *testing.T) {
	backend := &fakeBackend{
		callRet: boolWord(true),
		status:  types.ReceiptStatusSuccessful,
		pending: 2,
		logs:    []*types.Log{transferLog(coinAddr, buyerAddr, payeeAddr, 1000)},
	}
	tr := newTransferer(t, backend)

	out, err := tr.TransferFrom(context.Background(), coinAddr, buyerAddr, payeeAddr, big.NewInt(1000))
	require.NoError(t, err)
	assert.True(t, out.Succeeded())
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, out.Reference, tx.Hash().Hex())
	assert.Equal(t, coinAddr, *tx.To())
	assert.Equal(t, uint64(100_000), tx.Gas())

	// calldata: transferFrom(buyer, payee, 1000) from the hot wallet
	assert.Equal(t, []byte{0x23, 0xb8, 0x72, 0xdd}, tx.Data()[:4])
	assert.Equal(t, tr.Spender(), backend.lastCall.From)
	assert.Equal(t, tx.Data(), backend.lastCall.Data)

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), tx)
	require.NoError(t, err)
	assert.Equal(t, tr.Spender(), sender)
}

func TestERC20Transferer_FalseReturn(t *testing.T) {
	backend := &fakeBackend{callRet: boolWord(false)}
	tr := newTransferer(t, backend)

	out, err := tr.TransferFrom(context.Background(), coinAddr, buyerAddr, payeeAddr, big.NewInt(1))
	require.NoError(t, err)
	assert.True(t, out.Returned)
	assert.False(t, out.Success)
	assert.Empty(t, backend.sent)
}

func TestERC20Transferer_NoReturn(t *testing.T) {
	for name, ret := range map[string][]byte{
		"empty":     nil,
		"malformed": append(make([]byte, 31), 2),
	} {
		t.Run(name, func(t *testing.T) {
			backend := &fakeBackend{callRet: ret}
			out, err := newTransferer(t, backend).TransferFrom(context.Background(), coinAddr, buyerAddr, payeeAddr, big.NewInt(1))
			require.NoError(t, err)
			assert.False(t, out.Returned)
			assert.False(t, out.Succeeded())
			assert.Empty(t, backend.sent)
		})
	}
}

func TestERC20Transferer_SimulatedRevert(t *testing.T) {
	backend := &fakeBackend{callErr: errors.New("execution reverted: insufficient allowance")}
	_, err := newTransferer(t, backend).TransferFrom(context.Background(), coinAddr, buyerAddr, payeeAddr, big.NewInt(1))
	assert.ErrorContains(t, err, "simulating transferFrom")
	assert.Empty(t, backend.sent)
}

func TestERC20Transferer_MinedRevert(t *testing.T) {
	backend := &fakeBackend{callRet: boolWord(true), status: types.ReceiptStatusFailed}
	_, err := newTransferer(t, backend).TransferFrom(context.Background(), coinAddr, buyerAddr, payeeAddr, big.NewInt(1))
	assert.ErrorContains(t, err, "reverted")
}

func TestERC20Transferer_MinedWithoutTransferLog(t *testing.T) {
	other := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	tests := []struct {
		name string
		logs []*types.Log
	}{
		{"no logs", nil},
		{"other contract", []*types.Log{transferLog(other, buyerAddr, payeeAddr, 7)}},
		{"wrong recipient", []*types.Log{transferLog(coinAddr, buyerAddr, other, 7)}},
		{"wrong sender", []*types.Log{transferLog(coinAddr, other, payeeAddr, 7)}},
		{"short amount", []*types.Log{transferLog(coinAddr, buyerAddr, payeeAddr, 6)}},
		{"other event", []*types.Log{{
			Address: coinAddr,
			Topics: []common.Hash{
				crypto.Keccak256Hash([]byte("Approval(address,address,uint256)")),
				common.BytesToHash(buyerAddr.Bytes()),
				common.BytesToHash(payeeAddr.Bytes()),
			},
			Data: common.LeftPadBytes(big.NewInt(7).Bytes(), 32),
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{callRet: boolWord(true), status: types.ReceiptStatusSuccessful, logs: tt.logs}
			out, err := newTransferer(t, backend).TransferFrom(context.Background(), coinAddr, buyerAddr, payeeAddr, big.NewInt(7))
			require.NoError(t, err)
			assert.True(t, out.Returned)
			assert.False(t, out.Succeeded())
			require.Len(t, backend.sent, 1)
		})
	}
}

func TestERC20Transferer_ReceiptTimeoutIsPending(t *testing.T) {
	backend := &fakeBackend{callRet: boolWord(true), pending: 1 << 30}
	out, err := newTransferer(t, backend).TransferFrom(context.Background(), coinAddr, buyerAddr, payeeAddr, big.NewInt(1))

	var pending *domain.PendingTransferError
	require.ErrorAs(t, err, &pending)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, backend.sent[0].Hash().Hex(), pending.Reference)
	assert.Equal(t, pending.Reference, out.Reference)
	assert.False(t, out.Succeeded())
}

func TestERC20Transferer_ReceiptErrorIsPending(t *testing.T) {
	backend := &fakeBackend{callRet: boolWord(true), receiptErr: errors.New("rpc down")}
	_, err := newTransferer(t, backend).TransferFrom(context.Background(), coinAddr, buyerAddr, payeeAddr, big.NewInt(1))

	var pending *domain.PendingTransferError
	assert.ErrorAs(t, err, &pending)
	assert.ErrorContains(t, err, "fetching receipt")
}

func TestNewERC20Transferer_Validation(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = NewERC20Transferer(&fakeBackend{}, nil, Options{ChainID: big.NewInt(1)}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewERC20Transferer(&fakeBackend{}, key, Options{}, zerolog.Nop())
	assert.Error(t, err)
}

type fakeBlocks struct{ err error }

func (f fakeBlocks) BlockNumber(context.Context) (uint64, error) { return 7, f.err }

func TestHealthCheck(t *testing.T) {
	assert.Equal(t, "chain", NewHealthCheck(fakeBlocks{}).Name())
	assert.NoError(t, NewHealthCheck(fakeBlocks{}).Ping(context.Background()))
	assert.Error(t, NewHealthCheck(fakeBlocks{err: errors.New("down")}).Ping(context.Background()))
}
