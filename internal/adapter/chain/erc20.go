package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"order-pay-gateway/internal/core/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

const erc20ABIJSON = `[{"type":"function","name":"transferFrom","stateMutability":"nonpayable",
"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
"outputs":[{"name":"","type":"bool"}]}]`

var (
	erc20ABI = mustParseABI(erc20ABIJSON)

	transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Backend is the subset of an Ethereum RPC client the transferer needs.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Options configures an ERC20Transferer.
type Options struct {
	ChainID        *big.Int
	GasLimit       uint64
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

// ERC20Transferer implements ports.TokenTransferer against ERC-20 contracts.
// The hot key is the spender the buyers approve.
type ERC20Transferer struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer
	opts    Options
	log     zerolog.Logger

	mu sync.Mutex // serializes nonce allocation
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rpcURL, err)
	}
	return client, nil
}

func NewERC20Transferer(backend Backend, key *ecdsa.PrivateKey, opts Options, log zerolog.Logger) (*ERC20Transferer, error) {
	if key == nil {
		return nil, errors.New("chain: hot key is required")
	}
	if opts.ChainID == nil || opts.ChainID.Sign() <= 0 {
		return nil, errors.New("chain: chain id must be positive")
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = 100_000
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 2 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &ERC20Transferer{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(opts.ChainID),
		opts:    opts,
		log:     log,
	}, nil
}

// Spender returns the address that must hold the buyers' allowances.
func (t *ERC20Transferer) Spender() common.Address {
	return t.from
}

// TransferFrom simulates transferFrom to read its return value, then submits
// it and waits for the receipt. A simulated revert is returned as an error.
// A missing or false return is reported without sending anything. A mined
// receipt only counts as success when the coin logged Transfer(from, to,
// amount). Once the tx is broadcast, failing to observe its receipt yields a
// *domain.PendingTransferError.
func (t *ERC20Transferer) TransferFrom(ctx context.Context, coin, from, to common.Address, amount *big.Int) (domain.TransferOutcome, error) {
	data, err := erc20ABI.Pack("transferFrom", from, to, amount)
	if err != nil {
		return domain.TransferOutcome{}, fmt.Errorf("packing transferFrom: %w", err)
	}

	ret, err := t.backend.CallContract(ctx, ethereum.CallMsg{From: t.from, To: &coin, Data: data}, nil)
	if err != nil {
		return domain.TransferOutcome{}, fmt.Errorf("simulating transferFrom: %w", err)
	}

	returned, ok := decodeBool(ret)
	if !returned {
		return domain.TransferOutcome{Returned: false}, nil
	}
	if !ok {
		return domain.TransferOutcome{Returned: true, Success: false}, nil
	}

	hash, err := t.send(ctx, coin, data)
	if err != nil {
		return domain.TransferOutcome{}, err
	}

	receipt, err := t.waitMined(ctx, hash)
	if err != nil {
		t.log.Error().Err(err).Str("tx", hash.Hex()).Str("coin", coin.Hex()).Msg("transferFrom outcome unknown")
		return domain.TransferOutcome{Reference: hash.Hex()}, &domain.PendingTransferError{Reference: hash.Hex(), Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.TransferOutcome{}, fmt.Errorf("transferFrom tx %s reverted", hash.Hex())
	}
	if !hasTransferLog(receipt, coin, from, to, amount) {
		t.log.Warn().Str("tx", hash.Hex()).Str("coin", coin.Hex()).Msg("transferFrom mined without a matching Transfer log")
		return domain.TransferOutcome{Returned: true, Success: false, Reference: hash.Hex()}, nil
	}

	t.log.Info().
		Str("tx", hash.Hex()).
		Str("coin", coin.Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Msg("transferFrom mined")
	return domain.TransferOutcome{Returned: true, Success: true, Reference: hash.Hex()}, nil
}

// decodeBool reads an ABI-encoded bool. returned is false when the data is
// empty or not a well-formed bool word.
func decodeBool(ret []byte) (returned, value bool) {
	if len(ret) == 0 {
		return false, false
	}
	out, err := erc20ABI.Unpack("transferFrom", ret)
	if err != nil || len(out) != 1 {
		return false, false
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, false
	}
	return true, v
}

// hasTransferLog reports whether coin emitted Transfer(from, to, amount) in receipt.
func hasTransferLog(receipt *types.Receipt, coin, from, to common.Address, amount *big.Int) bool {
	for _, l := range receipt.Logs {
		if l == nil || l.Removed || l.Address != coin || len(l.Topics) != 3 || l.Topics[0] != transferTopic {
			continue
		}
		if common.BytesToAddress(l.Topics[1].Bytes()) != from || common.BytesToAddress(l.Topics[2].Bytes()) != to {
			continue
		}
		if len(l.Data) == 32 && new(big.Int).SetBytes(l.Data).Cmp(amount) == 0 {
			return true
		}
	}
	return false
}

func (t *ERC20Transferer) send(ctx context.Context, coin common.Address, data []byte) (common.Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetching nonce: %w", err)
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggesting gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      t.opts.GasLimit,
		To:       &coin,
		Data:     data,
	})
	signed, err := types.SignTx(tx, t.signer, t.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing tx: %w", err)
	}
	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("sending tx: %w", err)
	}

	t.log.Debug().Str("tx", signed.Hash().Hex()).Uint64("nonce", nonce).Msg("transferFrom submitted")
	return signed.Hash(), nil
}

func (t *ERC20Transferer) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetching receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
