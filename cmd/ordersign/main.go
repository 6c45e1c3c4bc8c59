// Command ordersign produces the order signature the gateway expects from its
// signer: an EIP-191 personal signature over
// keccak256(abi.encode(buyer, coin, amount, orderId)).
package main

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"order-pay-gateway/pkg/ethsig"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	flag "github.com/spf13/pflag"
)

type options struct {
	buyer   string
	coin    string
	amount  string
	orderID string
	keyHex  string
	keyEnv  string
}

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ordersign: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, out io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("ordersign", flag.ContinueOnError)
	fs.StringVar(&opts.buyer, "buyer", "", "buyer address (0x-hex)")
	fs.StringVar(&opts.coin, "coin", "", "token contract address (0x-hex)")
	fs.StringVar(&opts.amount, "amount", "", "amount in base units (decimal uint256)")
	fs.StringVar(&opts.orderID, "order-id", "", "order identifier")
	fs.StringVar(&opts.keyHex, "key", "", "signer private key (hex); prefer --key-env")
	fs.StringVar(&opts.keyEnv, "key-env", "OPG_SIGNER_KEY", "environment variable holding the signer private key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	buyer, coin, amount, err := parseOrder(opts)
	if err != nil {
		return err
	}
	key, err := loadKey(opts, getenv)
	if err != nil {
		return err
	}

	digest, err := ethsig.OrderDigest(buyer, coin, amount, opts.orderID)
	if err != nil {
		return err
	}
	sig, err := ethsig.SignOrder(key, buyer, coin, amount, opts.orderID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "signer:          %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
	fmt.Fprintf(out, "digest:          %s\n", digest.Hex())
	fmt.Fprintf(out, "prefixed digest: %s\n", ethsig.PrefixedHash(digest.Bytes()).Hex())
	fmt.Fprintf(out, "signature:       %s\n", hexutil.Encode(sig))
	return nil
}

func parseOrder(opts options) (buyer, coin common.Address, amount *big.Int, err error) {
	if !common.IsHexAddress(opts.buyer) {
		return buyer, coin, nil, fmt.Errorf("--buyer %q is not a hex address", opts.buyer)
	}
	if !common.IsHexAddress(opts.coin) {
		return buyer, coin, nil, fmt.Errorf("--coin %q is not a hex address", opts.coin)
	}
	amount, ok := new(big.Int).SetString(opts.amount, 10)
	if !ok || !ethsig.ValidAmount(amount) {
		return buyer, coin, nil, fmt.Errorf("--amount %q is not a uint256", opts.amount)
	}
	return common.HexToAddress(opts.buyer), common.HexToAddress(opts.coin), amount, nil
}

func loadKey(opts options, getenv func(string) string) (*ecdsa.PrivateKey, error) {
	raw := opts.keyHex
	if raw == "" && opts.keyEnv != "" {
		raw = getenv(opts.keyEnv)
	}
	if raw == "" {
		return nil, errors.New("no signer key: pass --key or set --key-env")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing signer key: %w", err)
	}
	return key, nil
}
