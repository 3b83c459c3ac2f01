package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/information-sharing-networks/evote-gateway/internal/config"
	evcrypto "github.com/information-sharing-networks/evote-gateway/internal/crypto"
)

// Backend is the subset of a JSON-RPC client used by Client (satisfied by *ethclient.Client).
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Config holds the settings for a Client.
type Config struct {
	Address    common.Address
	ABI        *abi.ABI
	PrivateKey *ecdsa.PrivateKey
	ChainID    *big.Int

	// CallTimeout bounds view calls and transaction submission
	CallTimeout time.Duration

	// ConfirmTimeout bounds the wait for a submitted transaction to be mined
	ConfirmTimeout time.Duration
}

// Client calls one deployed election contract.
type Client struct {
	backend  Backend
	abi      *abi.ABI
	address  common.Address
	contract *bind.BoundContract
	signer   *bind.TransactOpts
	logger   *slog.Logger

	callTimeout    time.Duration
	confirmTimeout time.Duration

	// submitMu serializes submissions so that concurrent requests do not pick the same pending nonce
	submitMu sync.Mutex
}

// NewClient binds the contract at cfg.Address on backend.
func NewClient(backend Backend, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ABI == nil {
		return nil, fmt.Errorf("contract ABI is required")
	}
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("transaction key is required")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id must be greater than 0")
	}
	if cfg.CallTimeout <= 0 || cfg.ConfirmTimeout <= 0 {
		return nil, fmt.Errorf("call and confirmation timeouts must be greater than 0")
	}
	if logger == nil {
		logger = slog.Default()
	}

	signer, err := bind.NewKeyedTransactorWithChainID(cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction signer: %w", err)
	}

	return &Client{
		backend:        backend,
		abi:            cfg.ABI,
		address:        cfg.Address,
		contract:       bind.NewBoundContract(cfg.Address, *cfg.ABI, backend, backend, backend),
		signer:         signer,
		logger:         logger,
		callTimeout:    cfg.CallTimeout,
		confirmTimeout: cfg.ConfirmTimeout,
	}, nil
}

// Dial connects to the RPC endpoint in the server config and binds the configured contract.
// The returned ethclient must be closed by the caller.
func Dial(ctx context.Context, cfg *config.ServerEnvironment, logger *slog.Logger) (*Client, *ethclient.Client, error) {
	contractABI, err := LoadABI(cfg.ContractABI)
	if err != nil {
		return nil, nil, err
	}

	key, err := evcrypto.ParseWalletKey(cfg.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid PRIVATE_KEY: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.RPCCallTimeout)
	defer cancel()

	eth, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = eth.ChainID(dialCtx)
		if err != nil {
			eth.Close()
			return nil, nil, fmt.Errorf("failed to read chain id from RPC endpoint: %w", err)
		}
	}

	client, err := NewClient(eth, Config{
		Address:        common.HexToAddress(cfg.ContractAddress),
		ABI:            contractABI,
		PrivateKey:     key,
		ChainID:        chainID,
		CallTimeout:    cfg.RPCCallTimeout,
		ConfirmTimeout: cfg.TxConfirmTimeout,
	}, logger)
	if err != nil {
		eth.Close()
		return nil, nil, err
	}

	logger.Info("contract client ready",
		slog.String("contract", cfg.ContractAddress),
		slog.String("abi", cfg.ContractABI),
		slog.String("chain_id", chainID.String()),
		slog.String("sender", client.Sender().Hex()),
	)
	return client, eth, nil
}

// ABI returns the contract ABI
func (c *Client) ABI() *abi.ABI { return c.abi }

// Address returns the contract address
func (c *Client) Address() common.Address { return c.address }

// Sender returns the address transactions are sent from
func (c *Client) Sender() common.Address { return c.signer.From }

// Method returns the ABI method with the given name
func (c *Client) Method(name string) (abi.Method, bool) {
	m, ok := c.abi.Methods[name]
	return m, ok
}

// Submit sends a state-changing call and returns the pending transaction.
//
// Submissions are serialized; the wait for settlement (WaitSettled) is not.
func (c *Client) Submit(ctx context.Context, method string, args ...any) (*types.Transaction, error) {
	if _, ok := c.Method(method); !ok {
		return nil, NewError(KindInvalidArgument, fmt.Sprintf("contract has no method %q", method))
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	opts := *c.signer
	opts.Context = callCtx

	tx, err := c.contract.Transact(&opts, method, args...)
	if err != nil {
		if isPackError(err) {
			return nil, WrapError(KindInvalidArgument, err, "invalid contract call arguments")
		}
		return nil, ClassifyError(err, c.abi)
	}

	c.logger.Debug("transaction submitted",
		slog.String("method", method),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("nonce", tx.Nonce()),
	)
	return tx, nil
}

// WaitSettled blocks until tx is mined and returns its receipt.
// A receipt with status 0 is returned without error; callers decide how to report it.
func (c *Client) WaitSettled(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		return nil, ClassifyError(err, c.abi)
	}
	return receipt, nil
}

// View calls a read-only method and returns its decoded outputs.
func (c *Client) View(ctx context.Context, method string, args ...any) ([]any, error) {
	if _, ok := c.Method(method); !ok {
		return nil, NewError(KindInvalidArgument, fmt.Sprintf("contract has no method %q", method))
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: callCtx, From: c.signer.From}, &out, method, args...)
	if err != nil {
		if isPackError(err) {
			return nil, WrapError(KindInvalidArgument, err, "invalid contract call arguments")
		}
		return nil, ClassifyError(err, c.abi)
	}
	return out, nil
}

// Ping checks the RPC endpoint is responding by fetching the latest block header
func (c *Client) Ping(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if _, err := c.backend.HeaderByNumber(callCtx, nil); err != nil {
		return ClassifyError(err, c.abi)
	}
	return nil
}

// isPackError reports whether err came from ABI encoding the arguments (rather than from the node)
func isPackError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "argument count mismatch") ||
		strings.HasPrefix(msg, "abi: cannot use") ||
		strings.HasPrefix(msg, "abi: invalid")
}
