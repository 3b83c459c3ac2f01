// Package contracttest provides an in-memory Backend for testing code that calls the election contract.
//
// The Fake decodes calldata with the real contract ABI, hands the method name and arguments to
// the OnView/OnSubmit hooks and encodes the hook results, so tests exercise the same ABI packing,
// signing and receipt handling as a real node.
package contracttest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"github.com/information-sharing-networks/evote-gateway/internal/contract"
)

const contractTimeout = 5 * time.Second

// ChainID used by the fake chain
var ChainID = big.NewInt(31337)

// Address the fake contract is deployed at
var Address = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// Call records a decoded contract call
type Call struct {
	Method string
	Args   []any
	View   bool
}

// Fake is an in-memory contract.Backend.
type Fake struct {
	abi *abi.ABI

	// OnView returns the outputs for a read-only call. The values must match the method's output types.
	OnView func(method string, args []any) ([]any, error)

	// OnSubmit is called when a transaction is estimated; a non-nil error is returned as the node's error.
	OnSubmit func(method string, args []any) error

	// FailReceipts makes mined transactions report status 0
	FailReceipts bool

	// NeverMine accepts transactions but never produces a receipt for them
	NeverMine bool

	// HeadErr is returned by HeaderByNumber
	HeadErr error

	mu       sync.Mutex
	calls    []Call
	nonce    uint64
	block    int64
	receipts map[common.Hash]*types.Receipt
}

// New returns a Fake for the given ABI
func New(contractABI *abi.ABI) *Fake {
	return &Fake{
		abi:      contractABI,
		block:    100,
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

// NewClient returns a contract.Client backed by f, signing with a fresh key.
func NewClient(f *Fake) (*contract.Client, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewClientWithKey(f, key)
}

// NewClientWithKey is NewClient with a fixed signing key
func NewClientWithKey(f *Fake, key *ecdsa.PrivateKey) (*contract.Client, error) {
	return contract.NewClient(f, contract.Config{
		Address:        Address,
		ABI:            f.abi,
		PrivateKey:     key,
		ChainID:        ChainID,
		CallTimeout:    contractTimeout,
		ConfirmTimeout: contractTimeout,
	}, nil)
}

// Calls returns the decoded calls made so far
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Submitted returns the decoded state-changing calls sent so far
func (f *Fake) Submitted() []Call {
	var out []Call
	for _, c := range f.Calls() {
		if !c.View {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) decode(data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("calldata too short")
	}
	method, err := f.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func (f *Fake) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *Fake) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return f.CodeAt(ctx, account, nil)
}

func (f *Fake) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method, args, err := f.decode(call.Data)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method.Name, Args: args, View: true})
	f.mu.Unlock()

	if f.OnView == nil {
		return nil, fmt.Errorf("no view handler for %s", method.Name)
	}
	out, err := f.OnView(method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (f *Fake) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if f.HeadErr != nil {
		return nil, f.HeadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// no base fee, so bind builds legacy transactions
	return &types.Header{Number: big.NewInt(f.block)}, nil
}

func (f *Fake) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *Fake) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(30_000_000_000), nil
}

func (f *Fake) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_500_000_000), nil
}

func (f *Fake) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	method, args, err := f.decode(call.Data)
	if err != nil {
		return 0, err
	}
	if f.OnSubmit != nil {
		if err := f.OnSubmit(method.Name, args); err != nil {
			return 0, err
		}
	}
	return 100_000, nil
}

func (f *Fake) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	method, args, err := f.decode(tx.Data())
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if tx.Nonce() != f.nonce {
		return fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), f.nonce)
	}
	f.nonce++
	f.block++

	f.calls = append(f.calls, Call{Method: method.Name, Args: args})
	if f.NeverMine {
		return nil
	}

	status := types.ReceiptStatusSuccessful
	if f.FailReceipts {
		status = types.ReceiptStatusFailed
	}
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(f.block),
		GasUsed:     tx.Gas(),
	}
	return nil
}

func (f *Fake) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *Fake) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *Fake) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	}), nil
}

// RPCError is a JSON-RPC error carrying revert data, as returned by a node for a reverted call.
type RPCError struct {
	Msg  string
	Data string
}

func (e *RPCError) Error() string          { return e.Msg }
func (e *RPCError) ErrorCode() int         { return 3 }
func (e *RPCError) ErrorData() interface{} { return e.Data }

// Revert returns the error a node reports for require(false, reason)
func Revert(reason string) error {
	stringType, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	// Error(string) selector
	data := append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...)
	return &RPCError{Msg: "execution reverted: " + reason, Data: hexutil.Encode(data)}
}

// CustomError returns the error a node reports for a revert with a custom error declared in contractABI
func CustomError(contractABI *abi.ABI, name string, args ...any) error {
	abiErr, ok := contractABI.Errors[name]
	if !ok {
		panic(fmt.Sprintf("ABI declares no error %q", name))
	}
	packed, err := abiErr.Inputs.Pack(args...)
	if err != nil {
		panic(err)
	}
	data := append(append([]byte{}, abiErr.ID[:4]...), packed...)
	return &RPCError{Msg: "execution reverted", Data: hexutil.Encode(data)}
}

// ErrConnectionRefused simulates an unreachable RPC endpoint
var ErrConnectionRefused = errors.New("Post \"http://localhost:8545\": dial tcp 127.0.0.1:8545: connect: connection refused")
