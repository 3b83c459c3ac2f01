// Package election translates gateway operations into calls on the election contract.
//
// The contract ABI drives argument shaping: each operation lists the request fields it can pass,
// in contract order, and the number of inputs the ABI method declares decides how many are passed
// (and therefore required). This lets one set of routes serve both the basic and the demographic
// contract variants.
package election

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/information-sharing-networks/evote-gateway/internal/contract"
	"github.com/information-sharing-networks/evote-gateway/internal/logger"
)

// Chain is the contract capability set used by the Service (implemented by *contract.Client)
type Chain interface {
	Method(name string) (abi.Method, bool)
	Submit(ctx context.Context, method string, args ...any) (*types.Transaction, error)
	WaitSettled(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	View(ctx context.Context, method string, args ...any) ([]any, error)
}

// field identifies a request field that can be passed to a contract method
type field string

const (
	fieldElectionID   field = "electionId"
	fieldVoter        field = "uid"
	fieldCandidate    field = "candidate"
	fieldGender       field = "gender"
	fieldConstituency field = "constituency"
)

func (a Args) value(f field) string {
	switch f {
	case fieldElectionID:
		return a.ElectionID
	case fieldVoter:
		return string(a.Voter)
	case fieldCandidate:
		return a.Candidate
	case fieldGender:
		return a.Gender
	case fieldConstituency:
		return a.Constituency
	}
	return ""
}

type opSpec struct {
	// methods in order of preference; the first one the ABI declares is used
	methods []string

	// stateChanging operations are submitted as transactions and waited on
	stateChanging bool

	// fields that can be passed, in contract argument order
	fields []field

	decode func(out []any) (any, error)
}

var operations = map[Operation]opSpec{
	OpCastVote: {
		methods:       []string{"vote"},
		stateChanging: true,
		fields:        []field{fieldElectionID, fieldVoter, fieldCandidate, fieldGender},
	},
	OpRegisterCandidate: {
		methods:       []string{"registerCandidate"},
		stateChanging: true,
		fields:        []field{fieldElectionID, fieldCandidate, fieldConstituency},
	},
	OpRemoveCandidate: {
		methods:       []string{"removeCandidate"},
		stateChanging: true,
		fields:        []field{fieldElectionID, fieldCandidate},
	},
	OpEndElection: {
		methods:       []string{"endElection"},
		stateChanging: true,
		fields:        []field{fieldElectionID},
	},
	OpGetAllElections: {
		methods: []string{"getAllElections"},
		decode:  decodeStrings,
	},
	OpGetVoteCounts: {
		methods: []string{"getVoteCount"},
		fields:  []field{fieldElectionID, fieldCandidate},
		decode:  decodeUint,
	},
	OpGetAllVoteCounts: {
		methods: []string{"getCandidateVotesAndTotalElectionVotes", "getAllVoteCounts"},
		fields:  []field{fieldElectionID},
		decode:  decodeResults,
	},
	opGetPublicVoteCounts: {
		methods: []string{"getCandidateVotesAndTotalElectionVotesPublic", "getCandidateVotesAndTotalElectionVotes", "getAllVoteCounts"},
		fields:  []field{fieldElectionID},
		decode:  decodeResults,
	},
	OpHasVoted: {
		methods: []string{"hasUserVoted"},
		fields:  []field{fieldElectionID, fieldVoter},
		decode:  decodeBool,
	},
	OpIsElectionEnded: {
		methods: []string{"isElectionEnded"},
		fields:  []field{fieldElectionID},
		decode:  decodeBool,
	},
	OpGetConstituencyResults: {
		methods: []string{"getDemkhongResults"},
		fields:  []field{fieldElectionID},
		decode:  decodeConstituencyResults,
	},
}

// Service runs election operations against the contract.
type Service struct {
	chain       Chain
	explorerURL string
}

// NewService creates a Service. explorerURL is a template containing {txHash}.
func NewService(chain Chain, explorerURL string) *Service {
	return &Service{chain: chain, explorerURL: explorerURL}
}

// Supported reports whether the configured contract has a method for op
func (s *Service) Supported(op Operation) bool {
	spec, ok := operations[op]
	if !ok {
		return false
	}
	_, _, ok = s.resolve(spec)
	return ok
}

func (s *Service) resolve(spec opSpec) (string, abi.Method, bool) {
	for _, name := range spec.methods {
		if m, ok := s.chain.Method(name); ok {
			return name, m, true
		}
	}
	return "", abi.Method{}, false
}

// Invoke performs one operation: state-changing operations are submitted and block until
// the transaction settles; read-only operations make a single view call.
func (s *Service) Invoke(ctx context.Context, op Operation, args Args) (Outcome, error) {
	spec, ok := operations[op]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown operation %q", op)
	}

	name, method, ok := s.resolve(spec)
	if !ok {
		return Outcome{}, &OpError{Op: op, ElectionID: args.ElectionID, Err: ErrUnsupportedOperation}
	}

	callArgs, err := shapeArgs(spec, method, args)
	if err != nil {
		return Outcome{}, err
	}

	if spec.stateChanging {
		settlement, txHash, err := s.submit(ctx, op, name, callArgs)
		if err != nil {
			return Outcome{}, &OpError{Op: op, ElectionID: args.ElectionID, TxHash: txHash, Err: err}
		}
		return Outcome{Settlement: settlement}, nil
	}

	out, err := s.chain.View(ctx, name, callArgs...)
	if err != nil {
		return Outcome{}, &OpError{Op: op, ElectionID: args.ElectionID, Err: err}
	}
	value, err := spec.decode(out)
	if err != nil {
		return Outcome{}, &OpError{Op: op, ElectionID: args.ElectionID, Err: fmt.Errorf("unexpected %s output: %w", name, err)}
	}
	if r, ok := value.(*Results); ok {
		r.ElectionID = args.ElectionID
	}
	return Outcome{Value: value}, nil
}

// submit sends the transaction and waits for its receipt.
// The hash is returned with the error when the transaction was sent but the wait failed.
func (s *Service) submit(ctx context.Context, op Operation, method string, callArgs []any) (*Settlement, string, error) {
	reqLogger := logger.ContextRequestLogger(ctx)

	tx, err := s.chain.Submit(ctx, method, callArgs...)
	if err != nil {
		return nil, "", err
	}

	txHash := tx.Hash().Hex()
	logger.ContextWithLogAttrs(ctx, slog.String("tx_hash", txHash))

	receipt, err := s.chain.WaitSettled(ctx, tx)
	if err != nil {
		reqLogger.Warn("transaction submitted but not confirmed",
			slog.String("operation", string(op)),
			slog.String("tx_hash", txHash),
			slog.String("error", err.Error()),
		)
		return nil, txHash, err
	}

	settlement := &Settlement{
		Success:      receipt.Status == types.ReceiptStatusSuccessful,
		TxHash:       txHash,
		Status:       TxStatusFail,
		ExplorerLink: strings.ReplaceAll(s.explorerURL, "{txHash}", txHash),
	}
	if settlement.Success {
		settlement.Status = TxStatusSuccess
	}
	if receipt.BlockNumber != nil {
		settlement.BlockNumber = receipt.BlockNumber.Uint64()
	}

	reqLogger.Info("transaction settled",
		slog.String("operation", string(op)),
		slog.String("tx_hash", txHash),
		slog.String("tx_status", settlement.Status),
		slog.Uint64("block", settlement.BlockNumber),
	)
	return settlement, txHash, nil
}

// shapeArgs picks the fields the method takes, checks they are present and converts them to the input types.
func shapeArgs(spec opSpec, method abi.Method, args Args) ([]any, error) {
	if len(method.Inputs) > len(spec.fields) {
		return nil, contract.NewError(contract.KindInvalidArgument,
			fmt.Sprintf("contract method %s takes %d arguments, at most %d are supported", method.Name, len(method.Inputs), len(spec.fields)))
	}

	fields := spec.fields[:len(method.Inputs)]

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(args.value(f)) == "" {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	out := make([]any, len(fields))
	for i, f := range fields {
		v, err := coerce(args.value(f), method.Inputs[i].Type)
		if err != nil {
			return nil, contract.WrapError(contract.KindInvalidArgument, err, fmt.Sprintf("invalid %s", f))
		}
		out[i] = v
	}
	return out, nil
}

// coerce converts a request string to the Go type go-ethereum expects for t.
func coerce(v string, t abi.Type) (any, error) {
	switch t.T {
	case abi.StringTy:
		return v, nil
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
		if !ok {
			return nil, fmt.Errorf("%q is not a whole number", v)
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("%q must not be negative", v)
		}
		bits := t.Size
		if t.T == abi.IntTy {
			bits--
		}
		if n.BitLen() > bits {
			return nil, fmt.Errorf("%q does not fit in %s", v, t.String())
		}
		if t.Size > 64 {
			return n, nil
		}
		return smallInt(n, t)
	case abi.FixedBytesTy:
		if t.Size != 32 {
			return nil, fmt.Errorf("unsupported argument type %s", t.String())
		}
		b, err := hex.DecodeString(strings.TrimPrefix(v, "0x"))
		if err != nil || len(b) != 32 {
			return nil, fmt.Errorf("%q is not a 32 byte hex value", v)
		}
		var out [32]byte
		copy(out[:], b)
		return out, nil
	case abi.BoolTy:
		switch strings.ToLower(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", v)
	}
	return nil, fmt.Errorf("unsupported argument type %s", t.String())
}

// smallInt returns n as the sized integer type go-ethereum uses for (u)int8..64
func smallInt(n *big.Int, t abi.Type) (any, error) {
	if t.T == abi.UintTy {
		u := n.Uint64()
		switch t.Size {
		case 8:
			return uint8(u), nil
		case 16:
			return uint16(u), nil
		case 32:
			return uint32(u), nil
		case 64:
			return u, nil
		}
	} else {
		i := n.Int64()
		switch t.Size {
		case 8:
			return int8(i), nil
		case 16:
			return int16(i), nil
		case 32:
			return int32(i), nil
		case 64:
			return i, nil
		}
	}
	return n, nil
}
