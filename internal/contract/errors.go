package contract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrorKind identifies the category of a failed contract call
type ErrorKind string

const (
	// KindAlreadyVoted: the voter hash has already been recorded for the election
	KindAlreadyVoted ErrorKind = "already_voted"

	// KindDuplicateCandidate: the candidate is already registered for the election
	KindDuplicateCandidate ErrorKind = "duplicate_candidate"

	// KindUnknownCandidate: the candidate is not registered for the election
	KindUnknownCandidate ErrorKind = "unknown_candidate"

	// KindNotOwner: the gateway's transaction key is not the contract owner
	KindNotOwner ErrorKind = "not_owner"

	// KindUnknownElection: the election id is not known to the contract
	KindUnknownElection ErrorKind = "unknown_election"

	// KindInvalidArgument: the contract (or ABI encoding) rejected an argument
	KindInvalidArgument ErrorKind = "invalid_argument"

	// KindReverted: the call reverted for a reason not listed above
	KindReverted ErrorKind = "reverted"

	// KindTransport: the JSON-RPC endpoint could not be reached or returned a non-revert error
	KindTransport ErrorKind = "transport"

	// KindTimeout: the call or the wait for settlement exceeded its deadline
	KindTimeout ErrorKind = "timeout"
)

// Error is a classified contract call failure.
type Error struct {
	// kind is the failure category
	kind ErrorKind

	// message is safe to return to API clients
	message string

	// reason is the decoded revert reason, if any
	reason string

	// wrapped is the underlying error
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *Error) Kind() ErrorKind { return e.kind }
func (e *Error) Message() string { return e.message }
func (e *Error) Reason() string  { return e.reason }
func (e *Error) Unwrap() error   { return e.wrapped }

// NewError creates a classified error (used by the fake contract and by callers validating arguments)
func NewError(kind ErrorKind, msg string) error {
	return &Error{kind: kind, message: msg}
}

// WrapError wraps err as a classified error
func WrapError(kind ErrorKind, err error, msg string) error {
	return &Error{kind: kind, message: msg, wrapped: err}
}

// IsKind reports whether err is a contract error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var contractErr *Error
	if !errors.As(err, &contractErr) {
		return false
	}
	return contractErr.kind == kind
}

// Client-facing messages for the recognised failures
const (
	MsgAlreadyVoted       = "You have already voted in this election."
	MsgDuplicateCandidate = "Candidate already registered"
	MsgUnknownCandidate   = "Candidate is not registered for this election."
	MsgNotOwner           = "Unauthorized: only the contract owner can perform this operation"
	MsgUnknownElection    = "Election ID does not exist"
	MsgInvalidGender      = "Invalid gender. Use 'Male' or 'Female'."
	MsgTimeout            = "The blockchain network did not respond in time"
)

type revertRule struct {
	fragment string
	kind     ErrorKind
	message  string
}

// revertRules is the fallback table matched against revert reasons and error text, in order.
var revertRules = []revertRule{
	{"Already voted in this election", KindAlreadyVoted, MsgAlreadyVoted},
	{"Candidate already registered", KindDuplicateCandidate, MsgDuplicateCandidate},
	{"Candidate not registered", KindUnknownCandidate, MsgUnknownCandidate},
	{"Not the owner", KindNotOwner, MsgNotOwner},
	{"Election ID does not exist", KindUnknownElection, MsgUnknownElection},
	{"Election does not exist", KindUnknownElection, MsgUnknownElection},
	{"Invalid gender string", KindInvalidArgument, MsgInvalidGender},
}

// customErrorRules maps custom error names declared in a contract ABI to a kind.
var customErrorRules = map[string]revertRule{
	"AlreadyVoted":               {kind: KindAlreadyVoted, message: MsgAlreadyVoted},
	"CandidateAlreadyRegistered": {kind: KindDuplicateCandidate, message: MsgDuplicateCandidate},
	"CandidateNotRegistered":     {kind: KindUnknownCandidate, message: MsgUnknownCandidate},
	"NotOwner":                   {kind: KindNotOwner, message: MsgNotOwner},
	"OwnableUnauthorizedAccount": {kind: KindNotOwner, message: MsgNotOwner},
	"ElectionDoesNotExist":       {kind: KindUnknownElection, message: MsgUnknownElection},
	"InvalidGender":              {kind: KindInvalidArgument, message: MsgInvalidGender},
}

// ClassifyError converts an error returned by the JSON-RPC backend into a *Error.
//
// contractABI supplies the custom error declarations and may be nil.
func ClassifyError(err error, contractABI *abi.ABI) error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(KindTimeout, err, MsgTimeout)
	}

	rule, text, reverted := revertReason(err, contractABI)
	if rule != nil {
		return &Error{kind: rule.kind, message: rule.message, reason: text, wrapped: err}
	}

	for _, candidate := range []string{text, err.Error()} {
		if candidate == "" {
			continue
		}
		for _, rule := range revertRules {
			if strings.Contains(candidate, rule.fragment) {
				return &Error{kind: rule.kind, message: rule.message, reason: text, wrapped: err}
			}
		}
	}

	if reverted || strings.Contains(err.Error(), "execution reverted") {
		msg := text
		if msg == "" {
			msg = err.Error()
		}
		return &Error{kind: KindReverted, message: msg, reason: text, wrapped: err}
	}

	return &Error{kind: KindTransport, message: err.Error(), wrapped: err}
}

// revertReason extracts the revert payload from a JSON-RPC data error.
//
// rule is set when the payload is a custom error with a known name. reason is the custom
// error name or the decoded Error(string) reason. reverted reports whether revert data was present.
func revertReason(err error, contractABI *abi.ABI) (rule *revertRule, reason string, reverted bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, "", false
	}

	data := revertData(dataErr.ErrorData())
	if len(data) < 4 {
		return nil, "", false
	}

	if contractABI != nil {
		for name, abiErr := range contractABI.Errors {
			if !bytes.Equal(data[:4], abiErr.ID[:4]) {
				continue
			}
			if r, ok := customErrorRules[name]; ok {
				return &r, name, true
			}
			return nil, name, true
		}
	}

	if decoded, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
		return nil, decoded, true
	}
	return nil, "", true
}

func revertData(v any) []byte {
	switch d := v.(type) {
	case string:
		b, err := hexutil.Decode(d)
		if err != nil {
			return nil
		}
		return b
	case []byte:
		return d
	default:
		return nil
	}
}
