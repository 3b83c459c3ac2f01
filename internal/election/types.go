package election

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/information-sharing-networks/evote-gateway/internal/crypto"
)

// Operation names a capability of the election contract
type Operation string

const (
	OpCastVote               Operation = "cast-vote"
	OpRegisterCandidate      Operation = "register-candidate"
	OpRemoveCandidate        Operation = "remove-candidate"
	OpEndElection            Operation = "end-election"
	OpGetAllElections        Operation = "get-all-elections"
	OpGetVoteCounts          Operation = "get-vote-counts"
	OpGetAllVoteCounts       Operation = "get-all-vote-counts"
	OpHasVoted               Operation = "has-voted"
	OpIsElectionEnded        Operation = "is-election-ended"
	OpGetConstituencyResults Operation = "get-constituency-results"

	// opGetPublicVoteCounts reads results through the public results method where the contract has one
	opGetPublicVoteCounts Operation = "get-public-vote-counts"
)

// Args are the inputs of an operation. Which fields are used, and which are required,
// depends on the operation and on the inputs the contract method declares.
type Args struct {
	ElectionID   string
	Candidate    string
	Voter        crypto.VoterID
	Gender       string
	Constituency string
}

// Settlement describes a mined transaction
type Settlement struct {
	Success      bool
	TxHash       string
	Status       string
	BlockNumber  uint64
	ExplorerLink string
}

const (
	TxStatusSuccess = "success"
	TxStatusFail    = "fail"
)

// Outcome is the result of Invoke: Settlement is set for state-changing operations,
// Value for read-only ones.
type Outcome struct {
	Settlement *Settlement
	Value      any
}

// CandidateResult is one candidate's tally. Constituency is empty for contracts without demographic data.
type CandidateResult struct {
	Candidate    string
	Constituency string
	Votes        *big.Int
}

// Results is the tally for an election.
//
// TotalMale and TotalFemale are nil for contracts without demographic data.
type Results struct {
	ElectionID  string
	Candidates  []CandidateResult
	TotalVotes  *big.Int
	TotalMale   *big.Int
	TotalFemale *big.Int
}

// ConstituencyResult is the tally for one constituency
type ConstituencyResult struct {
	Constituency string
	TotalVotes   *big.Int
	MaleVotes    *big.Int
	FemaleVotes  *big.Int
}

var (
	// ErrElectionNotEnded is returned by PublicResults until the election has been ended
	ErrElectionNotEnded = errors.New("election is not yet ended")

	// ErrUnsupportedOperation is returned when the configured contract has no method for an operation
	ErrUnsupportedOperation = errors.New("operation is not supported by the configured contract")
)

// MissingFieldsError lists required request fields that were empty
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "Missing required fields: " + strings.Join(e.Fields, ", ")
}

// OpError records the operation and election of a failed call
type OpError struct {
	Op         Operation
	ElectionID string

	// TxHash is set when the transaction was sent but did not settle
	TxHash string

	Err error
}

func (e *OpError) Error() string {
	if e.ElectionID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (election %s): %v", e.Op, e.ElectionID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
