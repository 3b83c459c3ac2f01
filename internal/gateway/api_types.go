package gateway

// api_types.go holds the request and response bodies of the gateway API.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/information-sharing-networks/evote-gateway/internal/election"
)

// TokenRequest is the body of POST /auth/token
type TokenRequest struct {
	AppID     string `json:"appId" example:"evote-client"`
	AppSecret string `json:"appSecret" example:"s3cret"`
}

// TokenResponse is returned by POST /auth/token and POST /auth/refresh.
// RefreshToken is omitted for refreshed credentials.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int `json:"expires_in" example:"900"`
}

// RefreshRequest is the body of POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RevokeRequest is the body of POST /auth/revoke. Either an access or a refresh token can be revoked.
type RevokeRequest struct {
	Token string `json:"token"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message" example:"Token revoked"`
}

// ElectionID accepts an election id sent as a JSON string or number.
type ElectionID string

func (e *ElectionID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = ElectionID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("electionId must be a string or a number")
	}
	*e = ElectionID(n.String())
	return nil
}

func (e ElectionID) String() string { return string(e) }

// VoteRequest is the body of POST /api/vote.
// Gender is required only when the configured contract records it.
type VoteRequest struct {
	ElectionID ElectionID `json:"electionId" swaggertype:"string" example:"2025-general"`
	UID        string     `json:"uid" example:"citizen-1234"`
	Candidate  string     `json:"candidate" example:"Alice"`
	Gender     string     `json:"gender,omitempty" example:"Female"`
}

// CandidateRequest is the body of POST /api/register and DELETE /api/remove.
// Demkhong is accepted as an alias of Constituency.
type CandidateRequest struct {
	ElectionID   ElectionID `json:"electionId" swaggertype:"string" example:"2025-general"`
	Candidate    string     `json:"candidate" example:"Alice"`
	Constituency string     `json:"constituency,omitempty" example:"Thimphu"`
	Demkhong     string     `json:"demkhong,omitempty"`
}

// ConstituencyOrAlias returns the constituency, falling back to the demkhong alias
func (c CandidateRequest) ConstituencyOrAlias() string {
	if c.Constituency != "" {
		return c.Constituency
	}
	return c.Demkhong
}

// EndElectionRequest is the body of POST /api/end
type EndElectionRequest struct {
	ElectionID ElectionID `json:"electionId" swaggertype:"string" example:"2025-general"`
}

// TransactionResponse is returned by every state-changing operation once the transaction is mined
type TransactionResponse struct {
	Message      string `json:"message" example:"Vote cast successfully"`
	TxHash       string `json:"txHash" example:"0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"`
	TxStatus     string `json:"txStatus" example:"success"`
	ExplorerLink string `json:"explorerLink,omitempty"`
}

// NewTransactionResponse builds the response for a settled transaction
func NewTransactionResponse(message string, s *election.Settlement) TransactionResponse {
	return TransactionResponse{
		Message:      message,
		TxHash:       s.TxHash,
		TxStatus:     s.Status,
		ExplorerLink: s.ExplorerLink,
	}
}

// CandidateVotes is one row of ResultsResponse. Votes are decimal strings since tallies are uint256.
// Demkhong repeats Constituency for clients that read the older key.
type CandidateVotes struct {
	Candidate    string `json:"candidate" example:"Alice"`
	Constituency string `json:"constituency,omitempty" example:"Thimphu"`
	Demkhong     string `json:"demkhong,omitempty" example:"Thimphu"`
	Votes        string `json:"votes" example:"42"`
}

// ResultsResponse is returned by GET /api/votesByElection and GET /api/public-result/{electionId}
type ResultsResponse struct {
	ElectionID  string           `json:"electionId" example:"2025-general"`
	Results     []CandidateVotes `json:"results"`
	TotalVotes  string           `json:"totalVotes" example:"42"`
	TotalMale   string           `json:"totalMale,omitempty" example:"20"`
	TotalFemale string           `json:"totalFemale,omitempty" example:"22"`
}

// NewResultsResponse converts contract tallies to the response shape
func NewResultsResponse(res *election.Results) ResultsResponse {
	resp := ResultsResponse{
		ElectionID:  res.ElectionID,
		Results:     make([]CandidateVotes, 0, len(res.Candidates)),
		TotalVotes:  decimal(res.TotalVotes),
		TotalMale:   optionalDecimal(res.TotalMale),
		TotalFemale: optionalDecimal(res.TotalFemale),
	}
	for _, c := range res.Candidates {
		resp.Results = append(resp.Results, CandidateVotes{
			Candidate:    c.Candidate,
			Constituency: c.Constituency,
			Demkhong:     c.Constituency,
			Votes:        decimal(c.Votes),
		})
	}
	return resp
}

// ElectionsResponse is returned by GET /api/elections
type ElectionsResponse struct {
	Elections []string `json:"elections"`
}

// VoteCountResponse is returned by GET /api/votes
type VoteCountResponse struct {
	ElectionID string `json:"electionId"`
	Candidate  string `json:"candidate"`
	Votes      string `json:"votes" example:"42"`
}

// VotedResponse is returned by GET /api/checkVoted
type VotedResponse struct {
	Voted bool `json:"voted"`
}

// ConstituencyVotes is one row of ConstituencyResultsResponse
type ConstituencyVotes struct {
	Constituency string `json:"constituency" example:"Thimphu"`
	Demkhong     string `json:"demkhong" example:"Thimphu"`
	TotalVotes   string `json:"totalVotes" example:"42"`
	MaleVotes    string `json:"maleVotes" example:"20"`
	FemaleVotes  string `json:"femaleVotes" example:"22"`
}

// ConstituencyResultsResponse is returned by GET /api/constituencyResults
type ConstituencyResultsResponse struct {
	ElectionID string              `json:"electionId"`
	Results    []ConstituencyVotes `json:"results"`
}

func NewConstituencyResultsResponse(electionID string, rows []election.ConstituencyResult) ConstituencyResultsResponse {
	resp := ConstituencyResultsResponse{
		ElectionID: electionID,
		Results:    make([]ConstituencyVotes, 0, len(rows)),
	}
	for _, row := range rows {
		resp.Results = append(resp.Results, ConstituencyVotes{
			Constituency: row.Constituency,
			Demkhong:     row.Constituency,
			TotalVotes:   decimal(row.TotalVotes),
			MaleVotes:    decimal(row.MaleVotes),
			FemaleVotes:  decimal(row.FemaleVotes),
		})
	}
	return resp
}

func decimal(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func optionalDecimal(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.String()
}
