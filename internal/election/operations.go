package election

import (
	"context"
	"fmt"
	"math/big"

	"github.com/information-sharing-networks/evote-gateway/internal/crypto"
)

// CastVote records a vote for candidate. voter must come from crypto.VoterHasher.
func (s *Service) CastVote(ctx context.Context, electionID string, voter crypto.VoterID, candidate, gender string) (*Settlement, error) {
	out, err := s.Invoke(ctx, OpCastVote, Args{
		ElectionID: electionID,
		Voter:      voter,
		Candidate:  candidate,
		Gender:     gender,
	})
	if err != nil {
		return nil, err
	}
	return out.Settlement, nil
}

func (s *Service) RegisterCandidate(ctx context.Context, electionID, candidate, constituency string) (*Settlement, error) {
	out, err := s.Invoke(ctx, OpRegisterCandidate, Args{
		ElectionID:   electionID,
		Candidate:    candidate,
		Constituency: constituency,
	})
	if err != nil {
		return nil, err
	}
	return out.Settlement, nil
}

func (s *Service) RemoveCandidate(ctx context.Context, electionID, candidate string) (*Settlement, error) {
	out, err := s.Invoke(ctx, OpRemoveCandidate, Args{ElectionID: electionID, Candidate: candidate})
	if err != nil {
		return nil, err
	}
	return out.Settlement, nil
}

func (s *Service) EndElection(ctx context.Context, electionID string) (*Settlement, error) {
	out, err := s.Invoke(ctx, OpEndElection, Args{ElectionID: electionID})
	if err != nil {
		return nil, err
	}
	return out.Settlement, nil
}

// Elections lists the ids of every election the contract knows about
func (s *Service) Elections(ctx context.Context) ([]string, error) {
	out, err := s.Invoke(ctx, OpGetAllElections, Args{})
	if err != nil {
		return nil, err
	}
	return valueAs[[]string](out)
}

// VoteCount returns the votes recorded for one candidate
func (s *Service) VoteCount(ctx context.Context, electionID, candidate string) (*big.Int, error) {
	out, err := s.Invoke(ctx, OpGetVoteCounts, Args{ElectionID: electionID, Candidate: candidate})
	if err != nil {
		return nil, err
	}
	return valueAs[*big.Int](out)
}

// Results returns the tally for every candidate in the election
func (s *Service) Results(ctx context.Context, electionID string) (*Results, error) {
	out, err := s.Invoke(ctx, OpGetAllVoteCounts, Args{ElectionID: electionID})
	if err != nil {
		return nil, err
	}
	return valueAs[*Results](out)
}

func (s *Service) HasVoted(ctx context.Context, electionID string, voter crypto.VoterID) (bool, error) {
	out, err := s.Invoke(ctx, OpHasVoted, Args{ElectionID: electionID, Voter: voter})
	if err != nil {
		return false, err
	}
	return valueAs[bool](out)
}

func (s *Service) IsEnded(ctx context.Context, electionID string) (bool, error) {
	out, err := s.Invoke(ctx, OpIsElectionEnded, Args{ElectionID: electionID})
	if err != nil {
		return false, err
	}
	return valueAs[bool](out)
}

// PublicResults returns the tally once the election has ended, and ErrElectionNotEnded before that.
func (s *Service) PublicResults(ctx context.Context, electionID string) (*Results, error) {
	ended, err := s.IsEnded(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if !ended {
		return nil, &OpError{Op: opGetPublicVoteCounts, ElectionID: electionID, Err: ErrElectionNotEnded}
	}

	out, err := s.Invoke(ctx, opGetPublicVoteCounts, Args{ElectionID: electionID})
	if err != nil {
		return nil, err
	}
	return valueAs[*Results](out)
}

// ConstituencyResults returns per-constituency totals (demographic contracts only)
func (s *Service) ConstituencyResults(ctx context.Context, electionID string) ([]ConstituencyResult, error) {
	out, err := s.Invoke(ctx, OpGetConstituencyResults, Args{ElectionID: electionID})
	if err != nil {
		return nil, err
	}
	return valueAs[[]ConstituencyResult](out)
}

func valueAs[T any](out Outcome) (T, error) {
	v, ok := out.Value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected result type %T", out.Value)
	}
	return v, nil
}
