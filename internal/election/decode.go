package election

import (
	"fmt"
	"math/big"
)

func decodeStrings(out []any) (any, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("got %d values, want 1", len(out))
	}
	list, ok := out[0].([]string)
	if !ok {
		return nil, fmt.Errorf("got %T, want []string", out[0])
	}
	return list, nil
}

func decodeUint(out []any) (any, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("got %d values, want 1", len(out))
	}
	return asBig(out[0])
}

func decodeBool(out []any) (any, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("got %d values, want 1", len(out))
	}
	b, ok := out[0].(bool)
	if !ok {
		return nil, fmt.Errorf("got %T, want bool", out[0])
	}
	return b, nil
}

// decodeResults handles the three result shapes, selected by output arity:
//
//	2: (candidates, votes)                                      getAllVoteCounts
//	3: (candidates, votes, total)                               basic contract
//	6: (candidates, constituencies, votes, total, male, female) demographic contract
func decodeResults(out []any) (any, error) {
	var (
		candidates     []string
		constituencies []string
		votes          []*big.Int
		err            error
		r              = &Results{}
	)

	switch len(out) {
	case 2, 3:
		if candidates, err = asStrings(out[0]); err != nil {
			return nil, err
		}
		if votes, err = asBigs(out[1]); err != nil {
			return nil, err
		}
		if len(out) == 3 {
			if r.TotalVotes, err = asBig(out[2]); err != nil {
				return nil, err
			}
		}
	case 6:
		if candidates, err = asStrings(out[0]); err != nil {
			return nil, err
		}
		if constituencies, err = asStrings(out[1]); err != nil {
			return nil, err
		}
		if votes, err = asBigs(out[2]); err != nil {
			return nil, err
		}
		if r.TotalVotes, err = asBig(out[3]); err != nil {
			return nil, err
		}
		if r.TotalMale, err = asBig(out[4]); err != nil {
			return nil, err
		}
		if r.TotalFemale, err = asBig(out[5]); err != nil {
			return nil, err
		}
		if len(constituencies) != len(candidates) {
			return nil, fmt.Errorf("%d constituencies for %d candidates", len(constituencies), len(candidates))
		}
	default:
		return nil, fmt.Errorf("got %d values, want 2, 3 or 6", len(out))
	}

	if len(votes) != len(candidates) {
		return nil, fmt.Errorf("%d vote counts for %d candidates", len(votes), len(candidates))
	}

	sum := new(big.Int)
	r.Candidates = make([]CandidateResult, len(candidates))
	for i, c := range candidates {
		r.Candidates[i] = CandidateResult{Candidate: c, Votes: votes[i]}
		if constituencies != nil {
			r.Candidates[i].Constituency = constituencies[i]
		}
		sum.Add(sum, votes[i])
	}
	if r.TotalVotes == nil {
		r.TotalVotes = sum
	}
	return r, nil
}

// decodeConstituencyResults handles (constituencies, totals, male, female)
func decodeConstituencyResults(out []any) (any, error) {
	if len(out) != 4 {
		return nil, fmt.Errorf("got %d values, want 4", len(out))
	}
	names, err := asStrings(out[0])
	if err != nil {
		return nil, err
	}
	columns := make([][]*big.Int, 3)
	for i := range columns {
		if columns[i], err = asBigs(out[i+1]); err != nil {
			return nil, err
		}
		if len(columns[i]) != len(names) {
			return nil, fmt.Errorf("%d counts for %d constituencies", len(columns[i]), len(names))
		}
	}

	results := make([]ConstituencyResult, len(names))
	for i, name := range names {
		results[i] = ConstituencyResult{
			Constituency: name,
			TotalVotes:   columns[0][i],
			MaleVotes:    columns[1][i],
			FemaleVotes:  columns[2][i],
		}
	}
	return results, nil
}

func asStrings(v any) ([]string, error) {
	s, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("got %T, want []string", v)
	}
	return s, nil
}

func asBigs(v any) ([]*big.Int, error) {
	n, ok := v.([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("got %T, want []*big.Int", v)
	}
	return n, nil
}

func asBig(v any) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("got %T, want *big.Int", v)
	}
	return n, nil
}
