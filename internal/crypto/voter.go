package crypto

import (
	"fmt"
	"log/slog"
)

// VoterID is the hashed form of a voter uid. It is the only voter identifier passed to the contract.
type VoterID string

func (v VoterID) String() string { return string(v) }

// VoterHasher derives VoterIDs from raw uids using the gateway's secret phrase.
type VoterHasher struct {
	secret []byte
}

// NewVoterHasher returns a hasher keyed by secretPhrase.
func NewVoterHasher(secretPhrase string) (*VoterHasher, error) {
	if secretPhrase == "" {
		return nil, fmt.Errorf("secret phrase is required")
	}
	return &VoterHasher{secret: []byte(secretPhrase)}, nil
}

// HashVoter returns hex(sha256(secret_phrase || uid)).
func (h *VoterHasher) HashVoter(uid string) (VoterID, error) {
	if uid == "" {
		return "", fmt.Errorf("voter uid is empty")
	}
	hash, err := Hash(h.secret, []byte(uid))
	if err != nil {
		return "", err
	}
	return VoterID(hash), nil
}

// LogValue keeps the secret phrase out of logs
func (h *VoterHasher) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}
