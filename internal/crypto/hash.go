// this file provides the SHA-256 hashing used to derive voter identifiers.
//
// The contract stores hashed voter identifiers rather than raw voter uids:
//   1. the hash is deterministic, so the contract's double-vote check still works
//   2. the hash is keyed by the gateway's secret phrase, so a uid cannot be confirmed by hashing it offline

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash calculates a SHA-256 hash of the concatenated parts and returns it as lowercase hex.
func Hash(parts ...[]byte) (string, error) {
	hasher := sha256.New()

	total := 0
	for _, p := range parts {
		total += len(p)
		if _, err := hasher.Write(p); err != nil {
			return "", fmt.Errorf("failed to hash data: %w", err)
		}
	}
	if total == 0 {
		return "", fmt.Errorf("data is empty")
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
