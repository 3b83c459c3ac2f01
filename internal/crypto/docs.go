// Package crypto holds the gateway's small amount of key material handling.
//
// hash.go and voter.go derive the hashed voter identifiers sent to the contract.
// keys.go generates the HMAC secrets and the transaction signing key used by cmd/keygen.
package crypto
