// this file contains functions to generate the gateway's secrets and its transaction signing key
//
// HMAC secrets and the voter secret phrase are random bytes, base64url encoded.
// The transaction key is a secp256k1 key; PRIVATE_KEY holds it as hex without the 0x prefix.
// Generated settings are written as KEY=value lines so they can be sourced or used as a docker env file.

package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// MinSecretBytes is the smallest secret GenerateSecret will produce (the HS256 key size)
const MinSecretBytes = 32

// GenerateSecret returns n random bytes, base64url encoded without padding
func GenerateSecret(n int) (string, error) {
	if n < MinSecretBytes {
		return "", fmt.Errorf("secret must be at least %d bytes, got %d", MinSecretBytes, n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateWalletKey generates a new secp256k1 transaction signing key
func GenerateWalletKey() (*ecdsa.PrivateKey, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// WalletKeyHex encodes key in the PRIVATE_KEY format
func WalletKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(ethcrypto.FromECDSA(key))
}

// WalletAddress returns the account address transactions signed with key are sent from
func WalletAddress(key *ecdsa.PrivateKey) common.Address {
	return ethcrypto.PubkeyToAddress(key.PublicKey)
}

// ParseWalletKey parses a PRIVATE_KEY value (the 0x prefix is optional)
func ParseWalletKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// EnvVar is one KEY=value line
type EnvVar struct {
	Name  string
	Value string
}

// FormatEnv renders vars as KEY=value lines
func FormatEnv(vars []EnvVar) string {
	var sb strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&sb, "%s=%s\n", v.Name, v.Value)
	}
	return sb.String()
}

// SaveEnvFile writes vars to filename inside baseDir with owner-only permissions.
// Existing files are not overwritten.
//
// Parameters:
//   - baseDir: The base directory to scope file access (e.g., "./secrets")
//   - filename: The filename within the base directory (e.g., "gateway.env")
func SaveEnvFile(vars []EnvVar, baseDir, filename string) error {
	root, err := os.OpenRoot(baseDir)
	if err != nil {
		return fmt.Errorf("failed to open root directory %s: %w", baseDir, err)
	}
	defer root.Close()

	f, err := root.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	if _, err := f.WriteString(FormatEnv(vars)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return f.Close()
}
