package contract

import (
	"bytes"
	"embed"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.json
var abiFS embed.FS

// Built-in ABI names accepted by LoadABI
const (
	// ABIDemographic is the contract variant recording voter gender and candidate constituency
	ABIDemographic = "demographic"

	// ABIBasic is the original contract variant without demographic data
	ABIBasic = "basic"
)

// LoadABI returns one of the built-in ABIs by name, or reads an ABI JSON file from disk.
func LoadABI(nameOrPath string) (*abi.ABI, error) {
	var data []byte
	var err error

	switch nameOrPath {
	case ABIDemographic, ABIBasic:
		data, err = abiFS.ReadFile("abi/" + nameOrPath + ".json")
	default:
		data, err = os.ReadFile(nameOrPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contract ABI %q: %w", nameOrPath, err)
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI %q: %w", nameOrPath, err)
	}
	return &parsed, nil
}

// MustLoadABI is LoadABI for the built-in ABIs, which are known to parse.
func MustLoadABI(name string) *abi.ABI {
	parsed, err := LoadABI(name)
	if err != nil {
		panic(err)
	}
	return parsed
}
