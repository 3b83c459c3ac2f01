// keygen is a CLI tool for generating the gateway's secrets and its transaction signing key.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	evcrypto "github.com/information-sharing-networks/evote-gateway/internal/crypto"
	"github.com/information-sharing-networks/evote-gateway/internal/version"
)

var (
	outputDir   string
	outputFile  string
	secretBytes int
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "keygen",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Short:             "Secret and key generator for evote-gateway",
		Long:              "Generate token signing secrets, the voter secret phrase and the Ethereum transaction key used by evote-gateway",
	}

	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate secrets or a transaction key",
	}

	secretsCmd := &cobra.Command{
		Use:   "secrets",
		Short: "Generate APP_SECRET, JWT_ACCESS_SECRET, JWT_REFRESH_SECRET and SECRET_PHRASE",
		Long: `Generate random values for the gateway's secret settings.

The values are printed as KEY=value lines, or written to --outputdir/--file with 0600 permissions.
Changing SECRET_PHRASE after an election has started changes every voter id, so generate it once per deployment.`,
		Args: cobra.NoArgs,
		RunE: runGenerateSecrets,
	}
	secretsCmd.Flags().IntVarP(&secretBytes, "bytes", "b", 32, "random bytes per secret (minimum 32)")

	walletCmd := &cobra.Command{
		Use:   "wallet",
		Short: "Generate a PRIVATE_KEY for signing contract transactions",
		Long: `Generate a secp256k1 key for signing contract transactions and print its address.

The address must be funded on the target chain, and must be the contract owner for the
register, remove and end operations.`,
		Args: cobra.NoArgs,
		RunE: runGenerateWallet,
	}

	for _, cmd := range []*cobra.Command{secretsCmd, walletCmd} {
		cmd.Flags().StringVarP(&outputDir, "outputdir", "o", "", "write the values to a file in this directory instead of stdout")
		cmd.Flags().StringVarP(&outputFile, "file", "f", "gateway.env", "file name used with --outputdir")
		generateCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(generateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGenerateSecrets(cmd *cobra.Command, args []string) error {
	names := []string{"APP_SECRET", "JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET", "SECRET_PHRASE"}

	vars := make([]evcrypto.EnvVar, 0, len(names))
	for _, name := range names {
		secret, err := evcrypto.GenerateSecret(secretBytes)
		if err != nil {
			return err
		}
		vars = append(vars, evcrypto.EnvVar{Name: name, Value: secret})
	}
	return output(cmd, vars)
}

func runGenerateWallet(cmd *cobra.Command, args []string) error {
	key, err := evcrypto.GenerateWalletKey()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Transaction sender address: %s\n", evcrypto.WalletAddress(key).Hex())
	return output(cmd, []evcrypto.EnvVar{{Name: "PRIVATE_KEY", Value: evcrypto.WalletKeyHex(key)}})
}

func output(cmd *cobra.Command, vars []evcrypto.EnvVar) error {
	if outputDir == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), evcrypto.FormatEnv(vars))
		return err
	}

	// make the directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0700); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := evcrypto.SaveEnvFile(vars, outputDir, outputFile); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ wrote %d settings to %s/%s\n", len(vars), outputDir, outputFile)
	return nil
}
