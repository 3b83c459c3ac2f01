// Package cli implements the evote-client commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/evote-gateway/internal/client"
	"github.com/information-sharing-networks/evote-gateway/internal/config"
	"github.com/information-sharing-networks/evote-gateway/internal/logger"
	"github.com/information-sharing-networks/evote-gateway/internal/version"
)

var (
	cfg       *config.ClientEnvironment
	appLogger *slog.Logger
	api       *client.Client
)

var rootCmd = &cobra.Command{
	Use:               "evote-client",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "E-voting gateway CLI",
	Long: `evote-client calls a running evote-gateway.

The gateway address and client credentials are read from GATEWAY_URL, APP_ID and APP_SECRET.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewClientConfig()
		if err != nil {
			log.Printf("failed to load configuration: %v", err.Error())
			return err
		}

		appLogger = logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
		api = client.New(cfg.GatewayURL, cfg.AppID, cfg.AppSecret, cfg.ClientTimeout)

		appLogger.Debug("using gateway", slog.String("url", cfg.GatewayURL))
		return nil
	},
}

func Execute() {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// printJSON writes v to the command output, indented
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(publicResultsCmd)
	rootCmd.AddCommand(electionsCmd)
	rootCmd.AddCommand(checkVotedCmd)
	rootCmd.AddCommand(endCmd)
}
