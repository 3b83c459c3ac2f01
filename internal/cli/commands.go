package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/evote-gateway/internal/gateway"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Request credentials",
	Long:  `Exchange APP_ID and APP_SECRET for an access token and a refresh token and print them`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := api.Token(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

var voteGender string

var voteCmd = &cobra.Command{
	Use:   "vote <election-id> <uid> <candidate>",
	Short: "Cast a vote",
	Long: `Cast a vote and wait for the transaction to be mined.

--gender is required when the gateway is configured with the demographic contract.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		appLogger.Info("casting vote",
			slog.String("election_id", args[0]),
			slog.String("candidate", args[2]),
		)
		resp, err := api.Vote(cmd.Context(), gateway.VoteRequest{
			ElectionID: gateway.ElectionID(args[0]),
			UID:        args[1],
			Candidate:  args[2],
			Gender:     voteGender,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results <election-id>",
	Short: "Show the current tally of an election",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := api.Results(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

var publicResultsCmd = &cobra.Command{
	Use:   "public-results <election-id>",
	Short: "Show the published results of an ended election",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := api.PublicResults(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

var electionsCmd = &cobra.Command{
	Use:   "elections",
	Short: "List elections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		elections, err := api.Elections(cmd.Context())
		if err != nil {
			return err
		}
		for _, e := range elections {
			fmt.Fprintln(cmd.OutOrStdout(), e)
		}
		return nil
	},
}

var checkVotedCmd = &cobra.Command{
	Use:   "check-voted <election-id> <uid>",
	Short: "Check whether a voter has voted",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		voted, err := api.CheckVoted(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd, gateway.VotedResponse{Voted: voted})
	},
}

var endCmd = &cobra.Command{
	Use:   "end <election-id>",
	Short: "End an election",
	Long:  `End an election. Its results become available to public-results once the transaction is mined.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appLogger.Info("ending election", slog.String("election_id", args[0]))
		resp, err := api.EndElection(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

func init() {
	voteCmd.Flags().StringVarP(&voteGender, "gender", "g", "", "voter gender (Male or Female)")
}
