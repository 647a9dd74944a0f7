package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send a question to the orchestrator and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		res, err := newAPIClient(serverURL, token, nil).ask(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Response)
		if res.ID != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "ask id: %s\n", res.ID)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the orchestrator status and its capabilities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, "/")
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [ask-id]",
	Short: "Show a stored ask with its final status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, "/asks/"+args[0])
	},
}

func printJSON(cmd *cobra.Command, path string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out, err := newAPIClient(serverURL, token, nil).get(ctx, path)
	if err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
	return nil
}

func init() {
	rootCmd.AddCommand(askCmd, statusCmd, historyCmd)
}
