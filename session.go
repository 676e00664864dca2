package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/face-liveness/internal/brokerclient"
)

func newSessionCommand() *cobra.Command {
	var (
		brokerURL string
		token     string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Call a running broker",
	}
	cmd.PersistentFlags().StringVar(&brokerURL, "broker-url", envOr("BROKER_URL", "http://localhost:3000"), "base URL of the broker")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("BROKER_TOKEN"), "bearer token for the broker API")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	client := func() *brokerclient.Client {
		c := brokerclient.New(brokerURL, token)
		c.HTTPClient.Timeout = timeout
		return c
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create a liveness session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := client().CreateSession(commandContext(cmd))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"sessionId": id})
			},
		},
		&cobra.Command{
			Use:   "results <sessionId>",
			Short: "Fetch raw session results",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				results, err := client().GetSessionResults(commandContext(cmd), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), results)
			},
		},
		&cobra.Command{
			Use:   "validate <sessionId>",
			Short: "Get the pass/fail verdict for a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				verdict, err := client().ValidateLiveness(commandContext(cmd), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), verdict)
			},
		},
	)
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
