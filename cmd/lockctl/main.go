// lockctl is the operator CLI for the lock bridge. It talks to the bridge's
// REST API with a bearer token.
//
//	lockctl list
//	lockctl status 12345
//	lockctl unlock 12345
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8090"

// options are the persistent flags shared by every subcommand.
type options struct {
	server   string
	token    string
	language string
	timeout  time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "lockctl",
		Short: "Operate smart locks through the lock bridge API",
		Long: `lockctl lists locks, shows their state and issues lock, unlock, open
and sync commands through the lock bridge REST API.

The API token is read from --token or GRAYLOCK_API_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("GRAYLOCK_API_URL", defaultServer), "Bridge API base URL (GRAYLOCK_API_URL)")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("GRAYLOCK_API_TOKEN"), "Bearer token (GRAYLOCK_API_TOKEN)")
	root.PersistentFlags().StringVar(&opts.language, "lang", os.Getenv("GRAYLOCK_LANG"), "Language for error and reason messages")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "Request timeout")

	root.AddCommand(
		newListCmd(opts),
		newStatusCmd(opts),
		newCommandCmd(opts, "lock", "Lock the bolt"),
		newCommandCmd(opts, "unlock", "Unlock the bolt"),
		newCommandCmd(opts, "open", "Pull the spring to open the door"),
		newCommandCmd(opts, "sync", "Refresh state from the lock service"),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
