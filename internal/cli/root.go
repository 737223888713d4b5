// Package cli implements followctl, a terminal client for the followpulse API.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/anonto42/followpulse/backend/pkg/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultServer = "http://localhost:8080"

type globalOptions struct {
	server  string
	token   string
	verbose bool
}

func (o *globalOptions) client() *client.Client {
	return client.New(o.server, o.token)
}

func (o *globalOptions) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "followctl",
		Short:         "Follow users and watch notifications arrive",
		Long:          "followctl queues follow/unfollow actions against a followpulse server and listens for the notifications they produce.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("FOLLOWPULSE_SERVER", defaultServer), "followpulse server URL (env FOLLOWPULSE_SERVER)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("FOLLOWPULSE_TOKEN"), "bearer token when the server requires auth (env FOLLOWPULSE_TOKEN)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log queue and connection activity")

	cmd.AddCommand(newFollowCmd(opts))
	cmd.AddCommand(newUnfollowCmd(opts))
	cmd.AddCommand(newListenCmd(opts))
	cmd.AddCommand(newInboxCmd(opts))
	cmd.AddCommand(newQueueCmd(opts))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}
