package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueueCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the server's notification dispatch backlog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := g.client().QueueStatus(cmd.Context())
			if err != nil {
				return err
			}
			state := dimStyle.Render("idle")
			if status.Processing {
				state = warnStyle.Render("draining")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d queued, %s\n", titleStyle.Render("dispatch queue:"), status.QueueLength, state)
			return nil
		},
	}
}
