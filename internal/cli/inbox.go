package cli

import (
	"fmt"

	"github.com/anonto42/followpulse/backend/pkg/client"
	"github.com/spf13/cobra"
)

func newInboxCmd(g *globalOptions) *cobra.Command {
	var (
		userID  uint
		limit   int
		markAll bool
		markID  uint
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Show a user's notifications and unread count",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			ctx := cmd.Context()
			c := g.client()
			out := cmd.OutOrStdout()

			if markID != 0 {
				if _, err := c.MarkRead(ctx, markID); err != nil {
					return err
				}
			}
			if markAll {
				updated, err := c.MarkAllRead(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("marked %d notification(s) read", updated)))
			}

			page, err := c.ListNotifications(ctx, userID, limit)
			if err != nil {
				return err
			}
			inbox := client.NewInbox()
			inbox.Sync(*page)

			fmt.Fprintf(out, "%s %s\n", titleStyle.Render(fmt.Sprintf("Notifications for user %d", userID)), renderBadge(inbox.Unread()))
			fmt.Fprintln(out, separator)
			items := inbox.Items()
			if len(items) == 0 {
				fmt.Fprintln(out, dimStyle.Render("nothing yet"))
				return nil
			}
			for _, n := range items {
				fmt.Fprintln(out, renderNotification(n))
			}
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "recipient user id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum notifications to show (server caps at 50)")
	cmd.Flags().BoolVar(&markAll, "mark-all", false, "mark every notification read first")
	cmd.Flags().UintVar(&markID, "read", 0, "mark one notification read first")
	return cmd
}
