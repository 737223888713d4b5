package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/followpulse/backend/pkg/client"
	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/spf13/cobra"
)

func newListenCmd(g *globalOptions) *cobra.Command {
	var (
		userID   uint
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stream notifications for a user as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			out := &lockedWriter{w: cmd.OutOrStdout()}
			inbox := client.NewInbox()
			if err := inbox.Refresh(ctx, g.client(), userID); err != nil {
				return fmt.Errorf("loading inbox: %w", err)
			}
			out.println(renderBadge(inbox.Unread()))

			sub, err := client.NewSubscriber(g.server, userID, client.SubscriberOptions{
				Logger: g.logger(),
				Token:  g.token,
				OnRejected: func(reason string) {
					out.println(failStyle.Render(reason))
				},
				OnSubscribed: func() {
					out.println(dimStyle.Render(fmt.Sprintf("listening for user %d", userID)))
				},
				OnNotification: func(n protocol.Notification) {
					if !inbox.Apply(n) {
						return
					}
					out.println(renderNotification(n) + "  " + renderBadge(inbox.Unread()))
				},
			})
			if err != nil {
				return err
			}
			return sub.Run(ctx)
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "recipient user id")
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (default: until interrupted)")
	return cmd
}
