package cli

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/anonto42/followpulse/backend/pkg/actionqueue"
	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/spf13/cobra"
)

type relationshipOptions struct {
	actor         uint
	debounce      time.Duration
	drainInterval time.Duration
	retryDelay    time.Duration
	timeout       time.Duration
}

func newFollowCmd(g *globalOptions) *cobra.Command {
	return newRelationshipCmd(g, protocol.KindFollow, "follow <userId>...", "Follow one or more users")
}

func newUnfollowCmd(g *globalOptions) *cobra.Command {
	return newRelationshipCmd(g, protocol.KindUnfollow, "unfollow <userId>...", "Unfollow one or more users")
}

func newRelationshipCmd(g *globalOptions, kind protocol.Kind, use, short string) *cobra.Command {
	opts := relationshipOptions{}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  "Queues the action through the client dispatch queue: repeated targets collapse into one call, and failed calls are retried before giving up.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.actor == 0 {
				return fmt.Errorf("--actor is required")
			}
			targets := make([]uint, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseUint(arg, 10, 32)
				if err != nil || id == 0 {
					return fmt.Errorf("invalid user id %q", arg)
				}
				targets = append(targets, uint(id))
			}
			return runRelationship(cmd, g, opts, kind, targets)
		},
	}
	cmd.Flags().UintVar(&opts.actor, "actor", 0, "acting user id")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", actionqueue.DefaultDebounce, "quiet window before an intent is queued")
	cmd.Flags().DurationVar(&opts.drainInterval, "drain-interval", actionqueue.DefaultDrainInterval, "how often the queue starts the next action")
	cmd.Flags().DurationVar(&opts.retryDelay, "retry-delay", actionqueue.DefaultRetryDelay, "delay before failed actions are retried")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "give up waiting after this long")
	return cmd
}

func runRelationship(cmd *cobra.Command, g *globalOptions, opts relationshipOptions, kind protocol.Kind, targets []uint) error {
	out := &lockedWriter{w: cmd.OutOrStdout()}

	var mu sync.Mutex
	var failed int
	q := actionqueue.New(g.client(), actionqueue.Options{
		Debounce:      opts.debounce,
		DrainInterval: opts.drainInterval,
		RetryDelay:    opts.retryDelay,
		Logger:        g.logger(),
		Listener: func(a actionqueue.Action) {
			if a.Status == actionqueue.StatusProcessing {
				return
			}
			if a.Terminal() {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			out.println(renderAction(a))
		},
	})
	defer q.Close()

	for _, target := range targets {
		q.Request(kind, opts.actor, target)
	}

	deadline := time.NewTimer(opts.timeout)
	defer deadline.Stop()
	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()

	for q.Pending() {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-deadline.C:
			return fmt.Errorf("timed out after %s with actions still queued", opts.timeout)
		case <-poll.C:
		}
	}

	// Close flushes the listener, so every outcome is printed and counted.
	q.Close()
	mu.Lock()
	defer mu.Unlock()
	if failed > 0 {
		return fmt.Errorf("%d action(s) failed", failed)
	}
	return nil
}
