package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ludoduel/ludo-server/internal/api/response"
	"github.com/ludoduel/ludo-server/internal/model"
)

// Default client-side wait for an opponent
const defaultMatchTimeout = 60 * time.Second

func newMatchCmd() *cobra.Command {
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "match <entry-fee>",
		Short: "Join a waiting game or open a new one",
		Long: `Join the oldest waiting game with the same entry fee, or open a new
game if there is none. The entry fee is debited from your balance.

With --wait, stay connected to the new game's change feed until an
opponent joins or the timeout passes. Timing out does not cancel the
game; use "ludo game cancel" to get the fee back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fee, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry fee: %w", err)
			}

			var result response.MatchResponse
			if err := client.Post(cmd.Context(), "/api/v1/matchmaking", map[string]int64{"entry_fee": fee}, &result); err != nil {
				return err
			}

			output(cmd).Print(result)

			if !wait || result.Game == nil || result.Game.Status != model.GameStatusWaiting {
				return nil
			}
			return waitForOpponent(cmd, result.Game, timeout)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for an opponent to join")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMatchTimeout, "How long --wait waits for an opponent")

	return cmd
}

// waitForOpponent follows a waiting game until it starts, is cancelled, or
// the timeout passes
func waitForOpponent(cmd *cobra.Command, game *model.Game, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	// Only the creator sits in a waiting game
	self := game.Player1ID
	sync := NewGameSync(self, game)
	out := output(cmd)
	out.PrintMessage("Waiting for an opponent...")

	settled := false
	handle := func(notices []Notice) error {
		for _, n := range notices {
			switch n.Kind {
			case NoticeGameStarted, NoticeGameCancelled, NoticeGameFinished:
				out.PrintNotice(n, self)
				settled = true
				return errStopStream
			}
		}
		return nil
	}

	resync := func() error {
		// The opponent may have joined before the stream connected
		var snap response.GameResponse
		if err := client.Get(ctx, fmt.Sprintf("/api/v1/games/%s", game.ID), &snap); err != nil {
			return err
		}
		return handle(sync.Apply(model.GameUpdated(sync.Game(), snap.Game)))
	}

	err := watchChanges(ctx, game.ID, resync, func(event model.ChangeEvent) error {
		return handle(sync.Apply(event))
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if !settled && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.PrintMessage(fmt.Sprintf("No opponent found. Cancel with: ludo game cancel %s", game.ID))
	}
	return nil
}
