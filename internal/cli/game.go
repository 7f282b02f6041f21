package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ludoduel/ludo-server/internal/api/response"
	"github.com/ludoduel/ludo-server/internal/model"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game commands",
	}

	cmd.AddCommand(newGameGetCmd())
	cmd.AddCommand(newGameWaitCmd())
	cmd.AddCommand(newGameRollCmd())
	cmd.AddCommand(newGameMoveCmd())
	cmd.AddCommand(newGameCancelCmd())
	cmd.AddCommand(newGameForfeitCmd())
	cmd.AddCommand(newGameWatchCmd())

	return cmd
}

func newGameGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <game-id>",
		Short: "Get current game state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.GameResponse

			if err := client.Get(cmd.Context(), gamePath(args[0], ""), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameWaitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wait <game-id>",
		Short: "Show how long a game has been waiting for an opponent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.WaitResponse

			if err := client.Get(cmd.Context(), gamePath(args[0], "/wait"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameRollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roll <game-id>",
		Short: "Roll the dice (your turn only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.RollResponse

			if err := client.Post(cmd.Context(), gamePath(args[0], "/roll"), nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <game-id> <token>",
		Short: "Move one of your tokens (0-3) by the rolled value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid token: %w", err)
			}

			req := map[string]int{"token": token}
			var result response.MoveResponse

			if err := client.Post(cmd.Context(), gamePath(args[0], "/move"), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <game-id>",
		Short: "Cancel your waiting game and get the entry fee back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.GameResponse

			if err := client.Post(cmd.Context(), gamePath(args[0], "/cancel"), nil, &result); err != nil {
				return err
			}

			out := output(cmd)
			if cfg.Output == "json" {
				out.Print(result)
			} else {
				out.PrintMessage("Game cancelled, entry fee refunded")
			}
			return nil
		},
	}
}

func newGameForfeitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forfeit <game-id>",
		Short: "Give up a game in progress; the opponent takes the prize",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.GameResponse

			if err := client.Post(cmd.Context(), gamePath(args[0], "/forfeit"), nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <game-id>",
		Short: "Follow a game live",
		Long: `Connect to the game's change feed and print turn changes, moves, chat
messages and the final result as they happen.

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchGame(cmd, model.GameID(args[0]))
		},
	}
}

// watchGame prints a game's live changes until it ends or ctx is cancelled
func watchGame(cmd *cobra.Command, gameID model.GameID) error {
	ctx := cmd.Context()
	out := output(cmd)

	self, err := selfID(ctx)
	if err != nil {
		return err
	}

	var sync *GameSync
	chatSeen := 0

	refetchChat := func() error {
		messages, err := fetchChat(ctx, gameID)
		if err != nil {
			return err
		}
		for _, m := range messages[min(chatSeen, len(messages)):] {
			out.Print(m)
		}
		chatSeen = len(messages)
		return nil
	}

	handle := func(notices []Notice) error {
		for _, n := range notices {
			if n.Kind == NoticeChatUpdated {
				if err := refetchChat(); err != nil {
					return err
				}
				continue
			}
			out.PrintNotice(n, self)
			if n.Kind == NoticeGameFinished || n.Kind == NoticeGameCancelled {
				return errStopStream
			}
		}
		return nil
	}

	// Snapshot once the subscription is live so no change falls in between
	resync := func() error {
		var snap response.GameResponse
		if err := client.Get(ctx, gamePath(string(gameID), ""), &snap); err != nil {
			return err
		}
		out.Print(snap)
		out.PrintMessage(fmt.Sprintf("Watching game %s", gameID))
		sync = NewGameSync(self, snap.Game)

		if err := refetchChat(); err != nil {
			return err
		}
		if snap.Game.Status.IsTerminal() {
			return errStopStream
		}
		return nil
	}

	err = watchChanges(ctx, gameID, resync, func(event model.ChangeEvent) error {
		return handle(sync.Apply(event))
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		out.PrintMessage("Disconnected")
	}
	return nil
}

func fetchChat(ctx context.Context, gameID model.GameID) ([]*model.ChatMessage, error) {
	var result response.ChatListResponse
	if err := client.Get(ctx, gamePath(string(gameID), "/chat"), &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

func gamePath(gameID, suffix string) string {
	return fmt.Sprintf("/api/v1/games/%s%s", gameID, suffix)
}
