package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ludoduel/ludo-server/internal/api/response"
	"github.com/ludoduel/ludo-server/internal/model"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "In-game chat commands",
	}

	cmd.AddCommand(newChatSendCmd())
	cmd.AddCommand(newChatListCmd())

	return cmd
}

func newChatSendCmd() *cobra.Command {
	var emoji bool

	cmd := &cobra.Command{
		Use:   "send <game-id> <text...>",
		Short: "Send a message to your opponent",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"text": strings.Join(args[1:], " ")}
			if emoji {
				req["type"] = string(model.MessageTypeEmoji)
			}

			var result model.ChatMessage
			if err := client.Post(cmd.Context(), gamePath(args[0], "/chat"), req, &result); err != nil {
				return err
			}

			output(cmd).Print(&result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&emoji, "emoji", false, "Send as an emoji reaction")

	return cmd
}

func newChatListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <game-id>",
		Short: "List a game's chat messages, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := gamePath(args[0], "/chat")
			if limit > 0 {
				path = fmt.Sprintf("%s?limit=%d", path, limit)
			}

			var result response.ChatListResponse
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of messages (default: server default)")

	return cmd
}
