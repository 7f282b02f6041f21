package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ludoduel/ludo-server/internal/api/response"
	"github.com/ludoduel/ludo-server/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

// PrintNotice outputs a sync notice from the change feed
func (o *Output) PrintNotice(n Notice, self model.PlayerID) {
	if o.format == "json" {
		o.printJSON(map[string]any{
			"notice":    n.Kind,
			"your_turn": n.YourTurn,
			"winner_id": n.Winner,
			"game":      n.Game,
		})
		return
	}

	switch n.Kind {
	case NoticeGameStarted:
		fmt.Fprintln(o.w, "Opponent joined, the game has started")
		o.printTurn(n)
	case NoticeTurnChanged:
		o.printTurn(n)
	case NoticeBoardChanged:
		o.printLastMove(n.Game)
	case NoticeGameFinished:
		o.printLastMove(n.Game)
		if n.Winner == self {
			fmt.Fprintln(o.w, "You won!")
		} else {
			fmt.Fprintf(o.w, "Game over, winner: %s\n", n.Winner)
		}
	case NoticeGameCancelled:
		fmt.Fprintln(o.w, "Game cancelled, entry fee refunded")
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.AuthResponse:
		o.printAuth(v)
	case response.MeResponse:
		o.printPlayer(v.Player)
		fmt.Fprintf(o.w, "Balance: %d\n", v.Balance)
	case response.LedgerResponse:
		o.printLedger(v)
	case response.MatchResponse:
		fmt.Fprintf(o.w, "Matchmaking: %s\n", v.Outcome)
		o.printGame(v.Game)
	case response.GameResponse:
		o.printGame(v.Game)
	case response.WaitResponse:
		o.printGame(v.Game)
		fmt.Fprintf(o.w, "Waiting for: %s\n", (time.Duration(v.WaitingForMs) * time.Millisecond).Round(time.Second))
		if v.TimedOut {
			fmt.Fprintln(o.w, "No opponent found")
		}
	case response.RollResponse:
		o.printRoll(v)
	case response.MoveResponse:
		o.printMove(v)
	case response.ChatListResponse:
		for _, m := range v.Messages {
			o.printChatMessage(m)
		}
	case *model.ChatMessage:
		o.printChatMessage(v)
	case response.HealthResponse:
		fmt.Fprintf(o.w, "Server status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printPlayer(p response.Player) {
	guestStr := ""
	if p.IsGuest {
		guestStr = " (guest)"
	}
	fmt.Fprintf(o.w, "Player: %s%s\n", p.DisplayName, guestStr)
	fmt.Fprintf(o.w, "ID: %s\n", p.ID)
}

func (o *Output) printAuth(a response.AuthResponse) {
	o.printPlayer(a.Player)
	fmt.Fprintf(o.w, "Balance: %d\n", a.Balance)
	fmt.Fprintln(o.w, "Session token saved")
}

func (o *Output) printLedger(l response.LedgerResponse) {
	fmt.Fprintf(o.w, "Balance: %d\n", l.Balance)
	for _, e := range l.Entries {
		game := ""
		if e.GameID != "" {
			game = " game " + string(e.GameID)
		}
		fmt.Fprintf(o.w, "  %s  %-9s %+6d  %d -> %d%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Amount, e.BalanceBefore, e.BalanceAfter, game)
	}
}

func (o *Output) printGame(g *model.Game) {
	if g == nil {
		return
	}
	fmt.Fprintf(o.w, "Game: %s\n", g.ID)
	fmt.Fprintf(o.w, "Status: %s\n", g.Status)
	fmt.Fprintf(o.w, "Entry fee: %d  Prize pool: %d\n", g.EntryFee, g.PrizePool)

	opponent := string(g.Player2ID)
	if opponent == "" {
		opponent = "(waiting)"
	}
	fmt.Fprintf(o.w, "Player 1 (%s): %s  tokens %s\n", g.State.Player1Color, g.Player1ID, formatTokens(g.State.Player1Tokens))
	fmt.Fprintf(o.w, "Player 2 (%s): %s  tokens %s\n", g.State.Player2Color, opponent, formatTokens(g.State.Player2Tokens))

	switch g.Status {
	case model.GameStatusPlaying:
		fmt.Fprintf(o.w, "Turn: %s (%s)\n", g.CurrentTurn, g.State.Phase)
		if g.State.Phase == model.PhaseAwaitingMove {
			fmt.Fprintf(o.w, "Dice: %d\n", g.State.LastDiceRoll)
		}
	case model.GameStatusFinished:
		fmt.Fprintf(o.w, "Winner: %s\n", g.WinnerID)
	}
}

func (o *Output) printTurn(n Notice) {
	if n.YourTurn {
		fmt.Fprintln(o.w, "Your turn, roll the dice")
	} else if n.Game != nil {
		fmt.Fprintf(o.w, "Waiting for %s\n", n.Game.CurrentTurn)
	}
}

func (o *Output) printLastMove(g *model.Game) {
	if g == nil || len(g.State.MoveHistory) == 0 {
		return
	}
	m := g.State.MoveHistory[len(g.State.MoveHistory)-1]
	if m.Skipped() {
		fmt.Fprintf(o.w, "%s rolled %d, no move possible\n", m.PlayerID, m.Dice)
		return
	}
	line := fmt.Sprintf("%s rolled %d and moved token %d %s -> %s", m.PlayerID, m.Dice, m.Token, m.From, m.To)
	if len(m.Captured) > 0 {
		line += fmt.Sprintf(", capturing %v", m.Captured)
	}
	fmt.Fprintln(o.w, line)
}

func (o *Output) printRoll(r response.RollResponse) {
	fmt.Fprintf(o.w, "Rolled: %d\n", r.Dice)
	if r.AutoPassed {
		fmt.Fprintln(o.w, "No legal move, turn passed")
		return
	}
	moves := make([]string, len(r.LegalMoves))
	for i, m := range r.LegalMoves {
		moves[i] = fmt.Sprint(m)
	}
	fmt.Fprintf(o.w, "Movable tokens: %s\n", strings.Join(moves, ", "))
}

func (o *Output) printMove(m response.MoveResponse) {
	fmt.Fprintf(o.w, "Moved token %d: %s -> %s\n", m.Move.Token, m.Move.From, m.Move.To)
	if len(m.Move.Captured) > 0 {
		fmt.Fprintf(o.w, "Captured: %v\n", m.Move.Captured)
	}
	switch {
	case m.Won:
		fmt.Fprintf(o.w, "You won! Payout: %d\n", m.Payout)
	case m.ExtraTurn:
		fmt.Fprintln(o.w, "Roll again")
	default:
		fmt.Fprintln(o.w, "Turn passed")
	}
}

func (o *Output) printChatMessage(m *model.ChatMessage) {
	sender := string(m.SenderID)
	if m.Type == model.MessageTypeSystem {
		sender = "*"
	}
	fmt.Fprintf(o.w, "[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), sender, m.Text)
}

func formatTokens(tokens [model.TokensPerPlayer]model.Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
