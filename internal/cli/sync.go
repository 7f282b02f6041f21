package cli

import (
	"github.com/ludoduel/ludo-server/internal/model"
)

// NoticeKind classifies what a change event means to the watching player
type NoticeKind string

const (
	NoticeGameStarted   NoticeKind = "game_started"   // Opponent joined, waiting -> playing
	NoticeTurnChanged   NoticeKind = "turn_changed"   // current_turn moved to another player
	NoticeBoardChanged  NoticeKind = "board_changed"  // Dice or tokens changed within a turn
	NoticeGameFinished  NoticeKind = "game_finished"  // A player won or forfeited
	NoticeGameCancelled NoticeKind = "game_cancelled" // Creator cancelled while waiting
	NoticeChatUpdated   NoticeKind = "chat_updated"   // Re-fetch the chat list
)

// Notice is one client reaction derived from a change event
type Notice struct {
	Kind     NoticeKind
	Game     *model.Game
	YourTurn bool           // Set on game_started and turn_changed
	Winner   model.PlayerID // Set on game_finished
}

// GameSync keeps the client's view of one game and turns the change feed
// into notices. It never writes anything; the server stays authoritative.
type GameSync struct {
	self model.PlayerID
	game *model.Game
}

// NewGameSync starts tracking a game from a fetched snapshot, which may be nil
func NewGameSync(self model.PlayerID, snapshot *model.Game) *GameSync {
	return &GameSync{self: self, game: snapshot}
}

// Game returns the latest known record
func (s *GameSync) Game() *model.Game {
	return s.game
}

// Apply folds a change event into the view and returns the resulting notices
func (s *GameSync) Apply(event model.ChangeEvent) []Notice {
	switch event.Table {
	case model.TableChatMessages:
		return []Notice{{Kind: NoticeChatUpdated, Game: s.game}}
	case model.TableGames:
	default:
		return nil
	}
	if event.New == nil {
		return nil
	}
	if s.game != nil && event.New.ID != s.game.ID {
		return nil
	}

	// Compare against what this client last saw; event.Old may predate a
	// snapshot fetched after subscribing
	prev := s.game
	if prev == nil {
		prev = event.Old
	}
	if prev != nil && event.New.Version != 0 && event.New.Version <= prev.Version {
		return nil
	}
	s.game = event.New
	return Diff(prev, event.New, s.self)
}

// Diff compares two versions of a game record from the viewpoint of self
func Diff(prev, next *model.Game, self model.PlayerID) []Notice {
	if next == nil {
		return nil
	}

	var prevStatus model.GameStatus
	var prevTurn model.PlayerID
	if prev != nil {
		prevStatus = prev.Status
		prevTurn = prev.CurrentTurn
	}

	switch {
	case next.Status == model.GameStatusCancelled && prevStatus != model.GameStatusCancelled:
		return []Notice{{Kind: NoticeGameCancelled, Game: next}}
	case next.Status == model.GameStatusFinished && prevStatus != model.GameStatusFinished:
		return []Notice{{Kind: NoticeGameFinished, Game: next, Winner: next.WinnerID}}
	case next.Status.IsTerminal():
		return nil
	}

	var notices []Notice
	if prevStatus == model.GameStatusWaiting && next.Status == model.GameStatusPlaying {
		notices = append(notices, Notice{Kind: NoticeGameStarted, Game: next, YourTurn: next.CurrentTurn == self})
		return notices
	}

	if next.CurrentTurn != "" && next.CurrentTurn != prevTurn {
		notices = append(notices, Notice{Kind: NoticeTurnChanged, Game: next, YourTurn: next.CurrentTurn == self})
	} else if next.Status == model.GameStatusPlaying {
		notices = append(notices, Notice{Kind: NoticeBoardChanged, Game: next, YourTurn: next.CurrentTurn == self})
	}
	return notices
}
