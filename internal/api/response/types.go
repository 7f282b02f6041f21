package response

import (
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/services/auth"
	"github.com/ludoduel/ludo-server/internal/services/game"
	"github.com/ludoduel/ludo-server/internal/services/matchmaking"
)

// Player represents a player in API responses
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		IsGuest:     p.IsGuest,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player       Player `json:"player"`
	SessionToken string `json:"session_token"`
	Balance      int64  `json:"balance"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session, balance int64) AuthResponse {
	return AuthResponse{
		Player:       PlayerFromModel(&s.Player),
		SessionToken: s.Token,
		Balance:      balance,
	}
}

// MeResponse is the authenticated player's profile
type MeResponse struct {
	Player  Player `json:"player"`
	Balance int64  `json:"balance"`
}

// LedgerResponse lists a player's balance history, newest first
type LedgerResponse struct {
	Balance int64                `json:"balance"`
	Entries []*model.LedgerEntry `json:"entries"`
}

// GameResponse wraps a game record
type GameResponse struct {
	Game *model.Game `json:"game"`
}

// MatchResponse is the result of matchmaking
type MatchResponse struct {
	Game    *model.Game `json:"game"`
	Outcome string      `json:"outcome"`
}

// MatchResponseFromResult converts a matchmaking result
func MatchResponseFromResult(r *matchmaking.MatchResult) MatchResponse {
	return MatchResponse{Game: r.Game, Outcome: string(r.Outcome)}
}

// WaitResponse reports how long a waiting game has been open
type WaitResponse struct {
	Game         *model.Game `json:"game"`
	WaitingForMs int64       `json:"waiting_for_ms"`
	TimedOut     bool        `json:"timed_out"`
}

// WaitResponseFromStatus converts a matchmaking wait status
func WaitResponseFromStatus(s *matchmaking.WaitStatus) WaitResponse {
	return WaitResponse{
		Game:         s.Game,
		WaitingForMs: s.WaitingFor.Milliseconds(),
		TimedOut:     s.TimedOut,
	}
}

// RollResponse is the result of a dice roll
type RollResponse struct {
	Game            *model.Game `json:"game"`
	Dice            int         `json:"dice"`
	LegalMoves      []int       `json:"legal_moves"`
	AutoPassed      bool        `json:"auto_passed"`
	AutoPassDelayMs int64       `json:"auto_pass_delay_ms,omitempty"`
}

// RollResponseFromResult converts a game.RollResult
func RollResponseFromResult(r *game.RollResult) RollResponse {
	legal := r.LegalMoves
	if legal == nil {
		legal = []int{}
	}
	return RollResponse{
		Game:            r.Game,
		Dice:            r.Dice,
		LegalMoves:      legal,
		AutoPassed:      r.AutoPassed,
		AutoPassDelayMs: r.AutoPassDelay.Milliseconds(),
	}
}

// MoveResponse is the result of a token move
type MoveResponse struct {
	Game      *model.Game      `json:"game"`
	Move      model.MoveRecord `json:"move"`
	ExtraTurn bool             `json:"extra_turn"`
	Won       bool             `json:"won"`
	Payout    int64            `json:"payout,omitempty"`
}

// MoveResponseFromResult converts a game.MoveResult
func MoveResponseFromResult(r *game.MoveResult) MoveResponse {
	return MoveResponse{
		Game:      r.Game,
		Move:      r.Move,
		ExtraTurn: r.ExtraTurn,
		Won:       r.Won,
		Payout:    r.Payout,
	}
}

// ChatListResponse lists a game's chat messages in send order
type ChatListResponse struct {
	Messages []*model.ChatMessage `json:"messages"`
}

// HealthResponse is the liveness probe body
type HealthResponse struct {
	Status string `json:"status"`
}
