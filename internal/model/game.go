package model

import (
	"fmt"
	"time"
)

// GameID uniquely identifies a game
type GameID string

// GameStatus represents the lifecycle stage of a game record
type GameStatus string

const (
	GameStatusWaiting   GameStatus = "waiting"   // Creator is waiting for an opponent
	GameStatusPlaying   GameStatus = "playing"   // Both players joined
	GameStatusFinished  GameStatus = "finished"  // A player won or forfeited
	GameStatusCancelled GameStatus = "cancelled" // Creator cancelled before anyone joined
)

// IsTerminal returns true for statuses that can never change again
func (s GameStatus) IsTerminal() bool {
	return s == GameStatusFinished || s == GameStatusCancelled
}

// IsActive returns true while the game still occupies its players
func (s GameStatus) IsActive() bool {
	return s == GameStatusWaiting || s == GameStatusPlaying
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step
func (s GameStatus) CanTransitionTo(next GameStatus) bool {
	switch s {
	case GameStatusWaiting:
		return next == GameStatusPlaying || next == GameStatusCancelled
	case GameStatusPlaying:
		return next == GameStatusFinished
	default:
		return false
	}
}

// CheckTransition allows next if it equals s or is a legal step from s
func (s GameStatus) CheckTransition(next GameStatus) error {
	if s == next || s.CanTransitionTo(next) {
		return nil
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s, next)
}

// Game is the persistent record of a single Ludo match between two players
type Game struct {
	ID          GameID     `json:"id"`
	Player1ID   PlayerID   `json:"player1_id"`
	Player2ID   PlayerID   `json:"player2_id,omitempty"`
	EntryFee    int64      `json:"entry_fee"`
	PrizePool   int64      `json:"prize_pool"`
	Status      GameStatus `json:"status"`
	CurrentTurn PlayerID   `json:"current_turn,omitempty"`
	WinnerID    PlayerID   `json:"winner_id,omitempty"`
	State       BoardState `json:"game_state"`

	// Version is bumped by storage on every successful update and is the
	// optimistic-concurrency guard for all game mutations
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPlayer returns true if the player participates in the game
func (g *Game) HasPlayer(playerID PlayerID) bool {
	return playerID != "" && (g.Player1ID == playerID || g.Player2ID == playerID)
}

// Seat returns the seat of the player, or false if they are not in the game
func (g *Game) Seat(playerID PlayerID) (Seat, bool) {
	switch {
	case playerID == "":
		return 0, false
	case g.Player1ID == playerID:
		return SeatPlayer1, true
	case g.Player2ID == playerID:
		return SeatPlayer2, true
	default:
		return 0, false
	}
}

// PlayerAt returns the player sitting in the given seat
func (g *Game) PlayerAt(seat Seat) PlayerID {
	if seat == SeatPlayer1 {
		return g.Player1ID
	}
	return g.Player2ID
}

// Opponent returns the other participant, or empty if the player is not seated
func (g *Game) Opponent(playerID PlayerID) PlayerID {
	seat, ok := g.Seat(playerID)
	if !ok {
		return ""
	}
	return g.PlayerAt(seat.Other())
}

// Clone returns a deep copy so callers can mutate without touching stored state
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.State = g.State.Clone()
	return &c
}

// Seat identifies which side of the board a player occupies
type Seat int

const (
	SeatPlayer1 Seat = iota
	SeatPlayer2
)

// Other returns the opposing seat
func (s Seat) Other() Seat {
	if s == SeatPlayer1 {
		return SeatPlayer2
	}
	return SeatPlayer1
}

// TurnPhase is the coordinator state for the player whose turn it is
type TurnPhase string

const (
	PhaseAwaitingRoll TurnPhase = "roll" // Waiting for the dice to be rolled
	PhaseAwaitingMove TurnPhase = "move" // Dice rolled, waiting for a token choice
)

// TokensPerPlayer is the number of tokens each player races home
const TokensPerPlayer = 4

// BoardState is the structured game_state blob of a game record
type BoardState struct {
	Player1Tokens    [TokensPerPlayer]Token `json:"player1_tokens"`
	Player2Tokens    [TokensPerPlayer]Token `json:"player2_tokens"`
	Player1Color     Color                  `json:"player1_color"`
	Player2Color     Color                  `json:"player2_color"`
	LastDiceRoll     int                    `json:"last_dice_roll"`
	ConsecutiveSixes int                    `json:"consecutive_sixes"`
	Phase            TurnPhase              `json:"phase"`
	MoveHistory      []MoveRecord           `json:"move_history"`
}

// NewBoardState returns the initial state: every token at home, default colors
func NewBoardState() BoardState {
	state := BoardState{
		Player1Color: ColorBlue,
		Player2Color: ColorRed,
		Phase:        PhaseAwaitingRoll,
		MoveHistory:  []MoveRecord{},
	}
	for i := 0; i < TokensPerPlayer; i++ {
		state.Player1Tokens[i] = HomeToken()
		state.Player2Tokens[i] = HomeToken()
	}
	return state
}

// Tokens returns a pointer to the token array of a seat
func (b *BoardState) Tokens(seat Seat) *[TokensPerPlayer]Token {
	if seat == SeatPlayer1 {
		return &b.Player1Tokens
	}
	return &b.Player2Tokens
}

// ColorOf returns the color assigned to a seat
func (b *BoardState) ColorOf(seat Seat) Color {
	if seat == SeatPlayer1 {
		return b.Player1Color
	}
	return b.Player2Color
}

// Clone returns a deep copy of the board state
func (b BoardState) Clone() BoardState {
	c := b
	c.MoveHistory = make([]MoveRecord, len(b.MoveHistory))
	for i, m := range b.MoveHistory {
		c.MoveHistory[i] = m
		if m.Captured != nil {
			c.MoveHistory[i].Captured = append([]int(nil), m.Captured...)
		}
	}
	return c
}

// NoToken marks a history entry for a roll that produced no legal move
const NoToken = -1

// MoveRecord is one append-only entry of the move history
type MoveRecord struct {
	PlayerID PlayerID  `json:"player"`
	Dice     int       `json:"dice"`
	Token    int       `json:"token"`
	From     Token     `json:"from"`
	To       Token     `json:"to"`
	Captured []int     `json:"captured,omitempty"` // Opponent token indexes sent home
	At       time.Time `json:"at"`
}

// Skipped returns true if the roll produced no token change
func (m MoveRecord) Skipped() bool {
	return m.Token == NoToken
}
