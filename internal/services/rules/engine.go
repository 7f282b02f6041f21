package rules

import (
	"fmt"

	"github.com/ludoduel/ludo-server/internal/model"
)

const (
	// lastTrackProgress is the final relative track step before the home stretch
	lastTrackProgress = model.TrackLength - 2
	// finishProgress is the relative distance from the start cell to the finish
	finishProgress = lastTrackProgress + model.HomeStretchLength + 1

	// EnterDice is the roll needed to bring a token out of home
	EnterDice = 6
	// MaxConsecutiveSixes is the number of sixes in a row that forfeits the bonus turn
	MaxConsecutiveSixes = 3
)

// Engine evaluates Ludo moves. It holds no state and is safe for concurrent use.
type Engine struct {
	colors ColorTable
}

// New creates an Engine using the given color layout
func New(colors ColorTable) *Engine {
	return &Engine{colors: colors}
}

// NewStandard creates an Engine for the standard layout
func NewStandard() *Engine {
	return New(StandardColors)
}

// StartCell returns the track cell where a color's tokens enter
func (e *Engine) StartCell(color model.Color) int {
	cfg, _ := e.colors.Lookup(color)
	return cfg.StartCell
}

// progress returns how far along its own route a token is, measured from the
// start cell: 0..50 on the track, 51..55 in the home stretch, 56 finished
func (e *Engine) progress(token model.Token, color model.Color) int {
	switch token.Kind {
	case model.TokenOnTrack:
		return (token.Cell - e.StartCell(color) + model.TrackLength) % model.TrackLength
	case model.TokenOnHomeStretch:
		return lastTrackProgress + token.Step
	case model.TokenFinished:
		return finishProgress
	default:
		return -1
	}
}

// fromProgress converts a route distance back to a token
func (e *Engine) fromProgress(progress int, color model.Color) model.Token {
	switch {
	case progress >= finishProgress:
		return model.FinishedToken()
	case progress > lastTrackProgress:
		return model.StretchToken(progress - lastTrackProgress)
	default:
		return model.TrackToken((e.StartCell(color) + progress) % model.TrackLength)
	}
}

// IsLegalMove reports whether the token can move by dice
func (e *Engine) IsLegalMove(token model.Token, dice int, color model.Color) bool {
	if dice < 1 || dice > 6 {
		return false
	}
	switch token.Kind {
	case model.TokenFinished:
		return false
	case model.TokenAtHome:
		return dice == EnterDice
	default:
		return e.progress(token, color)+dice <= finishProgress
	}
}

// ApplyMove returns the token's position after moving by dice. A token leaving
// home lands on the start cell whatever the dice. The caller checks legality.
func (e *Engine) ApplyMove(token model.Token, dice int, color model.Color) model.Token {
	switch token.Kind {
	case model.TokenFinished:
		return token
	case model.TokenAtHome:
		return model.TrackToken(e.StartCell(color))
	default:
		return e.fromProgress(e.progress(token, color)+dice, color)
	}
}

// LegalMoves returns the indexes of the tokens that can move by dice
func (e *Engine) LegalMoves(tokens [model.TokensPerPlayer]model.Token, dice int, color model.Color) []int {
	var moves []int
	for i, t := range tokens {
		if e.IsLegalMove(t, dice, color) {
			moves = append(moves, i)
		}
	}
	return moves
}

// Captures returns the opponent token indexes sent home by a token arriving at
// dest. Nothing is captured off the track, on a safe cell or on the mover's
// start cell.
func (e *Engine) Captures(dest model.Token, moverColor model.Color, opponents [model.TokensPerPlayer]model.Token) []int {
	if !dest.IsOnTrack() || dest.Cell == e.StartCell(moverColor) || IsSafeCell(dest.Cell) {
		return nil
	}
	var captured []int
	for i, t := range opponents {
		if t.IsOnTrack() && t.Cell == dest.Cell {
			captured = append(captured, i)
		}
	}
	return captured
}

// HasWon returns true when every token is finished
func HasWon(tokens [model.TokensPerPlayer]model.Token) bool {
	for _, t := range tokens {
		if !t.IsFinished() {
			return false
		}
	}
	return true
}

// RetainsTurn decides whether the mover plays again. consecutiveSixes already
// counts the current roll.
func RetainsTurn(dice, consecutiveSixes int, captured bool) bool {
	if consecutiveSixes >= MaxConsecutiveSixes {
		return false
	}
	return dice == EnterDice || captured
}

// MoveResult describes a move applied to a board
type MoveResult struct {
	From     model.Token
	To       model.Token
	Captured []int
	Won      bool
}

// Move applies the move of one of seat's tokens to state, sending captured
// opponent tokens home. Turn bookkeeping is left to the caller.
func (e *Engine) Move(state *model.BoardState, seat model.Seat, tokenIndex, dice int) (MoveResult, error) {
	if tokenIndex < 0 || tokenIndex >= model.TokensPerPlayer {
		return MoveResult{}, fmt.Errorf("%w: %d", model.ErrInvalidToken, tokenIndex)
	}

	color := state.ColorOf(seat)
	tokens := state.Tokens(seat)
	from := tokens[tokenIndex]
	if !e.IsLegalMove(from, dice, color) {
		return MoveResult{}, fmt.Errorf("%w: token %d from %s with %d", model.ErrIllegalMove, tokenIndex, from, dice)
	}

	to := e.ApplyMove(from, dice, color)
	tokens[tokenIndex] = to

	opponents := state.Tokens(seat.Other())
	captured := e.Captures(to, color, *opponents)
	for _, i := range captured {
		opponents[i] = model.HomeToken()
	}

	return MoveResult{
		From:     from,
		To:       to,
		Captured: captured,
		Won:      HasWon(*tokens),
	}, nil
}
