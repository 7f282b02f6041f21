package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound  = errors.New("player not found")
	ErrBalanceNotFound = errors.New("balance not found")

	// Storage errors
	ErrConflict = errors.New("conflict, try again")

	// ErrActiveGameExists is the conflict raised when a write would give a
	// player a second waiting or playing game
	ErrActiveGameExists  = fmt.Errorf("%w: player already has an active game", ErrConflict)
	ErrInvalidTransition = errors.New("illegal game status change")

	// Balance errors
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")

	// Matchmaking errors
	ErrInvalidEntryFee = errors.New("invalid entry fee")
	ErrJoinFailed      = errors.New("failed to join")

	// Game errors
	ErrGameNotFound         = errors.New("game not found")
	ErrGameNotWaiting       = errors.New("game is not waiting for an opponent")
	ErrGameNotPlaying       = errors.New("game is not in progress")
	ErrNotCreator           = errors.New("player is not the game creator")
	ErrNotParticipant       = errors.New("player is not in this game")
	ErrNotPlayerTurn        = errors.New("not this player's turn")
	ErrMustRollFirst        = errors.New("dice must be rolled before moving")
	ErrAlreadyRolled        = errors.New("dice already rolled this turn")
	ErrInvalidToken         = errors.New("invalid token index")
	ErrIllegalMove          = errors.New("illegal move")
	ErrInvalidTokenPosition = errors.New("invalid token position")

	// Chat errors
	ErrInvalidMessage = errors.New("invalid chat message")
)
