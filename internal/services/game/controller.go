package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ludoduel/ludo-server/internal/dependencies/clock"
	"github.com/ludoduel/ludo-server/internal/dependencies/random"
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/realtime"
	"github.com/ludoduel/ludo-server/internal/services/rules"
	"github.com/ludoduel/ludo-server/internal/storage"
)

// PrizePayer credits the winner of a finished game
type PrizePayer interface {
	PayPrize(ctx context.Context, winnerID model.PlayerID, gameID model.GameID, prizePool int64) (int64, error)
}

// Announcer posts server-authored messages to a game's chat
type Announcer interface {
	Announce(ctx context.Context, gameID model.GameID, text string) error
}

// Config holds configuration for the turn coordinator
type Config struct {
	// Hint telling clients how long to show a roll that passed the turn
	AutoPassDelay time.Duration
}

// DefaultConfig returns default turn coordinator configuration
func DefaultConfig() Config {
	return Config{
		AutoPassDelay: 1500 * time.Millisecond,
	}
}

// RollResult is the outcome of a dice roll
type RollResult struct {
	Game          *model.Game
	Dice          int
	LegalMoves    []int
	AutoPassed    bool          // No legal move, the turn already passed
	AutoPassDelay time.Duration // Set only when AutoPassed
}

// MoveResult is the outcome of a token move
type MoveResult struct {
	Game      *model.Game
	Move      model.MoveRecord
	ExtraTurn bool  // The mover rolls again
	Won       bool  // The move finished the game
	Payout    int64 // Amount credited to the winner
}

// Controller is the authoritative turn coordinator. It validates every
// action with the rules engine and writes games only through the version guard.
type Controller struct {
	storage   storage.Storage
	rules     *rules.Engine
	payer     PrizePayer
	announcer Announcer
	notifier  realtime.Notifier
	clock     clock.Clock
	random    random.Random
	logger    *slog.Logger
	cfg       Config
}

// NewController creates a new game Controller
func NewController(
	storage storage.Storage,
	rules *rules.Engine,
	payer PrizePayer,
	announcer Announcer,
	notifier realtime.Notifier,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
	cfg Config,
) *Controller {
	return &Controller{
		storage:   storage,
		rules:     rules,
		payer:     payer,
		announcer: announcer,
		notifier:  notifier,
		clock:     clock,
		random:    random,
		logger:    logger.With("component", "game"),
		cfg:       cfg,
	}
}

// GetGame retrieves a game by ID
func (c *Controller) GetGame(ctx context.Context, gameID model.GameID) (*model.Game, error) {
	return c.storage.GetGame(ctx, gameID)
}

// GetGameForPlayer retrieves a game the player participates in
func (c *Controller) GetGameForPlayer(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Game, error) {
	game, err := c.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.HasPlayer(playerID) {
		return nil, model.ErrNotParticipant
	}
	return game, nil
}

// Roll rolls the dice for the player whose turn it is. A roll with no legal
// move is recorded and passes the turn in the same write.
func (c *Controller) Roll(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*RollResult, error) {
	game, seat, err := c.loadTurn(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}
	if game.State.Phase != model.PhaseAwaitingRoll {
		return nil, model.ErrAlreadyRolled
	}

	old := game.Clone()
	state := &game.State
	now := c.clock.Now()

	dice := c.random.Die()
	state.LastDiceRoll = dice
	if dice == rules.EnterDice {
		state.ConsecutiveSixes++
	} else {
		state.ConsecutiveSixes = 0
	}

	legal := c.rules.LegalMoves(*state.Tokens(seat), dice, state.ColorOf(seat))
	result := &RollResult{Game: game, Dice: dice, LegalMoves: legal}

	if len(legal) == 0 {
		state.MoveHistory = append(state.MoveHistory, model.MoveRecord{
			PlayerID: playerID,
			Dice:     dice,
			Token:    model.NoToken,
			From:     model.HomeToken(),
			To:       model.HomeToken(),
			At:       now,
		})
		c.passTurn(game, playerID)
		result.AutoPassed = true
		result.AutoPassDelay = c.cfg.AutoPassDelay
	} else {
		state.Phase = model.PhaseAwaitingMove
	}

	if err := c.write(ctx, old, game, now); err != nil {
		return nil, err
	}

	c.logger.Debug("dice rolled",
		slog.String("game_id", string(gameID)),
		slog.String("player_id", string(playerID)),
		slog.Int("dice", dice),
		slog.Int("legal_moves", len(legal)),
		slog.Bool("auto_passed", result.AutoPassed),
	)
	return result, nil
}

// Move moves one of the player's tokens by the rolled dice value. The move
// either keeps the turn, passes it, or finishes the game and pays the winner.
func (c *Controller) Move(ctx context.Context, gameID model.GameID, playerID model.PlayerID, tokenIndex int) (*MoveResult, error) {
	game, seat, err := c.loadTurn(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}
	if game.State.Phase != model.PhaseAwaitingMove {
		return nil, model.ErrMustRollFirst
	}

	old := game.Clone()
	state := &game.State
	now := c.clock.Now()
	dice := state.LastDiceRoll

	applied, err := c.rules.Move(state, seat, tokenIndex, dice)
	if err != nil {
		return nil, err
	}

	record := model.MoveRecord{
		PlayerID: playerID,
		Dice:     dice,
		Token:    tokenIndex,
		From:     applied.From,
		To:       applied.To,
		Captured: applied.Captured,
		At:       now,
	}
	state.MoveHistory = append(state.MoveHistory, record)
	result := &MoveResult{Game: game, Move: record, Won: applied.Won}

	if applied.Won {
		payout, err := c.finish(ctx, old, game, playerID, now)
		if err != nil {
			return nil, err
		}
		result.Payout = payout
		c.announce(ctx, gameID, fmt.Sprintf("%s won the game and takes %d", c.displayName(ctx, playerID), payout))
		return result, nil
	}

	state.Phase = model.PhaseAwaitingRoll
	if rules.RetainsTurn(dice, state.ConsecutiveSixes, len(applied.Captured) > 0) {
		result.ExtraTurn = true
	} else {
		c.passTurn(game, playerID)
	}

	if err := c.write(ctx, old, game, now); err != nil {
		return nil, err
	}
	return result, nil
}

// Forfeit ends a playing game in the opponent's favour. The forfeiter's entry
// fee stays in the prize pool.
func (c *Controller) Forfeit(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Game, error) {
	game, err := c.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.HasPlayer(playerID) {
		return nil, model.ErrNotParticipant
	}
	if game.Status != model.GameStatusPlaying {
		return nil, model.ErrGameNotPlaying
	}

	old := game.Clone()
	winner := game.Opponent(playerID)
	payout, err := c.finish(ctx, old, game, winner, c.clock.Now())
	if err != nil {
		return nil, err
	}

	c.logger.Info("game forfeited",
		slog.String("game_id", string(gameID)),
		slog.String("player_id", string(playerID)),
		slog.String("winner_id", string(winner)),
	)
	c.announce(ctx, gameID, fmt.Sprintf("%s forfeited. %s wins %d",
		c.displayName(ctx, playerID), c.displayName(ctx, winner), payout))
	return game, nil
}

// loadTurn loads a playing game and checks that it is the player's turn
func (c *Controller) loadTurn(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Game, model.Seat, error) {
	game, err := c.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, 0, err
	}
	seat, ok := game.Seat(playerID)
	if !ok {
		return nil, 0, model.ErrNotParticipant
	}
	if game.Status != model.GameStatusPlaying {
		return nil, 0, model.ErrGameNotPlaying
	}
	if game.CurrentTurn != playerID {
		return nil, 0, model.ErrNotPlayerTurn
	}
	return game, seat, nil
}

// passTurn hands the dice to the opponent
func (c *Controller) passTurn(game *model.Game, from model.PlayerID) {
	game.CurrentTurn = game.Opponent(from)
	game.State.ConsecutiveSixes = 0
	game.State.Phase = model.PhaseAwaitingRoll
}

// finish marks the game won, writes it, then pays the prize. A payout failure
// happens after the game is committed and needs manual reconciliation.
func (c *Controller) finish(ctx context.Context, old, game *model.Game, winner model.PlayerID, now time.Time) (int64, error) {
	game.Status = model.GameStatusFinished
	game.WinnerID = winner
	game.CurrentTurn = ""
	game.State.Phase = model.PhaseAwaitingRoll

	if err := c.write(ctx, old, game, now); err != nil {
		return 0, err
	}

	payout, err := c.payer.PayPrize(ctx, winner, game.ID, game.PrizePool)
	if err != nil {
		c.logger.Error("prize payout failed, manual reconciliation required",
			slog.String("game_id", string(game.ID)),
			slog.String("winner_id", string(winner)),
			slog.Int64("prize_pool", game.PrizePool),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("pay prize for game %s: %w", game.ID, err)
	}

	c.logger.Info("game finished",
		slog.String("game_id", string(game.ID)),
		slog.String("winner_id", string(winner)),
		slog.Int64("payout", payout),
	)
	return payout, nil
}

// write persists the game guarded on the version it was read at and
// publishes the change
func (c *Controller) write(ctx context.Context, old, game *model.Game, now time.Time) error {
	game.UpdatedAt = now
	if err := c.storage.UpdateGame(ctx, game, old.Version); err != nil {
		c.logger.Debug("game update rejected",
			slog.String("game_id", string(game.ID)),
			slog.Int64("version", old.Version),
			slog.String("error", err.Error()),
		)
		return err
	}

	if err := c.notifier.Publish(ctx, model.GameUpdated(old, game)); err != nil {
		c.logger.Warn("failed to publish game update",
			slog.String("game_id", string(game.ID)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (c *Controller) announce(ctx context.Context, gameID model.GameID, text string) {
	if err := c.announcer.Announce(ctx, gameID, text); err != nil {
		c.logger.Warn("failed to post system message",
			slog.String("game_id", string(gameID)),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Controller) displayName(ctx context.Context, playerID model.PlayerID) string {
	player, err := c.storage.GetPlayer(ctx, playerID)
	if err != nil {
		return string(playerID)
	}
	return player.DisplayName
}

// Interface for dependency injection
type ControllerInterface interface {
	GetGame(ctx context.Context, gameID model.GameID) (*model.Game, error)
	GetGameForPlayer(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Game, error)
	Roll(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*RollResult, error)
	Move(ctx context.Context, gameID model.GameID, playerID model.PlayerID, tokenIndex int) (*MoveResult, error)
	Forfeit(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Game, error)
}

var _ ControllerInterface = (*Controller)(nil)
