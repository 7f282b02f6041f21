package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ludoduel/ludo-server/internal/dependencies/clock"
	"github.com/ludoduel/ludo-server/internal/dependencies/ids"
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/realtime"
	"github.com/ludoduel/ludo-server/internal/storage"
)

// Number of join attempts before a lost race surfaces ErrJoinFailed
const joinAttempts = 2

// errGameTaken marks a join whose guarded game write lost to another writer
var errGameTaken = errors.New("waiting game was taken")

// Accounts is the part of the balance ledger matchmaking needs
type Accounts interface {
	HasFunds(ctx context.Context, playerID model.PlayerID, amount int64) (bool, error)
	DebitEntryFee(ctx context.Context, playerID model.PlayerID, gameID model.GameID, fee int64) (int64, error)
	RefundEntryFee(ctx context.Context, playerID model.PlayerID, gameID model.GameID, fee int64) (int64, error)
}

// Announcer posts server-authored messages to a game's chat
type Announcer interface {
	Announce(ctx context.Context, gameID model.GameID, text string) error
}

// Config holds configuration for matchmaking
type Config struct {
	// Waiting games older than this are not offered to joiners
	StaleAfter time.Duration
	// How long a creator waits before clients give up on an opponent
	NoOpponentTimeout time.Duration
	// Accepted entry fees. Empty accepts any positive fee.
	AllowedEntryFees []int64
}

// DefaultConfig returns default matchmaking configuration
func DefaultConfig() Config {
	return Config{
		StaleAfter:        5 * time.Minute,
		NoOpponentTimeout: 60 * time.Second,
	}
}

// Outcome tells how FindOrJoinGame placed the player
type Outcome string

const (
	OutcomeExisting Outcome = "existing" // Player already had an active game
	OutcomeJoined   Outcome = "joined"   // Player joined a waiting game
	OutcomeCreated  Outcome = "created"  // Player created a new waiting game
)

// MatchResult is the game a player was placed in
type MatchResult struct {
	Game    *model.Game
	Outcome Outcome
}

// WaitStatus reports how long a waiting game has been open
type WaitStatus struct {
	Game       *model.Game
	WaitingFor time.Duration
	TimedOut   bool
}

// Service pairs players by entry fee. Debits always happen before the game
// write and are refunded if the write fails.
type Service struct {
	storage   storage.Storage
	accounts  Accounts
	announcer Announcer
	notifier  realtime.Notifier
	clock     clock.Clock
	ids       ids.Generator
	logger    *slog.Logger
	cfg       Config
}

// New creates a new matchmaking Service
func New(
	storage storage.Storage,
	accounts Accounts,
	announcer Announcer,
	notifier realtime.Notifier,
	clock clock.Clock,
	ids ids.Generator,
	logger *slog.Logger,
	cfg Config,
) *Service {
	return &Service{
		storage:   storage,
		accounts:  accounts,
		announcer: announcer,
		notifier:  notifier,
		clock:     clock,
		ids:       ids,
		logger:    logger.With("component", "matchmaking"),
		cfg:       cfg,
	}
}

// FindOrJoinGame returns the player's active game, or joins the oldest open
// game with the same entry fee, or creates a new waiting game
func (s *Service) FindOrJoinGame(ctx context.Context, playerID model.PlayerID, entryFee int64) (*MatchResult, error) {
	if err := s.validateFee(entryFee); err != nil {
		return nil, err
	}

	existing, err := s.storage.FindActiveGameForPlayer(ctx, playerID)
	if err == nil {
		return &MatchResult{Game: existing, Outcome: OutcomeExisting}, nil
	}
	if !errors.Is(err, model.ErrGameNotFound) {
		return nil, err
	}

	ok, err := s.accounts.HasFunds(ctx, playerID, entryFee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrInsufficientBalance
	}

	for attempt := 1; ; attempt++ {
		candidate, err := s.oldestWaiting(ctx, playerID, entryFee)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			game, err := s.create(ctx, playerID, entryFee)
			if errors.Is(err, model.ErrActiveGameExists) {
				return s.existing(ctx, playerID, err)
			}
			if err != nil {
				return nil, err
			}
			return &MatchResult{Game: game, Outcome: OutcomeCreated}, nil
		}

		game, err := s.join(ctx, candidate, playerID)
		if err == nil {
			return &MatchResult{Game: game, Outcome: OutcomeJoined}, nil
		}
		if errors.Is(err, model.ErrActiveGameExists) {
			return s.existing(ctx, playerID, err)
		}
		if !errors.Is(err, errGameTaken) {
			return nil, err
		}

		s.logger.Info("lost join race",
			slog.String("game_id", string(candidate.ID)),
			slog.String("player_id", string(playerID)),
			slog.Int("attempt", attempt),
		)
		if attempt >= joinAttempts {
			return nil, fmt.Errorf("%w: game %s was taken", model.ErrJoinFailed, candidate.ID)
		}
	}
}

// WaitStatus reports how long the game has been waiting for an opponent. It
// never changes the game.
func (s *Service) WaitStatus(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*WaitStatus, error) {
	game, err := s.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.HasPlayer(playerID) {
		return nil, model.ErrNotParticipant
	}

	status := &WaitStatus{Game: game}
	if game.Status == model.GameStatusWaiting {
		status.WaitingFor = s.clock.Now().Sub(game.CreatedAt)
		status.TimedOut = status.WaitingFor >= s.cfg.NoOpponentTimeout
	}
	return status, nil
}

// Cancel withdraws the creator's waiting game and refunds the entry fee
func (s *Service) Cancel(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Game, error) {
	game, err := s.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Player1ID != playerID {
		return nil, model.ErrNotCreator
	}
	if game.Status != model.GameStatusWaiting {
		return nil, model.ErrGameNotWaiting
	}

	old := game.Clone()
	game.Status = model.GameStatusCancelled
	game.UpdatedAt = s.clock.Now()
	if err := s.storage.UpdateGame(ctx, game, old.Version); err != nil {
		return nil, err
	}

	// The guarded write succeeded, so this is the only refund for the game
	if _, err := s.accounts.RefundEntryFee(ctx, playerID, gameID, game.EntryFee); err != nil {
		s.logger.Error("refund after cancel failed, manual reconciliation required",
			slog.String("game_id", string(gameID)),
			slog.String("player_id", string(playerID)),
			slog.Int64("amount", game.EntryFee),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("refund entry fee for game %s: %w", gameID, err)
	}

	s.logger.Info("game cancelled",
		slog.String("game_id", string(gameID)),
		slog.String("player_id", string(playerID)),
	)
	s.publish(ctx, model.GameUpdated(old, game))
	s.announce(ctx, gameID, "Game cancelled, entry fee refunded")
	return game, nil
}

func (s *Service) validateFee(fee int64) error {
	if fee <= 0 {
		return fmt.Errorf("%w: must be positive", model.ErrInvalidEntryFee)
	}
	if len(s.cfg.AllowedEntryFees) > 0 && !slices.Contains(s.cfg.AllowedEntryFees, fee) {
		return fmt.Errorf("%w: %d is not offered", model.ErrInvalidEntryFee, fee)
	}
	return nil
}

// oldestWaiting returns the oldest fresh game another player is waiting in,
// or nil if there is none
func (s *Service) oldestWaiting(ctx context.Context, playerID model.PlayerID, fee int64) (*model.Game, error) {
	games, err := s.storage.FindWaitingGames(ctx, storage.WaitingGamesQuery{
		EntryFee:      fee,
		CreatedAfter:  s.clock.Now().Add(-s.cfg.StaleAfter),
		ExcludePlayer: playerID,
		Limit:         1,
	})
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	return games[0], nil
}

// existing returns the active game a concurrent request placed the player
// in after the store refused them a second one
func (s *Service) existing(ctx context.Context, playerID model.PlayerID, cause error) (*MatchResult, error) {
	game, err := s.storage.FindActiveGameForPlayer(ctx, playerID)
	if errors.Is(err, model.ErrGameNotFound) {
		return nil, cause
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("player already placed by a concurrent request",
		slog.String("game_id", string(game.ID)),
		slog.String("player_id", string(playerID)),
	)
	return &MatchResult{Game: game, Outcome: OutcomeExisting}, nil
}

// join debits the joiner and seats them, guarded on the version read during
// the search. Only a lost game write is reported as errGameTaken.
func (s *Service) join(ctx context.Context, game *model.Game, playerID model.PlayerID) (*model.Game, error) {
	if _, err := s.accounts.DebitEntryFee(ctx, playerID, game.ID, game.EntryFee); err != nil {
		return nil, fmt.Errorf("debit entry fee for game %s: %w", game.ID, err)
	}

	old := game.Clone()
	game.Player2ID = playerID
	game.Status = model.GameStatusPlaying
	game.CurrentTurn = game.Player1ID
	game.PrizePool = 2 * game.EntryFee
	game.State.Phase = model.PhaseAwaitingRoll
	game.UpdatedAt = s.clock.Now()

	if err := s.storage.UpdateGame(ctx, game, old.Version); err != nil {
		s.refund(ctx, playerID, game.ID, game.EntryFee)
		if errors.Is(err, model.ErrConflict) && !errors.Is(err, model.ErrActiveGameExists) {
			return nil, fmt.Errorf("%w: %w", errGameTaken, err)
		}
		return nil, err
	}

	s.logger.Info("player joined game",
		slog.String("game_id", string(game.ID)),
		slog.String("player_id", string(playerID)),
		slog.Int64("entry_fee", game.EntryFee),
	)
	s.publish(ctx, model.GameUpdated(old, game))
	s.announce(ctx, game.ID, fmt.Sprintf("%s joined. %s rolls first",
		s.displayName(ctx, playerID), s.displayName(ctx, game.Player1ID)))
	return game, nil
}

// create debits the creator and opens a waiting game
func (s *Service) create(ctx context.Context, playerID model.PlayerID, fee int64) (*model.Game, error) {
	gameID := model.GameID(s.ids.NewID())
	if _, err := s.accounts.DebitEntryFee(ctx, playerID, gameID, fee); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	game := &model.Game{
		ID:        gameID,
		Player1ID: playerID,
		EntryFee:  fee,
		PrizePool: fee,
		Status:    model.GameStatusWaiting,
		State:     model.NewBoardState(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.CreateGame(ctx, game); err != nil {
		s.logger.Error("failed to create game",
			slog.String("game_id", string(gameID)),
			slog.String("error", err.Error()),
		)
		s.refund(ctx, playerID, gameID, fee)
		return nil, err
	}

	s.logger.Info("game created",
		slog.String("game_id", string(gameID)),
		slog.String("player_id", string(playerID)),
		slog.Int64("entry_fee", fee),
	)
	s.publish(ctx, model.GameInserted(game))
	return game, nil
}

// refund compensates a debit whose game write failed
func (s *Service) refund(ctx context.Context, playerID model.PlayerID, gameID model.GameID, fee int64) {
	if _, err := s.accounts.RefundEntryFee(ctx, playerID, gameID, fee); err != nil {
		s.logger.Error("compensating refund failed, manual reconciliation required",
			slog.String("game_id", string(gameID)),
			slog.String("player_id", string(playerID)),
			slog.Int64("amount", fee),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) publish(ctx context.Context, event model.ChangeEvent) {
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish game change",
			slog.String("game_id", string(event.GameID)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) announce(ctx context.Context, gameID model.GameID, text string) {
	if err := s.announcer.Announce(ctx, gameID, text); err != nil {
		s.logger.Warn("failed to post system message",
			slog.String("game_id", string(gameID)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) displayName(ctx context.Context, playerID model.PlayerID) string {
	player, err := s.storage.GetPlayer(ctx, playerID)
	if err != nil {
		return string(playerID)
	}
	return player.DisplayName
}

// ServiceInterface for dependency injection
type ServiceInterface interface {
	FindOrJoinGame(ctx context.Context, playerID model.PlayerID, entryFee int64) (*MatchResult, error)
	WaitStatus(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*WaitStatus, error)
	Cancel(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Game, error)
}

var _ ServiceInterface = (*Service)(nil)
