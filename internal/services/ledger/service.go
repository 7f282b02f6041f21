package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ludoduel/ludo-server/internal/dependencies/clock"
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/storage"
)

// Config holds configuration for the balance ledger
type Config struct {
	StartingBalance    int64 // Balance granted to every new player
	PlatformFeePercent int64 // Cut taken from a prize pool before payout
	MaxAttempts        int   // Compare-and-swap attempts before giving up
}

// DefaultConfig returns default ledger configuration
func DefaultConfig() Config {
	return Config{
		StartingBalance:    1000,
		PlatformFeePercent: 5,
		MaxAttempts:        3,
	}
}

// Service mutates player balances with optimistic concurrency and records
// every successful mutation as a ledger entry
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config
}

// New creates a new ledger Service
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger.With("component", "ledger"),
		cfg:     cfg,
	}
}

// OpenAccount gives a new player the starting balance. Opening an existing
// account is a no-op that returns the current balance.
func (s *Service) OpenAccount(ctx context.Context, playerID model.PlayerID) (int64, error) {
	err := s.storage.CreateBalance(ctx, playerID, s.cfg.StartingBalance)
	if errors.Is(err, model.ErrConflict) {
		return s.storage.GetBalance(ctx, playerID)
	}
	if err != nil {
		return 0, err
	}

	s.record(ctx, &model.LedgerEntry{
		PlayerID:      playerID,
		Kind:          model.LedgerInitial,
		Amount:        s.cfg.StartingBalance,
		BalanceBefore: 0,
		BalanceAfter:  s.cfg.StartingBalance,
	})
	return s.cfg.StartingBalance, nil
}

// Balance returns a player's current balance
func (s *Service) Balance(ctx context.Context, playerID model.PlayerID) (int64, error) {
	return s.storage.GetBalance(ctx, playerID)
}

// HasFunds reports whether the player can afford amount
func (s *Service) HasFunds(ctx context.Context, playerID model.PlayerID, amount int64) (bool, error) {
	balance, err := s.storage.GetBalance(ctx, playerID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// DebitEntryFee takes an entry fee from a player's balance
func (s *Service) DebitEntryFee(ctx context.Context, playerID model.PlayerID, gameID model.GameID, fee int64) (int64, error) {
	return s.apply(ctx, playerID, gameID, model.LedgerEntryFee, -fee)
}

// RefundEntryFee returns a previously debited entry fee
func (s *Service) RefundEntryFee(ctx context.Context, playerID model.PlayerID, gameID model.GameID, fee int64) (int64, error) {
	return s.apply(ctx, playerID, gameID, model.LedgerRefund, fee)
}

// PayPrize credits the winner with the prize pool minus the platform fee and
// returns the amount paid
func (s *Service) PayPrize(ctx context.Context, winnerID model.PlayerID, gameID model.GameID, prizePool int64) (int64, error) {
	amount := s.PrizeFor(prizePool)
	if _, err := s.apply(ctx, winnerID, gameID, model.LedgerPrize, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// PrizeFor returns floor(prizePool * (100 - fee%) / 100)
func (s *Service) PrizeFor(prizePool int64) int64 {
	return prizePool * (100 - s.cfg.PlatformFeePercent) / 100
}

// History returns the player's ledger entries, newest first
func (s *Service) History(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.LedgerEntry, error) {
	return s.storage.ListLedgerEntries(ctx, playerID, limit)
}

// apply adds delta to the balance with compare-and-swap, retrying when a
// concurrent mutation of the same balance wins the race
func (s *Service) apply(ctx context.Context, playerID model.PlayerID, gameID model.GameID, kind model.LedgerKind, delta int64) (int64, error) {
	if delta == 0 && kind != model.LedgerPrize {
		return 0, model.ErrInvalidAmount
	}

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		before, err := s.storage.GetBalance(ctx, playerID)
		if err != nil {
			return 0, err
		}
		after := before + delta
		if after < 0 {
			return before, model.ErrInsufficientBalance
		}

		err = s.storage.CompareAndSwapBalance(ctx, playerID, before, after)
		if errors.Is(err, model.ErrConflict) {
			s.logger.Debug("balance changed concurrently, retrying",
				slog.String("player_id", string(playerID)),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return 0, err
		}

		s.record(ctx, &model.LedgerEntry{
			PlayerID:      playerID,
			Kind:          kind,
			Amount:        delta,
			BalanceBefore: before,
			BalanceAfter:  after,
			GameID:        gameID,
		})
		return after, nil
	}

	return 0, fmt.Errorf("%w: balance of %s kept changing", model.ErrConflict, playerID)
}

// record appends a ledger entry. The balance is already committed, so a
// failure is logged for reconciliation rather than returned.
func (s *Service) record(ctx context.Context, entry *model.LedgerEntry) {
	entry.CreatedAt = s.clock.Now()
	if err := s.storage.AppendLedgerEntry(ctx, entry); err != nil {
		s.logger.Error("failed to append ledger entry",
			slog.String("player_id", string(entry.PlayerID)),
			slog.String("kind", string(entry.Kind)),
			slog.Int64("amount", entry.Amount),
			slog.Int64("balance_after", entry.BalanceAfter),
			slog.String("game_id", string(entry.GameID)),
			slog.String("error", err.Error()),
		)
	}
}

// ServiceInterface for dependency injection
type ServiceInterface interface {
	OpenAccount(ctx context.Context, playerID model.PlayerID) (int64, error)
	Balance(ctx context.Context, playerID model.PlayerID) (int64, error)
	HasFunds(ctx context.Context, playerID model.PlayerID, amount int64) (bool, error)
	DebitEntryFee(ctx context.Context, playerID model.PlayerID, gameID model.GameID, fee int64) (int64, error)
	RefundEntryFee(ctx context.Context, playerID model.PlayerID, gameID model.GameID, fee int64) (int64, error)
	PayPrize(ctx context.Context, winnerID model.PlayerID, gameID model.GameID, prizePool int64) (int64, error)
	PrizeFor(prizePool int64) int64
	History(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.LedgerEntry, error)
}

var _ ServiceInterface = (*Service)(nil)
