package storage

import (
	"context"
	"time"

	"github.com/ludoduel/ludo-server/internal/model"
)

// Storage defines the interface for data persistence.
//
// Conditional writes are the only race protection: UpdateGame applies only if
// the stored version still equals expectedVersion and CompareAndSwapBalance
// only if the stored balance still equals expected. Both report
// model.ErrConflict otherwise. There are no cross-record transactions.
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	DeletePlayer(ctx context.Context, id model.PlayerID) error

	// Registered player operations
	SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error
	GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)

	// Balance operations
	CreateBalance(ctx context.Context, playerID model.PlayerID, amount int64) error
	GetBalance(ctx context.Context, playerID model.PlayerID) (int64, error)
	CompareAndSwapBalance(ctx context.Context, playerID model.PlayerID, expected, updated int64) error

	// Ledger operations
	AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.LedgerEntry, error)

	// Game operations
	CreateGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	UpdateGame(ctx context.Context, game *model.Game, expectedVersion int64) error
	FindWaitingGames(ctx context.Context, query WaitingGamesQuery) ([]*model.Game, error)
	FindActiveGameForPlayer(ctx context.Context, playerID model.PlayerID) (*model.Game, error)

	// Chat operations
	AppendChatMessage(ctx context.Context, msg *model.ChatMessage) error
	ListChatMessages(ctx context.Context, gameID model.GameID, limit int) ([]*model.ChatMessage, error)
}

// WaitingGamesQuery selects joinable games, oldest first
type WaitingGamesQuery struct {
	EntryFee      int64
	CreatedAfter  time.Time
	ExcludePlayer model.PlayerID
	Limit         int
}

// Matches reports whether a game satisfies the query
func (q WaitingGamesQuery) Matches(g *model.Game) bool {
	return g.Status == model.GameStatusWaiting &&
		g.EntryFee == q.EntryFee &&
		g.Player1ID != q.ExcludePlayer &&
		g.CreatedAt.After(q.CreatedAfter)
}

// InitialVersion is the version of a freshly created game
const InitialVersion int64 = 1
