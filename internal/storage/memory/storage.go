package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Games are cloned on the way in and out so callers never share state.
type Storage struct {
	mu sync.RWMutex

	players           map[model.PlayerID]*model.Player
	registeredPlayers map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex     map[string]model.PlayerID
	balances          map[model.PlayerID]int64
	ledger            map[model.PlayerID][]model.LedgerEntry
	games             map[model.GameID]*model.Game
	chat              map[model.GameID][]model.ChatMessage
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:           make(map[model.PlayerID]*model.Player),
		registeredPlayers: make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex:     make(map[string]model.PlayerID),
		balances:          make(map[model.PlayerID]int64),
		ledger:            make(map[model.PlayerID][]model.LedgerEntry),
		games:             make(map[model.GameID]*model.Game),
		chat:              make(map[model.GameID][]model.ChatMessage),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *player
	s.players[player.ID] = &p
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	p := *player
	return &p, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredPlayers[rp.PlayerID] = rp
	s.usernameIndex[rp.Username] = rp.PlayerID
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

// Balance operations

func (s *Storage) CreateBalance(ctx context.Context, playerID model.PlayerID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[playerID]; ok {
		return model.ErrConflict
	}
	s.balances[playerID] = amount
	return nil
}

func (s *Storage) GetBalance(ctx context.Context, playerID model.PlayerID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance, ok := s.balances[playerID]
	if !ok {
		return 0, model.ErrBalanceNotFound
	}
	return balance, nil
}

func (s *Storage) CompareAndSwapBalance(ctx context.Context, playerID model.PlayerID, expected, updated int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.balances[playerID]
	if !ok {
		return model.ErrBalanceNotFound
	}
	if current != expected {
		return model.ErrConflict
	}
	s.balances[playerID] = updated
	return nil
}

// Ledger operations

func (s *Storage) AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger[entry.PlayerID] = append(s.ledger[entry.PlayerID], *entry)
	return nil
}

// ListLedgerEntries returns the newest entries first
func (s *Storage) ListLedgerEntries(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.ledger[playerID]
	result := make([]*model.LedgerEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		e := entries[i]
		result = append(result, &e)
	}
	return result, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game.ID]; ok {
		return model.ErrConflict
	}
	if err := s.checkActiveLocked(game); err != nil {
		return err
	}
	game.Version = storage.InitialVersion
	s.games[game.ID] = game.Clone()
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return game.Clone(), nil
}

func (s *Storage) UpdateGame(ctx context.Context, game *model.Game, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.games[game.ID]
	if !ok {
		return model.ErrGameNotFound
	}
	if stored.Version != expectedVersion {
		return model.ErrConflict
	}
	if err := stored.Status.CheckTransition(game.Status); err != nil {
		return err
	}
	if err := s.checkActiveLocked(game); err != nil {
		return err
	}
	game.Version = expectedVersion + 1
	s.games[game.ID] = game.Clone()
	return nil
}

// checkActiveLocked rejects an active game whose players are already in
// another active game. Callers hold the write lock.
func (s *Storage) checkActiveLocked(game *model.Game) error {
	if !game.Status.IsActive() {
		return nil
	}
	for _, g := range s.games {
		if g.ID == game.ID || !g.Status.IsActive() {
			continue
		}
		if g.HasPlayer(game.Player1ID) || g.HasPlayer(game.Player2ID) {
			return model.ErrActiveGameExists
		}
	}
	return nil
}

func (s *Storage) FindWaitingGames(ctx context.Context, query storage.WaitingGamesQuery) ([]*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var games []*model.Game
	for _, g := range s.games {
		if query.Matches(g) {
			games = append(games, g.Clone())
		}
	}
	sort.Slice(games, func(i, j int) bool {
		return games[i].CreatedAt.Before(games[j].CreatedAt)
	})
	if query.Limit > 0 && len(games) > query.Limit {
		games = games[:query.Limit]
	}
	return games, nil
}

func (s *Storage) FindActiveGameForPlayer(ctx context.Context, playerID model.PlayerID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *model.Game
	for _, g := range s.games {
		if !g.Status.IsActive() || !g.HasPlayer(playerID) {
			continue
		}
		if found == nil || g.CreatedAt.After(found.CreatedAt) {
			found = g
		}
	}
	if found == nil {
		return nil, model.ErrGameNotFound
	}
	return found.Clone(), nil
}

// Chat operations

func (s *Storage) AppendChatMessage(ctx context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat[msg.GameID] = append(s.chat[msg.GameID], *msg)
	return nil
}

// ListChatMessages returns the latest messages, oldest first
func (s *Storage) ListChatMessages(ctx context.Context, gameID model.GameID, limit int) ([]*model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.chat[gameID]
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}
	result := make([]*model.ChatMessage, 0, len(msgs)-start)
	for i := start; i < len(msgs); i++ {
		m := msgs[i]
		result = append(result, &m)
	}
	return result, nil
}
