package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/storage"
)

// Number of times a game write is retried after a concurrent write aborted it
const watchAttempts = 3

// Storage is a Redis-backed implementation of the storage interface.
// Conditional writes use WATCH/MULTI; a transaction aborted by a concurrent
// write is reported as model.ErrConflict.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Client returns the underlying client so Pub/Sub can share the connection pool
func (s *Storage) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	// Apply TTL only for guest players
	var ttl time.Duration
	if player.IsGuest {
		ttl = s.cfg.GuestPlayerTTL
	}
	return s.client.Set(ctx, playerKey(player.ID), data, ttl).Err()
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	return s.client.Del(ctx, playerKey(id)).Err()
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	data, err := json.Marshal(rp)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.Pipeline()
	pipe.Set(ctx, registeredPlayerKey(rp.PlayerID), data, 0) // No TTL
	pipe.Set(ctx, usernameIndexKey(rp.Username), string(rp.PlayerID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	data, err := s.client.Get(ctx, registeredPlayerKey(playerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var rp model.RegisteredPlayer
	if err := json.Unmarshal(data, &rp); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	// Look up player ID from username index
	playerIDStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	return s.GetRegisteredPlayer(ctx, model.PlayerID(playerIDStr))
}

// Balance operations

func (s *Storage) CreateBalance(ctx context.Context, playerID model.PlayerID, amount int64) error {
	ok, err := s.client.SetNX(ctx, balanceKey(playerID), amount, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrConflict
	}
	return nil
}

func (s *Storage) GetBalance(ctx context.Context, playerID model.PlayerID) (int64, error) {
	balance, err := s.client.Get(ctx, balanceKey(playerID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, model.ErrBalanceNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (s *Storage) CompareAndSwapBalance(ctx context.Context, playerID model.PlayerID, expected, updated int64) error {
	key := balanceKey(playerID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrBalanceNotFound
			}
			return err
		}
		if current != expected {
			return model.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
	return translateTxErr(err)
}

// Ledger operations

func (s *Storage) AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.LPush(ctx, ledgerKey(entry.PlayerID), data).Err()
}

func (s *Storage) ListLedgerEntries(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.LedgerEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	values, err := s.client.LRange(ctx, ledgerKey(playerID), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]*model.LedgerEntry, 0, len(values))
	for _, val := range values {
		var entry model.LedgerEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			continue // Skip invalid data
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	game.Version = storage.InitialVersion
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}

	key := gameKey(game.ID)
	return s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrConflict
		}
		if err := s.checkClaims(ctx, tx, game); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			s.indexGame(ctx, pipe, game)
			return nil
		})
		return err
	}, append([]string{key}, activeKeys(game)...)...)
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	return s.getGame(ctx, s.client, id)
}

func (s *Storage) UpdateGame(ctx context.Context, game *model.Game, expectedVersion int64) error {
	key := gameKey(game.ID)
	return s.watch(ctx, func(tx *redis.Tx) error {
		stored, err := s.getGame(ctx, tx, game.ID)
		if err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return model.ErrConflict
		}
		if err := stored.Status.CheckTransition(game.Status); err != nil {
			return err
		}
		if err := s.checkClaims(ctx, tx, game); err != nil {
			return err
		}

		next := game.Clone()
		next.Version = expectedVersion + 1
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}

		// Only clear active pointers that still reference this game
		stale := make(map[model.PlayerID]bool)
		if !next.Status.IsActive() {
			for _, p := range participants(next) {
				current, err := tx.Get(ctx, activeIndexKey(p)).Result()
				if err != nil && !errors.Is(err, redis.Nil) {
					return err
				}
				stale[p] = current == string(next.ID)
			}
		}

		var ttl time.Duration
		if next.Status.IsTerminal() {
			ttl = s.cfg.FinishedGameTTL
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			if stored.Status == model.GameStatusWaiting && next.Status != model.GameStatusWaiting {
				pipe.ZRem(ctx, waitingIndexKey(stored.EntryFee), string(next.ID))
			}
			if next.Status.IsActive() {
				s.indexGame(ctx, pipe, next)
			}
			for p, pointsHere := range stale {
				if pointsHere {
					pipe.Del(ctx, activeIndexKey(p))
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		game.Version = next.Version
		return nil
	}, append([]string{key}, activeKeys(game)...)...)
}

// indexGame queues the index writes for an active game
func (s *Storage) indexGame(ctx context.Context, pipe redis.Pipeliner, game *model.Game) {
	if game.Status == model.GameStatusWaiting {
		pipe.ZAdd(ctx, waitingIndexKey(game.EntryFee), redis.Z{
			Score:  float64(game.CreatedAt.UnixMilli()),
			Member: string(game.ID),
		})
	}
	for _, p := range participants(game) {
		pipe.Set(ctx, activeIndexKey(p), string(game.ID), 0)
	}
}

// checkClaims rejects an active game when one of its players' active
// pointer names another game that player is still in. Pointers left behind by
// finished or expired games are free to take over.
func (s *Storage) checkClaims(ctx context.Context, tx *redis.Tx, game *model.Game) error {
	if !game.Status.IsActive() {
		return nil
	}
	for _, p := range participants(game) {
		current, err := tx.Get(ctx, activeIndexKey(p)).Result()
		if errors.Is(err, redis.Nil) || current == string(game.ID) {
			continue
		}
		if err != nil {
			return err
		}

		other, err := s.getGame(ctx, tx, model.GameID(current))
		if errors.Is(err, model.ErrGameNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if other.Status.IsActive() && other.HasPlayer(p) {
			return model.ErrActiveGameExists
		}
	}
	return nil
}

// watch runs fn under WATCH on keys. A transaction aborted by a concurrent
// write is retried so the retry reports what that writer left behind; once
// the attempts run out the abort surfaces as model.ErrConflict.
func (s *Storage) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < watchAttempts; i++ {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	return translateTxErr(err)
}

func participants(game *model.Game) []model.PlayerID {
	players := make([]model.PlayerID, 0, 2)
	for _, p := range []model.PlayerID{game.Player1ID, game.Player2ID} {
		if p != "" {
			players = append(players, p)
		}
	}
	return players
}

func activeKeys(game *model.Game) []string {
	players := participants(game)
	keys := make([]string, len(players))
	for i, p := range players {
		keys[i] = activeIndexKey(p)
	}
	return keys
}

func (s *Storage) FindWaitingGames(ctx context.Context, query storage.WaitingGamesQuery) ([]*model.Game, error) {
	ids, err := s.client.ZRangeByScore(ctx, waitingIndexKey(query.EntryFee), &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", query.CreatedAfter.UnixMilli()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Game{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = gameKey(model.GameID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	games := make([]*model.Game, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Game may have expired
		}
		var game model.Game
		if err := json.Unmarshal([]byte(str), &game); err != nil {
			continue // Skip invalid data
		}
		if !query.Matches(&game) {
			continue
		}
		games = append(games, &game)
		if query.Limit > 0 && len(games) == query.Limit {
			break
		}
	}
	return games, nil
}

func (s *Storage) FindActiveGameForPlayer(ctx context.Context, playerID model.PlayerID) (*model.Game, error) {
	id, err := s.client.Get(ctx, activeIndexKey(playerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}

	game, err := s.GetGame(ctx, model.GameID(id))
	if err != nil {
		return nil, err
	}
	if !game.Status.IsActive() || !game.HasPlayer(playerID) {
		return nil, model.ErrGameNotFound
	}
	return game, nil
}

func (s *Storage) getGame(ctx context.Context, c redis.Cmdable, id model.GameID) (*model.Game, error) {
	data, err := c.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}

	var game model.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// Chat operations

func (s *Storage) AppendChatMessage(ctx context.Context, msg *model.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := chatKey(msg.GameID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if s.cfg.ChatTTL > 0 {
		pipe.Expire(ctx, key, s.cfg.ChatTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ListChatMessages(ctx context.Context, gameID model.GameID, limit int) ([]*model.ChatMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	values, err := s.client.LRange(ctx, chatKey(gameID), start, -1).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]*model.ChatMessage, 0, len(values))
	for _, val := range values {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(val), &msg); err != nil {
			continue // Skip invalid data
		}
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}

// translateTxErr maps an aborted optimistic transaction to a conflict
func translateTxErr(err error) error {
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrConflict
	}
	return err
}
