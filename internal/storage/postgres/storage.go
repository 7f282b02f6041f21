package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/storage"
)

// Storage is a PostgreSQL implementation of the storage interface built on GORM.
// Balance writes are single UPDATE statements guarded on the previously read
// value; zero affected rows means the guard failed. Game writes run in a
// transaction that locks the row and maintains the active_games claims.
type Storage struct {
	db *gorm.DB
}

// New opens a connection pool and migrates the schema if configured
func New(cfg Config) (*Storage, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := &Storage{db: db}
	if cfg.AutoMigrate {
		if err := s.Migrate(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing GORM handle (for testing)
func NewWithDB(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

// Migrate creates or updates all tables
func (s *Storage) Migrate() error {
	if err := s.db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	return s.db.WithContext(ctx).Save(toPlayerRow(player)).Error
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var row playerRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, model.ErrPlayerNotFound)
	}
	return row.toModel(), nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	return s.db.WithContext(ctx).Delete(&playerRow{}, "id = ?", string(id)).Error
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	return s.db.WithContext(ctx).Save(toRegisteredPlayerRow(rp)).Error
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	var row registeredPlayerRow
	if err := s.db.WithContext(ctx).First(&row, "player_id = ?", string(playerID)).Error; err != nil {
		return nil, notFound(err, model.ErrPlayerNotFound)
	}
	return row.toModel(), nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	var row registeredPlayerRow
	if err := s.db.WithContext(ctx).First(&row, "username = ?", username).Error; err != nil {
		return nil, notFound(err, model.ErrPlayerNotFound)
	}
	return row.toModel(), nil
}

// Balance operations

func (s *Storage) CreateBalance(ctx context.Context, playerID model.PlayerID, amount int64) error {
	err := s.db.WithContext(ctx).Create(&balanceRow{PlayerID: string(playerID), Balance: amount}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.ErrConflict
	}
	return err
}

func (s *Storage) GetBalance(ctx context.Context, playerID model.PlayerID) (int64, error) {
	var row balanceRow
	if err := s.db.WithContext(ctx).First(&row, "player_id = ?", string(playerID)).Error; err != nil {
		return 0, notFound(err, model.ErrBalanceNotFound)
	}
	return row.Balance, nil
}

func (s *Storage) CompareAndSwapBalance(ctx context.Context, playerID model.PlayerID, expected, updated int64) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&balanceRow{}).
		Where("player_id = ? AND balance = ?", string(playerID), expected).
		Update("balance", updated)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.missingOrConflict(db, &balanceRow{}, "player_id = ?", string(playerID), model.ErrBalanceNotFound)
	}
	return nil
}

// Ledger operations

func (s *Storage) AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return s.db.WithContext(ctx).Create(toLedgerEntryRow(entry)).Error
}

func (s *Storage) ListLedgerEntries(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.LedgerEntry, error) {
	q := s.db.WithContext(ctx).Where("player_id = ?", string(playerID)).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []ledgerEntryRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]*model.LedgerEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toModel()
	}
	return entries, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	game.Version = storage.InitialVersion
	row, err := toGameRow(game)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Create(row).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.ErrConflict
		}
		if err != nil {
			return err
		}
		return claimActive(tx, game)
	})
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	var row gameRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, model.ErrGameNotFound)
	}
	return row.toModel()
}

func (s *Storage) UpdateGame(ctx context.Context, game *model.Game, expectedVersion int64) error {
	row, err := toGameRow(game)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored gameRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&stored, "id = ?", row.ID).Error
		if err != nil {
			return notFound(err, model.ErrGameNotFound)
		}
		if stored.Version != expectedVersion {
			return model.ErrConflict
		}
		if err := model.GameStatus(stored.Status).CheckTransition(game.Status); err != nil {
			return err
		}

		err = tx.Model(&gameRow{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{
				"player2_id":   row.Player2ID,
				"prize_pool":   row.PrizePool,
				"status":       row.Status,
				"current_turn": row.CurrentTurn,
				"winner_id":    row.WinnerID,
				"game_state":   row.GameState,
				"version":      expectedVersion + 1,
				"updated_at":   row.UpdatedAt,
			}).Error
		if err != nil {
			return err
		}
		return claimActive(tx, game)
	})
	if err != nil {
		return err
	}
	game.Version = expectedVersion + 1
	return nil
}

// claimActive records an active game as its players' one active game and
// releases the claims once the game leaves the active statuses. Concurrent
// inserts for the same player serialise on the primary key.
func claimActive(tx *gorm.DB, game *model.Game) error {
	if !game.Status.IsActive() {
		return tx.Where("game_id = ?", string(game.ID)).Delete(&activeGameRow{}).Error
	}

	for _, p := range []model.PlayerID{game.Player1ID, game.Player2ID} {
		if p == "" {
			continue
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&activeGameRow{PlayerID: string(p), GameID: string(game.ID)})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			continue
		}

		var held activeGameRow
		if err := tx.First(&held, "player_id = ?", string(p)).Error; err != nil {
			return err
		}
		if held.GameID != string(game.ID) {
			return model.ErrActiveGameExists
		}
	}
	return nil
}

func (s *Storage) FindWaitingGames(ctx context.Context, query storage.WaitingGamesQuery) ([]*model.Game, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND entry_fee = ? AND player1_id <> ? AND created_at > ?",
			string(model.GameStatusWaiting), query.EntryFee, string(query.ExcludePlayer), query.CreatedAfter).
		Order("created_at ASC")
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	var rows []gameRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return gamesFromRows(rows)
}

func (s *Storage) FindActiveGameForPlayer(ctx context.Context, playerID model.PlayerID) (*model.Game, error) {
	var row gameRow
	err := s.db.WithContext(ctx).
		Where("(player1_id = ? OR player2_id = ?) AND status IN ?",
			string(playerID), string(playerID),
			[]string{string(model.GameStatusWaiting), string(model.GameStatusPlaying)}).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return nil, notFound(err, model.ErrGameNotFound)
	}
	return row.toModel()
}

// Chat operations

func (s *Storage) AppendChatMessage(ctx context.Context, msg *model.ChatMessage) error {
	return s.db.WithContext(ctx).Create(toChatMessageRow(msg)).Error
}

func (s *Storage) ListChatMessages(ctx context.Context, gameID model.GameID, limit int) ([]*model.ChatMessage, error) {
	q := s.db.WithContext(ctx).Where("game_id = ?", string(gameID)).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []chatMessageRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	// Newest were fetched first; return them in chronological order
	msgs := make([]*model.ChatMessage, len(rows))
	for i := range rows {
		msgs[len(rows)-1-i] = rows[i].toModel()
	}
	return msgs, nil
}

// missingOrConflict decides why a guarded update touched no rows
func (s *Storage) missingOrConflict(db *gorm.DB, row any, where string, id string, missing error) error {
	var count int64
	if err := db.Model(row).Where(where, id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return missing
	}
	return model.ErrConflict
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func gamesFromRows(rows []gameRow) ([]*model.Game, error) {
	games := make([]*model.Game, 0, len(rows))
	for i := range rows {
		g, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, nil
}
