package postgres

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/ludoduel/ludo-server/internal/model"
)

type playerRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	DisplayName string `gorm:"size:64;not null"`
	IsGuest     bool   `gorm:"not null;default:false"`
	CreatedAt   time.Time
}

func (playerRow) TableName() string { return "players" }

type registeredPlayerRow struct {
	PlayerID     string `gorm:"primaryKey;size:64"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (registeredPlayerRow) TableName() string { return "registered_players" }

type balanceRow struct {
	PlayerID  string `gorm:"primaryKey;size:64"`
	Balance   int64  `gorm:"not null"`
	UpdatedAt time.Time
}

func (balanceRow) TableName() string { return "balances" }

type ledgerEntryRow struct {
	ID            uint   `gorm:"primaryKey"`
	PlayerID      string `gorm:"size:64;index;not null"`
	Kind          string `gorm:"size:16;not null"`
	Amount        int64  `gorm:"not null"`
	BalanceBefore int64  `gorm:"not null"`
	BalanceAfter  int64  `gorm:"not null"`
	GameID        string `gorm:"size:64"`
	CreatedAt     time.Time
}

func (ledgerEntryRow) TableName() string { return "ledger_entries" }

type gameRow struct {
	ID          string         `gorm:"primaryKey;size:64"`
	Player1ID   string         `gorm:"size:64;index;not null"`
	Player2ID   string         `gorm:"size:64;index"`
	EntryFee    int64          `gorm:"not null;index:idx_games_waiting,priority:2"`
	PrizePool   int64          `gorm:"not null"`
	Status      string         `gorm:"size:16;not null;index:idx_games_waiting,priority:1"`
	CurrentTurn string         `gorm:"size:64"`
	WinnerID    string         `gorm:"size:64"`
	GameState   datatypes.JSON `gorm:"not null"`
	Version     int64          `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"index:idx_games_waiting,priority:3"`
	UpdatedAt   time.Time
}

func (gameRow) TableName() string { return "games" }

// activeGameRow claims a player's single waiting or playing game
type activeGameRow struct {
	PlayerID string `gorm:"primaryKey;size:64"`
	GameID   string `gorm:"size:64;index;not null"`
}

func (activeGameRow) TableName() string { return "active_games" }

type chatMessageRow struct {
	Seq       uint   `gorm:"primaryKey"`
	ID        string `gorm:"size:64;uniqueIndex;not null"`
	GameID    string `gorm:"size:64;index;not null"`
	SenderID  string `gorm:"size:64"`
	Text      string `gorm:"size:2000;not null"`
	Type      string `gorm:"size:16;not null"`
	CreatedAt time.Time
}

func (chatMessageRow) TableName() string { return "chat_messages" }

func allModels() []any {
	return []any{
		&playerRow{},
		&registeredPlayerRow{},
		&balanceRow{},
		&ledgerEntryRow{},
		&gameRow{},
		&activeGameRow{},
		&chatMessageRow{},
	}
}

// Conversions

func toPlayerRow(p *model.Player) *playerRow {
	return &playerRow{ID: string(p.ID), DisplayName: p.DisplayName, IsGuest: p.IsGuest, CreatedAt: p.CreatedAt}
}

func (r *playerRow) toModel() *model.Player {
	return &model.Player{ID: model.PlayerID(r.ID), DisplayName: r.DisplayName, IsGuest: r.IsGuest, CreatedAt: r.CreatedAt}
}

func toRegisteredPlayerRow(rp *model.RegisteredPlayer) *registeredPlayerRow {
	return &registeredPlayerRow{
		PlayerID:     string(rp.PlayerID),
		Username:     rp.Username,
		PasswordHash: rp.PasswordHash,
		CreatedAt:    rp.CreatedAt,
		UpdatedAt:    rp.UpdatedAt,
	}
}

func (r *registeredPlayerRow) toModel() *model.RegisteredPlayer {
	return &model.RegisteredPlayer{
		PlayerID:     model.PlayerID(r.PlayerID),
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toLedgerEntryRow(e *model.LedgerEntry) *ledgerEntryRow {
	return &ledgerEntryRow{
		PlayerID:      string(e.PlayerID),
		Kind:          string(e.Kind),
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		GameID:        string(e.GameID),
		CreatedAt:     e.CreatedAt,
	}
}

func (r *ledgerEntryRow) toModel() *model.LedgerEntry {
	return &model.LedgerEntry{
		PlayerID:      model.PlayerID(r.PlayerID),
		Kind:          model.LedgerKind(r.Kind),
		Amount:        r.Amount,
		BalanceBefore: r.BalanceBefore,
		BalanceAfter:  r.BalanceAfter,
		GameID:        model.GameID(r.GameID),
		CreatedAt:     r.CreatedAt,
	}
}

func toGameRow(g *model.Game) (*gameRow, error) {
	state, err := json.Marshal(g.State)
	if err != nil {
		return nil, err
	}
	return &gameRow{
		ID:          string(g.ID),
		Player1ID:   string(g.Player1ID),
		Player2ID:   string(g.Player2ID),
		EntryFee:    g.EntryFee,
		PrizePool:   g.PrizePool,
		Status:      string(g.Status),
		CurrentTurn: string(g.CurrentTurn),
		WinnerID:    string(g.WinnerID),
		GameState:   datatypes.JSON(state),
		Version:     g.Version,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}, nil
}

func (r *gameRow) toModel() (*model.Game, error) {
	var state model.BoardState
	if err := json.Unmarshal(r.GameState, &state); err != nil {
		return nil, err
	}
	return &model.Game{
		ID:          model.GameID(r.ID),
		Player1ID:   model.PlayerID(r.Player1ID),
		Player2ID:   model.PlayerID(r.Player2ID),
		EntryFee:    r.EntryFee,
		PrizePool:   r.PrizePool,
		Status:      model.GameStatus(r.Status),
		CurrentTurn: model.PlayerID(r.CurrentTurn),
		WinnerID:    model.PlayerID(r.WinnerID),
		State:       state,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func toChatMessageRow(m *model.ChatMessage) *chatMessageRow {
	return &chatMessageRow{
		ID:        string(m.ID),
		GameID:    string(m.GameID),
		SenderID:  string(m.SenderID),
		Text:      m.Text,
		Type:      string(m.Type),
		CreatedAt: m.CreatedAt,
	}
}

func (r *chatMessageRow) toModel() *model.ChatMessage {
	return &model.ChatMessage{
		ID:        model.MessageID(r.ID),
		GameID:    model.GameID(r.GameID),
		SenderID:  model.PlayerID(r.SenderID),
		Text:      r.Text,
		Type:      model.MessageType(r.Type),
		CreatedAt: r.CreatedAt,
	}
}
