package model

// Table names a source of change events
type Table string

const (
	TableGames        Table = "games"
	TableChatMessages Table = "chat_messages"
)

// ChangeType identifies the kind of row change
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
)

// ChangeEvent is pushed to every subscriber of a game when its record or
// chat log changes. Old is nil for inserts; Message is set only for chat.
type ChangeEvent struct {
	Table   Table        `json:"table"`
	Event   ChangeType   `json:"event"`
	GameID  GameID       `json:"game_id"`
	Old     *Game        `json:"old,omitempty"`
	New     *Game        `json:"new,omitempty"`
	Message *ChatMessage `json:"message,omitempty"`
}

// GameInserted builds the event for a newly created game
func GameInserted(game *Game) ChangeEvent {
	return ChangeEvent{Table: TableGames, Event: ChangeInsert, GameID: game.ID, New: game}
}

// GameUpdated builds the event for a game update
func GameUpdated(old, updated *Game) ChangeEvent {
	return ChangeEvent{Table: TableGames, Event: ChangeUpdate, GameID: updated.ID, Old: old, New: updated}
}

// ChatInserted builds the event for a new chat message
func ChatInserted(msg *ChatMessage) ChangeEvent {
	return ChangeEvent{Table: TableChatMessages, Event: ChangeInsert, GameID: msg.GameID, Message: msg}
}
