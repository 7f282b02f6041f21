package model

import "time"

// MessageID uniquely identifies a chat message
type MessageID string

// MessageType tags how a chat message is rendered
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeEmoji  MessageType = "emoji"
	MessageTypeSystem MessageType = "system" // Written only by the server
)

// MaxChatMessageLength is the maximum number of runes in a message
const MaxChatMessageLength = 500

// IsUserType returns true for the types a participant may send
func (t MessageType) IsUserType() bool {
	return t == MessageTypeText || t == MessageTypeEmoji
}

// ChatMessage is an append-only entry of a game's chat log
type ChatMessage struct {
	ID        MessageID   `json:"id"`
	GameID    GameID      `json:"game_id"`
	SenderID  PlayerID    `json:"sender_id,omitempty"` // Empty for system messages
	Text      string      `json:"text"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}
