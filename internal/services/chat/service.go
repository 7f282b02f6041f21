package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ludoduel/ludo-server/internal/dependencies/clock"
	"github.com/ludoduel/ludo-server/internal/dependencies/ids"
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/realtime"
	"github.com/ludoduel/ludo-server/internal/storage"
)

// Config holds configuration for the chat service
type Config struct {
	DefaultListLimit int // Messages returned when the caller asks for none
	MaxListLimit     int
}

// DefaultConfig returns default chat configuration
func DefaultConfig() Config {
	return Config{
		DefaultListLimit: 100,
		MaxListLimit:     500,
	}
}

// Service manages the append-only chat log of each game
type Service struct {
	storage  storage.Storage
	notifier realtime.Notifier
	clock    clock.Clock
	ids      ids.Generator
	logger   *slog.Logger
	cfg      Config
}

// New creates a new chat Service
func New(
	storage storage.Storage,
	notifier realtime.Notifier,
	clock clock.Clock,
	ids ids.Generator,
	logger *slog.Logger,
	cfg Config,
) *Service {
	return &Service{
		storage:  storage,
		notifier: notifier,
		clock:    clock,
		ids:      ids,
		logger:   logger.With("component", "chat"),
		cfg:      cfg,
	}
}

// Send appends a participant's message to the game's chat
func (s *Service) Send(ctx context.Context, gameID model.GameID, senderID model.PlayerID, text string, msgType model.MessageType) (*model.ChatMessage, error) {
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	if !msgType.IsUserType() {
		return nil, fmt.Errorf("%w: type %q", model.ErrInvalidMessage, msgType)
	}
	text, err := normalizeText(text)
	if err != nil {
		return nil, err
	}

	if _, err := s.participantGame(ctx, gameID, senderID); err != nil {
		return nil, err
	}

	return s.append(ctx, &model.ChatMessage{
		GameID:   gameID,
		SenderID: senderID,
		Text:     text,
		Type:     msgType,
	})
}

// Announce appends a server-authored system message
func (s *Service) Announce(ctx context.Context, gameID model.GameID, text string) error {
	text, err := normalizeText(text)
	if err != nil {
		return err
	}
	_, err = s.append(ctx, &model.ChatMessage{
		GameID: gameID,
		Text:   text,
		Type:   model.MessageTypeSystem,
	})
	return err
}

// List returns the latest messages of a game, oldest first
func (s *Service) List(ctx context.Context, gameID model.GameID, playerID model.PlayerID, limit int) ([]*model.ChatMessage, error) {
	if _, err := s.participantGame(ctx, gameID, playerID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = s.cfg.DefaultListLimit
	case s.cfg.MaxListLimit > 0 && limit > s.cfg.MaxListLimit:
		limit = s.cfg.MaxListLimit
	}
	return s.storage.ListChatMessages(ctx, gameID, limit)
}

func (s *Service) participantGame(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Game, error) {
	game, err := s.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.HasPlayer(playerID) {
		return nil, model.ErrNotParticipant
	}
	return game, nil
}

func (s *Service) append(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error) {
	msg.ID = model.MessageID(s.ids.NewID())
	msg.CreatedAt = s.clock.Now()

	if err := s.storage.AppendChatMessage(ctx, msg); err != nil {
		s.logger.Error("failed to append chat message",
			slog.String("game_id", string(msg.GameID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	// The message is committed; subscribers that miss the event see it on the next list
	if err := s.notifier.Publish(ctx, model.ChatInserted(msg)); err != nil {
		s.logger.Warn("failed to publish chat message",
			slog.String("game_id", string(msg.GameID)),
			slog.String("message_id", string(msg.ID)),
			slog.String("error", err.Error()),
		)
	}
	return msg, nil
}

// normalizeText trims surrounding whitespace and enforces 1..MaxChatMessageLength runes
func normalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return "", fmt.Errorf("%w: empty text", model.ErrInvalidMessage)
	}
	if n > model.MaxChatMessageLength {
		return "", fmt.Errorf("%w: longer than %d characters", model.ErrInvalidMessage, model.MaxChatMessageLength)
	}
	return text, nil
}

// ServiceInterface for dependency injection
type ServiceInterface interface {
	Send(ctx context.Context, gameID model.GameID, senderID model.PlayerID, text string, msgType model.MessageType) (*model.ChatMessage, error)
	Announce(ctx context.Context, gameID model.GameID, text string) error
	List(ctx context.Context, gameID model.GameID, playerID model.PlayerID, limit int) ([]*model.ChatMessage, error)
}

var _ ServiceInterface = (*Service)(nil)
