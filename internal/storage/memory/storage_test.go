package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.ContractSuite
	memory *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.memory = New()
	s.Storage = s.memory
	s.Ctx = context.Background()
}

func (s *StorageSuite) TestMutatingListedMessageDoesNotLeak() {
	s.Require().NoError(s.memory.AppendChatMessage(s.Ctx, &model.ChatMessage{
		ID: "msg-1", GameID: "game-1", Text: "hi", Type: model.MessageTypeText,
	}))

	msgs, _ := s.memory.ListChatMessages(s.Ctx, "game-1", 0)
	msgs[0].Text = "changed"

	again, _ := s.memory.ListChatMessages(s.Ctx, "game-1", 0)
	s.Equal("hi", again[0].Text)
}
