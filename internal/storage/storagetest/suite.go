// Package storagetest holds the behavioural contract every storage backend
// must satisfy, run from each backend's own tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/storage"
)

// ContractSuite exercises the storage.Storage contract. Backends embed it
// and set NewStorage in their SetupTest.
type ContractSuite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// At returns a fixed timestamp offset from a base time
func At(offset time.Duration) time.Time {
	return baseTime.Add(offset)
}

// NewWaitingGame builds a waiting game record
func NewWaitingGame(id model.GameID, creator model.PlayerID, fee int64, createdAt time.Time) *model.Game {
	return &model.Game{
		ID:        id,
		Player1ID: creator,
		EntryFee:  fee,
		PrizePool: fee,
		Status:    model.GameStatusWaiting,
		State:     model.NewBoardState(),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// Player tests

func (s *ContractSuite) TestSaveAndGetPlayer() {
	player := &model.Player{ID: "player-1", DisplayName: "Alice", IsGuest: true, CreatedAt: At(0)}
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, player))

	retrieved, err := s.Storage.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(player.ID, retrieved.ID)
	s.Equal("Alice", retrieved.DisplayName)
	s.True(retrieved.IsGuest)
}

func (s *ContractSuite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ContractSuite) TestDeletePlayer() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, &model.Player{ID: "player-1", DisplayName: "Alice", CreatedAt: At(0)}))

	s.Require().NoError(s.Storage.DeletePlayer(s.Ctx, "player-1"))

	_, err := s.Storage.GetPlayer(s.Ctx, "player-1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ContractSuite) TestRegisteredPlayerByUsername() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, &model.Player{ID: "player-1", DisplayName: "Alice", CreatedAt: At(0)}))
	rp := &model.RegisteredPlayer{PlayerID: "player-1", Username: "alice", PasswordHash: "hash", CreatedAt: At(0), UpdatedAt: At(0)}
	s.Require().NoError(s.Storage.SaveRegisteredPlayer(s.Ctx, rp))

	byID, err := s.Storage.GetRegisteredPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)

	byName, err := s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), byName.PlayerID)
	s.Equal("hash", byName.PasswordHash)

	_, err = s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Balance tests

func (s *ContractSuite) TestCreateAndGetBalance() {
	s.Require().NoError(s.Storage.CreateBalance(s.Ctx, "player-1", 500))

	balance, err := s.Storage.GetBalance(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(int64(500), balance)
}

func (s *ContractSuite) TestCreateBalanceTwiceConflicts() {
	s.Require().NoError(s.Storage.CreateBalance(s.Ctx, "player-1", 500))

	err := s.Storage.CreateBalance(s.Ctx, "player-1", 700)
	s.ErrorIs(err, model.ErrConflict)

	balance, _ := s.Storage.GetBalance(s.Ctx, "player-1")
	s.Equal(int64(500), balance)
}

func (s *ContractSuite) TestGetBalanceNotFound() {
	_, err := s.Storage.GetBalance(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrBalanceNotFound)
}

func (s *ContractSuite) TestCompareAndSwapBalance() {
	s.Require().NoError(s.Storage.CreateBalance(s.Ctx, "player-1", 500))

	s.Require().NoError(s.Storage.CompareAndSwapBalance(s.Ctx, "player-1", 500, 400))

	err := s.Storage.CompareAndSwapBalance(s.Ctx, "player-1", 500, 300)
	s.ErrorIs(err, model.ErrConflict)

	balance, _ := s.Storage.GetBalance(s.Ctx, "player-1")
	s.Equal(int64(400), balance)
}

func (s *ContractSuite) TestCompareAndSwapBalanceNotFound() {
	err := s.Storage.CompareAndSwapBalance(s.Ctx, "nobody", 0, 10)
	s.ErrorIs(err, model.ErrBalanceNotFound)
}

func (s *ContractSuite) TestConcurrentCompareAndSwapOnlyOneWins() {
	s.Require().NoError(s.Storage.CreateBalance(s.Ctx, "player-1", 100))

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- s.Storage.CompareAndSwapBalance(s.Ctx, "player-1", 100, int64(i))
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			s.ErrorIs(err, model.ErrConflict)
		}
	}
	s.Equal(1, wins)
}

// Ledger tests

func (s *ContractSuite) TestLedgerEntriesNewestFirst() {
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.Storage.AppendLedgerEntry(s.Ctx, &model.LedgerEntry{
			PlayerID:      "player-1",
			Kind:          model.LedgerEntryFee,
			Amount:        int64(-10 * (i + 1)),
			BalanceBefore: 100,
			BalanceAfter:  int64(100 - 10*(i+1)),
			GameID:        model.GameID(fmt.Sprintf("game-%d", i)),
			CreatedAt:     At(time.Duration(i) * time.Second),
		}))
	}
	s.Require().NoError(s.Storage.AppendLedgerEntry(s.Ctx, &model.LedgerEntry{
		PlayerID: "player-2", Kind: model.LedgerInitial, Amount: 1000, BalanceAfter: 1000, CreatedAt: At(0),
	}))

	entries, err := s.Storage.ListLedgerEntries(s.Ctx, "player-1", 0)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal(model.GameID("game-2"), entries[0].GameID)
	s.Equal(int64(-30), entries[0].Amount)
	s.Equal(model.GameID("game-0"), entries[2].GameID)

	limited, err := s.Storage.ListLedgerEntries(s.Ctx, "player-1", 2)
	s.Require().NoError(err)
	s.Len(limited, 2)
}

// Game tests

func (s *ContractSuite) TestCreateAndGetGame() {
	game := NewWaitingGame("game-1", "player-1", 100, At(0))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, game))
	s.Equal(storage.InitialVersion, game.Version)

	retrieved, err := s.Storage.GetGame(s.Ctx, "game-1")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), retrieved.Player1ID)
	s.Equal(model.GameStatusWaiting, retrieved.Status)
	s.Equal(int64(100), retrieved.PrizePool)
	s.Equal(storage.InitialVersion, retrieved.Version)
	s.Equal(model.HomeToken(), retrieved.State.Player1Tokens[0])
	s.Equal(model.ColorRed, retrieved.State.Player2Color)
	s.True(retrieved.CreatedAt.Equal(At(0)))
}

func (s *ContractSuite) TestGetGameNotFound() {
	_, err := s.Storage.GetGame(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *ContractSuite) TestUpdateGameBumpsVersion() {
	game := NewWaitingGame("game-1", "player-1", 100, At(0))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, game))

	game.Player2ID = "player-2"
	game.Status = model.GameStatusPlaying
	game.CurrentTurn = "player-1"
	game.PrizePool = 200
	game.State.Player1Tokens[0] = model.TrackToken(0)
	game.State.MoveHistory = append(game.State.MoveHistory, model.MoveRecord{
		PlayerID: "player-1", Dice: 6, Token: 0, From: model.HomeToken(), To: model.TrackToken(0), At: At(time.Second),
	})
	s.Require().NoError(s.Storage.UpdateGame(s.Ctx, game, storage.InitialVersion))
	s.Equal(storage.InitialVersion+1, game.Version)

	retrieved, err := s.Storage.GetGame(s.Ctx, "game-1")
	s.Require().NoError(err)
	s.Equal(model.GameStatusPlaying, retrieved.Status)
	s.Equal(model.PlayerID("player-2"), retrieved.Player2ID)
	s.Equal(storage.InitialVersion+1, retrieved.Version)
	s.Equal(model.TrackToken(0), retrieved.State.Player1Tokens[0])
	s.Require().Len(retrieved.State.MoveHistory, 1)
	s.Equal(6, retrieved.State.MoveHistory[0].Dice)
}

func (s *ContractSuite) TestUpdateGameStaleVersionConflicts() {
	game := NewWaitingGame("game-1", "player-1", 100, At(0))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, game))

	first, _ := s.Storage.GetGame(s.Ctx, "game-1")
	second, _ := s.Storage.GetGame(s.Ctx, "game-1")

	first.Player2ID = "player-2"
	first.Status = model.GameStatusPlaying
	s.Require().NoError(s.Storage.UpdateGame(s.Ctx, first, first.Version))

	second.Player2ID = "player-3"
	second.Status = model.GameStatusPlaying
	err := s.Storage.UpdateGame(s.Ctx, second, second.Version)
	s.ErrorIs(err, model.ErrConflict)

	retrieved, _ := s.Storage.GetGame(s.Ctx, "game-1")
	s.Equal(model.PlayerID("player-2"), retrieved.Player2ID)
}

func (s *ContractSuite) TestUpdateGameNotFound() {
	game := NewWaitingGame("missing", "player-1", 100, At(0))
	err := s.Storage.UpdateGame(s.Ctx, game, storage.InitialVersion)
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *ContractSuite) TestReturnedGamesAreIndependentCopies() {
	game := NewWaitingGame("game-1", "player-1", 100, At(0))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, game))

	game.State.Player1Tokens[0] = model.TrackToken(5)
	retrieved, _ := s.Storage.GetGame(s.Ctx, "game-1")
	s.Equal(model.HomeToken(), retrieved.State.Player1Tokens[0])
}

func (s *ContractSuite) TestFindWaitingGamesFiltersAndOrders() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, NewWaitingGame("newer", "player-2", 100, At(2*time.Minute))))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, NewWaitingGame("older", "player-3", 100, At(time.Minute))))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, NewWaitingGame("own", "player-1", 100, At(30*time.Second))))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, NewWaitingGame("other-fee", "player-4", 50, At(30*time.Second))))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, NewWaitingGame("stale", "player-5", 100, At(-10*time.Minute))))

	games, err := s.Storage.FindWaitingGames(s.Ctx, storage.WaitingGamesQuery{
		EntryFee:      100,
		CreatedAfter:  At(-5 * time.Minute),
		ExcludePlayer: "player-1",
		Limit:         10,
	})
	s.Require().NoError(err)
	s.Require().Len(games, 2)
	s.Equal(model.GameID("older"), games[0].ID)
	s.Equal(model.GameID("newer"), games[1].ID)
}

func (s *ContractSuite) TestFindWaitingGamesSkipsStartedGames() {
	game := NewWaitingGame("game-1", "player-2", 100, At(0))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, game))
	game.Player2ID = "player-3"
	game.Status = model.GameStatusPlaying
	s.Require().NoError(s.Storage.UpdateGame(s.Ctx, game, game.Version))

	games, err := s.Storage.FindWaitingGames(s.Ctx, storage.WaitingGamesQuery{
		EntryFee: 100, CreatedAfter: At(-time.Hour), ExcludePlayer: "player-1", Limit: 1,
	})
	s.Require().NoError(err)
	s.Empty(games)
}

func (s *ContractSuite) TestFindActiveGameForPlayer() {
	_, err := s.Storage.FindActiveGameForPlayer(s.Ctx, "player-2")
	s.ErrorIs(err, model.ErrGameNotFound)

	game := NewWaitingGame("game-1", "player-1", 100, At(0))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, game))

	active, err := s.Storage.FindActiveGameForPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(model.GameID("game-1"), active.ID)

	game.Player2ID = "player-2"
	game.Status = model.GameStatusPlaying
	s.Require().NoError(s.Storage.UpdateGame(s.Ctx, game, game.Version))

	active, err = s.Storage.FindActiveGameForPlayer(s.Ctx, "player-2")
	s.Require().NoError(err)
	s.Equal(model.GameID("game-1"), active.ID)

	game.Status = model.GameStatusFinished
	game.WinnerID = "player-2"
	s.Require().NoError(s.Storage.UpdateGame(s.Ctx, game, game.Version))

	_, err = s.Storage.FindActiveGameForPlayer(s.Ctx, "player-1")
	s.ErrorIs(err, model.ErrGameNotFound)
	_, err = s.Storage.FindActiveGameForPlayer(s.Ctx, "player-2")
	s.ErrorIs(err, model.ErrGameNotFound)
}

// Active game guard tests

func (s *ContractSuite) TestSecondActiveGameForCreatorConflicts() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, NewWaitingGame("game-1", "player-1", 100, At(0))))

	err := s.Storage.CreateGame(s.Ctx, NewWaitingGame("game-2", "player-1", 50, At(time.Second)))
	s.ErrorIs(err, model.ErrActiveGameExists)
	s.ErrorIs(err, model.ErrConflict)

	_, err = s.Storage.GetGame(s.Ctx, "game-2")
	s.ErrorIs(err, model.ErrGameNotFound)
	active, err := s.Storage.FindActiveGameForPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(model.GameID("game-1"), active.ID)
}

func (s *ContractSuite) TestNewGameAllowedOnceEarlierGameEnds() {
	game := NewWaitingGame("game-1", "player-1", 100, At(0))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, game))
	game.Status = model.GameStatusCancelled
	s.Require().NoError(s.Storage.UpdateGame(s.Ctx, game, game.Version))

	s.Require().NoError(s.Storage.CreateGame(s.Ctx, NewWaitingGame("game-2", "player-1", 100, At(time.Second))))

	active, err := s.Storage.FindActiveGameForPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(model.GameID("game-2"), active.ID)
}

func (s *ContractSuite) TestJoinWhileWaitingElsewhereConflicts() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, NewWaitingGame("game-1", "player-1", 100, At(0))))
	own := NewWaitingGame("game-2", "player-2", 100, At(time.Second))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, own))

	game, err := s.Storage.GetGame(s.Ctx, "game-1")
	s.Require().NoError(err)
	game.Player2ID = "player-2"
	game.Status = model.GameStatusPlaying
	err = s.Storage.UpdateGame(s.Ctx, game, game.Version)
	s.ErrorIs(err, model.ErrActiveGameExists)

	retrieved, err := s.Storage.GetGame(s.Ctx, "game-1")
	s.Require().NoError(err)
	s.Equal(model.GameStatusWaiting, retrieved.Status)
	s.Equal(storage.InitialVersion, retrieved.Version)

	active, err := s.Storage.FindActiveGameForPlayer(s.Ctx, "player-2")
	s.Require().NoError(err)
	s.Equal(model.GameID("game-2"), active.ID)
}

func (s *ContractSuite) TestConcurrentCreatesForOnePlayerOnlyOneWins() {
	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := model.GameID(fmt.Sprintf("game-%d", i))
			results <- s.Storage.CreateGame(s.Ctx, NewWaitingGame(id, "player-1", 100, At(time.Duration(i)*time.Second)))
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			s.ErrorIs(err, model.ErrConflict)
		}
	}
	s.Equal(1, wins)

	games, err := s.Storage.FindWaitingGames(s.Ctx, storage.WaitingGamesQuery{
		EntryFee: 100, CreatedAfter: At(-time.Hour), ExcludePlayer: "player-2",
	})
	s.Require().NoError(err)
	s.Len(games, 1)
}

// Status transition tests

func (s *ContractSuite) TestUpdateGameRejectsIllegalTransitions() {
	waiting := NewWaitingGame("waiting", "player-1", 100, At(0))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, waiting))
	waiting.Status = model.GameStatusFinished
	s.ErrorIs(s.Storage.UpdateGame(s.Ctx, waiting, waiting.Version), model.ErrInvalidTransition)

	playing := NewWaitingGame("playing", "player-2", 100, At(0))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, playing))
	playing.Player2ID = "player-3"
	playing.Status = model.GameStatusPlaying
	s.Require().NoError(s.Storage.UpdateGame(s.Ctx, playing, playing.Version))
	playing.Status = model.GameStatusWaiting
	s.ErrorIs(s.Storage.UpdateGame(s.Ctx, playing, playing.Version), model.ErrInvalidTransition)

	playing.Status = model.GameStatusFinished
	playing.WinnerID = "player-2"
	s.Require().NoError(s.Storage.UpdateGame(s.Ctx, playing, playing.Version))
	playing.Status = model.GameStatusPlaying
	s.ErrorIs(s.Storage.UpdateGame(s.Ctx, playing, playing.Version), model.ErrInvalidTransition)

	retrieved, err := s.Storage.GetGame(s.Ctx, "playing")
	s.Require().NoError(err)
	s.Equal(model.GameStatusFinished, retrieved.Status)
	retrieved, err = s.Storage.GetGame(s.Ctx, "waiting")
	s.Require().NoError(err)
	s.Equal(model.GameStatusWaiting, retrieved.Status)
}

func (s *ContractSuite) TestUpdateGameKeepsStatus() {
	game := NewWaitingGame("game-1", "player-1", 100, At(0))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, game))
	game.Player2ID = "player-2"
	game.Status = model.GameStatusPlaying
	s.Require().NoError(s.Storage.UpdateGame(s.Ctx, game, game.Version))

	game.State.ConsecutiveSixes = 1
	s.Require().NoError(s.Storage.UpdateGame(s.Ctx, game, game.Version))
	s.Equal(storage.InitialVersion+2, game.Version)
}

// Chat tests

func (s *ContractSuite) TestChatMessagesOldestFirst() {
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.Storage.AppendChatMessage(s.Ctx, &model.ChatMessage{
			ID:        model.MessageID(fmt.Sprintf("msg-%d", i)),
			GameID:    "game-1",
			SenderID:  "player-1",
			Text:      fmt.Sprintf("hello %d", i),
			Type:      model.MessageTypeText,
			CreatedAt: At(time.Duration(i) * time.Second),
		}))
	}
	s.Require().NoError(s.Storage.AppendChatMessage(s.Ctx, &model.ChatMessage{
		ID: "other", GameID: "game-2", Text: "hi", Type: model.MessageTypeText, CreatedAt: At(0),
	}))

	msgs, err := s.Storage.ListChatMessages(s.Ctx, "game-1", 0)
	s.Require().NoError(err)
	s.Require().Len(msgs, 3)
	s.Equal("hello 0", msgs[0].Text)
	s.Equal("hello 2", msgs[2].Text)

	latest, err := s.Storage.ListChatMessages(s.Ctx, "game-1", 2)
	s.Require().NoError(err)
	s.Require().Len(latest, 2)
	s.Equal("hello 1", latest[0].Text)
	s.Equal("hello 2", latest[1].Text)
}

func (s *ContractSuite) TestChatMessagesEmpty() {
	msgs, err := s.Storage.ListChatMessages(s.Ctx, "game-1", 10)
	s.Require().NoError(err)
	s.Empty(msgs)
}
