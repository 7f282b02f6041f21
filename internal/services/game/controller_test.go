package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ludoduel/ludo-server/internal/dependencies/mocks"
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/services/chat"
	"github.com/ludoduel/ludo-server/internal/services/ledger"
	"github.com/ludoduel/ludo-server/internal/services/rules"
	"github.com/ludoduel/ludo-server/internal/storage/memory"
	"github.com/ludoduel/ludo-server/internal/testutil"
)

// racingStorage runs race once just before the next game update, simulating
// a concurrent writer that wins
type racingStorage struct {
	*memory.Storage
	race func()
}

func (r *racingStorage) UpdateGame(ctx context.Context, game *model.Game, expectedVersion int64) error {
	if race := r.race; race != nil {
		r.race = nil
		race()
	}
	return r.Storage.UpdateGame(ctx, game, expectedVersion)
}

type failingPayer struct{}

func (failingPayer) PayPrize(ctx context.Context, winnerID model.PlayerID, gameID model.GameID, prizePool int64) (int64, error) {
	return 0, errors.New("ledger unavailable")
}

type ControllerSuite struct {
	suite.Suite
	storage    *racingStorage
	ledger     *ledger.Service
	chat       *chat.Service
	events     *testutil.EventRecorder
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = &racingStorage{Storage: memory.New()}
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.events = testutil.NewEventRecorder()
	s.ctx = context.Background()

	s.ledger = ledger.New(s.storage, s.clock, testutil.NopLogger(), ledger.DefaultConfig())
	s.chat = chat.New(s.storage, s.events, s.clock, mocks.NewMockIDs("msg"), testutil.NopLogger(), chat.DefaultConfig())
	s.controller = s.newController(s.ledger)

	for id, name := range map[model.PlayerID]string{"alice": "Alice", "bob": "Bob"} {
		s.Require().NoError(s.storage.SavePlayer(s.ctx, &model.Player{ID: id, DisplayName: name}))
		_, err := s.ledger.OpenAccount(s.ctx, id)
		s.Require().NoError(err)
	}
}

func (s *ControllerSuite) newController(payer PrizePayer) *Controller {
	return NewController(s.storage, rules.NewStandard(), payer, s.chat, s.events,
		s.clock, s.random, testutil.NopLogger(), DefaultConfig())
}

// seedGame stores a playing game between alice (blue) and bob (red) with
// alice to roll. mutate adjusts it before it is stored.
func (s *ControllerSuite) seedGame(mutate func(g *model.Game)) *model.Game {
	game := &model.Game{
		ID:          "game-1",
		Player1ID:   "alice",
		Player2ID:   "bob",
		EntryFee:    100,
		PrizePool:   200,
		Status:      model.GameStatusPlaying,
		CurrentTurn: "alice",
		State:       model.NewBoardState(),
		CreatedAt:   s.clock.Now(),
		UpdatedAt:   s.clock.Now(),
	}
	if mutate != nil {
		mutate(game)
	}
	s.Require().NoError(s.storage.CreateGame(s.ctx, game))
	return game
}

func (s *ControllerSuite) stored() *model.Game {
	game, err := s.storage.GetGame(s.ctx, "game-1")
	s.Require().NoError(err)
	return game
}

func (s *ControllerSuite) balance(id model.PlayerID) int64 {
	balance, err := s.storage.GetBalance(s.ctx, id)
	s.Require().NoError(err)
	return balance
}

func (s *ControllerSuite) rollAndMove(player model.PlayerID, dice, token int) *MoveResult {
	s.random.QueueDice(dice)
	_, err := s.controller.Roll(s.ctx, "game-1", player)
	s.Require().NoError(err)
	result, err := s.controller.Move(s.ctx, "game-1", player, token)
	s.Require().NoError(err)
	return result
}

// Roll tests

func (s *ControllerSuite) TestRollSixWithTokensAtHome() {
	s.seedGame(nil)
	s.random.QueueDice(6)

	result, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.Require().NoError(err)

	s.Equal(6, result.Dice)
	s.Equal([]int{0, 1, 2, 3}, result.LegalMoves)
	s.False(result.AutoPassed)
	s.Zero(result.AutoPassDelay)

	game := s.stored()
	s.Equal(6, game.State.LastDiceRoll)
	s.Equal(1, game.State.ConsecutiveSixes)
	s.Equal(model.PhaseAwaitingMove, game.State.Phase)
	s.Equal(model.PlayerID("alice"), game.CurrentTurn)
	s.Equal(int64(2), game.Version)
}

func (s *ControllerSuite) TestRollWithoutLegalMoveAutoPasses() {
	s.seedGame(func(g *model.Game) { g.State.ConsecutiveSixes = 1 })
	s.random.QueueDice(3)

	result, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.Require().NoError(err)

	s.True(result.AutoPassed)
	s.Equal(1500*time.Millisecond, result.AutoPassDelay)
	s.Empty(result.LegalMoves)

	game := s.stored()
	s.Equal(model.PlayerID("bob"), game.CurrentTurn)
	s.Equal(model.PhaseAwaitingRoll, game.State.Phase)
	s.Equal(0, game.State.ConsecutiveSixes)
	s.Equal(3, game.State.LastDiceRoll)
	s.Require().Len(game.State.MoveHistory, 1)
	entry := game.State.MoveHistory[0]
	s.True(entry.Skipped())
	s.Equal(model.PlayerID("alice"), entry.PlayerID)
	s.Equal(3, entry.Dice)
	s.Equal(model.HomeToken(), entry.From)
	s.Equal(model.HomeToken(), entry.To)
	s.Equal(model.EncodeTokens(model.NewBoardState().Player1Tokens), model.EncodeTokens(game.State.Player1Tokens))
}

func (s *ControllerSuite) TestRollStretchOvershootAutoPasses() {
	s.seedGame(func(g *model.Game) {
		g.State.Player1Tokens = [4]model.Token{
			model.StretchToken(4), model.FinishedToken(), model.FinishedToken(), model.FinishedToken(),
		}
	})
	s.random.QueueDice(3)

	result, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.Require().NoError(err)
	s.True(result.AutoPassed)
	s.Equal(model.StretchToken(4), s.stored().State.Player1Tokens[0])
}

func (s *ControllerSuite) TestRollPublishesUpdate() {
	s.seedGame(nil)
	s.random.QueueDice(6)

	_, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.Require().NoError(err)

	event, ok := s.events.Last()
	s.Require().True(ok)
	s.Equal(model.TableGames, event.Table)
	s.Equal(model.ChangeUpdate, event.Event)
	s.Equal(int64(1), event.Old.Version)
	s.Equal(int64(2), event.New.Version)
	s.Equal(model.PhaseAwaitingRoll, event.Old.State.Phase)
	s.Equal(model.PhaseAwaitingMove, event.New.State.Phase)
}

func (s *ControllerSuite) TestRollRejectsWrongPlayer() {
	s.seedGame(nil)

	_, err := s.controller.Roll(s.ctx, "game-1", "bob")
	s.ErrorIs(err, model.ErrNotPlayerTurn)
	s.Equal(int64(1), s.stored().Version)
	s.Empty(s.events.Events())
}

func (s *ControllerSuite) TestRollRejectsNonParticipant() {
	s.seedGame(nil)

	_, err := s.controller.Roll(s.ctx, "game-1", "mallory")
	s.ErrorIs(err, model.ErrNotParticipant)
}

func (s *ControllerSuite) TestRollRejectsSecondRoll() {
	s.seedGame(nil)
	s.random.QueueDice(6, 6)

	_, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.Require().NoError(err)

	_, err = s.controller.Roll(s.ctx, "game-1", "alice")
	s.ErrorIs(err, model.ErrAlreadyRolled)
	s.Equal(1, s.stored().State.ConsecutiveSixes)
}

func (s *ControllerSuite) TestRollRejectsWaitingGame() {
	s.seedGame(func(g *model.Game) {
		g.Player2ID = ""
		g.Status = model.GameStatusWaiting
		g.PrizePool = 100
	})

	_, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.ErrorIs(err, model.ErrGameNotPlaying)
}

func (s *ControllerSuite) TestRollUnknownGame() {
	_, err := s.controller.Roll(s.ctx, "missing", "alice")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *ControllerSuite) TestRollLosesRaceWithConcurrentWriter() {
	s.seedGame(nil)
	s.random.QueueDice(6)
	s.storage.race = func() {
		g := s.stored()
		s.Require().NoError(s.storage.Storage.UpdateGame(s.ctx, g, g.Version))
	}

	_, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.ErrorIs(err, model.ErrConflict)
	s.Equal(model.PhaseAwaitingRoll, s.stored().State.Phase)
	s.Empty(s.events.Events())
}

// Move tests

func (s *ControllerSuite) TestMoveRequiresRoll() {
	s.seedGame(nil)

	_, err := s.controller.Move(s.ctx, "game-1", "alice", 0)
	s.ErrorIs(err, model.ErrMustRollFirst)
}

func (s *ControllerSuite) TestMoveEntersTokenAndKeepsTurnOnSix() {
	s.seedGame(nil)

	result := s.rollAndMove("alice", 6, 0)

	s.True(result.ExtraTurn)
	s.False(result.Won)
	s.Equal(model.HomeToken(), result.Move.From)
	s.Equal(model.TrackToken(0), result.Move.To)

	game := s.stored()
	s.Equal(model.TrackToken(0), game.State.Player1Tokens[0])
	s.Equal(model.PlayerID("alice"), game.CurrentTurn)
	s.Equal(model.PhaseAwaitingRoll, game.State.Phase)
	s.Equal(1, game.State.ConsecutiveSixes)
	s.Len(game.State.MoveHistory, 1)
}

func (s *ControllerSuite) TestMovePassesTurn() {
	s.seedGame(func(g *model.Game) { g.State.Player1Tokens[0] = model.TrackToken(5) })

	result := s.rollAndMove("alice", 3, 0)

	s.False(result.ExtraTurn)
	game := s.stored()
	s.Equal(model.TrackToken(8), game.State.Player1Tokens[0])
	s.Equal(model.PlayerID("bob"), game.CurrentTurn)
	s.Equal(model.PhaseAwaitingRoll, game.State.Phase)
}

func (s *ControllerSuite) TestMoveRejectsIllegalToken() {
	s.seedGame(func(g *model.Game) { g.State.Player1Tokens[0] = model.TrackToken(5) })
	s.random.QueueDice(3)
	_, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.Require().NoError(err)
	before := s.stored()

	_, err = s.controller.Move(s.ctx, "game-1", "alice", 1)
	s.ErrorIs(err, model.ErrIllegalMove)

	_, err = s.controller.Move(s.ctx, "game-1", "alice", 7)
	s.ErrorIs(err, model.ErrInvalidToken)

	after := s.stored()
	s.Equal(before.Version, after.Version)
	s.Equal(model.PhaseAwaitingMove, after.State.Phase)
}

func (s *ControllerSuite) TestMoveRejectsOpponent() {
	s.seedGame(nil)
	s.random.QueueDice(6)
	_, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.Require().NoError(err)

	_, err = s.controller.Move(s.ctx, "game-1", "bob", 0)
	s.ErrorIs(err, model.ErrNotPlayerTurn)
}

func (s *ControllerSuite) TestMoveCaptureSendsOpponentHomeAndKeepsTurn() {
	s.seedGame(func(g *model.Game) {
		g.State.Player1Tokens[0] = model.TrackToken(10)
		g.State.Player2Tokens[2] = model.TrackToken(12)
	})

	result := s.rollAndMove("alice", 2, 0)

	s.True(result.ExtraTurn)
	s.Equal([]int{2}, result.Move.Captured)
	game := s.stored()
	s.Equal(model.HomeToken(), game.State.Player2Tokens[2])
	s.Equal(model.TrackToken(12), game.State.Player1Tokens[0])
	s.Equal(model.PlayerID("alice"), game.CurrentTurn)
	s.Equal([]int{2}, game.State.MoveHistory[0].Captured)
}

func (s *ControllerSuite) TestMoveNoCaptureOnSafeCell() {
	s.seedGame(func(g *model.Game) {
		g.State.Player1Tokens[0] = model.TrackToken(6)
		g.State.Player2Tokens[0] = model.TrackToken(8)
	})

	result := s.rollAndMove("alice", 2, 0)

	s.Empty(result.Move.Captured)
	s.False(result.ExtraTurn)
	game := s.stored()
	s.Equal(model.TrackToken(8), game.State.Player2Tokens[0])
	s.Equal(model.PlayerID("bob"), game.CurrentTurn)
}

func (s *ControllerSuite) TestThirdSixPassesTurn() {
	s.seedGame(func(g *model.Game) {
		g.State.Player1Tokens[0] = model.TrackToken(1)
		g.State.ConsecutiveSixes = 2
	})

	result := s.rollAndMove("alice", 6, 0)

	s.False(result.ExtraTurn)
	game := s.stored()
	s.Equal(model.PlayerID("bob"), game.CurrentTurn)
	s.Equal(0, game.State.ConsecutiveSixes)
}

func (s *ControllerSuite) TestThirdSixPassesTurnEvenAfterCapture() {
	s.seedGame(func(g *model.Game) {
		g.State.Player1Tokens[0] = model.TrackToken(1)
		g.State.Player2Tokens[0] = model.TrackToken(7)
		g.State.ConsecutiveSixes = 2
	})

	result := s.rollAndMove("alice", 6, 0)

	s.Equal([]int{0}, result.Move.Captured)
	s.False(result.ExtraTurn)
	s.Equal(model.PlayerID("bob"), s.stored().CurrentTurn)
}

func (s *ControllerSuite) TestPlayersAlternate() {
	s.seedGame(nil)
	s.random.QueueDice(2)
	_, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.Require().NoError(err)

	result := s.rollAndMove("bob", 6, 0)
	s.True(result.ExtraTurn)
	s.Equal(model.TrackToken(26), s.stored().State.Player2Tokens[0])

	result = s.rollAndMove("bob", 4, 0)
	s.False(result.ExtraTurn)
	s.Equal(model.TrackToken(30), s.stored().State.Player2Tokens[0])
	s.Equal(model.PlayerID("alice"), s.stored().CurrentTurn)
}

func (s *ControllerSuite) TestWinningMoveFinishesGameAndPaysPrize() {
	s.seedGame(func(g *model.Game) {
		g.State.Player1Tokens = [4]model.Token{
			model.StretchToken(4), model.FinishedToken(), model.FinishedToken(), model.FinishedToken(),
		}
	})

	result := s.rollAndMove("alice", 2, 0)

	s.True(result.Won)
	s.False(result.ExtraTurn)
	s.Equal(int64(190), result.Payout)

	game := s.stored()
	s.Equal(model.GameStatusFinished, game.Status)
	s.Equal(model.PlayerID("alice"), game.WinnerID)
	s.Empty(game.CurrentTurn)
	s.Equal(model.FinishedToken(), game.State.Player1Tokens[0])

	s.Equal(int64(1190), s.balance("alice"))
	s.Equal(int64(1000), s.balance("bob"))

	messages, err := s.storage.ListChatMessages(s.ctx, "game-1", 10)
	s.Require().NoError(err)
	s.Require().Len(messages, 1)
	s.Equal(model.MessageTypeSystem, messages[0].Type)
	s.Equal("Alice won the game and takes 190", messages[0].Text)
}

func (s *ControllerSuite) TestNoActionsAfterWin() {
	s.seedGame(func(g *model.Game) {
		g.State.Player1Tokens = [4]model.Token{
			model.StretchToken(4), model.FinishedToken(), model.FinishedToken(), model.FinishedToken(),
		}
	})
	s.rollAndMove("alice", 2, 0)

	_, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.ErrorIs(err, model.ErrGameNotPlaying)
	_, err = s.controller.Roll(s.ctx, "game-1", "bob")
	s.ErrorIs(err, model.ErrGameNotPlaying)
}

func (s *ControllerSuite) TestWinningMovePayoutFailureKeepsGameFinished() {
	s.controller = s.newController(failingPayer{})
	s.seedGame(func(g *model.Game) {
		g.State.Player1Tokens = [4]model.Token{
			model.StretchToken(5), model.FinishedToken(), model.FinishedToken(), model.FinishedToken(),
		}
	})
	s.random.QueueDice(1)
	_, err := s.controller.Roll(s.ctx, "game-1", "alice")
	s.Require().NoError(err)

	_, err = s.controller.Move(s.ctx, "game-1", "alice", 0)
	s.Require().Error(err)
	s.Contains(err.Error(), "ledger unavailable")

	game := s.stored()
	s.Equal(model.GameStatusFinished, game.Status)
	s.Equal(model.PlayerID("alice"), game.WinnerID)
}

// Forfeit tests

func (s *ControllerSuite) TestForfeitAwardsOpponent() {
	s.seedGame(nil)

	game, err := s.controller.Forfeit(s.ctx, "game-1", "alice")
	s.Require().NoError(err)

	s.Equal(model.GameStatusFinished, game.Status)
	s.Equal(model.PlayerID("bob"), game.WinnerID)
	s.Empty(game.CurrentTurn)
	s.Equal(int64(1190), s.balance("bob"))
	s.Equal(int64(1000), s.balance("alice"))

	messages, _ := s.storage.ListChatMessages(s.ctx, "game-1", 10)
	s.Require().Len(messages, 1)
	s.Equal("Alice forfeited. Bob wins 190", messages[0].Text)

	updates := s.events.ForTable(model.TableGames)
	s.Require().Len(updates, 1)
	s.Equal(model.GameStatusPlaying, updates[0].Old.Status)
	s.Equal(model.GameStatusFinished, updates[0].New.Status)
}

func (s *ControllerSuite) TestForfeitWhenNotPlayersTurn() {
	s.seedGame(nil)

	game, err := s.controller.Forfeit(s.ctx, "game-1", "bob")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("alice"), game.WinnerID)
}

func (s *ControllerSuite) TestForfeitOnlyOnce() {
	s.seedGame(nil)
	_, err := s.controller.Forfeit(s.ctx, "game-1", "alice")
	s.Require().NoError(err)

	_, err = s.controller.Forfeit(s.ctx, "game-1", "bob")
	s.ErrorIs(err, model.ErrGameNotPlaying)
	s.Equal(int64(1190), s.balance("bob"))
	s.Equal(int64(1000), s.balance("alice"))
}

func (s *ControllerSuite) TestForfeitRejectsWaitingGame() {
	s.seedGame(func(g *model.Game) {
		g.Player2ID = ""
		g.Status = model.GameStatusWaiting
	})

	_, err := s.controller.Forfeit(s.ctx, "game-1", "alice")
	s.ErrorIs(err, model.ErrGameNotPlaying)
}

func (s *ControllerSuite) TestForfeitRejectsNonParticipant() {
	s.seedGame(nil)

	_, err := s.controller.Forfeit(s.ctx, "game-1", "mallory")
	s.ErrorIs(err, model.ErrNotParticipant)
}

func (s *ControllerSuite) TestForfeitConflictPaysNothing() {
	s.seedGame(nil)
	s.storage.race = func() {
		g := s.stored()
		s.Require().NoError(s.storage.Storage.UpdateGame(s.ctx, g, g.Version))
	}

	_, err := s.controller.Forfeit(s.ctx, "game-1", "alice")
	s.ErrorIs(err, model.ErrConflict)
	s.Equal(int64(1000), s.balance("bob"))
}

// GetGameForPlayer tests

func (s *ControllerSuite) TestGetGameForPlayer() {
	s.seedGame(nil)

	game, err := s.controller.GetGameForPlayer(s.ctx, "game-1", "bob")
	s.Require().NoError(err)
	s.Equal(model.GameID("game-1"), game.ID)

	_, err = s.controller.GetGameForPlayer(s.ctx, "game-1", "mallory")
	s.ErrorIs(err, model.ErrNotParticipant)
}
