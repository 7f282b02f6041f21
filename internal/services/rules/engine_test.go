package rules

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ludoduel/ludo-server/internal/model"
)

type EngineSuite struct {
	suite.Suite
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = NewStandard()
}

func tokens(ts ...model.Token) [model.TokensPerPlayer]model.Token {
	var out [model.TokensPerPlayer]model.Token
	for i := range out {
		out[i] = model.HomeToken()
	}
	copy(out[:], ts)
	return out
}

// IsLegalMove tests

func (s *EngineSuite) TestHomeTokenNeedsSix() {
	for dice := 1; dice <= 6; dice++ {
		for _, color := range []model.Color{model.ColorBlue, model.ColorRed} {
			s.Equal(dice == 6, s.engine.IsLegalMove(model.HomeToken(), dice, color), "dice %d color %s", dice, color)
		}
	}
}

func (s *EngineSuite) TestFinishedTokenNeverMoves() {
	for dice := 1; dice <= 6; dice++ {
		s.False(s.engine.IsLegalMove(model.FinishedToken(), dice, model.ColorBlue))
		s.False(s.engine.IsLegalMove(model.FinishedToken(), dice, model.ColorRed))
	}
}

func (s *EngineSuite) TestInvalidDiceIsIllegal() {
	s.False(s.engine.IsLegalMove(model.TrackToken(5), 0, model.ColorBlue))
	s.False(s.engine.IsLegalMove(model.TrackToken(5), 7, model.ColorBlue))
}

func (s *EngineSuite) TestHomeStretchCannotOvershoot() {
	// Step 3 has three steps left to the finish
	s.True(s.engine.IsLegalMove(model.StretchToken(3), 3, model.ColorBlue))
	s.False(s.engine.IsLegalMove(model.StretchToken(3), 4, model.ColorBlue))
	s.True(s.engine.IsLegalMove(model.StretchToken(5), 1, model.ColorRed))
	s.False(s.engine.IsLegalMove(model.StretchToken(5), 2, model.ColorRed))
}

func (s *EngineSuite) TestLastTrackCellReachesFinish() {
	// Blue's last track cell is 50 and red's is 24, six steps from the finish
	for dice := 1; dice <= 6; dice++ {
		s.True(s.engine.IsLegalMove(model.TrackToken(50), dice, model.ColorBlue))
		s.True(s.engine.IsLegalMove(model.TrackToken(24), dice, model.ColorRed))
	}
}

// ApplyMove tests

func (s *EngineSuite) TestLeavingHomeLandsOnStartCell() {
	s.Equal(model.TrackToken(0), s.engine.ApplyMove(model.HomeToken(), 6, model.ColorBlue))
	s.Equal(model.TrackToken(26), s.engine.ApplyMove(model.HomeToken(), 6, model.ColorRed))
}

func (s *EngineSuite) TestTrackAdvances() {
	s.Equal(model.TrackToken(9), s.engine.ApplyMove(model.TrackToken(5), 4, model.ColorBlue))
}

func (s *EngineSuite) TestTrackWrapsAroundBoard() {
	// Red passes cell 51 back to 0 on its way home
	s.Equal(model.TrackToken(3), s.engine.ApplyMove(model.TrackToken(49), 6, model.ColorRed))
}

func (s *EngineSuite) TestTrackEntersHomeStretch() {
	s.Equal(model.StretchToken(1), s.engine.ApplyMove(model.TrackToken(50), 1, model.ColorBlue))
	s.Equal(model.StretchToken(4), s.engine.ApplyMove(model.TrackToken(48), 6, model.ColorBlue))
	s.Equal(model.StretchToken(2), s.engine.ApplyMove(model.TrackToken(22), 4, model.ColorRed))
}

func (s *EngineSuite) TestExactRollFinishes() {
	s.Equal(model.FinishedToken(), s.engine.ApplyMove(model.TrackToken(50), 6, model.ColorBlue))
	s.Equal(model.FinishedToken(), s.engine.ApplyMove(model.StretchToken(2), 4, model.ColorRed))
}

func (s *EngineSuite) TestEveryLegalMoveStaysInRange() {
	for _, color := range []model.Color{model.ColorBlue, model.ColorRed} {
		for cell := 0; cell < model.TrackLength; cell++ {
			for dice := 1; dice <= 6; dice++ {
				from := model.TrackToken(cell)
				if !s.engine.IsLegalMove(from, dice, color) {
					continue
				}
				to := s.engine.ApplyMove(from, dice, color)
				_, err := model.DecodeToken(to.Encode())
				s.Require().NoError(err, "color %s cell %d dice %d", color, cell, dice)
			}
		}
	}
}

// LegalMoves tests

func (s *EngineSuite) TestLegalMovesAllHomeWithoutSix() {
	s.Empty(s.engine.LegalMoves(tokens(), 3, model.ColorBlue))
}

func (s *EngineSuite) TestLegalMovesMixed() {
	ts := tokens(model.TrackToken(10), model.HomeToken(), model.FinishedToken(), model.StretchToken(4))
	s.Equal([]int{0, 3}, s.engine.LegalMoves(ts, 2, model.ColorBlue))
	s.Equal([]int{0, 1}, s.engine.LegalMoves(ts, 6, model.ColorBlue))
}

// Capture tests

func (s *EngineSuite) TestCaptureOnPlainCell() {
	captured := s.engine.Captures(model.TrackToken(10), model.ColorBlue, tokens(model.TrackToken(10), model.TrackToken(11)))
	s.Equal([]int{0}, captured)
}

func (s *EngineSuite) TestCaptureSendsEveryTokenOnCellHome() {
	captured := s.engine.Captures(model.TrackToken(10), model.ColorBlue, tokens(model.TrackToken(10), model.TrackToken(10)))
	s.Equal([]int{0, 1}, captured)
}

func (s *EngineSuite) TestNoCaptureOnSafeCells() {
	for _, cell := range []int{0, 8, 13, 21, 26, 34, 39, 47} {
		s.Empty(s.engine.Captures(model.TrackToken(cell), model.ColorBlue, tokens(model.TrackToken(cell))), "cell %d", cell)
	}
}

func (s *EngineSuite) TestNoCaptureInHomeStretch() {
	s.Empty(s.engine.Captures(model.StretchToken(2), model.ColorBlue, tokens(model.StretchToken(2))))
}

func (s *EngineSuite) TestCaptureForEveryNonSafeCell() {
	for cell := 0; cell < model.TrackLength; cell++ {
		captured := s.engine.Captures(model.TrackToken(cell), model.ColorBlue, tokens(model.TrackToken(cell)))
		if IsSafeCell(cell) {
			s.Empty(captured, "cell %d", cell)
		} else {
			s.Equal([]int{0}, captured, "cell %d", cell)
		}
	}
}

// Move tests

func (s *EngineSuite) TestMoveCapturesOpponent() {
	state := model.NewBoardState()
	state.Player1Tokens[0] = model.TrackToken(7)
	state.Player2Tokens[2] = model.TrackToken(10)

	result, err := s.engine.Move(&state, model.SeatPlayer1, 0, 3)
	s.Require().NoError(err)

	s.Equal(model.TrackToken(7), result.From)
	s.Equal(model.TrackToken(10), result.To)
	s.Equal([]int{2}, result.Captured)
	s.False(result.Won)
	s.Equal(model.TrackToken(10), state.Player1Tokens[0])
	s.Equal(model.HomeToken(), state.Player2Tokens[2])
}

func (s *EngineSuite) TestMoveRejectsIllegal() {
	state := model.NewBoardState()

	_, err := s.engine.Move(&state, model.SeatPlayer1, 0, 3)
	s.ErrorIs(err, model.ErrIllegalMove)
	s.Equal(model.HomeToken(), state.Player1Tokens[0])
}

func (s *EngineSuite) TestMoveRejectsBadIndex() {
	state := model.NewBoardState()

	_, err := s.engine.Move(&state, model.SeatPlayer1, 4, 6)
	s.ErrorIs(err, model.ErrInvalidToken)

	_, err = s.engine.Move(&state, model.SeatPlayer1, -1, 6)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *EngineSuite) TestMoveDetectsWin() {
	state := model.NewBoardState()
	state.Player2Tokens = tokens(model.FinishedToken(), model.FinishedToken(), model.FinishedToken(), model.StretchToken(5))

	result, err := s.engine.Move(&state, model.SeatPlayer2, 3, 1)
	s.Require().NoError(err)
	s.True(result.Won)
}

// Turn retention tests

func (s *EngineSuite) TestRetainsTurn() {
	s.True(RetainsTurn(6, 1, false))
	s.True(RetainsTurn(6, 2, false))
	s.False(RetainsTurn(6, 3, false))
	s.False(RetainsTurn(6, 3, true))
	s.True(RetainsTurn(4, 0, true))
	s.False(RetainsTurn(4, 0, false))
}

func (s *EngineSuite) TestHasWon() {
	s.False(HasWon(tokens()))
	s.True(HasWon(tokens(model.FinishedToken(), model.FinishedToken(), model.FinishedToken(), model.FinishedToken())))
}
