package api_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ludoduel/ludo-server/internal/api"
	"github.com/ludoduel/ludo-server/internal/api/apierr"
	"github.com/ludoduel/ludo-server/internal/api/response"
	"github.com/ludoduel/ludo-server/internal/factory"
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/testutil"
)

type APISuite struct {
	suite.Suite
	app     *factory.TestApp
	handler http.Handler
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.app = factory.NewTestApp()
	s.handler = api.NewRouter(api.RouterConfig{
		Logger:             testutil.NopLogger(),
		AuthService:        s.app.AuthService,
		Ledger:             s.app.Ledger,
		MatchmakingService: s.app.MatchmakingService,
		GameController:     s.app.GameController,
		ChatService:        s.app.ChatService,
		HubManager:         s.app.HubManager,
	})
}

func (s *APISuite) TearDownTest() {
	s.NoError(s.app.Close())
}

func (s *APISuite) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&reqBody).Encode(body))
	}

	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *APISuite) decode(rr *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func (s *APISuite) assertError(rr *httptest.ResponseRecorder, status int, code string) {
	s.Equal(status, rr.Code, rr.Body.String())
	var resp apierr.ErrorResponse
	s.decode(rr, &resp)
	s.Equal(code, resp.Error.Code)
	s.NotEmpty(resp.Error.Message)
}

func (s *APISuite) guest(name string) response.AuthResponse {
	rr := s.request(http.MethodPost, "/api/v1/players/guest", map[string]string{"display_name": name}, "")
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	var resp response.AuthResponse
	s.decode(rr, &resp)
	return resp
}

func (s *APISuite) match(token string, fee int64) (*httptest.ResponseRecorder, response.MatchResponse) {
	rr := s.request(http.MethodPost, "/api/v1/matchmaking", map[string]int64{"entry_fee": fee}, token)
	var resp response.MatchResponse
	if rr.Code < 300 {
		s.decode(rr, &resp)
	}
	return rr, resp
}

// startGame matches two new guests and returns their tokens and the game ID
func (s *APISuite) startGame() (alice, bob response.AuthResponse, gameID model.GameID) {
	alice = s.guest("Alice")
	bob = s.guest("Bob")
	_, created := s.match(alice.SessionToken, 100)
	rr, joined := s.match(bob.SessionToken, 100)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Require().Equal(created.Game.ID, joined.Game.ID)
	return alice, bob, joined.Game.ID
}

func (s *APISuite) TestHealthCheck() {
	rr := s.request(http.MethodGet, "/api/v1/health", nil, "")
	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"status":"ok"}`, rr.Body.String())
}

func (s *APISuite) TestRequestIDHeader() {
	rr := s.request(http.MethodGet, "/api/v1/health", nil, "")
	s.NotEmpty(rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	s.Equal("abc-123", rr.Header().Get("X-Request-ID"))
}

func (s *APISuite) TestCreateGuestPlayer() {
	resp := s.guest("Alice")

	s.Equal("Alice", resp.Player.DisplayName)
	s.True(resp.Player.IsGuest)
	s.NotEmpty(resp.SessionToken)
	s.Equal(int64(1000), resp.Balance)
}

func (s *APISuite) TestCreateGuestValidation() {
	rr := s.request(http.MethodPost, "/api/v1/players/guest", map[string]string{}, "")
	s.assertError(rr, http.StatusBadRequest, apierr.CodeInvalidRequest)

	rr = s.request(http.MethodPost, "/api/v1/players/guest",
		map[string]string{"display_name": strings.Repeat("x", 33)}, "")
	s.assertError(rr, http.StatusBadRequest, apierr.CodeInvalidDisplayName)
}

func (s *APISuite) TestRegisterAndLogin() {
	register := map[string]string{
		"username":     "alice",
		"password":     "secret123",
		"display_name": "Alice",
	}
	rr := s.request(http.MethodPost, "/api/v1/players/register", register, "")
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	var registered response.AuthResponse
	s.decode(rr, &registered)
	s.False(registered.Player.IsGuest)
	s.Equal(int64(1000), registered.Balance)

	rr = s.request(http.MethodPost, "/api/v1/players/register", register, "")
	s.assertError(rr, http.StatusConflict, apierr.CodeUsernameExists)

	login := map[string]string{"username": "alice", "password": "secret123"}
	rr = s.request(http.MethodPost, "/api/v1/players/login", login, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	var loggedIn response.AuthResponse
	s.decode(rr, &loggedIn)
	s.Equal(registered.Player.ID, loggedIn.Player.ID)

	login["password"] = "wrong-password"
	rr = s.request(http.MethodPost, "/api/v1/players/login", login, "")
	s.assertError(rr, http.StatusUnauthorized, apierr.CodeInvalidCredentials)
}

func (s *APISuite) TestRegisterWeakPassword() {
	rr := s.request(http.MethodPost, "/api/v1/players/register", map[string]string{
		"username":     "alice",
		"password":     "short",
		"display_name": "Alice",
	}, "")
	s.assertError(rr, http.StatusBadRequest, apierr.CodeWeakPassword)
}

func (s *APISuite) TestGetMe() {
	bob := s.guest("Bob")

	rr := s.request(http.MethodGet, "/api/v1/players/me", nil, bob.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code)

	var me response.MeResponse
	s.decode(rr, &me)
	s.Equal("Bob", me.Player.DisplayName)
	s.Equal(int64(1000), me.Balance)
}

func (s *APISuite) TestUnauthorized() {
	rr := s.request(http.MethodGet, "/api/v1/players/me", nil, "")
	s.assertError(rr, http.StatusUnauthorized, apierr.CodeUnauthorized)

	rr = s.request(http.MethodGet, "/api/v1/players/me", nil, "not-a-session")
	s.assertError(rr, http.StatusUnauthorized, apierr.CodeUnauthorized)

	rr = s.request(http.MethodPost, "/api/v1/matchmaking", map[string]int64{"entry_fee": 100}, "")
	s.assertError(rr, http.StatusUnauthorized, apierr.CodeUnauthorized)
}

func (s *APISuite) TestLogout() {
	alice := s.guest("Alice")

	rr := s.request(http.MethodPost, "/api/v1/players/logout", nil, alice.SessionToken)
	s.Equal(http.StatusNoContent, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/players/me", nil, alice.SessionToken)
	s.assertError(rr, http.StatusUnauthorized, apierr.CodeUnauthorized)
}

func (s *APISuite) TestLedger() {
	alice := s.guest("Alice")
	s.match(alice.SessionToken, 100)

	rr := s.request(http.MethodGet, "/api/v1/players/me/ledger", nil, alice.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code)

	var ledger response.LedgerResponse
	s.decode(rr, &ledger)
	s.Equal(int64(900), ledger.Balance)
	s.Require().Len(ledger.Entries, 2)
	s.Equal(model.LedgerEntryFee, ledger.Entries[0].Kind)
	s.Equal(int64(-100), ledger.Entries[0].Amount)
	s.Equal(model.LedgerInitial, ledger.Entries[1].Kind)

	rr = s.request(http.MethodGet, "/api/v1/players/me/ledger?limit=1", nil, alice.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.decode(rr, &ledger)
	s.Len(ledger.Entries, 1)

	rr = s.request(http.MethodGet, "/api/v1/players/me/ledger?limit=abc", nil, alice.SessionToken)
	s.assertError(rr, http.StatusBadRequest, apierr.CodeInvalidRequest)
}

func (s *APISuite) TestMatchmakingCreateThenJoin() {
	alice := s.guest("Alice")
	bob := s.guest("Bob")

	rr, created := s.match(alice.SessionToken, 100)
	s.Equal(http.StatusCreated, rr.Code)
	s.Equal("created", created.Outcome)
	s.Equal(model.GameStatusWaiting, created.Game.Status)
	s.Equal(int64(100), created.Game.PrizePool)

	rr, joined := s.match(bob.SessionToken, 100)
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("joined", joined.Outcome)
	s.Equal(model.GameStatusPlaying, joined.Game.Status)
	s.Equal(alice.Player.ID, string(joined.Game.CurrentTurn))
	s.Equal(int64(200), joined.Game.PrizePool)

	// Asking again returns the active game
	rr, existing := s.match(alice.SessionToken, 100)
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("existing", existing.Outcome)
	s.Equal(joined.Game.ID, existing.Game.ID)
}

func (s *APISuite) TestMatchmakingErrors() {
	alice := s.guest("Alice")

	rr, _ := s.match(alice.SessionToken, 0)
	s.assertError(rr, http.StatusBadRequest, apierr.CodeInvalidEntryFee)

	rr, _ = s.match(alice.SessionToken, 5000)
	s.assertError(rr, http.StatusConflict, apierr.CodeInsufficientBalance)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/matchmaking", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+alice.SessionToken)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.assertError(rec, http.StatusBadRequest, apierr.CodeInvalidRequest)
}

func (s *APISuite) TestGetGame() {
	alice, _, gameID := s.startGame()
	carol := s.guest("Carol")

	rr := s.request(http.MethodGet, "/api/v1/games/"+string(gameID), nil, alice.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code)
	var resp response.GameResponse
	s.decode(rr, &resp)
	s.Equal(gameID, resp.Game.ID)
	s.Equal(model.HomeToken(), resp.Game.State.Player1Tokens[0])

	rr = s.request(http.MethodGet, "/api/v1/games/"+string(gameID), nil, carol.SessionToken)
	s.assertError(rr, http.StatusForbidden, apierr.CodeNotParticipant)

	rr = s.request(http.MethodGet, "/api/v1/games/missing", nil, alice.SessionToken)
	s.assertError(rr, http.StatusNotFound, apierr.CodeGameNotFound)
}

func (s *APISuite) TestRollAndMove() {
	alice, bob, gameID := s.startGame()
	path := "/api/v1/games/" + string(gameID)

	rr := s.request(http.MethodPost, path+"/move", map[string]int{"token": 0}, alice.SessionToken)
	s.assertError(rr, http.StatusConflict, apierr.CodeMustRollFirst)

	rr = s.request(http.MethodPost, path+"/roll", nil, bob.SessionToken)
	s.assertError(rr, http.StatusForbidden, apierr.CodeNotYourTurn)

	s.app.MockRandom.QueueDice(6)
	rr = s.request(http.MethodPost, path+"/roll", nil, alice.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	var roll response.RollResponse
	s.decode(rr, &roll)
	s.Equal(6, roll.Dice)
	s.Equal([]int{0, 1, 2, 3}, roll.LegalMoves)
	s.False(roll.AutoPassed)

	rr = s.request(http.MethodPost, path+"/roll", nil, alice.SessionToken)
	s.assertError(rr, http.StatusConflict, apierr.CodeAlreadyRolled)

	rr = s.request(http.MethodPost, path+"/move", map[string]any{}, alice.SessionToken)
	s.assertError(rr, http.StatusBadRequest, apierr.CodeInvalidRequest)

	rr = s.request(http.MethodPost, path+"/move", map[string]int{"token": 7}, alice.SessionToken)
	s.assertError(rr, http.StatusBadRequest, apierr.CodeInvalidToken)

	rr = s.request(http.MethodPost, path+"/move", map[string]int{"token": 0}, alice.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	var move response.MoveResponse
	s.decode(rr, &move)
	s.True(move.ExtraTurn)
	s.False(move.Won)
	s.Equal(model.TrackToken(0), move.Move.To)
	s.Equal(model.TrackToken(0), move.Game.State.Player1Tokens[0])
	s.Equal(alice.Player.ID, string(move.Game.CurrentTurn))
}

func (s *APISuite) TestIllegalMove() {
	alice, _, gameID := s.startGame()
	path := "/api/v1/games/" + string(gameID)

	// Enter token 0, then roll a 2: tokens at home cannot move
	s.app.MockRandom.QueueDice(6, 2)
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, path+"/roll", nil, alice.SessionToken).Code)
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, path+"/move", map[string]int{"token": 0}, alice.SessionToken).Code)
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, path+"/roll", nil, alice.SessionToken).Code)

	rr := s.request(http.MethodPost, path+"/move", map[string]int{"token": 1}, alice.SessionToken)
	s.assertError(rr, http.StatusBadRequest, apierr.CodeIllegalMove)
}

func (s *APISuite) TestRollAutoPass() {
	alice, bob, gameID := s.startGame()

	s.app.MockRandom.QueueDice(3)
	rr := s.request(http.MethodPost, "/api/v1/games/"+string(gameID)+"/roll", nil, alice.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code)

	var roll response.RollResponse
	s.decode(rr, &roll)
	s.True(roll.AutoPassed)
	s.Empty(roll.LegalMoves)
	s.Equal(int64(1500), roll.AutoPassDelayMs)
	s.Equal(bob.Player.ID, string(roll.Game.CurrentTurn))
}

func (s *APISuite) TestCancel() {
	alice := s.guest("Alice")
	bob := s.guest("Bob")
	_, created := s.match(alice.SessionToken, 100)
	path := "/api/v1/games/" + string(created.Game.ID) + "/cancel"

	rr := s.request(http.MethodPost, path, nil, bob.SessionToken)
	s.assertError(rr, http.StatusForbidden, apierr.CodeNotCreator)

	rr = s.request(http.MethodPost, path, nil, alice.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	var resp response.GameResponse
	s.decode(rr, &resp)
	s.Equal(model.GameStatusCancelled, resp.Game.Status)

	var me response.MeResponse
	s.decode(s.request(http.MethodGet, "/api/v1/players/me", nil, alice.SessionToken), &me)
	s.Equal(int64(1000), me.Balance)

	rr = s.request(http.MethodPost, path, nil, alice.SessionToken)
	s.assertError(rr, http.StatusConflict, apierr.CodeGameNotWaiting)
}

func (s *APISuite) TestForfeit() {
	alice, bob, gameID := s.startGame()
	path := "/api/v1/games/" + string(gameID) + "/forfeit"

	rr := s.request(http.MethodPost, path, nil, alice.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	var resp response.GameResponse
	s.decode(rr, &resp)
	s.Equal(model.GameStatusFinished, resp.Game.Status)
	s.Equal(bob.Player.ID, string(resp.Game.WinnerID))

	var me response.MeResponse
	s.decode(s.request(http.MethodGet, "/api/v1/players/me", nil, bob.SessionToken), &me)
	s.Equal(int64(1090), me.Balance)

	rr = s.request(http.MethodPost, path, nil, bob.SessionToken)
	s.assertError(rr, http.StatusConflict, apierr.CodeGameNotPlaying)
}

func (s *APISuite) TestWaitStatus() {
	alice := s.guest("Alice")
	_, created := s.match(alice.SessionToken, 100)
	path := "/api/v1/games/" + string(created.Game.ID) + "/wait"

	s.app.MockClock.Advance(10 * time.Second)
	rr := s.request(http.MethodGet, path, nil, alice.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code)
	var wait response.WaitResponse
	s.decode(rr, &wait)
	s.Equal(int64(10000), wait.WaitingForMs)
	s.False(wait.TimedOut)

	s.app.MockClock.Advance(time.Minute)
	s.decode(s.request(http.MethodGet, path, nil, alice.SessionToken), &wait)
	s.True(wait.TimedOut)
	s.Equal(model.GameStatusWaiting, wait.Game.Status)
}

func (s *APISuite) TestChat() {
	alice, bob, gameID := s.startGame()
	carol := s.guest("Carol")
	path := "/api/v1/games/" + string(gameID) + "/chat"

	rr := s.request(http.MethodPost, path, map[string]string{"text": "  good luck  "}, alice.SessionToken)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	var sent model.ChatMessage
	s.decode(rr, &sent)
	s.Equal("good luck", sent.Text)
	s.Equal(model.MessageTypeText, sent.Type)

	rr = s.request(http.MethodPost, path, map[string]string{"text": "🎲", "type": "emoji"}, bob.SessionToken)
	s.Require().Equal(http.StatusCreated, rr.Code)

	rr = s.request(http.MethodPost, path, map[string]string{"text": "   "}, alice.SessionToken)
	s.assertError(rr, http.StatusBadRequest, apierr.CodeInvalidMessage)

	rr = s.request(http.MethodPost, path, map[string]string{"text": "hi", "type": "system"}, alice.SessionToken)
	s.assertError(rr, http.StatusBadRequest, apierr.CodeInvalidMessage)

	rr = s.request(http.MethodPost, path, map[string]string{"text": "hi"}, carol.SessionToken)
	s.assertError(rr, http.StatusForbidden, apierr.CodeNotParticipant)

	rr = s.request(http.MethodGet, path, nil, bob.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code)
	var list response.ChatListResponse
	s.decode(rr, &list)
	s.Require().Len(list.Messages, 3)
	s.Equal(model.MessageTypeSystem, list.Messages[0].Type)
	s.Equal("good luck", list.Messages[1].Text)
	s.Equal(model.MessageTypeEmoji, list.Messages[2].Type)

	rr = s.request(http.MethodGet, path, nil, carol.SessionToken)
	s.assertError(rr, http.StatusForbidden, apierr.CodeNotParticipant)
}

func (s *APISuite) TestEventsRequiresParticipant() {
	_, _, gameID := s.startGame()
	carol := s.guest("Carol")

	rr := s.request(http.MethodGet, "/api/v1/games/"+string(gameID)+"/events", nil, carol.SessionToken)
	s.assertError(rr, http.StatusForbidden, apierr.CodeNotParticipant)

	rr = s.request(http.MethodGet, "/api/v1/games/"+string(gameID)+"/ws", nil, carol.SessionToken)
	s.assertError(rr, http.StatusForbidden, apierr.CodeNotParticipant)
}

func (s *APISuite) TestEventsStream() {
	alice, bob, gameID := s.startGame()

	server := httptest.NewServer(s.handler)
	defer server.Close()

	// Token in the query string, as browsers' EventSource sends it
	url := server.URL + "/api/v1/games/" + string(gameID) + "/events?token=" + alice.SessionToken
	resp, err := http.Get(url)
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	nextData := func(event string) string {
		sawEvent := false
		for {
			select {
			case line, ok := <-lines:
				s.Require().True(ok, "stream closed")
				if line == "event: "+event {
					sawEvent = true
				} else if sawEvent && strings.HasPrefix(line, "data: ") {
					return strings.TrimPrefix(line, "data: ")
				}
			case <-time.After(2 * time.Second):
				s.FailNow("timed out waiting for event " + event)
				return ""
			}
		}
	}

	s.Contains(nextData("connected"), "connected")

	rr := s.request(http.MethodPost, "/api/v1/games/"+string(gameID)+"/chat",
		map[string]string{"text": "hello"}, bob.SessionToken)
	s.Require().Equal(http.StatusCreated, rr.Code)

	var event model.ChangeEvent
	s.Require().NoError(json.Unmarshal([]byte(nextData("change")), &event))
	s.Equal(model.TableChatMessages, event.Table)
	s.Equal("hello", event.Message.Text)
}

func (s *APISuite) TestPanicRecovery() {
	// A router whose game controller is missing panics inside the handler
	handler := api.NewRouter(api.RouterConfig{
		Logger:      testutil.NopLogger(),
		AuthService: s.app.AuthService,
		Ledger:      s.app.Ledger,
		HubManager:  s.app.HubManager,
	})
	alice := s.guest("Alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/any", nil)
	req.Header.Set("Authorization", "Bearer "+alice.SessionToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	s.assertError(rr, http.StatusInternalServerError, apierr.CodeInternalError)
}
