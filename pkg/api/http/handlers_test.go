package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/application/account"
	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/internal/domain/user"
	"github.com/omokpang/omokpang/pkg/adapters/storage/memory"
)

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) Signup(ctx context.Context, nickname, password string) (*user.User, error) {
	args := m.Called(ctx, nickname, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockAccounts) Login(ctx context.Context, nickname, password string) (*user.User, error) {
	args := m.Called(ctx, nickname, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

type MockRanking struct {
	mock.Mock
}

func (m *MockRanking) Top(ctx context.Context, limit int) ([]*user.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*user.User), args.Error(1)
}

func (m *MockRanking) Profile(ctx context.Context, nickname string) (*user.User, error) {
	args := m.Called(ctx, nickname)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

type MockCards struct {
	mock.Mock
}

func (m *MockCards) DrawTwo() []game.CardType {
	args := m.Called()
	return args.Get(0).([]game.CardType)
}

func (m *MockCards) Reroll(ctx context.Context, nickname string) (game.CardType, error) {
	args := m.Called(ctx, nickname)
	return args.Get(0).(game.CardType), args.Error(1)
}

func (m *MockCards) RerollCost() int {
	return 40
}

func (m *MockCards) Catalog() []game.CardInfo {
	return game.Catalog()
}

type testServer struct {
	*Server
	accounts *MockAccounts
	ranking  *MockRanking
	cards    *MockCards
	rooms    *memory.InMemoryRoomStore
}

func newTestServer(t *testing.T, burst int) *testServer {
	t.Helper()

	ts := &testServer{
		accounts: &MockAccounts{},
		ranking:  &MockRanking{},
		cards:    &MockCards{},
		rooms:    memory.NewInMemoryRoomStore(),
	}
	ts.Server = NewServer(&Config{
		Accounts:  ts.accounts,
		Ranking:   ts.ranking,
		Cards:     ts.cards,
		Rooms:     ts.rooms,
		Gatherer:  prometheus.NewRegistry(),
		AuthRate:  0.001,
		AuthBurst: burst,
		Logger:    zap.NewNop(),
	})
	return ts
}

func (ts *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 5)

	w := ts.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		setup      func(*MockAccounts)
		wantStatus int
		wantCode   string
	}{
		{
			name: "created",
			body: AuthRequest{Nickname: "alice", Password: "secret"},
			setup: func(m *MockAccounts) {
				m.On("Signup", mock.Anything, "alice", "secret").
					Return(&user.User{ID: 1, Nickname: "alice", Points: 1000, PasswordHash: "hash"}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "taken",
			body: AuthRequest{Nickname: "alice", Password: "secret"},
			setup: func(m *MockAccounts) {
				m.On("Signup", mock.Anything, "alice", "secret").Return(nil, user.ErrNicknameTaken)
			},
			wantStatus: http.StatusConflict,
			wantCode:   "NICKNAME_TAKEN",
		},
		{
			name: "invalid input",
			body: AuthRequest{Nickname: "a", Password: "secret"},
			setup: func(m *MockAccounts) {
				m.On("Signup", mock.Anything, "a", "secret").
					Return(nil, fmt.Errorf("%w: nickname too short", account.ErrInvalidInput))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "missing fields",
			body:       map[string]string{"nickname": "alice"},
			setup:      func(*MockAccounts) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, 5)
			tt.setup(ts.accounts)

			w := ts.do(http.MethodPost, "/api/v1/auth/signup", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, w))
			} else {
				assert.NotContains(t, w.Body.String(), "hash")
			}
			ts.accounts.AssertExpectations(t)
		})
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, 5)
	ts.accounts.On("Login", mock.Anything, "alice", "secret").
		Return(&user.User{Nickname: "alice", Points: 1000}, nil)
	ts.accounts.On("Login", mock.Anything, "alice", "wrong").
		Return(nil, account.ErrInvalidCredentials)

	w := ts.do(http.MethodPost, "/api/v1/auth/login", AuthRequest{Nickname: "alice", Password: "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	var u user.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, 1000, u.Points)

	w = ts.do(http.MethodPost, "/api/v1/auth/login", AuthRequest{Nickname: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, w))
}

func TestAuthRateLimit(t *testing.T) {
	ts := newTestServer(t, 2)
	ts.accounts.On("Login", mock.Anything, "alice", "wrong").Return(nil, account.ErrInvalidCredentials)

	body := AuthRequest{Nickname: "alice", Password: "wrong"}
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/v1/auth/login", body).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/v1/auth/login", body).Code)

	w := ts.do(http.MethodPost, "/api/v1/auth/login", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, w))

	// other routes are not limited
	ts.ranking.On("Top", mock.Anything, 0).Return([]*user.User{}, nil)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/v1/ranking", nil).Code)
}

func TestRanking(t *testing.T) {
	ts := newTestServer(t, 5)
	ts.ranking.On("Top", mock.Anything, 2).Return([]*user.User{
		{Nickname: "alice", Wins: 3, Points: 1240},
		{Nickname: "bob", Wins: 1, Losses: 2, Points: 1080},
	}, nil)

	w := ts.do(http.MethodGet, "/api/v1/ranking?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Ranking []RankingEntry `json:"ranking"`
		Total   int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, RankingEntry{Rank: 2, Nickname: "bob", Wins: 1, Losses: 2, Points: 1080}, resp.Ranking[1])

	w = ts.do(http.MethodGet, "/api/v1/ranking?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUser(t *testing.T) {
	ts := newTestServer(t, 5)
	ts.ranking.On("Profile", mock.Anything, "alice").Return(&user.User{Nickname: "alice"}, nil)
	ts.ranking.On("Profile", mock.Anything, "ghost").Return(nil, user.ErrUserNotFound)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/v1/users/alice", nil).Code)

	w := ts.do(http.MethodGet, "/api/v1/users/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestCards(t *testing.T) {
	ts := newTestServer(t, 5)
	ts.cards.On("DrawTwo").Return([]game.CardType{game.CardBomb, game.CardShield})

	w := ts.do(http.MethodGet, "/api/v1/cards", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var catalog struct {
		Cards      []game.CardInfo `json:"cards"`
		RerollCost int             `json:"reroll_cost"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &catalog))
	assert.Len(t, catalog.Cards, len(game.Catalog()))
	assert.Equal(t, 40, catalog.RerollCost)

	w = ts.do(http.MethodPost, "/api/v1/cards/draw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cards":["BOMB","SHIELD"]}`, w.Body.String())
}

func TestReroll(t *testing.T) {
	ts := newTestServer(t, 5)
	ts.ranking.On("Profile", mock.Anything, "alice").Return(&user.User{Nickname: "alice", Points: 960}, nil)
	ts.ranking.On("Profile", mock.Anything, "bob").Return(&user.User{Nickname: "bob", Points: 10}, nil)
	ts.ranking.On("Profile", mock.Anything, "ghost").Return(nil, user.ErrUserNotFound)
	ts.cards.On("Reroll", mock.Anything, "alice").Return(game.CardSwap, nil)
	ts.cards.On("Reroll", mock.Anything, "bob").Return(game.CardType(""), account.ErrInsufficientPoints)

	w := ts.do(http.MethodPost, "/api/v1/cards/reroll", RerollRequest{Nickname: "alice"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"card":"SWAP","cost":40,"points":960}`, w.Body.String())

	w = ts.do(http.MethodPost, "/api/v1/cards/reroll", RerollRequest{Nickname: "bob"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "INSUFFICIENT_POINTS", errorCode(t, w))

	w = ts.do(http.MethodPost, "/api/v1/cards/reroll", RerollRequest{Nickname: "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	ts.cards.AssertNotCalled(t, "Reroll", mock.Anything, "ghost")
}

func TestRooms(t *testing.T) {
	ts := newTestServer(t, 5)
	snap := &game.RoomSnapshot{
		ID:        "room-1",
		Mode:      game.Mode1v1,
		Phase:     game.PhasePlaying,
		Seats: []game.SeatSnapshot{
			{Seat: 0, Nickname: "alice", Hand: []game.CardType{game.CardShield}},
			{Seat: 1, Nickname: "bob", Team: 1, Hand: []game.CardType{game.CardRemove}},
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, ts.rooms.Save(context.Background(), snap))

	w := ts.do(http.MethodGet, "/api/v1/rooms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
	assert.NotContains(t, w.Body.String(), "SHIELD")
	assert.NotContains(t, w.Body.String(), `"hand"`)

	w = ts.do(http.MethodGet, "/api/v1/rooms/room-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got game.RoomSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, game.Mode1v1, got.Mode)
	require.Len(t, got.Seats, 2)
	assert.Equal(t, "bob", got.Seats[1].Nickname)
	assert.Empty(t, got.Seats[0].Hand)
	assert.Empty(t, got.Seats[1].Hand)

	// hands stay in the stored snapshot
	stored, err := ts.rooms.Load(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, []game.CardType{game.CardShield}, stored.Seats[0].Hand)

	w = ts.do(http.MethodGet, "/api/v1/rooms/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, 5)

	w := ts.do(http.MethodOptions, "/api/v1/auth/login", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestIPLimiterSweepsIdleClients(t *testing.T) {
	l := newIPLimiter(1, 1)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	l.limiters["10.0.0.1"].lastSeen = time.Now().Add(-2 * limiterIdleTTL)
	l.sweep(time.Now())
	assert.NotContains(t, l.limiters, "10.0.0.1")
	assert.Contains(t, l.limiters, "10.0.0.2")
}
