package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"grammargame/internal/api/handler"
	"grammargame/internal/app/apptest"
	"grammargame/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	env     *apptest.Env
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	env := apptest.New(t)
	h, err := handler.New(&handler.Config{
		Container: env.Container,
		Mode:      env.Config.Mode,
		Origins:   env.Config.Origins,
	})
	require.NoError(t, err)

	return &testServer{env, h}
}

func (s *testServer) do(t *testing.T, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, username string) *models.LoginResponse {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", models.Credentials{Username: username, Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response models.LoginResponse
	decodeData(t, rec, &response)
	require.NotEmpty(t, response.Token)
	return &response
}

// decodeData reads the payload whether or not it is wrapped in a data envelope.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
		return
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	login := s.register(t, "http_player")

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session models.GameSession
	decodeData(t, rec, &session)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, login.User.ID, session.UserID)
	assert.Equal(t, 1, session.Level)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/progress", login.Token, models.GameSessionProgress{Score: 150, Level: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &session)
	assert.Equal(t, 150, session.Score)
	assert.Equal(t, 2, session.Level)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/complete", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &session)
	assert.True(t, session.Completed)
	require.NotNil(t, session.EndTime)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/complete", login.Token, nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/progress", login.Token, models.GameSessionProgress{Score: 200, Level: 3})
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+session.ID, login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stored models.GameSession
	decodeData(t, rec, &stored)
	assert.Equal(t, 150, stored.Score)
	assert.True(t, stored.Completed)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sessions []*models.GameSession
	decodeData(t, rec, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/last", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var last models.GameSession
	decodeData(t, rec, &last)
	assert.Equal(t, session.ID, last.ID)

	rec = s.do(t, http.MethodGet, "/api/v1/leaderboard/overall", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var board models.LeaderboardResponse
	decodeData(t, rec, &board)
	require.Len(t, board.Leaderboard, 1)
	assert.EqualValues(t, 1, board.Total)
	assert.Equal(t, "http_player", board.Leaderboard[0].Username)
	assert.Equal(t, float64(150), board.Leaderboard[0].Score)
}

func TestSessionsOfOtherUsersAreHidden(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner")
	intruder := s.register(t, "intruder")

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session models.GameSession
	decodeData(t, rec, &session)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+session.ID, intruder.Token, nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/complete", intruder.Token, nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+session.ID, owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &session)
	assert.False(t, session.Completed)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions", intruder.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sessions []*models.GameSession
	decodeData(t, rec, &sessions)
	assert.Empty(t, sessions)
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", "", nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/user/me", "garbage", nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)

	login := s.register(t, "me_user")
	rec = s.do(t, http.MethodGet, "/api/v1/user/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var user models.User
	decodeData(t, rec, &user)
	assert.Equal(t, "me_user", user.Username)
	assert.Empty(t, user.PasswordHash)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", models.Credentials{Username: "me_user", Password: "wrong-password"})
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/register", "", models.Credentials{Username: "me_user", Password: "correct-horse"})
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestSessionCreateRateLimited(t *testing.T) {
	s := newTestServer(t)
	login := s.register(t, "spammer")

	s.env.Limiter.Deny = true
	rec := s.do(t, http.MethodPost, "/api/v1/sessions", login.Token, nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.env.Limiter.Calls)

	sessions, err := s.env.Store.ListGameSessionsByUser(context.Background(), login.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestInvalidProgressPayload(t *testing.T) {
	s := newTestServer(t)
	login := s.register(t, "sloppy")

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session models.GameSession
	decodeData(t, rec, &session)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/progress", login.Token, models.GameSessionProgress{Score: -10, Level: 1})
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/leaderboard/unknown", login.Token, nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}
