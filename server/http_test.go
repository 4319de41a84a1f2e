package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/gomoku/persistence"
	"github.com/wfunc/gomoku/room"
	"github.com/wfunc/gomoku/services"
)

type testEnv struct {
	clock   *clockwork.FakeClock
	games   *services.GameService
	players *services.PlayerService
	app     *fiber.App
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := persistence.NewMemoryStore()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	games := services.NewGameService(store, room.NewRoomManager(), clock, nil, services.Options{SingleOpenMatch: true})
	players := services.NewPlayerService(store)
	return &testEnv{clock: clock, games: games, players: players, app: NewApp(NewAPI(games, players))}
}

func (e *testEnv) do(t *testing.T, method, path string, user int64, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(user, 10))
		req.Header.Set("X-Username", "user"+strconv.FormatInt(user, 10))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestHTTP_RequiresIdentity(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, "POST", "/api/matches/create", 0, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["code"])

	status, _ = e.do(t, "GET", "/healthz", 0, "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestHTTP_MatchFlow(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, "GET", "/api/matches/check", 2, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "no_match_found", body["status"])

	status, body = e.do(t, "POST", "/api/matches/create", 1, "")
	require.Equal(t, fiber.StatusCreated, status)
	matchID := body["match_id"].(string)
	gameID := body["game_id"].(string)

	status, body = e.do(t, "POST", "/api/matches/create", 1, "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "open_match_exists", body["code"])

	status, body = e.do(t, "GET", "/api/matches/check", 2, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "match_found", body["status"])
	assert.Equal(t, matchID, body["match_id"])
	assert.Equal(t, "user1", body["player1_username"])

	status, body = e.do(t, "POST", "/api/matches/join/"+matchID, 1, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "self_join", body["code"])

	status, body = e.do(t, "POST", "/api/matches/join/"+matchID, 2, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, gameID, body["game_id"])

	status, body = e.do(t, "POST", "/api/matches/"+matchID+"/move", 2, `{"x":7,"y":7}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "not_your_turn", body["code"])

	status, body = e.do(t, "POST", "/api/matches/"+matchID+"/move", 1, `{"x":7,"y":7}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1.0, body["move_number"])
	assert.Equal(t, false, body["game_over"])

	status, body = e.do(t, "POST", "/api/matches/"+matchID+"/move", 2, `{"x":7,"y":7}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "cell_occupied", body["code"])

	status, _ = e.do(t, "POST", "/api/matches/"+matchID+"/move", 2, `{"x":7}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = e.do(t, "POST", "/api/matches/"+matchID+"/heartbeat", 2, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body = e.do(t, "GET", "/api/matches/"+matchID, 3, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["code"])

	status, body = e.do(t, "GET", "/api/matches/"+matchID, 1, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["moves"], 1)

	status, body = e.do(t, "POST", "/api/matches/"+matchID+"/exit", 2, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, -10.0, body["rating_delta"])

	status, body = e.do(t, "POST", "/api/matches/"+matchID+"/move", 1, `{"x":8,"y":8}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "match_closed", body["code"])
}

func TestHTTP_NotFoundAndCancel(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, "POST", "/api/matches/cancel/missing", 1, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])

	_, body = e.do(t, "POST", "/api/matches/create", 1, "")
	matchID := body["match_id"].(string)

	status, body = e.do(t, "POST", "/api/matches/cancel/"+matchID, 2, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "not_owner", body["code"])

	status, _ = e.do(t, "POST", "/api/matches/cancel/"+matchID, 1, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body = e.do(t, "POST", "/api/matches/join/"+matchID, 2, "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "already_closed", body["code"])
}

func TestHTTP_QuickMatchAndProjections(t *testing.T) {
	e := newTestEnv(t)

	_, body := e.do(t, "POST", "/api/matches/quick", 1, "")
	assert.Equal(t, false, body["joined"])
	matchID := body["match_id"].(string)

	_, body = e.do(t, "POST", "/api/matches/quick", 2, "")
	assert.Equal(t, true, body["joined"])
	assert.Equal(t, matchID, body["match_id"])

	status, _ := e.do(t, "POST", "/api/matches/"+matchID+"/exit", 1, "")
	require.Equal(t, fiber.StatusOK, status)

	status, body = e.do(t, "GET", "/api/players/2", 1, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1010.0, body["rating"])

	status, _ = e.do(t, "GET", "/api/players/abc", 1, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = e.do(t, "GET", "/api/replays/"+matchID, 1, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "abandoned", body["status"])

	req := httptest.NewRequest("GET", "/api/leaderboard?limit=1", nil)
	req.Header.Set("X-User-ID", "1")
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var entries []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 2.0, entries[0]["id"])

	req = httptest.NewRequest("GET", "/api/replays", nil)
	req.Header.Set("X-User-ID", "3")
	resp, err = e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "[]", string(raw))
}

func TestStatusFor(t *testing.T) {
	cases := map[string]int{
		"double_three_forbidden": fiber.StatusBadRequest,
		"not_participant":        fiber.StatusForbidden,
		"not_found":              fiber.StatusNotFound,
		"already_closed":         fiber.StatusConflict,
		"transient":              fiber.StatusServiceUnavailable,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusFor(code), code)
	}
}
