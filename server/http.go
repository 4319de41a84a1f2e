// server/http.go
package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wfunc/gomoku/logger"
	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/services"
)

const (
	localUserID   = "user_id"
	localUsername = "username"
)

// API REST 接口，身份由网关通过 X-User-ID / X-Username 传入
type API struct {
	games   *services.GameService
	players *services.PlayerService
}

func NewAPI(games *services.GameService, players *services.PlayerService) *API {
	return &API{games: games, players: players}
}

// NewApp 创建 fiber 应用并挂载全部路由
func NewApp(api *API) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "gomoku",
		DisableStartupMessage: true,
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	api.Routes(app)
	return app
}

func (a *API) Routes(app *fiber.App) {
	secured := app.Group("/api", UserContextMiddleware())

	secured.Get("/matches/check", a.checkMatches)
	secured.Post("/matches/create", a.createMatch)
	secured.Post("/matches/quick", a.quickMatch)
	secured.Post("/matches/join/:id", a.joinMatch)
	secured.Post("/matches/cancel/:id", a.cancelMatch)
	secured.Get("/matches/:id", a.getMatch)
	secured.Post("/matches/:id/move", a.submitMove)
	secured.Post("/matches/:id/heartbeat", a.heartbeat)
	secured.Post("/matches/:id/exit", a.exitMatch)

	secured.Get("/players/:id", a.getPlayer)
	secured.Get("/leaderboard", a.leaderboard)
	secured.Get("/replays", a.listReplays)
	secured.Get("/replays/:id", a.getReplay)
}

// UserContextMiddleware 读取网关注入的身份头，缺失或非法时返回 401
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := strconv.ParseInt(c.Get("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"code":    "unauthorized",
				"message": "missing or invalid X-User-ID",
			})
		}
		c.Locals(localUserID, userID)
		c.Locals(localUsername, c.Get("X-Username"))
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) (int64, string) {
	id, _ := c.Locals(localUserID).(int64)
	name, _ := c.Locals(localUsername).(string)
	return id, name
}

// StatusFor 错误码到 HTTP 状态码
func StatusFor(code string) int {
	switch code {
	case "out_of_bounds", "not_your_turn", "cell_occupied", "double_three_forbidden",
		"self_join", "not_started", "invalid_player", "bad_request":
		return fiber.StatusBadRequest
	case "forbidden", "not_participant", "not_owner":
		return fiber.StatusForbidden
	case "not_found":
		return fiber.StatusNotFound
	case "match_closed", "already_closed", "open_match_exists", "transition_not_allowed":
		return fiber.StatusConflict
	default:
		return fiber.StatusServiceUnavailable
	}
}

func fail(c *fiber.Ctx, err error) error {
	code := services.ErrorCode(err)
	status := StatusFor(code)
	if status == fiber.StatusServiceUnavailable {
		logger.Log.Errorf("%s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"code":    code,
		"message": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"status":  "error",
		"code":    "bad_request",
		"message": message,
	})
}

func (a *API) checkMatches(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	m, err := a.games.FindOpenMatch(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	if m == nil {
		return c.JSON(fiber.Map{"status": "no_match_found"})
	}

	resp := fiber.Map{
		"status":     "match_found",
		"match_id":   m.ID,
		"player1_id": m.Player1ID,
	}
	if owner, err := a.players.GetPlayer(c.UserContext(), m.Player1ID); err == nil {
		resp["player1_username"] = owner.Username
	}
	return c.JSON(resp)
}

func (a *API) createMatch(c *fiber.Ctx) error {
	userID, username := currentUser(c)
	m, err := a.games.CreateMatch(c.UserContext(), userID, username)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":   "success",
		"match_id": m.ID,
		"game_id":  m.GameID,
	})
}

func (a *API) quickMatch(c *fiber.Ctx) error {
	userID, username := currentUser(c)
	m, joined, err := a.games.QuickMatch(c.UserContext(), userID, username)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":   "success",
		"joined":   joined,
		"match_id": m.ID,
		"game_id":  m.GameID,
	})
}

func (a *API) joinMatch(c *fiber.Ctx) error {
	userID, username := currentUser(c)
	m, err := a.games.JoinMatch(c.UserContext(), c.Params("id"), userID, username)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "game_id": m.GameID})
}

func (a *API) cancelMatch(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	if err := a.games.CancelMatch(c.UserContext(), c.Params("id"), userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (a *API) getMatch(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	view, err := a.games.GetMatchState(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(view)
}

type moveBody struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (a *API) submitMove(c *fiber.Ctx) error {
	var body moveBody
	if err := c.BodyParser(&body); err != nil || body.X == nil || body.Y == nil {
		return badRequest(c, "body must be {\"x\": int, \"y\": int}")
	}
	userID, _ := currentUser(c)
	resp, err := a.games.SubmitMove(c.UserContext(), c.Params("id"), userID, *body.X, *body.Y)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (a *API) heartbeat(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	if err := a.games.Heartbeat(c.UserContext(), c.Params("id"), userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (a *API) exitMatch(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	resp, err := a.games.ExitMatch(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (a *API) getPlayer(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "player id must be an integer")
	}
	p, err := a.players.GetPlayer(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

func (a *API) leaderboard(c *fiber.Ctx) error {
	entries, err := a.players.Leaderboard(c.UserContext(), c.QueryInt("limit", services.DefaultLeaderboardSize))
	if err != nil {
		return fail(c, err)
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return c.JSON(entries)
}

func (a *API) listReplays(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	replays, err := a.players.ListReplays(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	if replays == nil {
		replays = []models.Replay{}
	}
	return c.JSON(replays)
}

func (a *API) getReplay(c *fiber.Ctx) error {
	r, err := a.players.GetReplay(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(r)
}
