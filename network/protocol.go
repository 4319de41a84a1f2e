package network

// 消息类型，响应沿用请求的 msgID 与 seq
const (
	MsgTypeHeartbeat = 1
	MsgTypeError     = 2
	// 连接后的第一条消息，绑定玩家身份
	MsgTypeLogin = 10

	MsgTypeCreateMatch = 101
	MsgTypeFindMatch   = 102
	MsgTypeJoinMatch   = 103
	MsgTypeCancelMatch = 104
	MsgTypeQuickMatch  = 105

	MsgTypeMove       = 201
	MsgTypeExit       = 202
	MsgTypeMatchState = 203

	MsgTypePlayer      = 301
	MsgTypeLeaderboard = 302
	MsgTypeReplays     = 303
	MsgTypeReplay      = 304
)

type LoginRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
}

type MatchRequest struct {
	MatchID string `json:"match_id"`
}

type MoveRequest struct {
	MatchID string `json:"match_id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
}

type PlayerRequest struct {
	PlayerID int64 `json:"player_id"`
}

type LeaderboardRequest struct {
	Limit int `json:"limit"`
}

// Response 统一的响应包体
type Response struct {
	Status  string      `json:"status"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(data interface{}) Response {
	return Response{Status: "ok", Data: data}
}

func Error(code, message string) Response {
	return Response{Status: "error", Code: code, Message: message}
}
