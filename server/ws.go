// server/ws.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/wfunc/gomoku/logger"
	"github.com/wfunc/gomoku/network"
	"github.com/wfunc/gomoku/services"
	"github.com/wfunc/gomoku/session"
)

var (
	errNotLoggedIn   = errors.New("login required")
	errBadPayload    = errors.New("malformed payload")
	errUnknownMsg    = errors.New("unknown message type")
	errLoginMismatch = errors.New("session is bound to another user")
)

// handlerFunc 处理一个请求，返回值作为响应 data
type handlerFunc func(ctx context.Context, sess *session.Session, data []byte) (interface{}, error)

// WSServer websocket 传输：一问一答，不主动推送
type WSServer struct {
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	games          *services.GameService
	players        *services.PlayerService
	clock          clockwork.Clock
	heartbeat      time.Duration
	handlers       map[uint16]handlerFunc
	shutdownChan   chan struct{}
}

func NewWSServer(games *services.GameService, players *services.PlayerService, heartbeat time.Duration) *WSServer {
	s := &WSServer{
		sessionManager: session.NewManager(),
		games:          games,
		players:        players,
		clock:          games.Clock(),
		heartbeat:      heartbeat,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	s.handlers = map[uint16]handlerFunc{
		network.MsgTypeLogin:       s.handleLogin,
		network.MsgTypeHeartbeat:   s.handleHeartbeat,
		network.MsgTypeCreateMatch: s.handleCreateMatch,
		network.MsgTypeFindMatch:   s.handleFindMatch,
		network.MsgTypeJoinMatch:   s.handleJoinMatch,
		network.MsgTypeCancelMatch: s.handleCancelMatch,
		network.MsgTypeQuickMatch:  s.handleQuickMatch,
		network.MsgTypeMove:        s.handleMove,
		network.MsgTypeExit:        s.handleExit,
		network.MsgTypeMatchState:  s.handleMatchState,
		network.MsgTypePlayer:      s.handlePlayer,
		network.MsgTypeLeaderboard: s.handleLeaderboard,
		network.MsgTypeReplays:     s.handleReplays,
		network.MsgTypeReplay:      s.handleReplay,
	}
	return s
}

func (s *WSServer) Sessions() *session.Manager {
	return s.sessionManager
}

// ServeHTTP 升级为 websocket 并阻塞处理该连接
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

// Shutdown 通知读循环退出并关闭所有连接
func (s *WSServer) Shutdown() {
	close(s.shutdownChan)
	s.sessionManager.CloseAll()
}

func (s *WSServer) handleConnection(conn network.Connection) {
	sess := session.NewSession(uuid.New().String(), conn, s.clock.Now())
	s.sessionManager.Add(sess)
	if s.heartbeat > 0 {
		conn.SetHeartbeat(s.heartbeat)
	}

	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		conn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := conn.ReadPacket()
			if errors.Is(err, io.ErrShortBuffer) {
				s.reply(sess, network.MsgTypeError, 0, network.Error("bad_request", "short frame"))
				continue
			}
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *WSServer) handlePacket(sess *session.Session, packet *network.Packet) {
	sess.Touch(s.clock.Now())

	handler, ok := s.handlers[packet.MsgID]
	if !ok {
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		s.reply(sess, packet.MsgID, packet.Seq, network.Error("unknown_message", errUnknownMsg.Error()))
		return
	}
	if userID, _ := sess.Identity(); userID == 0 && packet.MsgID != network.MsgTypeLogin {
		s.reply(sess, packet.MsgID, packet.Seq, network.Error("unauthorized", errNotLoggedIn.Error()))
		return
	}

	data, err := handler(context.Background(), sess, packet.Data)
	if err != nil {
		s.reply(sess, packet.MsgID, packet.Seq, wsError(err))
		return
	}
	s.reply(sess, packet.MsgID, packet.Seq, network.OK(data))
}

func (s *WSServer) reply(sess *session.Session, msgID uint16, seq uint32, resp network.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Errorf("Failed to encode response for session %s: %v", sess.GetID(), err)
		return
	}
	if err := sess.Send(msgID, seq, data); err != nil {
		logger.Log.Infof("Failed to send to session %s: %v", sess.GetID(), err)
	}
}

func wsError(err error) network.Response {
	switch {
	case errors.Is(err, errBadPayload):
		return network.Error("bad_request", err.Error())
	case errors.Is(err, errLoginMismatch):
		return network.Error("unauthorized", err.Error())
	}
	code := services.ErrorCode(err)
	if code == "transient" {
		logger.Log.Errorf("websocket request failed: %v", err)
	}
	return network.Error(code, err.Error())
}

func decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Join(errBadPayload, err)
	}
	return nil
}

func (s *WSServer) handleLogin(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	var req network.LoginRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	if req.UserID <= 0 {
		return nil, services.ErrInvalidPlayer
	}
	if !sess.Login(req.UserID, req.Username) {
		return nil, errLoginMismatch
	}
	logger.Log.Infof("Session %s logged in as user %d (%d sessions)", sess.GetID(), req.UserID,
		len(s.sessionManager.GetByUserID(req.UserID)))
	return map[string]interface{}{"session_id": sess.GetID(), "user_id": req.UserID}, nil
}

// handleHeartbeat 刷新会话活跃时间；带 match_id 或已记录对局时同时刷新对局心跳
func (s *WSServer) handleHeartbeat(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	var req network.MatchRequest
	if len(data) > 0 {
		if err := decode(data, &req); err != nil {
			return nil, err
		}
	}
	matchID := req.MatchID
	if matchID == "" {
		matchID = sess.Match()
	}
	if matchID == "" {
		return nil, nil
	}
	userID, _ := sess.Identity()
	if err := s.games.Heartbeat(ctx, matchID, userID); err != nil {
		return nil, err
	}
	sess.SetMatch(matchID)
	return nil, nil
}

func (s *WSServer) handleCreateMatch(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	userID, username := sess.Identity()
	m, err := s.games.CreateMatch(ctx, userID, username)
	if err != nil {
		return nil, err
	}
	sess.SetMatch(m.ID)
	return map[string]string{"match_id": m.ID, "game_id": m.GameID}, nil
}

func (s *WSServer) handleFindMatch(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	userID, _ := sess.Identity()
	m, err := s.games.FindOpenMatch(ctx, userID)
	if err != nil || m == nil {
		return nil, err
	}
	return m, nil
}

func (s *WSServer) handleJoinMatch(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	var req network.MatchRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	userID, username := sess.Identity()
	m, err := s.games.JoinMatch(ctx, req.MatchID, userID, username)
	if err != nil {
		return nil, err
	}
	sess.SetMatch(m.ID)
	return map[string]string{"game_id": m.GameID}, nil
}

func (s *WSServer) handleCancelMatch(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	var req network.MatchRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	userID, _ := sess.Identity()
	return nil, s.games.CancelMatch(ctx, req.MatchID, userID)
}

func (s *WSServer) handleQuickMatch(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	userID, username := sess.Identity()
	m, joined, err := s.games.QuickMatch(ctx, userID, username)
	if err != nil {
		return nil, err
	}
	sess.SetMatch(m.ID)
	return map[string]interface{}{"match_id": m.ID, "game_id": m.GameID, "joined": joined}, nil
}

func (s *WSServer) handleMove(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	var req network.MoveRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	userID, _ := sess.Identity()
	return s.games.SubmitMove(ctx, req.MatchID, userID, req.X, req.Y)
}

func (s *WSServer) handleExit(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	var req network.MatchRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	userID, _ := sess.Identity()
	return s.games.ExitMatch(ctx, req.MatchID, userID)
}

func (s *WSServer) handleMatchState(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	var req network.MatchRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	userID, _ := sess.Identity()
	return s.games.GetMatchState(ctx, req.MatchID, userID)
}

func (s *WSServer) handlePlayer(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	var req network.PlayerRequest
	if len(data) > 0 {
		if err := decode(data, &req); err != nil {
			return nil, err
		}
	}
	if req.PlayerID == 0 {
		req.PlayerID, _ = sess.Identity()
	}
	return s.players.GetPlayer(ctx, req.PlayerID)
}

func (s *WSServer) handleLeaderboard(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	var req network.LeaderboardRequest
	if len(data) > 0 {
		if err := decode(data, &req); err != nil {
			return nil, err
		}
	}
	return s.players.Leaderboard(ctx, req.Limit)
}

func (s *WSServer) handleReplays(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	userID, _ := sess.Identity()
	return s.players.ListReplays(ctx, userID)
}

func (s *WSServer) handleReplay(ctx context.Context, sess *session.Session, data []byte) (interface{}, error) {
	var req network.MatchRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	return s.players.GetReplay(ctx, req.MatchID)
}
