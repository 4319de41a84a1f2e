package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/gomoku/logger"
	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	server   *rpc.Server
}

// NewServer listens on addr and registers the player queries under the name "PlayerService".
func NewServer(addr string, players *services.PlayerService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("PlayerService", NewPlayerService(players)); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		server:   srv,
	}, nil
}

// Addr returns the bound address, useful when listening on ":0".
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.server.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// PlayerService is the struct that exposes RPC methods.
// Methods follow the net/rpc signature: exported args, pointer reply, error return.
type PlayerService struct {
	players *services.PlayerService
}

func NewPlayerService(ps *services.PlayerService) *PlayerService {
	return &PlayerService{players: ps}
}

type GetPlayerArgs struct {
	UserID int64
}

type GetPlayerReply struct {
	Player models.Player
}

func (ps *PlayerService) GetPlayer(args *GetPlayerArgs, reply *GetPlayerReply) error {
	p, err := ps.players.GetPlayer(context.Background(), args.UserID)
	if err != nil {
		return rpcError(err)
	}
	reply.Player = *p
	return nil
}

type LeaderboardArgs struct {
	Limit int
}

type LeaderboardReply struct {
	Entries []models.LeaderboardEntry
}

func (ps *PlayerService) Leaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	entries, err := ps.players.Leaderboard(context.Background(), args.Limit)
	if err != nil {
		return rpcError(err)
	}
	reply.Entries = entries
	return nil
}

// rpcError net/rpc 只传字符串，带上错误码方便调用方判断
func rpcError(err error) error {
	return errors.New(services.ErrorCode(err) + ": " + err.Error())
}

// HealthServer gRPC 健康检查
type HealthServer struct {
	listener net.Listener
	server   *grpc.Server
	health   *health.Server
}

func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{listener: listener, server: srv, health: hs}, nil
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// SetServing 切换整体服务状态
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
}

func (h *HealthServer) Start() {
	logger.Log.Infof("gRPC health server listening on %s", h.Addr())
	if err := h.server.Serve(h.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Log.Errorf("gRPC health server stopped: %v", err)
	}
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
