// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/gomoku/network"
)

// Session 一个 websocket 连接；Login 之前 UserID 为 0
type Session struct {
	ID         string
	Conn       network.Connection
	UserID     int64
	Username   string
	MatchID    string // 最近一次操作的对局
	CreatedAt  time.Time
	lastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection, now time.Time) *Session {
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
	}
}

// Login 绑定身份，已登录的会话不能换人
func (s *Session) Login(userID int64, username string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.UserID != 0 && s.UserID != userID {
		return false
	}
	s.UserID = userID
	s.Username = username
	return true
}

func (s *Session) Identity() (int64, string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.UserID, s.Username
}

func (s *Session) SetMatch(matchID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.MatchID = matchID
}

func (s *Session) Match() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.MatchID
}

func (s *Session) Touch(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if now.After(s.lastActive) {
		s.lastActive = now
	}
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// Send 回包，seq 取自请求
func (s *Session) Send(msgID uint16, seq uint32, data []byte) error {
	return s.Conn.Send(msgID, seq, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) GetByUserID(userID int64) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if id, _ := session.Identity(); id == userID {
			result = append(result, session)
		}
	}
	return result
}

// CloseAll 关闭全部连接，用于停服
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mutex.RUnlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}
