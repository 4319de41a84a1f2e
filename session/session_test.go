package session

import (
	"net"
	"testing"
	"time"

	"github.com/wfunc/gomoku/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	closed bool
}

func (m *MockConnection) Send(msgID uint16, seq uint32, data []byte) error { return nil }
func (m *MockConnection) Close() error                                     { m.closed = true; return nil }
func (m *MockConnection) RemoteAddr() net.Addr                             { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)              {}
func (m *MockConnection) ReadPacket() (*network.Packet, error)             { return nil, nil }

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{}, t0)

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByUserID(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", &MockConnection{}, t0)
	sess1.Login(100, "alice")

	sess2 := NewSession("session2", &MockConnection{}, t0)
	sess2.Login(200, "bob")

	sess3 := NewSession("session3", &MockConnection{}, t0)
	sess3.Login(100, "alice")

	manager.Add(sess1)
	manager.Add(sess2)
	manager.Add(sess3)

	if got := len(manager.GetByUserID(100)); got != 2 {
		t.Errorf("Expected 2 sessions for UserID 100, got %d", got)
	}
	if got := len(manager.GetByUserID(200)); got != 1 {
		t.Errorf("Expected 1 session for UserID 200, got %d", got)
	}
	if got := len(manager.GetByUserID(300)); got != 0 {
		t.Errorf("Expected 0 sessions for UserID 300, got %d", got)
	}
}

func TestSession_LoginBindsOnce(t *testing.T) {
	sess := NewSession("s", &MockConnection{}, t0)

	if !sess.Login(1, "alice") {
		t.Fatal("First login should succeed")
	}
	if !sess.Login(1, "alice2") {
		t.Error("Re-login as the same user should succeed")
	}
	if sess.Login(2, "bob") {
		t.Error("Login as a different user should be refused")
	}
	if id, name := sess.Identity(); id != 1 || name != "alice2" {
		t.Errorf("Unexpected identity %d %q", id, name)
	}
}

func TestSession_TouchOnlyMovesForward(t *testing.T) {
	sess := NewSession("s", &MockConnection{}, t0)

	sess.Touch(t0.Add(time.Minute))
	sess.Touch(t0)
	if !sess.LastActive().Equal(t0.Add(time.Minute)) {
		t.Errorf("Expected last active to stay at the latest touch, got %v", sess.LastActive())
	}
}

func TestManager_CloseAll(t *testing.T) {
	manager := NewManager()
	conns := []*MockConnection{{}, {}}
	manager.Add(NewSession("a", conns[0], t0))
	manager.Add(NewSession("b", conns[1], t0))

	manager.CloseAll()
	for i, c := range conns {
		if !c.closed {
			t.Errorf("Connection %d was not closed", i)
		}
	}
}
