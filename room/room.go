// room/room.go
package room

import (
	"sync"
	"sync/atomic"

	"github.com/wfunc/gomoku/state"
)

// Room 单个对局的协调者：同一对局的写操作在 mutex 下串行执行，
// game 缓存最近一次已提交的快照
type Room struct {
	ID    string
	mutex sync.Mutex
	game  *state.Game
	open  atomic.Bool
	refs  int
}

// NewRoom 创建一个空房间，首次操作时从存储加载对局
func NewRoom(id string) *Room {
	return &Room{ID: id}
}

// Do runs fn while holding the room lock. fn receives a private copy of the cached
// snapshot, nil when nothing is cached yet. When fn returns a snapshot without error
// it replaces the cache; on error the cache is left untouched.
func (r *Room) Do(fn func(cached *state.Game) (*state.Game, error)) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var cached *state.Game
	if r.game != nil {
		cached = r.game.Clone()
	}
	next, err := fn(cached)
	if err != nil {
		return err
	}
	if next != nil {
		r.game = next.Clone()
		r.open.Store(!next.Match.Status.Terminal())
	}
	return nil
}

// Snapshot 返回缓存快照的副本
func (r *Room) Snapshot() (*state.Game, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.game == nil {
		return nil, false
	}
	return r.game.Clone(), true
}

// Invalidate drops the cache so the next operation reloads from storage.
func (r *Room) Invalidate() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.game = nil
	r.open.Store(false)
}

// Open reports that the room caches a match still in progress.
func (r *Room) Open() bool {
	return r.open.Load()
}

// --- 房间管理器 ---

// Manager 管理所有房间。房间按引用计数持有，
// 无人使用且没有进行中对局的房间被回收
type Manager struct {
	rooms map[string]*Room
	mutex sync.Mutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// Acquire returns the room for a match, creating it on first use. Every Acquire
// must be paired with a Release.
func (m *Manager) Acquire(id string) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[id]
	if !exists {
		room = NewRoom(id)
		m.rooms[id] = room
	}
	room.refs++
	return room
}

// Release drops one reference. An unused room is removed unless it caches an open match.
func (m *Manager) Release(room *Room) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room.refs--
	if room.refs <= 0 && !room.Open() {
		if current, exists := m.rooms[room.ID]; exists && current == room {
			delete(m.rooms, room.ID)
		}
	}
}

// With acquires the room for id, runs fn under its lock and releases it.
func (m *Manager) With(id string, fn func(cached *state.Game) (*state.Game, error)) error {
	room := m.Acquire(id)
	defer m.Release(room)
	return room.Do(fn)
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[id]
	return room, exists
}

// Count 当前房间数
func (m *Manager) Count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.rooms)
}
