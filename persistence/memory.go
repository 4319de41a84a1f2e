// persistence/memory.go
package persistence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/gomoku/models"
)

// ErrConflict is returned by MemoryStore when a record read inside a transaction
// was changed by another transaction before commit. The caller may retry.
var ErrConflict = errors.New("concurrent modification")

type cellKey struct {
	matchID string
	x, y    int
}

// MemoryStore 内存实现：事务先写暂存区，提交时做乐观版本校验
type MemoryStore struct {
	mutex          sync.RWMutex
	matches        map[string]*models.Match
	matchVersions  map[string]uint64
	players        map[int64]*models.Player
	playerVersions map[int64]uint64
	moves          map[string][]models.Move
	cells          map[cellKey]struct{}
	nextMoveID     atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches:        make(map[string]*models.Match),
		matchVersions:  make(map[string]uint64),
		players:        make(map[int64]*models.Player),
		playerVersions: make(map[int64]uint64),
		moves:          make(map[string][]models.Move),
		cells:          make(map[cellKey]struct{}),
	}
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{
		store:         s,
		matches:       make(map[string]*models.Match),
		newMatches:    make(map[string]bool),
		players:       make(map[int64]*models.Player),
		matchReads:    make(map[string]uint64),
		playerReads:   make(map[int64]uint64),
		dirtyMatches:  make(map[string]bool),
		dirtyPlayers:  make(map[int64]bool),
		pendingByGame: make(map[string][]*models.Move),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *MemoryStore) commit(tx *memoryTx) error {
	if len(tx.dirtyMatches) == 0 && len(tx.dirtyPlayers) == 0 && len(tx.pending) == 0 {
		return nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for id, v := range tx.matchReads {
		if s.matchVersions[id] != v {
			return ErrConflict
		}
	}
	for id, v := range tx.playerReads {
		if s.playerVersions[id] != v {
			return ErrConflict
		}
	}
	for id := range tx.newMatches {
		if _, exists := s.matches[id]; exists {
			return ErrDuplicate
		}
	}
	for matchID, pending := range tx.pendingByGame {
		next := len(s.moves[matchID]) + 1
		for _, mv := range pending {
			if _, taken := s.cells[cellKey{matchID, mv.X, mv.Y}]; taken || mv.MoveNumber != next {
				return ErrDuplicate
			}
			next++
		}
	}

	for id := range tx.dirtyMatches {
		s.matches[id] = tx.matches[id].Clone()
		s.matchVersions[id]++
	}
	for id := range tx.dirtyPlayers {
		p := *tx.players[id]
		s.players[id] = &p
		s.playerVersions[id]++
	}
	for _, mv := range tx.pending {
		s.moves[mv.MatchID] = append(s.moves[mv.MatchID], *mv)
		s.cells[cellKey{mv.MatchID, mv.X, mv.Y}] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) ListMatchesByStatus(ctx context.Context, status models.MatchStatus) ([]models.Match, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []models.Match
	for _, m := range s.matches {
		if m.Status == status {
			out = append(out, *m.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) ListPlayerMatches(ctx context.Context, playerID int64) ([]models.Match, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []models.Match
	for _, m := range s.matches {
		if m.IsParticipant(playerID) {
			out = append(out, *m.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) TopPlayers(ctx context.Context, limit int) ([]models.Player, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]models.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func sortByCreated(ms []models.Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID < ms[j].ID
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}

// memoryTx 暂存区：读取时记录版本，写入只落在暂存区
type memoryTx struct {
	store         *MemoryStore
	matches       map[string]*models.Match
	newMatches    map[string]bool
	players       map[int64]*models.Player
	matchReads    map[string]uint64
	playerReads   map[int64]uint64
	dirtyMatches  map[string]bool
	dirtyPlayers  map[int64]bool
	pending       []*models.Move
	pendingByGame map[string][]*models.Move
}

func (t *memoryTx) GetMatch(id string) (*models.Match, error) {
	if m, ok := t.matches[id]; ok {
		return m.Clone(), nil
	}
	t.store.mutex.RLock()
	m, ok := t.store.matches[id]
	version := t.store.matchVersions[id]
	t.store.mutex.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}
	t.matchReads[id] = version
	t.matches[id] = m.Clone()
	return m.Clone(), nil
}

func (t *memoryTx) CreateMatch(m *models.Match) error {
	if _, err := t.GetMatch(m.ID); err == nil {
		return ErrDuplicate
	}
	t.matches[m.ID] = m.Clone()
	t.newMatches[m.ID] = true
	t.dirtyMatches[m.ID] = true
	return nil
}

func (t *memoryTx) SaveMatch(m *models.Match) error {
	if _, err := t.GetMatch(m.ID); err != nil {
		return err
	}
	t.matches[m.ID] = m.Clone()
	t.dirtyMatches[m.ID] = true
	return nil
}

func (t *memoryTx) ListMoves(matchID string) ([]models.Move, error) {
	t.store.mutex.RLock()
	out := append([]models.Move(nil), t.store.moves[matchID]...)
	t.store.mutex.RUnlock()
	for _, mv := range t.pendingByGame[matchID] {
		out = append(out, *mv)
	}
	return out, nil
}

// AppendMove 分配序列号，回滚时号段作废，与数据库序列一致
func (t *memoryTx) AppendMove(mv *models.Move) error {
	mv.ID = t.store.nextMoveID.Add(1)
	cp := *mv
	t.pending = append(t.pending, &cp)
	t.pendingByGame[mv.MatchID] = append(t.pendingByGame[mv.MatchID], &cp)
	return nil
}

func (t *memoryTx) GetPlayer(id int64) (*models.Player, error) {
	if p, ok := t.players[id]; ok {
		cp := *p
		return &cp, nil
	}
	t.store.mutex.RLock()
	p, ok := t.store.players[id]
	version := t.store.playerVersions[id]
	t.store.mutex.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}
	t.playerReads[id] = version
	cp := *p
	t.players[id] = &cp
	out := cp
	return &out, nil
}

func (t *memoryTx) EnsurePlayer(id int64, username string, now time.Time) (*models.Player, error) {
	p, err := t.GetPlayer(id)
	if err == nil {
		if username != "" && p.Username != username {
			p.Username = username
			p.UpdatedAt = now
			return p, t.SavePlayer(p)
		}
		return p, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}
	p = models.NewPlayer(id, username, now)
	t.playerReads[id] = 0
	return p, t.SavePlayer(p)
}

func (t *memoryTx) SavePlayer(p *models.Player) error {
	cp := *p
	t.players[p.ID] = &cp
	t.dirtyPlayers[p.ID] = true
	return nil
}

func (t *memoryTx) FindOpenMatches(excludeOwner int64, limit int) ([]models.Match, error) {
	t.store.mutex.RLock()
	var out []models.Match
	for _, m := range t.store.matches {
		if m.Status == models.StatusWaiting && m.Player1ID != excludeOwner {
			out = append(out, *m.Clone())
		}
	}
	t.store.mutex.RUnlock()
	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memoryTx) FindWaitingByOwner(owner int64) ([]models.Match, error) {
	var out []models.Match
	for id, m := range t.matches {
		if t.newMatches[id] && m.Status == models.StatusWaiting && m.Player1ID == owner {
			out = append(out, *m.Clone())
		}
	}
	t.store.mutex.RLock()
	for _, m := range t.store.matches {
		if m.Status == models.StatusWaiting && m.Player1ID == owner {
			out = append(out, *m.Clone())
		}
	}
	t.store.mutex.RUnlock()
	sortByCreated(out)
	return out, nil
}
