package state

import (
	"sync"
	"time"

	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/outcome"
)

// 状态机接口
type StateMachine interface {
	ChangeState(g *Game, to models.MatchStatus) error
	GetState(status models.MatchStatus) State
	AddTransition(from, to models.MatchStatus, condition func(g *Game) bool) error
}

// 状态接口：每种对局状态对各操作的处理
type State interface {
	GetID() models.MatchStatus
	Join(g *Game, playerID int64) error
	Cancel(g *Game, playerID int64) error
	Move(g *Game, playerID int64, x, y int) (*MoveResult, error)
	Exit(g *Game, playerID int64) (*outcome.Result, error)
	Heartbeat(g *Game, playerID int64) error
	Expire(g *Game, observer int64, window time.Duration) (*outcome.Result, error)
	Sweep(g *Game, window time.Duration) (*outcome.Result, error)
}

// BaseStateMachine only allows registered transitions; a transition with a
// condition is refused when the condition returns false.
type BaseStateMachine struct {
	states      map[models.MatchStatus]State
	transitions map[models.MatchStatus]map[models.MatchStatus]func(g *Game) bool
	mutex       sync.RWMutex
}

func NewBaseStateMachine(states ...State) *BaseStateMachine {
	machine := &BaseStateMachine{
		states:      make(map[models.MatchStatus]State),
		transitions: make(map[models.MatchStatus]map[models.MatchStatus]func(g *Game) bool),
	}
	for _, s := range states {
		machine.states[s.GetID()] = s
	}
	return machine
}

func (sm *BaseStateMachine) ChangeState(g *Game, to models.MatchStatus) error {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	conditions, exists := sm.transitions[g.Match.Status]
	if !exists {
		return ErrTransitionNotAllowed
	}
	condition, exists := conditions[to]
	if !exists {
		return ErrTransitionNotAllowed
	}
	if condition != nil && !condition(g) {
		return ErrTransitionNotAllowed
	}

	g.Match.Status = to
	return nil
}

// GetState returns the handler registered for status; unknown statuses are treated as closed.
func (sm *BaseStateMachine) GetState(status models.MatchStatus) State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	if s, ok := sm.states[status]; ok {
		return s
	}
	return &ClosedState{stateBase{ID: status}}
}

func (sm *BaseStateMachine) AddTransition(from, to models.MatchStatus, condition func(g *Game) bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[models.MatchStatus]func(g *Game) bool)
	}
	sm.transitions[from][to] = condition
	return nil
}

// DefaultMachine is the match lifecycle:
// waiting -> playing | abandoned, playing -> finished | abandoned.
var DefaultMachine = NewMatchMachine()

func NewMatchMachine() *BaseStateMachine {
	sm := NewBaseStateMachine(
		&WaitingState{stateBase{ID: models.StatusWaiting}},
		&PlayingState{stateBase{ID: models.StatusPlaying}},
		&ClosedState{stateBase{ID: models.StatusFinished}},
		&ClosedState{stateBase{ID: models.StatusAbandoned}},
	)
	hasOpponent := func(g *Game) bool { return g.Match.Player2ID != nil }
	_ = sm.AddTransition(models.StatusWaiting, models.StatusPlaying, hasOpponent)
	_ = sm.AddTransition(models.StatusWaiting, models.StatusAbandoned, nil)
	_ = sm.AddTransition(models.StatusPlaying, models.StatusFinished, nil)
	_ = sm.AddTransition(models.StatusPlaying, models.StatusAbandoned, hasOpponent)
	return sm
}

// 状态基础结构：默认实现按终局处理
type stateBase struct {
	ID models.MatchStatus
}

func (s *stateBase) GetID() models.MatchStatus {
	return s.ID
}

func (s *stateBase) Join(g *Game, playerID int64) error {
	return ErrAlreadyClosed
}

func (s *stateBase) Cancel(g *Game, playerID int64) error {
	if playerID != g.Match.Player1ID {
		return ErrNotOwner
	}
	return ErrAlreadyClosed
}

func (s *stateBase) Move(g *Game, playerID int64, x, y int) (*MoveResult, error) {
	return nil, ErrMatchClosed
}

func (s *stateBase) Exit(g *Game, playerID int64) (*outcome.Result, error) {
	if !g.Match.IsParticipant(playerID) {
		return nil, ErrNotParticipant
	}
	return nil, ErrMatchClosed
}

// Heartbeat on a match that is not being played is accepted and ignored.
func (s *stateBase) Heartbeat(g *Game, playerID int64) error {
	if !g.Match.IsParticipant(playerID) {
		return ErrNotParticipant
	}
	return nil
}

func (s *stateBase) Expire(g *Game, observer int64, window time.Duration) (*outcome.Result, error) {
	return nil, nil
}

func (s *stateBase) Sweep(g *Game, window time.Duration) (*outcome.Result, error) {
	return nil, nil
}

// ClosedState covers finished and abandoned matches.
type ClosedState struct {
	stateBase
}
