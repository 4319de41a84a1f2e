package state

import (
	"time"

	"github.com/wfunc/gomoku/board"
	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/outcome"
)

// Game is one match's in-memory snapshot: the match row plus its ordered moves.
// Handlers mutate it in place; the caller persists it or throws it away.
type Game struct {
	Match   *models.Match
	Moves   []models.Move
	Now     time.Time
	machine StateMachine
	board   *board.Board
}

// MoveResult is the recorded move and, when the move ended the match, its outcome.
type MoveResult struct {
	Move    models.Move
	Outcome *outcome.Result
}

// NewGame wraps a snapshot. A nil machine uses the default match lifecycle.
func NewGame(machine StateMachine, match *models.Match, moves []models.Move, now time.Time) *Game {
	if machine == nil {
		machine = DefaultMachine
	}
	return &Game{Match: match, Moves: moves, Now: now, machine: machine}
}

// Clone deep-copies the snapshot so a failed transaction cannot leak into a cached one.
func (g *Game) Clone() *Game {
	cp := &Game{
		Match:   g.Match.Clone(),
		Moves:   append([]models.Move(nil), g.Moves...),
		Now:     g.Now,
		machine: g.machine,
	}
	if g.board != nil {
		b := *g.board
		cp.board = &b
	}
	return cp
}

// Board returns the grid for the current move list, building it on first use.
func (g *Game) Board() *board.Board {
	if g.board == nil || g.board.Count() != len(g.Moves) {
		b := board.New(g.Moves, g.Match.Player1ID)
		g.board = &b
	}
	return g.board
}

// CurrentPlayer is player1 after an even number of moves, player2 otherwise.
// It is false before a second player has joined.
func (g *Game) CurrentPlayer() (int64, bool) {
	if g.Match.Player2ID == nil {
		return 0, false
	}
	if len(g.Moves)%2 == 0 {
		return g.Match.Player1ID, true
	}
	return *g.Match.Player2ID, true
}

// StoneOf returns the colour of a seated player.
func (g *Game) StoneOf(playerID int64) board.Stone {
	if playerID == g.Match.Player1ID {
		return board.Black
	}
	if g.Match.Player2ID != nil && playerID == *g.Match.Player2ID {
		return board.White
	}
	return board.Empty
}

// State returns the handler for the current status.
func (g *Game) State() State {
	return g.machine.GetState(g.Match.Status)
}

func (g *Game) Join(playerID int64) error {
	return g.State().Join(g, playerID)
}

func (g *Game) Cancel(playerID int64) error {
	return g.State().Cancel(g, playerID)
}

func (g *Game) Move(playerID int64, x, y int) (*MoveResult, error) {
	return g.State().Move(g, playerID, x, y)
}

func (g *Game) Exit(playerID int64) (*outcome.Result, error) {
	return g.State().Exit(g, playerID)
}

func (g *Game) Heartbeat(playerID int64) error {
	return g.State().Heartbeat(g, playerID)
}

// Expire forfeits observer's opponent when the opponent has been silent longer than window.
func (g *Game) Expire(observer int64, window time.Duration) (*outcome.Result, error) {
	return g.State().Expire(g, observer, window)
}

// Sweep forfeits the stalest silent player, if any.
func (g *Game) Sweep(window time.Duration) (*outcome.Result, error) {
	return g.State().Sweep(g, window)
}

func (g *Game) changeState(to models.MatchStatus) error {
	return g.machine.ChangeState(g, to)
}

// close moves the match to a terminal status and stamps winner and end time.
func (g *Game) close(to models.MatchStatus, winner *int64) error {
	if err := g.changeState(to); err != nil {
		return err
	}
	now := g.Now
	g.Match.EndTime = &now
	g.Match.WinnerID = winner
	return nil
}
