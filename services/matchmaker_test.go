package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/persistence"
	"github.com/wfunc/gomoku/room"
	"github.com/wfunc/gomoku/state"
)

func TestCreateMatch(t *testing.T) {
	h := newHarness(t)

	m, err := h.games.CreateMatch(h.ctx, alice, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.NotEmpty(t, m.GameID)
	assert.NotEqual(t, m.ID, m.GameID)
	assert.Equal(t, models.StatusWaiting, m.Status)
	assert.Equal(t, alice, m.Player1ID)
	assert.Nil(t, m.Player2ID)

	p := h.player(t, alice)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, models.DefaultRating, p.Rating)
	assert.Equal(t, h.clock.Now(), p.CreatedAt)
	assert.Equal(t, h.clock.Now(), p.UpdatedAt)

	_, err = h.games.CreateMatch(h.ctx, alice, "alice")
	assert.ErrorIs(t, err, ErrOpenMatchExists)

	_, err = h.games.CreateMatch(h.ctx, 0, "")
	assert.ErrorIs(t, err, ErrInvalidPlayer)
}

func TestCreateMatch_MultipleOpenMatchesWhenAllowed(t *testing.T) {
	h := newHarness(t)
	games := NewGameService(h.db, room.NewRoomManager(), h.clock, nil, Options{})

	_, err := games.CreateMatch(h.ctx, alice, "")
	require.NoError(t, err)
	_, err = games.CreateMatch(h.ctx, alice, "")
	assert.NoError(t, err)
}

func TestCreateMatch_ConcurrentCreatesKeepOneOpenMatch(t *testing.T) {
	h := newHarness(t)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.games.CreateMatch(h.ctx, alice, "")
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
		}
	}
	assert.Equal(t, 1, created)

	waiting, err := h.store.ListMatchesByStatus(h.ctx, models.StatusWaiting)
	require.NoError(t, err)
	assert.Len(t, waiting, 1)
}

func TestFindOpenMatch_OldestFirstExcludingOwn(t *testing.T) {
	h := newHarness(t)

	none, err := h.games.FindOpenMatch(h.ctx, alice)
	require.NoError(t, err)
	assert.Nil(t, none)

	own, err := h.games.CreateMatch(h.ctx, alice, "")
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	older, err := h.games.CreateMatch(h.ctx, bob, "")
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	_, err = h.games.CreateMatch(h.ctx, carol, "")
	require.NoError(t, err)

	found, err := h.games.FindOpenMatch(h.ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, older.ID, found.ID)

	found, err = h.games.FindOpenMatch(h.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, own.ID, found.ID)
}

func TestJoinMatch(t *testing.T) {
	h := newHarness(t)
	m, err := h.games.CreateMatch(h.ctx, alice, "")
	require.NoError(t, err)

	_, err = h.games.JoinMatch(h.ctx, m.ID, alice, "")
	assert.ErrorIs(t, err, state.ErrSelfJoin)

	_, err = h.games.JoinMatch(h.ctx, "missing", bob, "")
	assert.ErrorIs(t, err, persistence.ErrRecordNotFound)

	joined, err := h.games.JoinMatch(h.ctx, m.ID, bob, "bob")
	require.NoError(t, err)
	assert.Equal(t, m.GameID, joined.GameID)
	assert.Equal(t, models.StatusPlaying, joined.Status)
	require.NotNil(t, joined.Player2ID)
	assert.Equal(t, bob, *joined.Player2ID)
	assert.NotNil(t, joined.StartTime)
	assert.Equal(t, h.clock.Now(), *joined.Player1LastActive)
	assert.Equal(t, h.clock.Now(), *joined.Player2LastActive)
	assert.Equal(t, "bob", h.player(t, bob).Username)

	_, err = h.games.JoinMatch(h.ctx, m.ID, carol, "")
	assert.ErrorIs(t, err, state.ErrAlreadyClosed)
}

func TestJoinMatch_ConcurrentJoinsSeatOnePlayer(t *testing.T) {
	h := newHarness(t)
	m, err := h.games.CreateMatch(h.ctx, alice, "")
	require.NoError(t, err)

	joiners := []int64{bob, carol, 4, 5}
	errs := make([]error, len(joiners))
	var wg sync.WaitGroup
	for i, id := range joiners {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = h.games.JoinMatch(h.ctx, m.ID, id, "")
		}(i, id)
	}
	wg.Wait()

	joined := 0
	for _, err := range errs {
		if err == nil {
			joined++
			continue
		}
		assert.ErrorIs(t, err, state.ErrAlreadyClosed)
	}
	assert.Equal(t, 1, joined)
}

func TestCancelMatch(t *testing.T) {
	h := newHarness(t)
	m, err := h.games.CreateMatch(h.ctx, alice, "")
	require.NoError(t, err)

	assert.ErrorIs(t, h.games.CancelMatch(h.ctx, m.ID, bob), state.ErrNotOwner)
	assert.ErrorIs(t, h.games.CancelMatch(h.ctx, "missing", alice), persistence.ErrRecordNotFound)

	require.NoError(t, h.games.CancelMatch(h.ctx, m.ID, alice))
	assert.ErrorIs(t, h.games.CancelMatch(h.ctx, m.ID, alice), state.ErrAlreadyClosed)

	_, err = h.games.JoinMatch(h.ctx, m.ID, bob, "")
	assert.ErrorIs(t, err, state.ErrAlreadyClosed)

	p := h.player(t, alice)
	assert.Equal(t, models.DefaultRating, p.Rating)

	// 取消后可以再开一局
	_, err = h.games.CreateMatch(h.ctx, alice, "")
	assert.NoError(t, err)
}

func TestCancelMatch_AfterJoinIsRejected(t *testing.T) {
	h := newHarness(t)
	id := h.startMatch(t, alice, bob)

	assert.ErrorIs(t, h.games.CancelMatch(h.ctx, id, alice), state.ErrAlreadyClosed)
	assert.ErrorIs(t, h.games.CancelMatch(h.ctx, id, bob), state.ErrNotOwner)
}

func TestQuickMatch(t *testing.T) {
	h := newHarness(t)

	m, joined, err := h.games.QuickMatch(h.ctx, alice, "alice")
	require.NoError(t, err)
	assert.False(t, joined)
	assert.Equal(t, models.StatusWaiting, m.Status)

	again, joined, err := h.games.QuickMatch(h.ctx, alice, "alice")
	require.NoError(t, err)
	assert.False(t, joined)
	assert.Equal(t, m.ID, again.ID, "an open match is handed back to its owner")

	paired, joined, err := h.games.QuickMatch(h.ctx, bob, "bob")
	require.NoError(t, err)
	assert.True(t, joined)
	assert.Equal(t, m.ID, paired.ID)
	assert.Equal(t, models.StatusPlaying, paired.Status)
}

func TestQuickMatch_WithdrawsOwnWaitingMatch(t *testing.T) {
	h := newHarness(t)

	own, err := h.games.CreateMatch(h.ctx, alice, "alice")
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	other, err := h.games.CreateMatch(h.ctx, bob, "bob")
	require.NoError(t, err)

	m, joined, err := h.games.QuickMatch(h.ctx, alice, "alice")
	require.NoError(t, err)
	assert.True(t, joined)
	assert.Equal(t, other.ID, m.ID)

	// 原来的等待对局已撤下，alice 只在一局里
	_, err = h.games.JoinMatch(h.ctx, own.ID, carol, "")
	assert.ErrorIs(t, err, state.ErrAlreadyClosed)

	waiting, err := h.store.ListMatchesByStatus(h.ctx, models.StatusWaiting)
	require.NoError(t, err)
	assert.Empty(t, waiting)
	playing, err := h.store.ListMatchesByStatus(h.ctx, models.StatusPlaying)
	require.NoError(t, err)
	require.Len(t, playing, 1)
	assert.Equal(t, other.ID, playing[0].ID)

	assert.Equal(t, models.DefaultRating, h.player(t, alice).Rating)
}

// staleOwnerDB reports a fixed waiting list for the owner, as if read just before an opponent joined.
type staleOwnerDB struct {
	persistence.Database
	stale []models.Match
}

type staleOwnerTx struct {
	persistence.Tx
	stale []models.Match
}

func (d *staleOwnerDB) Transaction(ctx context.Context, fn func(tx persistence.Tx) error) error {
	return d.Database.Transaction(ctx, func(tx persistence.Tx) error {
		return fn(&staleOwnerTx{Tx: tx, stale: d.stale})
	})
}

func (tx *staleOwnerTx) FindWaitingByOwner(owner int64) ([]models.Match, error) {
	if tx.stale != nil {
		return tx.stale, nil
	}
	return tx.Tx.FindWaitingByOwner(owner)
}

func TestQuickMatch_OwnMatchTakenWhileWithdrawing(t *testing.T) {
	h := newHarness(t)
	db := &staleOwnerDB{Database: h.store}
	games := NewGameService(db, room.NewRoomManager(), h.clock, nil, Options{SingleOpenMatch: true})

	own, err := games.CreateMatch(h.ctx, alice, "")
	require.NoError(t, err)
	_, err = games.JoinMatch(h.ctx, own.ID, carol, "")
	require.NoError(t, err)
	other, err := games.CreateMatch(h.ctx, bob, "")
	require.NoError(t, err)

	db.stale = []models.Match{*own}
	m, joined, err := games.QuickMatch(h.ctx, alice, "")
	require.NoError(t, err)
	assert.True(t, joined)
	assert.Equal(t, own.ID, m.ID, "the match carol joined is handed back")
	assert.Equal(t, models.StatusPlaying, m.Status)

	// bob 的对局没有被加入
	db.stale = nil
	found, err := games.FindOpenMatch(h.ctx, carol)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, other.ID, found.ID)
}
