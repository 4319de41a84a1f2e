package room

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/gomoku/models"
	"github.com/wfunc/gomoku/state"
)

func newTestGame(id string, status models.MatchStatus) *state.Game {
	m := &models.Match{ID: id, Player1ID: 1, Status: status, CreatedAt: time.Now()}
	return state.NewGame(nil, m, nil, time.Now())
}

func TestRoomManager_AcquireReturnsSameRoom(t *testing.T) {
	manager := NewRoomManager()

	first := manager.Acquire("match_1")
	second := manager.Acquire("match_1")
	if first != second {
		t.Fatal("Acquire should return the same room instance for one match")
	}

	retrieved, exists := manager.GetRoom("match_1")
	if !exists || retrieved != first {
		t.Error("GetRoom should find the acquired room")
	}

	_ = first.Do(func(*state.Game) (*state.Game, error) {
		return newTestGame("match_1", models.StatusPlaying), nil
	})
	manager.Release(first)
	manager.Release(second)
	if manager.Count() != 1 {
		t.Errorf("Open match room should stay cached, got %d rooms", manager.Count())
	}
}

func TestRoom_DoCachesOnSuccess(t *testing.T) {
	room := NewRoom("match_2")

	err := room.Do(func(cached *state.Game) (*state.Game, error) {
		if cached != nil {
			t.Error("Expected empty cache on first use")
		}
		return newTestGame("match_2", models.StatusWaiting), nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}

	snapshot, ok := room.Snapshot()
	if !ok {
		t.Fatal("Expected a cached snapshot after a successful Do")
	}
	if snapshot.Match.Status != models.StatusWaiting {
		t.Errorf("Expected status waiting, got %s", snapshot.Match.Status)
	}
}

func TestRoom_DoKeepsCacheOnError(t *testing.T) {
	room := NewRoom("match_3")
	_ = room.Do(func(*state.Game) (*state.Game, error) {
		return newTestGame("match_3", models.StatusWaiting), nil
	})

	boom := errors.New("boom")
	err := room.Do(func(cached *state.Game) (*state.Game, error) {
		cached.Match.Status = models.StatusPlaying
		return cached, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	snapshot, _ := room.Snapshot()
	if snapshot.Match.Status != models.StatusWaiting {
		t.Errorf("Failed Do must not change the cache, got %s", snapshot.Match.Status)
	}
}

func TestRoom_CachedCopyIsPrivate(t *testing.T) {
	room := NewRoom("match_4")
	_ = room.Do(func(*state.Game) (*state.Game, error) {
		return newTestGame("match_4", models.StatusWaiting), nil
	})

	snapshot, _ := room.Snapshot()
	snapshot.Match.Status = models.StatusAbandoned

	again, _ := room.Snapshot()
	if again.Match.Status != models.StatusWaiting {
		t.Error("Mutating a snapshot must not leak into the cache")
	}
}

func TestRoomManager_ReleaseRemovesClosedRoom(t *testing.T) {
	manager := NewRoomManager()

	err := manager.With("match_5", func(*state.Game) (*state.Game, error) {
		return newTestGame("match_5", models.StatusFinished), nil
	})
	if err != nil {
		t.Fatalf("With returned error: %v", err)
	}

	if _, exists := manager.GetRoom("match_5"); exists {
		t.Error("Room of a finished match should be removed once released")
	}
}

func TestRoomManager_ReleaseDropsUnloadedRoom(t *testing.T) {
	manager := NewRoomManager()
	err := manager.With("missing", func(*state.Game) (*state.Game, error) {
		return nil, errors.New("not found")
	})
	if err == nil {
		t.Fatal("Expected the error from fn")
	}
	if manager.Count() != 0 {
		t.Errorf("Room without a cached match should be removed, got %d rooms", manager.Count())
	}
}

func TestRoomManager_InvalidateDropsCache(t *testing.T) {
	manager := NewRoomManager()
	room := manager.Acquire("match_6")
	_ = room.Do(func(*state.Game) (*state.Game, error) {
		return newTestGame("match_6", models.StatusPlaying), nil
	})
	if !room.Open() {
		t.Fatal("Room caching a match in play should be open")
	}
	room.Invalidate()
	if _, ok := room.Snapshot(); ok {
		t.Error("Invalidate should drop the snapshot")
	}
	manager.Release(room)

	if _, exists := manager.GetRoom("match_6"); exists {
		t.Error("Invalidated room should be removed once released")
	}
}

func TestRoom_DoSerializesWriters(t *testing.T) {
	manager := NewRoomManager()
	const workers = 50

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = manager.With("match_7", func(cached *state.Game) (*state.Game, error) {
				counter++
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("Expected %d serialized increments, got %d", workers, counter)
	}
}
