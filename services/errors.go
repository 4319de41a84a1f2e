// services/errors.go
package services

import (
	"errors"
	"fmt"

	"github.com/wfunc/gomoku/persistence"
	"github.com/wfunc/gomoku/rules"
	"github.com/wfunc/gomoku/state"
)

var (
	// ErrTransient wraps store and transaction failures. Nothing was committed; retrying is safe.
	ErrTransient = errors.New("transient failure, retry")
	// ErrForbidden 非参与者读取对局
	ErrForbidden = errors.New("not a participant of this match")
	// ErrOpenMatchExists 玩家已有一个等待中的对局
	ErrOpenMatchExists = errors.New("player already has an open match")
	// ErrInvalidPlayer 玩家 id 必须为正
	ErrInvalidPlayer = errors.New("invalid player id")
)

// 错误码，供各传输层使用
var errorCodes = []struct {
	err  error
	code string
}{
	{rules.ErrOutOfBounds, "out_of_bounds"},
	{rules.ErrNotYourTurn, "not_your_turn"},
	{rules.ErrCellOccupied, "cell_occupied"},
	{rules.ErrDoubleThreeForbidden, "double_three_forbidden"},
	{state.ErrMatchClosed, "match_closed"},
	{state.ErrAlreadyClosed, "already_closed"},
	{state.ErrSelfJoin, "self_join"},
	{state.ErrNotOwner, "not_owner"},
	{state.ErrNotParticipant, "not_participant"},
	{state.ErrNotStarted, "not_started"},
	{state.ErrTransitionNotAllowed, "transition_not_allowed"},
	{persistence.ErrRecordNotFound, "not_found"},
	{ErrForbidden, "forbidden"},
	{ErrOpenMatchExists, "open_match_exists"},
	{ErrInvalidPlayer, "invalid_player"},
}

// ErrorCode returns the stable wire code of err; unknown and store errors are "transient".
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "transient"
}

// isDomainError reports a rejection by the rules or the lifecycle, as opposed to a store failure.
func isDomainError(err error) bool {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return true
		}
	}
	return false
}

func wrapTransient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
