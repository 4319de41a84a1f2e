package state

import "errors"

// State errors: the operation is rejected and nothing changes.
var (
	ErrTransitionNotAllowed = errors.New("state transition not allowed")
	ErrMatchClosed          = errors.New("match is closed")
	ErrAlreadyClosed        = errors.New("match is no longer open")
	ErrSelfJoin             = errors.New("cannot join your own match")
	ErrNotOwner             = errors.New("only the creator can cancel the match")
	ErrNotParticipant       = errors.New("not a participant of this match")
	ErrNotStarted           = errors.New("match has not started")
)
