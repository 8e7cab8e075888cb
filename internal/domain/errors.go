package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNameConflict is returned when the requested team name is taken.
	ErrNameConflict = errors.New("team name already exists")
	// ErrEmptyPool indicates the question pool has no questions to draw from.
	ErrEmptyPool = errors.New("question pool is empty")
	// ErrTeamNotFound indicates the requested team record does not exist.
	ErrTeamNotFound = errors.New("team not found")
	// ErrQuestionNotFound indicates an ordered question id is missing from the pool.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNameRequired is returned when the team name is empty after trimming.
	ErrNameRequired = errors.New("team name required")
	// ErrSessionNotStarted is returned when an operation requires a running session.
	ErrSessionNotStarted = errors.New("session not started")
	// ErrAlreadyStarted is returned when Start is called on a running session.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrSessionTerminal is returned when a session is already completed or disqualified.
	ErrSessionTerminal = errors.New("session already finished")
	// ErrNoAnswerSelected is returned when advancing without a selected answer.
	ErrNoAnswerSelected = errors.New("no answer selected")
	// ErrInvalidAnswer is returned for labels outside A-D.
	ErrInvalidAnswer = errors.New("invalid answer label")
)

// PersistenceError wraps a failed read or write against the team store so
// callers can distinguish infrastructure faults from domain rule violations.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
