package domain

import "errors"

var (
	// ErrSessionNotFound is returned for codes that never existed or were cleared.
	ErrSessionNotFound = errors.New("live quiz session not found")
	// ErrValidation is returned for malformed create payloads.
	ErrValidation = errors.New("invalid session payload")
	// ErrInvalidTransition is returned for control actions issued in the wrong state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrUnknownParticipant is returned when an answer carries an anon id that never joined.
	ErrUnknownParticipant = errors.New("participant not joined")
	// ErrQuestionClosed is returned for answers against a closed or non-current question.
	ErrQuestionClosed = errors.New("question is closed")
	// ErrInvalidChoice is returned when the choice key maps to an empty option.
	ErrInvalidChoice = errors.New("choice is not available for this question")
	// ErrQuizNotFound indicates a saved quiz could not be loaded from the bank.
	ErrQuizNotFound = errors.New("saved quiz not found")
)
