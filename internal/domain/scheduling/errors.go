package scheduling

import "errors"

// ErrInvalid is matched by every validation failure, including ErrPastTime,
// ErrPastDate, ErrInvalidStatus and ErrOffGrid.
var ErrInvalid = errors.New("invalid request")

var (
	ErrPastTime      = validation("cannot book in the past")
	ErrPastDate      = validation("date is in the past")
	ErrInvalidStatus = validation("invalid status")
	ErrOffGrid       = validation("start time is not on the 30-minute clinic grid")

	ErrSlotTaken = errors.New("slot already taken")
	ErrNotFound  = errors.New("appointment not found")
)

// Repository-level errors. The service translates them so callers never see
// whether a conflict was caught by the pre-check or by the database.
var (
	ErrConflict       = errors.New("unique constraint violated")
	ErrRecordNotFound = errors.New("record not found")
)

type validationError struct{ msg string }

func validation(msg string) error { return &validationError{msg: msg} }

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrInvalid }
