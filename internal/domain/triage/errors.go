package triage

import (
	"errors"
	"fmt"
)

var (
	ErrInvalid = errors.New("invalid request")
	// ErrMissingAnswers is returned when a request carries no questionnaire.
	ErrMissingAnswers = fmt.Errorf("%w: answers is required", ErrInvalid)
	// ErrNotApplicable is returned by Recommend for urgent cases, which get
	// emergency guidance instead of self-care advice.
	ErrNotApplicable = errors.New("recommendations are not applicable to urgent cases")
	ErrNotFound      = errors.New("not found")
)
