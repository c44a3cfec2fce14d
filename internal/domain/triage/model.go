package triage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const QuestionCount = 8

// Answers holds one boolean per question, indexed in questionnaire order.
// On the wire it is either an object keyed by question key (missing keys are
// false) or an array of exactly QuestionCount booleans.
type Answers [QuestionCount]bool

// Named builds Answers from question keys, rejecting unknown ones.
func Named(m map[string]bool) (Answers, error) {
	var a Answers
	for key, v := range m {
		i, ok := questionIndex[key]
		if !ok {
			return Answers{}, fmt.Errorf("%w: unknown answer %q", ErrInvalid, key)
		}
		a[i] = v
	}
	return a, nil
}

func (a Answers) Get(key string) bool {
	i, ok := questionIndex[key]
	return ok && a[i]
}

func (a Answers) MarshalJSON() ([]byte, error) {
	m := make(map[string]bool, QuestionCount)
	for _, q := range questions {
		m[q.Key] = a[q.Index]
	}
	return json.Marshal(m)
}

func (a *Answers) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []bool
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("%w: answers must be booleans", ErrInvalid)
		}
		if len(list) != QuestionCount {
			return fmt.Errorf("%w: expected %d answers in question order, got %d", ErrInvalid, QuestionCount, len(list))
		}
		copy(a[:], list)
		return nil
	}

	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: answers must be an object of booleans or a list of %d booleans", ErrInvalid, QuestionCount)
	}
	named, err := Named(m)
	if err != nil {
		return err
	}
	*a = named
	return nil
}

type Result struct {
	Score  int  `json:"score"`
	Urgent bool `json:"urgent"`
}

// RecommendInput carries the answers plus optional patient context. When
// Urgent is nil it is derived from Answers.
type RecommendInput struct {
	Answers           Answers  `json:"answers"`
	Urgent            *bool    `json:"urgent,omitempty"`
	Age               *int     `json:"age,omitempty"`
	Pregnant          bool     `json:"pregnant"`
	ChronicConditions []string `json:"chronic_conditions,omitempty"`
}

type Recommendation struct {
	Recommendations []string `json:"recommendations"`
	Notes           []string `json:"notes"`
}

// Session maps to the triage_session table. Sessions are never updated.
type Session struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UserID          *uuid.UUID `db:"user_id" json:"user_id"`
	Answers         Answers    `db:"answers" json:"answers"`
	Score           int        `db:"score" json:"score"`
	Urgent          bool       `db:"urgent" json:"urgent"`
	Recommendations []string   `db:"recommendations" json:"recommendations"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// SessionInput is what a caller submits. Score and Urgent are recomputed
// from Answers unless both are supplied.
type SessionInput struct {
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	Answers         Answers    `json:"answers"`
	Score           *int       `json:"score,omitempty"`
	Urgent          *bool      `json:"urgent,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
}

type SessionFilter struct {
	UserID *uuid.UUID
	Urgent *bool
}

// Symptom maps to the symptom table.
type Symptom struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Description string    `db:"description" json:"description"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}
