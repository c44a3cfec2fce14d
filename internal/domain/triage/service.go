package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultSessionLimit = 50
	MaxSessionLimit     = 500
)

type Service struct {
	sessions SessionRepository
	symptoms SymptomRepository
	logger   zerolog.Logger
}

func NewService(sessions SessionRepository, symptoms SymptomRepository, logger zerolog.Logger) *Service {
	return &Service{sessions: sessions, symptoms: symptoms, logger: logger}
}

// -- Triage Session --

// RecordSession stores a questionnaire run. Score and urgency are taken from
// the input only when both are present; otherwise both come from Evaluate.
// The owner defaults to caller, which may be uuid.Nil for anonymous runs.
func (s *Service) RecordSession(ctx context.Context, caller uuid.UUID, in SessionInput) (*Session, error) {
	sess := &Session{
		UserID:          in.UserID,
		Answers:         in.Answers,
		Recommendations: in.Recommendations,
	}
	if sess.UserID == nil && caller != uuid.Nil {
		owner := caller
		sess.UserID = &owner
	}

	if in.Score != nil && in.Urgent != nil {
		if *in.Score < 0 {
			return nil, fmt.Errorf("%w: score must not be negative", ErrInvalid)
		}
		sess.Score, sess.Urgent = *in.Score, *in.Urgent
	} else {
		r := Evaluate(in.Answers)
		sess.Score, sess.Urgent = r.Score, r.Urgent
	}

	if sess.Recommendations == nil {
		sess.Recommendations = []string{}
	}
	for i, rec := range sess.Recommendations {
		if strings.TrimSpace(rec) == "" {
			return nil, fmt.Errorf("%w: recommendation %d is empty", ErrInvalid, i)
		}
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("save triage session: %w", err)
	}
	s.logger.Info().
		Str("session_id", sess.ID.String()).
		Int("score", sess.Score).
		Bool("urgent", sess.Urgent).
		Msg("triage session recorded")
	return sess, nil
}

// ClampSessionLimit applies the session page defaults and ceiling.
func ClampSessionLimit(limit int) int {
	if limit <= 0 {
		return DefaultSessionLimit
	}
	if limit > MaxSessionLimit {
		return MaxSessionLimit
	}
	return limit
}

// ListSessions returns sessions newest first, at most MaxSessionLimit.
func (s *Service) ListSessions(ctx context.Context, f SessionFilter, limit, offset int) ([]*Session, error) {
	if offset < 0 {
		offset = 0
	}
	items, err := s.sessions.List(ctx, f, ClampSessionLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list triage sessions: %w", err)
	}
	return items, nil
}

func (s *Service) CountSessions(ctx context.Context, f SessionFilter) (int, error) {
	n, err := s.sessions.Count(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("count triage sessions: %w", err)
	}
	return n, nil
}

// -- Symptom --

func (s *Service) LogSymptom(ctx context.Context, userID uuid.UUID, description string) (*Symptom, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalid)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalid)
	}
	sym := &Symptom{UserID: userID, Description: description}
	if err := s.symptoms.Create(ctx, sym); err != nil {
		return nil, fmt.Errorf("save symptom: %w", err)
	}
	return sym, nil
}

func (s *Service) GetSymptom(ctx context.Context, id uuid.UUID) (*Symptom, error) {
	sym, err := s.symptoms.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "get symptom")
	}
	return sym, nil
}

// ListSymptoms returns a user's symptoms, most recent first.
func (s *Service) ListSymptoms(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Symptom, int, error) {
	items, total, err := s.symptoms.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list symptoms: %w", err)
	}
	return items, total, nil
}

func (s *Service) UpdateSymptom(ctx context.Context, id uuid.UUID, description string) (*Symptom, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalid)
	}
	sym, err := s.GetSymptom(ctx, id)
	if err != nil {
		return nil, err
	}
	sym.Description = description
	if err := s.symptoms.Update(ctx, sym); err != nil {
		return nil, wrapNotFound(err, "update symptom")
	}
	return sym, nil
}

func (s *Service) DeleteSymptom(ctx context.Context, id uuid.UUID) error {
	if err := s.symptoms.Delete(ctx, id); err != nil {
		return wrapNotFound(err, "delete symptom")
	}
	return nil
}

func wrapNotFound(err error, op string) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("symptom: %w", ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
