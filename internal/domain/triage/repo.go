package triage

import (
	"context"

	"github.com/google/uuid"
)

// SessionRepository stores triage sessions. List returns newest first.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	List(ctx context.Context, f SessionFilter, limit, offset int) ([]*Session, error)
	Count(ctx context.Context, f SessionFilter) (int, error)
}

// SymptomRepository returns ErrNotFound for unknown ids.
type SymptomRepository interface {
	Create(ctx context.Context, s *Symptom) error
	GetByID(ctx context.Context, id uuid.UUID) (*Symptom, error)
	Update(ctx context.Context, s *Symptom) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Symptom, int, error)
}
