package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentRepository persists appointments. Create and Update return
// ErrConflict when the start time is already taken; lookups and writes on an
// unknown id return ErrRecordNotFound.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ExistsAt reports whether an appointment other than exclude starts at ts.
	ExistsAt(ctx context.Context, ts time.Time, exclude uuid.UUID) (bool, error)
	// StartTimesBetween returns the start times in [from, until).
	StartTimesBetween(ctx context.Context, from, until time.Time) ([]time.Time, error)
	List(ctx context.Context, q ListQuery) ([]*Appointment, int, error)
}

// AvailabilityCache holds computed free-slot lists per clinic date. It is
// advisory: booking never consults it.
//
// Entries are stored under a per-day version. Invalidate bumps the version,
// so a list computed before a booking committed is written under a version
// that Get no longer asks for.
type AvailabilityCache interface {
	Version(ctx context.Context, day string) (int64, error)
	Get(ctx context.Context, day string, version int64) ([]time.Time, bool, error)
	Set(ctx context.Context, day string, version int64, slots []time.Time) error
	Invalidate(ctx context.Context, day string) error
}
