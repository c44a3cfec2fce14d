package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Appointment occupies one start time on the clinic calendar. No two
// appointments share a StartTime, whatever their status.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	Reason    string    `json:"reason"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilter narrows appointment listings. DateFrom and DateTo are local
// calendar dates and both bounds are inclusive; zero values are ignored.
type ListFilter struct {
	Status   Status
	DateFrom time.Time
	DateTo   time.Time
}

// ListQuery is what the repository receives: the filter resolved into
// instants, plus paging.
type ListQuery struct {
	UserID *uuid.UUID
	Status Status
	From   *time.Time // inclusive
	Until  *time.Time // exclusive
	Limit  int
	Offset int
}
