package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultHorizonDays = 14
	MaxHorizonDays     = 90
)

// settableStatuses is what SetStatus accepts. Confirmed is a valid stored
// status but cannot be set through this operation.
var settableStatuses = map[Status]bool{
	StatusPending:   true,
	StatusCompleted: true,
	StatusCancelled: true,
}

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCancelled: true,
	StatusCompleted: true,
}

type Options struct {
	Location *time.Location
	// EnforceGrid rejects bookings that do not start on a slot boundary.
	EnforceGrid        bool
	DefaultHorizonDays int
	Cache              AvailabilityCache
	Logger             zerolog.Logger
	Now                func() time.Time
}

type Service struct {
	appointments   AppointmentRepository
	cal            Calendar
	cache          AvailabilityCache
	enforceGrid    bool
	defaultHorizon int
	logger         zerolog.Logger
	nowFunc        func() time.Time
}

func NewService(appts AppointmentRepository, opts Options) *Service {
	s := &Service{
		appointments:   appts,
		cal:            NewCalendar(opts.Location),
		cache:          opts.Cache,
		enforceGrid:    opts.EnforceGrid,
		defaultHorizon: opts.DefaultHorizonDays,
		logger:         opts.Logger,
		nowFunc:        opts.Now,
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	if s.defaultHorizon <= 0 {
		s.defaultHorizon = DefaultHorizonDays
	}
	if s.defaultHorizon > MaxHorizonDays {
		s.defaultHorizon = MaxHorizonDays
	}
	return s
}

func (s *Service) Calendar() Calendar { return s.cal }

func (s *Service) now() time.Time { return s.nowFunc().In(s.cal.Location()) }

// -- Availability --

// Availability returns the free slots of the local date containing date, in
// ascending order. Dates before today are rejected.
func (s *Service) Availability(ctx context.Context, date time.Time) ([]time.Time, error) {
	day := s.cal.Day(date)
	if day.Before(s.cal.Day(s.now())) {
		return nil, ErrPastDate
	}

	key := s.cal.DayKey(day)
	// The version is read before the repository so a booking that commits
	// in between moves readers past whatever this call writes back.
	cached := s.cache != nil
	var version int64
	if cached {
		v, err := s.cache.Version(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("date", key).Msg("availability cache version read failed")
			cached = false
		}
		version = v
	}
	if cached {
		slots, hit, err := s.cache.Get(ctx, key, version)
		if err != nil {
			s.logger.Warn().Err(err).Str("date", key).Msg("availability cache read failed")
		} else if hit {
			for i := range slots {
				slots[i] = slots[i].In(s.cal.Location())
			}
			return slots, nil
		}
	}

	taken, err := s.appointments.StartTimesBetween(ctx, s.cal.Opening(day), s.cal.Closing(day))
	if err != nil {
		return nil, fmt.Errorf("load appointments for %s: %w", key, err)
	}
	free := freeSlots(s.cal.Grid(day), occupied(taken), time.Time{})

	if cached {
		if err := s.cache.Set(ctx, key, version, free); err != nil {
			s.logger.Warn().Err(err).Str("date", key).Msg("availability cache write failed")
		}
	}
	return free, nil
}

func occupied(times []time.Time) map[int64]bool {
	set := make(map[int64]bool, len(times))
	for _, t := range times {
		set[minuteKey(t)] = true
	}
	return set
}

// freeSlots filters grid to slots at or after notBefore that are not taken.
func freeSlots(grid []time.Time, taken map[int64]bool, notBefore time.Time) []time.Time {
	free := make([]time.Time, 0, len(grid))
	for _, slot := range grid {
		if slot.Before(notBefore) || taken[minuteKey(slot)] {
			continue
		}
		free = append(free, slot)
	}
	return free
}

// NextAvailable scans from the rounded-up boundary after from through
// horizonDays further days and returns the first free slot. A zero or past
// from starts the scan at the current time. ok is false when every slot in
// the horizon is taken.
func (s *Service) NextAvailable(ctx context.Context, from time.Time, horizonDays int) (time.Time, bool, error) {
	if horizonDays <= 0 {
		horizonDays = s.defaultHorizon
	}
	if horizonDays > MaxHorizonDays {
		horizonDays = MaxHorizonDays
	}

	if now := s.now(); from.Before(now) {
		from = now
	}
	from = from.In(s.cal.Location())
	first := s.cal.Day(from)
	last := first.AddDate(0, 0, horizonDays)

	taken, err := s.appointments.StartTimesBetween(ctx, s.cal.Opening(first), s.cal.Closing(last))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load appointments: %w", err)
	}
	busy := occupied(taken)

	notBefore := s.cal.RoundUp(from)
	for d := 0; d <= horizonDays; d++ {
		day := first.AddDate(0, 0, d)
		if free := freeSlots(s.cal.Grid(day), busy, notBefore); len(free) > 0 {
			return free[0], true, nil
		}
	}
	return time.Time{}, false, nil
}

// -- Booking --

func (s *Service) Book(ctx context.Context, userID uuid.UUID, ts time.Time, reason string) (*Appointment, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalid)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalid)
	}

	ts, err := s.checkStart(ts)
	if err != nil {
		return nil, err
	}

	taken, err := s.appointments.ExistsAt(ctx, ts, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return nil, ErrSlotTaken
	}

	a := &Appointment{
		UserID:    userID,
		StartTime: ts,
		Reason:    reason,
		Status:    StatusPending,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, s.writeError(err, ts)
	}

	s.invalidate(ctx, ts)
	return a, nil
}

// checkStart normalizes ts and rejects past or off-grid start times.
func (s *Service) checkStart(ts time.Time) (time.Time, error) {
	if ts.IsZero() {
		return time.Time{}, fmt.Errorf("%w: start_time is required", ErrInvalid)
	}
	ts = s.cal.Normalize(ts)
	if !ts.After(s.now()) {
		return time.Time{}, ErrPastTime
	}
	if s.enforceGrid && !s.cal.OnGrid(ts) {
		return time.Time{}, ErrOffGrid
	}
	return ts, nil
}

// writeError maps a failed Create/Update so that a conflict caught by the
// database reads exactly like one caught by the pre-check.
func (s *Service) writeError(err error, ts time.Time) error {
	switch {
	case errors.Is(err, ErrConflict):
		s.logger.Info().Time("start_time", ts).Msg("slot taken between pre-check and write")
		return ErrSlotTaken
	case errors.Is(err, ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, ErrInvalid):
		return err
	}
	return fmt.Errorf("save appointment: %w", err)
}

func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, ts time.Time) (*Appointment, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ts, err = s.checkStart(ts)
	if err != nil {
		return nil, err
	}

	taken, err := s.appointments.ExistsAt(ctx, ts, a.ID)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return nil, ErrSlotTaken
	}

	previous := a.StartTime
	a.StartTime = ts
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, s.writeError(err, ts)
	}

	s.invalidate(ctx, previous, ts)
	return a, nil
}

// SetStatus looks the appointment up before validating status, so an unknown
// id is reported as not found even when the status is also invalid.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !settableStatuses[status] {
		return nil, fmt.Errorf("%w %q: must be one of pending, completed, cancelled", ErrInvalidStatus, status)
	}

	a.Status = status
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, s.writeError(err, a.StartTime)
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	a.StartTime = a.StartTime.In(s.cal.Location())
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.invalidate(ctx, a.StartTime)
	return nil
}

// -- Listing --

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	q, err := s.query(f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	q.UserID = &userID
	return s.list(ctx, q)
}

func (s *Service) ListAll(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	q, err := s.query(f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return s.list(ctx, q)
}

// query resolves inclusive local dates into a half-open instant range.
func (s *Service) query(f ListFilter, limit, offset int) (ListQuery, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return ListQuery{}, fmt.Errorf("%w %q", ErrInvalidStatus, f.Status)
	}
	q := ListQuery{Status: f.Status, Limit: limit, Offset: offset}
	if !f.DateFrom.IsZero() {
		from := s.cal.Day(f.DateFrom)
		q.From = &from
	}
	if !f.DateTo.IsZero() {
		until := s.cal.Day(f.DateTo).AddDate(0, 0, 1)
		q.Until = &until
	}
	if q.From != nil && q.Until != nil && !q.From.Before(*q.Until) {
		return ListQuery{}, fmt.Errorf("%w: date_from is after date_to", ErrInvalid)
	}
	return q, nil
}

func (s *Service) list(ctx context.Context, q ListQuery) ([]*Appointment, int, error) {
	items, total, err := s.appointments.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	for _, a := range items {
		a.StartTime = a.StartTime.In(s.cal.Location())
	}
	return items, total, nil
}

func (s *Service) invalidate(ctx context.Context, times ...time.Time) {
	if s.cache == nil {
		return
	}
	for _, t := range times {
		key := s.cal.DayKey(t)
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("date", key).Msg("availability cache invalidation failed")
		}
	}
}
