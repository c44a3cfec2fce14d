package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// The clinic day: 18 half-hour slots from 09:00 to 17:30 local time.
const (
	OpenHour    = 9
	CloseHour   = 18
	SlotMinutes = 30
	SlotsPerDay = (CloseHour - OpenHour) * 60 / SlotMinutes

	DateLayout = "2006-01-02"
	SlotLayout = "15:04"
)

// naive layouts are read as clinic-local wall time
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Calendar does all wall-clock arithmetic in the clinic's location so that
// day boundaries never shift with the server's zone.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

func (c Calendar) Location() *time.Location { return c.loc }

// Normalize converts t to the clinic location at database precision.
func (c Calendar) Normalize(t time.Time) time.Time {
	return t.In(c.loc).Truncate(time.Microsecond)
}

// Day returns local midnight of the calendar date containing t.
func (c Calendar) Day(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// DayKey formats the local date of t as YYYY-MM-DD.
func (c Calendar) DayKey(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

func (c Calendar) at(day time.Time, minuteOfDay int) time.Time {
	day = day.In(c.loc)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, minuteOfDay, 0, 0, c.loc)
}

// Opening and Closing bound the bookable window [Opening, Closing) of the
// local date containing day.
func (c Calendar) Opening(day time.Time) time.Time { return c.at(day, OpenHour*60) }

func (c Calendar) Closing(day time.Time) time.Time { return c.at(day, CloseHour*60) }

// Grid lists the slot start times of the local date containing day.
func (c Calendar) Grid(day time.Time) []time.Time {
	slots := make([]time.Time, 0, SlotsPerDay)
	for m := OpenHour * 60; m < CloseHour*60; m += SlotMinutes {
		slots = append(slots, c.at(day, m))
	}
	return slots
}

// OnGrid reports whether t is exactly a slot start.
func (c Calendar) OnGrid(t time.Time) bool {
	t = t.In(c.loc)
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= OpenHour*60 && m < CloseHour*60 && m%SlotMinutes == 0
}

// RoundUp moves t to the next 30-minute boundary of its local day using
// ceiling semantics on the minute of day. Exact boundaries are unchanged; a
// minute that has already started (non-zero seconds) counts as elapsed.
// 23:45 rounds to midnight of the following day.
func (c Calendar) RoundUp(t time.Time) time.Time {
	t = t.In(c.loc)
	m := t.Hour()*60 + t.Minute()
	if t.Second() != 0 || t.Nanosecond() != 0 {
		m++
	}
	m = (m + SlotMinutes - 1) / SlotMinutes * SlotMinutes
	return c.at(c.Day(t), m)
}

// minuteKey identifies an occupied slot regardless of seconds.
func minuteKey(t time.Time) int64 {
	return t.Truncate(time.Minute).Unix()
}

// ParseDate reads YYYY-MM-DD as a clinic-local date.
func (c Calendar) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalid, s)
	}
	return d, nil
}

// ParseTimestamp accepts RFC 3339 (converted to the clinic zone) or a naive
// ISO-8601 timestamp taken as clinic-local time.
func (c Calendar) ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: timestamp is required", ErrInvalid)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return c.Normalize(t), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return c.Normalize(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 timestamp", ErrInvalid, s)
}
