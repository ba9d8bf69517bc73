package model

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Clock is a wall-clock time of day with minute precision.
type Clock uint16

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		// Postgres TIME renders with seconds.
		t, err = time.Parse("15:04:05", strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("time must be HH:MM, got %q", s)
		}
		if t.Second() != 0 {
			return 0, fmt.Errorf("time must be minute precision, got %q", s)
		}
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", s)
	}
	return d, nil
}

// Slot is a calendar date plus a time of day. Date carries no time component.
type Slot struct {
	Date time.Time
	Time Clock
}

func NewSlot(date, clock string) (Slot, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Slot{}, err
	}
	c, err := ParseClock(clock)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Date: d, Time: c}, nil
}

func (s Slot) DateString() string { return s.Date.Format(DateLayout) }

// At places the slot on the timeline in loc.
func (s Slot) At(loc *time.Location) time.Time {
	return time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(), s.Time.Hour(), s.Time.Minute(), 0, 0, loc)
}

func (s Slot) Equal(o Slot) bool {
	return s.DateString() == o.DateString() && s.Time == o.Time
}

// Key identifies the slot within a company and service. It is used to scope
// advisory locks.
func (s Slot) Key(companyID, serviceID string) string {
	return strings.Join([]string{companyID, serviceID, s.DateString(), s.Time.String()}, "|")
}

func (s Slot) String() string { return s.DateString() + " " + s.Time.String() }
