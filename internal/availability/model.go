package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidWindow = errors.New("interval start must be before its end")

// TimeOfDay is a clock time expressed as minutes since midnight.
type TimeOfDay int

const EndOfDay TimeOfDay = 24 * 60

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewTimeOfDay(hour, minute), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// At pins the clock time onto the calendar day of date, in date's location.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

// Window is a weekly recurring availability span for a doctor. Start and End
// are on the same day; multiple windows per weekday are allowed.
type Window struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Weekday   time.Weekday
	Start     TimeOfDay
	End       TimeOfDay
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (w Window) Validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return fmt.Errorf("weekday %d out of range: %w", w.Weekday, ErrInvalidWindow)
	}
	if w.Start < 0 || w.End > EndOfDay {
		return fmt.Errorf("window %s-%s out of range: %w", w.Start, w.End, ErrInvalidWindow)
	}
	if w.Start >= w.End {
		return fmt.Errorf("window %s-%s: %w", w.Start, w.End, ErrInvalidWindow)
	}
	return nil
}

type BlockKind string

const (
	BlockVacation    BlockKind = "vacation"
	BlockSickLeave   BlockKind = "sick_leave"
	BlockMeeting     BlockKind = "meeting"
	BlockUnavailable BlockKind = "unavailable"
)

// Block removes availability for its span, taking precedence over any
// Window it overlaps. Blocks are never auto-expired.
type Block struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Kind      BlockKind
	StartsAt  time.Time
	EndsAt    time.Time
	CreatedAt time.Time
}

func (b Block) Validate() error {
	switch b.Kind {
	case BlockVacation, BlockSickLeave, BlockMeeting, BlockUnavailable:
	default:
		return fmt.Errorf("unknown block kind %q", b.Kind)
	}
	if !b.StartsAt.Before(b.EndsAt) {
		return fmt.Errorf("block %s-%s: %w", b.StartsAt.Format(time.RFC3339), b.EndsAt.Format(time.RFC3339), ErrInvalidWindow)
	}
	return nil
}
