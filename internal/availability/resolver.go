package availability

import (
	"iter"
	"sort"
	"time"
)

// Candidate is one bookable interval derived from a doctor's recurring
// windows minus their blocks. Date is midnight of the calendar day.
type Candidate struct {
	Date  time.Time
	Start TimeOfDay
	End   TimeOfDay
}

func (c Candidate) StartsAt() time.Time { return c.Start.At(c.Date) }
func (c Candidate) EndsAt() time.Time   { return c.End.At(c.Date) }

// Resolver derives candidate slots for a single doctor from a snapshot of
// that doctor's windows and blocks. It is a pure function of the snapshot:
// iterating twice yields the same sequence, and nothing is consumed.
type Resolver struct {
	granule   TimeOfDay
	byWeekday map[time.Weekday][]Window
	blocks    []Block
}

func NewResolver(windows []Window, blocks []Block, granularity time.Duration) *Resolver {
	byWeekday := make(map[time.Weekday][]Window)
	for _, w := range windows {
		byWeekday[w.Weekday] = append(byWeekday[w.Weekday], w)
	}
	for _, ws := range byWeekday {
		sort.Slice(ws, func(i, j int) bool { return ws[i].Start < ws[j].Start })
	}

	return &Resolver{
		granule:   TimeOfDay(granularity / time.Minute),
		byWeekday: byWeekday,
		blocks:    blocks,
	}
}

// Candidates yields granularity-sized candidates for each day in [from, to]
// (inclusive by calendar day), ordered by day then start time. Trailing
// remainders shorter than one granule are dropped.
func (r *Resolver) Candidates(from, to time.Time) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		if r.granule <= 0 {
			return
		}
		first := startOfDay(from)
		last := startOfDay(to)
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			for _, w := range r.byWeekday[day.Weekday()] {
				for _, open := range r.subtractBlocks(day, w) {
					for s := open.start; s+r.granule <= open.end; s += r.granule {
						if !yield(Candidate{Date: day, Start: s, End: s + r.granule}) {
							return
						}
					}
				}
			}
		}
	}
}

type span struct {
	start, end TimeOfDay
}

// subtractBlocks returns the open sub-intervals of w on day after removing
// every block that overlaps it. A block fully containing the window removes
// it entirely; partial overlaps truncate.
func (r *Resolver) subtractBlocks(day time.Time, w Window) []span {
	var blocked []span
	for _, b := range r.blocks {
		s, e, ok := clipToDay(b, day)
		if !ok {
			continue
		}
		if e <= w.Start || s >= w.End {
			continue
		}
		if s < w.Start {
			s = w.Start
		}
		if e > w.End {
			e = w.End
		}
		blocked = append(blocked, span{start: s, end: e})
	}

	if len(blocked) == 0 {
		return []span{{start: w.Start, end: w.End}}
	}

	sort.Slice(blocked, func(i, j int) bool { return blocked[i].start < blocked[j].start })

	var open []span
	cur := w.Start
	for _, b := range blocked {
		if b.start > cur {
			open = append(open, span{start: cur, end: b.start})
		}
		if b.end > cur {
			cur = b.end
		}
	}
	if cur < w.End {
		open = append(open, span{start: cur, end: w.End})
	}
	return open
}

// clipToDay projects a block onto one calendar day as a TimeOfDay span.
func clipToDay(b Block, day time.Time) (TimeOfDay, TimeOfDay, bool) {
	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)
	if !b.StartsAt.Before(dayEnd) || !b.EndsAt.After(dayStart) {
		return 0, 0, false
	}

	s := TimeOfDay(0)
	if b.StartsAt.After(dayStart) {
		s = TimeOfDay(b.StartsAt.Sub(dayStart) / time.Minute)
	}
	e := EndOfDay
	if b.EndsAt.Before(dayEnd) {
		e = TimeOfDay(b.EndsAt.Sub(dayStart) / time.Minute)
	}
	return s, e, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
