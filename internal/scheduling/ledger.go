package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caremesh/clinic-scheduling/internal/availability"
	redisclient "github.com/caremesh/clinic-scheduling/internal/redis"
)

// Ledger materializes resolver candidates into durable slots and answers
// open-slot queries. The repository is the single source of truth for
// occupancy; the ledger never mutates counters itself.
type Ledger struct {
	repo    Repository
	locker  redisclient.Locker
	granule time.Duration
}

func NewLedger(repo Repository, locker redisclient.Locker, granularity time.Duration) *Ledger {
	return &Ledger{
		repo:    repo,
		locker:  locker,
		granule: granularity,
	}
}

func (l *Ledger) granularityFor(d *Doctor) time.Duration {
	if d.SlotMinutes != nil && *d.SlotMinutes > 0 {
		return time.Duration(*d.SlotMinutes) * time.Minute
	}
	return l.granule
}

// EnsureSlots idempotently materializes slots for every resolver candidate in
// [from, to] not already present. Candidates starting before notBefore are
// skipped so past intervals are never advertised. Existing rows are never
// overwritten. Safe under concurrent callers: the per-doctor lock only trims
// redundant work, correctness comes from the insert-if-absent semantics.
func (l *Ledger) EnsureSlots(ctx context.Context, doctor *Doctor, from, to, notBefore time.Time) (int, error) {
	windows, err := l.repo.ListWindows(ctx, doctor.ID)
	if err != nil {
		return 0, fmt.Errorf("list windows: %w", err)
	}
	if len(windows) == 0 {
		return 0, nil
	}

	blocks, err := l.repo.ListBlocksOverlapping(ctx, doctor.ID, dayFloor(from), dayFloor(to).AddDate(0, 0, 1))
	if err != nil {
		return 0, fmt.Errorf("list blocks: %w", err)
	}

	resolver := availability.NewResolver(windows, blocks, l.granularityFor(doctor))

	var slots []Slot
	for cand := range resolver.Candidates(from, to) {
		if cand.StartsAt().Before(notBefore) {
			continue
		}
		slots = append(slots, Slot{
			DoctorID: doctor.ID,
			Date:     cand.Date,
			Start:    cand.Start,
			End:      cand.End,
			Kind:     SlotRegular,
			Capacity: 1,
		})
	}
	if len(slots) == 0 {
		return 0, nil
	}

	var inserted int
	lockKey := "materialize:doctor:" + doctor.ID.String()
	err = l.locker.WithLock(ctx, lockKey, func(ctx context.Context) error {
		n, err := l.repo.InsertSlots(ctx, slots)
		inserted = n
		return err
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		// Another caller is materializing the same doctor. Inserting anyway
		// is still correct; duplicates collapse on the uniqueness conflict.
		inserted, err = l.repo.InsertSlots(ctx, slots)
	}
	if err != nil {
		return inserted, fmt.Errorf("materialize slots: %w", err)
	}
	return inserted, nil
}

// ListOpen returns materialized slots with remaining capacity, ordered by
// date then start time.
func (l *Ledger) ListOpen(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error) {
	return l.repo.ListOpenSlots(ctx, doctorID, dayFloor(from), dayFloor(to))
}

func dayFloor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
