package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"campusbook/internal/domain"
)

type RebookInput struct {
	CampusID   string
	AnchorDate time.Time
	// AppointmentIDs is the batch of displaced appointments in the priority
	// order the caller wants them rebooked.
	AppointmentIDs []uuid.UUID
	// HorizonDays of 0 uses the configured default.
	HorizonDays int
}

type Placement struct {
	AppointmentID uuid.UUID
	Date          time.Time
}

type RebookResult struct {
	Placements []Placement
	// Unplaced counts appointments left untouched because every remaining
	// eligible date was at capacity. This is a normal outcome, not an error.
	Unplaced int
}

// RebookDisplaced redistributes a batch of displaced appointments across the
// eligible dates after the anchor, first-fit, never exceeding the campus's
// daily capacity.
//
// One forward-only cursor is shared across the whole batch, so assigned
// dates read in input order are non-decreasing and an exhausted date is
// never revisited. When the cursor runs off the end of the eligible
// sequence the remaining appointments keep their original date and status.
//
// Each reassignment is its own unit of persistence. A write failure aborts
// the batch; placements already written stay committed, and the returned
// result reflects them. Re-invoking with stale inputs can double-count
// capacity, so callers must refresh the batch before retrying.
func (s *Service) RebookDisplaced(ctx context.Context, in RebookInput) (RebookResult, error) {
	if strings.TrimSpace(in.CampusID) == "" {
		return RebookResult{}, validationError("campus_id is required")
	}
	if in.AnchorDate.IsZero() {
		return RebookResult{}, validationError("anchor_date is required")
	}
	if in.HorizonDays < 0 {
		return RebookResult{}, validationError("horizon_days must not be negative")
	}

	result := RebookResult{}
	if len(in.AppointmentIDs) == 0 {
		return result, nil
	}

	capacity, err := s.dailyCapacity(ctx, in.CampusID)
	if err != nil {
		return RebookResult{}, err
	}

	dates, err := s.EligibleDates(ctx, in.CampusID, in.AnchorDate, in.HorizonDays)
	if err != nil {
		return RebookResult{}, err
	}
	if len(dates) == 0 {
		result.Unplaced = len(in.AppointmentIDs)
		return result, nil
	}

	// Saturation snapshot is read once and mutated only in memory; a second
	// allocator running concurrently for the same campus would under-observe
	// these writes. Callers serialize per campus.
	counts, err := s.repo.CountAppointmentsByDate(ctx, in.CampusID, dates[0], dates[len(dates)-1])
	if err != nil {
		return RebookResult{}, err
	}

	cursor := newPlacementCursor(dates, counts, capacity)
	for i, id := range in.AppointmentIDs {
		date, ok := cursor.peek()
		if !ok {
			result.Unplaced = len(in.AppointmentIDs) - i
			return result, nil
		}
		if err := s.repo.ReassignAppointment(ctx, id, date); err != nil {
			return result, err
		}
		cursor.commit()
		result.Placements = append(result.Placements, Placement{AppointmentID: id, Date: date})
	}
	return result, nil
}

// placementCursor is the allocator's shared batch state: a forward-only
// index into the eligible date sequence plus the mutable saturation map.
// peek and commit are split so a placement is only counted after its write
// has been persisted.
type placementCursor struct {
	dates    []time.Time
	counts   map[string]int
	capacity int
	idx      int
}

func newPlacementCursor(dates []time.Time, counts map[string]int, capacity int) *placementCursor {
	if counts == nil {
		counts = make(map[string]int)
	}
	return &placementCursor{dates: dates, counts: counts, capacity: capacity}
}

// peek advances past saturated dates and returns the earliest eligible date
// with spare capacity. ok is false when the sequence is exhausted. peek
// never steps backward and does not advance past a date that still has room,
// so consecutive placements keep filling the same date until it saturates.
func (c *placementCursor) peek() (time.Time, bool) {
	for c.idx < len(c.dates) {
		if c.counts[domain.DateKey(c.dates[c.idx])] < c.capacity {
			return c.dates[c.idx], true
		}
		c.idx++
	}
	return time.Time{}, false
}

// commit records one booking on the date peek last returned.
func (c *placementCursor) commit() {
	if c.idx < len(c.dates) {
		c.counts[domain.DateKey(c.dates[c.idx])]++
	}
}
