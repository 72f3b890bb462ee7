package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecurrenceTemplate defines the bookable hours for one weekday at one
// campus. DayOfWeek follows the wire convention: 0 is Sunday, 6 is Saturday,
// matching time.Weekday.
type RecurrenceTemplate struct {
	bun.BaseModel `bun:"table:recurrence_templates"`

	ID                  uuid.UUID `bun:"id,pk,type:uuid"`
	CampusID            string    `bun:"campus_id,notnull"`
	DayOfWeek           int       `bun:"day_of_week,notnull"`
	StartTime           string    `bun:"start_time,notnull"`
	EndTime             string    `bun:"end_time,notnull"`
	SlotDurationMinutes int       `bun:"slot_duration_minutes,notnull"`
	IsActive            bool      `bun:"is_active,notnull"`
	CreatedAt           time.Time `bun:"created_at,notnull"`
	UpdatedAt           time.Time `bun:"updated_at,notnull"`
}

func (t *RecurrenceTemplate) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if t.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			t.ID = id
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		t.UpdatedAt = now
	}
	return nil
}

type CapacitySetting struct {
	bun.BaseModel `bun:"table:capacity_settings"`

	CampusID          string `bun:"campus_id,pk"`
	MaxBookingsPerDay int    `bun:"max_bookings_per_day,notnull"`
}

// ScheduleConfig carries per-campus rebooking rules. A campus without a row
// gets the defaults: weekends excluded, no holidays.
type ScheduleConfig struct {
	bun.BaseModel `bun:"table:schedule_configs"`

	CampusID        string   `bun:"campus_id,pk"`
	IncludeSaturday bool     `bun:"include_saturday,notnull"`
	IncludeSunday   bool     `bun:"include_sunday,notnull"`
	HolidayDates    []string `bun:"holiday_dates,array"`
}

// IsHoliday reports whether the given date key appears in the holiday set.
func (c *ScheduleConfig) IsHoliday(dateKey string) bool {
	if c == nil {
		return false
	}
	for _, h := range c.HolidayDates {
		if h == dateKey {
			return true
		}
	}
	return false
}

// TimeSlot is derived from a template on demand and never persisted.
type TimeSlot struct {
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}

// GenerateDaySlots expands a recurrence template into the concrete slots for
// one calendar date. A nil or inactive template yields no slots; that is a
// normal outcome, not an error.
//
// Slots are emitted while the slot START is strictly before the template's
// closing time, so when the duration does not evenly divide the window the
// final slot runs past the nominal close. Callers rely on the full-length
// final slot; do not clamp it here.
//
// Every emitted slot reports IsAvailable = true. Day-level saturation is
// tracked by the booking counter, not at slot granularity.
func GenerateDaySlots(tmpl *RecurrenceTemplate, date time.Time) ([]TimeSlot, error) {
	if tmpl == nil || !tmpl.IsActive {
		return nil, nil
	}
	if tmpl.SlotDurationMinutes <= 0 {
		return nil, nil
	}

	start, err := ClockToMinutes(tmpl.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := ClockToMinutes(tmpl.EndTime)
	if err != nil {
		return nil, err
	}

	key := DateKey(date)
	out := make([]TimeSlot, 0, 16)
	for cur := start; cur < end; cur += tmpl.SlotDurationMinutes {
		out = append(out, TimeSlot{
			Date:        key,
			StartTime:   MinutesToClock(cur),
			EndTime:     MinutesToClock(cur + tmpl.SlotDurationMinutes),
			IsAvailable: true,
		})
	}
	return out, nil
}
