package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"campusbook/internal/domain"
	"campusbook/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Defaults are the engine's fallback values, injected at construction so
// boundary values can be exercised in tests.
type Defaults struct {
	// DailyCapacity applies when a campus has no CapacitySetting row.
	DailyCapacity int
	// HorizonDays bounds how far forward eligible-date enumeration looks.
	HorizonDays int
}

type Service struct {
	repo     store.SchedulingRepository
	defaults Defaults

	// slotCache holds generated day slots keyed by campus+date. Slots are
	// derived data; a miss just regenerates. Nil when caching is disabled.
	slotCache *lru.Cache[string, []domain.TimeSlot]
}

func NewService(repo store.SchedulingRepository, defaults Defaults, slotCacheSize int) (*Service, error) {
	s := &Service{repo: repo, defaults: defaults}
	if slotCacheSize > 0 {
		cache, err := lru.New[string, []domain.TimeSlot](slotCacheSize)
		if err != nil {
			return nil, err
		}
		s.slotCache = cache
	}
	return s, nil
}

// DaySlots expands the campus's recurrence template for the date's weekday
// into concrete time slots. A campus with no active template that weekday
// gets an empty schedule, not an error.
func (s *Service) DaySlots(ctx context.Context, campusID string, date time.Time) ([]domain.TimeSlot, error) {
	if strings.TrimSpace(campusID) == "" {
		return nil, validationError("campus_id is required")
	}

	cacheKey := campusID + "|" + domain.DateKey(date)
	if s.slotCache != nil {
		if slots, ok := s.slotCache.Get(cacheKey); ok {
			return slots, nil
		}
	}

	tmpl, err := s.repo.GetRecurrenceTemplate(ctx, campusID, int(date.Weekday()))
	if err != nil {
		return nil, err
	}

	slots, err := domain.GenerateDaySlots(tmpl, date)
	if err != nil {
		return nil, err
	}

	if s.slotCache != nil {
		s.slotCache.Add(cacheKey, slots)
	}
	return slots, nil
}

// BookingCounts returns the per-day saturation snapshot over an inclusive
// date range. An empty campusID aggregates across all campuses.
func (s *Service) BookingCounts(ctx context.Context, campusID string, rangeStart, rangeEnd time.Time) (map[string]int, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, validationError("range_end must not be before range_start")
	}
	return s.repo.CountAppointmentsByDate(ctx, campusID, rangeStart, rangeEnd)
}

// EligibleDates enumerates the future dates a displaced appointment may be
// moved to, anchored at the date being vacated. horizonDays of 0 uses the
// configured default.
func (s *Service) EligibleDates(ctx context.Context, campusID string, anchor time.Time, horizonDays int) ([]time.Time, error) {
	if strings.TrimSpace(campusID) == "" {
		return nil, validationError("campus_id is required")
	}
	if anchor.IsZero() {
		return nil, validationError("anchor_date is required")
	}
	if horizonDays < 0 {
		return nil, validationError("horizon_days must not be negative")
	}
	if horizonDays == 0 {
		horizonDays = s.defaults.HorizonDays
	}

	cfg, err := s.repo.GetScheduleConfig(ctx, campusID)
	if err != nil {
		return nil, err
	}
	return eligibleDates(cfg, anchor, horizonDays), nil
}

// eligibleDates walks forward one day at a time from the anchor. Absent
// config both weekend days are excluded and there are no holidays. The
// anchor itself is never eligible. Output is strictly increasing; the
// allocator's first-fit behavior depends on that ordering.
func eligibleDates(cfg *domain.ScheduleConfig, anchor time.Time, horizonDays int) []time.Time {
	includeSaturday := false
	includeSunday := false
	if cfg != nil {
		includeSaturday = cfg.IncludeSaturday
		includeSunday = cfg.IncludeSunday
	}

	anchorKey := domain.DateKey(anchor)
	out := make([]time.Time, 0, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		d := anchor.AddDate(0, 0, i)
		switch d.Weekday() {
		case time.Saturday:
			if !includeSaturday {
				continue
			}
		case time.Sunday:
			if !includeSunday {
				continue
			}
		}
		key := domain.DateKey(d)
		if cfg.IsHoliday(key) {
			continue
		}
		if key == anchorKey {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (s *Service) dailyCapacity(ctx context.Context, campusID string) (int, error) {
	setting, err := s.repo.GetCapacitySetting(ctx, campusID)
	if err != nil {
		return 0, err
	}
	if setting == nil || setting.MaxBookingsPerDay <= 0 {
		return s.defaults.DailyCapacity, nil
	}
	return setting.MaxBookingsPerDay, nil
}

type BookInput struct {
	CampusID     string
	PatientName  string
	PatientPhone string
	Notes        string
	Date         time.Time
	StartTime    string
	EndTime      string
}

// Book creates a scheduled appointment, refusing when the day has already
// reached the campus's capacity. Returns store.ErrConflict on a full day.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	if strings.TrimSpace(in.CampusID) == "" {
		return domain.Appointment{}, validationError("campus_id is required")
	}
	name := strings.TrimSpace(in.PatientName)
	if name == "" {
		return domain.Appointment{}, validationError("patient_name is required")
	}
	if in.Date.IsZero() {
		return domain.Appointment{}, validationError("appointment_date is required")
	}

	startMin, err := domain.ClockToMinutes(in.StartTime)
	if err != nil {
		return domain.Appointment{}, validationError("start_time must be HH:MM")
	}
	endMin, err := domain.ClockToMinutes(in.EndTime)
	if err != nil {
		return domain.Appointment{}, validationError("end_time must be HH:MM")
	}
	if endMin <= startMin {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}

	capacity, err := s.dailyCapacity(ctx, in.CampusID)
	if err != nil {
		return domain.Appointment{}, err
	}
	counts, err := s.repo.CountAppointmentsByDate(ctx, in.CampusID, in.Date, in.Date)
	if err != nil {
		return domain.Appointment{}, err
	}
	if counts[domain.DateKey(in.Date)] >= capacity {
		return domain.Appointment{}, store.ErrConflict
	}

	return s.repo.CreateAppointment(ctx, domain.Appointment{
		CampusID:        in.CampusID,
		PatientName:     name,
		PatientPhone:    strings.TrimSpace(in.PatientPhone),
		Notes:           in.Notes,
		AppointmentDate: in.Date,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		Status:          domain.AppointmentStatusScheduled,
	})
}

// List returns a campus's appointments over an inclusive date range. An
// empty campusID lists across all campuses.
func (s *Service) List(ctx context.Context, campusID string, rangeStart, rangeEnd time.Time) ([]domain.Appointment, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, validationError("range_end must not be before range_start")
	}
	return s.repo.ListAppointments(ctx, campusID, rangeStart, rangeEnd)
}

// TransitionStatus moves a scheduled appointment to completed, cancelled or
// no_show. Only scheduled appointments may transition.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, to domain.AppointmentStatus) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if !to.Valid() || to == domain.AppointmentStatusScheduled {
		return domain.Appointment{}, validationError("status must be completed, cancelled or no_show")
	}

	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appt.Status != domain.AppointmentStatusScheduled {
		return domain.Appointment{}, validationError("only scheduled appointments can change status")
	}

	if err := s.repo.UpdateAppointmentStatus(ctx, id, to); err != nil {
		return domain.Appointment{}, err
	}
	appt.Status = to
	return appt, nil
}
