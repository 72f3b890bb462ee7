package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"campusbook/internal/domain"
)

// SchedulingRepository is the persistence boundary for the scheduling
// engine and the appointment lifecycle.
//
// The configuration lookups (template, capacity, schedule config) return
// (nil, nil) when no row exists; absence means "use the documented default"
// and is never an error. Appointment lookups by id return ErrNotFound.
type SchedulingRepository interface {
	GetRecurrenceTemplate(ctx context.Context, campusID string, dayOfWeek int) (*domain.RecurrenceTemplate, error)
	GetCapacitySetting(ctx context.Context, campusID string) (*domain.CapacitySetting, error)
	GetScheduleConfig(ctx context.Context, campusID string) (*domain.ScheduleConfig, error)

	// CountAppointmentsByDate counts non-cancelled appointments grouped by
	// calendar-day key over the inclusive range. An empty campusID
	// aggregates across all campuses. Days without appointments are absent
	// from the map.
	CountAppointmentsByDate(ctx context.Context, campusID string, rangeStart, rangeEnd time.Time) (map[string]int, error)

	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, campusID string, rangeStart, rangeEnd time.Time) ([]domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) error

	// ReassignAppointment moves one appointment to a new date and resets its
	// status to scheduled. Each call is its own unit of persistence; there
	// is no batch primitive (see the allocator's failure semantics).
	ReassignAppointment(ctx context.Context, id uuid.UUID, date time.Time) error
}
