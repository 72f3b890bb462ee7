package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"campusbook/internal/domain"
	"campusbook/internal/store"
)

type SchedulingRepo struct {
	db *bun.DB
}

func NewSchedulingRepo(db *bun.DB) *SchedulingRepo {
	return &SchedulingRepo{db: db}
}

func (r *SchedulingRepo) GetRecurrenceTemplate(ctx context.Context, campusID string, dayOfWeek int) (*domain.RecurrenceTemplate, error) {
	var tmpl domain.RecurrenceTemplate
	err := r.db.NewSelect().
		Model(&tmpl).
		Where("campus_id = ?", campusID).
		Where("day_of_week = ?", dayOfWeek).
		Where("is_active = TRUE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tmpl, nil
}

func (r *SchedulingRepo) GetCapacitySetting(ctx context.Context, campusID string) (*domain.CapacitySetting, error) {
	var setting domain.CapacitySetting
	err := r.db.NewSelect().
		Model(&setting).
		Where("campus_id = ?", campusID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &setting, nil
}

func (r *SchedulingRepo) GetScheduleConfig(ctx context.Context, campusID string) (*domain.ScheduleConfig, error) {
	var cfg domain.ScheduleConfig
	err := r.db.NewSelect().
		Model(&cfg).
		Where("campus_id = ?", campusID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

type dateCountRow struct {
	Day   time.Time `bun:"day"`
	Count int       `bun:"count"`
}

// CountAppointmentsByDate groups on the raw timestamp and buckets rows into
// calendar days in Go. A SQL date_trunc would truncate in the database
// session's time zone, which splits days differently from DateKey whenever
// the session zone and the application zone disagree.
func (r *SchedulingRepo) CountAppointmentsByDate(ctx context.Context, campusID string, rangeStart, rangeEnd time.Time) (map[string]int, error) {
	q := r.db.NewSelect().
		Model((*domain.Appointment)(nil)).
		ColumnExpr("appointment_date AS day").
		ColumnExpr("count(*) AS count").
		Where("status != ?", domain.AppointmentStatusCancelled).
		Where("appointment_date >= ?", startOfDay(rangeStart)).
		Where("appointment_date < ?", startOfNextDay(rangeEnd)).
		GroupExpr("appointment_date")
	if campusID != "" {
		q = q.Where("campus_id = ?", campusID)
	}

	var rows []dateCountRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return countsByDateKey(rows, time.Local), nil
}

func (r *SchedulingRepo) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if _, err := r.db.NewInsert().Model(&appt).Exec(ctx); err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *SchedulingRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *SchedulingRepo) ListAppointments(ctx context.Context, campusID string, rangeStart, rangeEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().
		Model(&rows).
		Where("appointment_date >= ?", startOfDay(rangeStart)).
		Where("appointment_date < ?", startOfNextDay(rangeEnd)).
		OrderExpr("appointment_date ASC, start_time ASC")
	if campusID != "" {
		q = q.Where("campus_id = ?", campusID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulingRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *SchedulingRepo) ReassignAppointment(ctx context.Context, id uuid.UUID, date time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("appointment_date = ?", startOfDay(date)).
		Set("status = ?", domain.AppointmentStatusScheduled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// countsByDateKey sums grouped rows per calendar day in the given location.
// The driver hands timestamps back in its own zone, so each one is converted
// before keying; two instants on the same local day must land on one key.
func countsByDateKey(rows []dateCountRow, loc *time.Location) map[string]int {
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[domain.DateKey(row.Day.In(loc))] += row.Count
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfNextDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}
