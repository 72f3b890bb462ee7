package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campusbook/internal/domain"
	"campusbook/internal/service/scheduling"
	"campusbook/internal/store"
)

type schedulingService interface {
	DaySlots(ctx context.Context, campusID string, date time.Time) ([]domain.TimeSlot, error)
	BookingCounts(ctx context.Context, campusID string, rangeStart, rangeEnd time.Time) (map[string]int, error)
	EligibleDates(ctx context.Context, campusID string, anchor time.Time, horizonDays int) ([]time.Time, error)
	RebookDisplaced(ctx context.Context, in scheduling.RebookInput) (scheduling.RebookResult, error)
	Book(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error)
	List(ctx context.Context, campusID string, rangeStart, rangeEnd time.Time) ([]domain.Appointment, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, to domain.AppointmentStatus) (domain.Appointment, error)
}

type SchedulingServer struct {
	svc schedulingService
	log *slog.Logger
}

func NewSchedulingServer(svc schedulingService, log *slog.Logger) *SchedulingServer {
	if log == nil {
		log = slog.Default()
	}
	return &SchedulingServer{
		svc: svc,
		log: log.With(slog.String("component", "http.scheduling")),
	}
}

func (s *SchedulingServer) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/campuses/:campusId/slots", s.daySlots)
		api.GET("/campuses/:campusId/eligible-dates", s.eligibleDates)
		api.POST("/campuses/:campusId/rebook", s.rebook)
		api.GET("/booking-counts", s.bookingCounts)
		api.POST("/appointments", s.book)
		api.GET("/appointments", s.listAppointments)
		api.POST("/appointments/:id/status", s.transitionStatus)
	}
}

func (s *SchedulingServer) daySlots(ctx *gin.Context) {
	log := s.log.With(slog.String("handler", "daySlots"))

	campusID := ctx.Param("campusId")
	date, err := domain.ParseDateKey(ctx.Query("date"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_date"), slog.String("campus_id", campusID))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	slots, err := s.svc.DaySlots(ctx.Request.Context(), campusID, date)
	if err != nil {
		s.writeError(ctx, log, err, slog.String("campus_id", campusID))
		return
	}
	if slots == nil {
		slots = []domain.TimeSlot{}
	}

	log.Debug("slots generated", slog.String("campus_id", campusID), slog.Int("count", len(slots)))
	ctx.JSON(http.StatusOK, gin.H{"date": domain.DateKey(date), "slots": slots})
}

func (s *SchedulingServer) bookingCounts(ctx *gin.Context) {
	log := s.log.With(slog.String("handler", "bookingCounts"))

	campusID := ctx.Query("campus_id")
	rangeStart, rangeEnd, ok := s.dateRange(ctx, log)
	if !ok {
		return
	}

	counts, err := s.svc.BookingCounts(ctx.Request.Context(), campusID, rangeStart, rangeEnd)
	if err != nil {
		s.writeError(ctx, log, err, slog.String("campus_id", campusID))
		return
	}
	if counts == nil {
		counts = map[string]int{}
	}
	ctx.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (s *SchedulingServer) eligibleDates(ctx *gin.Context) {
	log := s.log.With(slog.String("handler", "eligibleDates"))

	campusID := ctx.Param("campusId")
	anchor, err := domain.ParseDateKey(ctx.Query("anchor"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_anchor"), slog.String("campus_id", campusID))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "anchor must be YYYY-MM-DD"})
		return
	}
	horizonDays := 0
	if raw := ctx.Query("horizon_days"); raw != "" {
		horizonDays, err = strconv.Atoi(raw)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "bad_horizon"), slog.String("campus_id", campusID))
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "horizon_days must be an integer"})
			return
		}
	}

	dates, err := s.svc.EligibleDates(ctx.Request.Context(), campusID, anchor, horizonDays)
	if err != nil {
		s.writeError(ctx, log, err, slog.String("campus_id", campusID))
		return
	}

	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, domain.DateKey(d))
	}
	ctx.JSON(http.StatusOK, gin.H{"anchor": domain.DateKey(anchor), "dates": keys})
}

type rebookRequest struct {
	AnchorDate     string   `json:"anchor_date" binding:"required"`
	AppointmentIDs []string `json:"appointment_ids" binding:"required"`
	HorizonDays    int      `json:"horizon_days"`
}

type placementResponse struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
}

func (s *SchedulingServer) rebook(ctx *gin.Context) {
	log := s.log.With(slog.String("handler", "rebook"))

	campusID := ctx.Param("campusId")
	var req rebookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_body"), slog.String("campus_id", campusID))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "anchor_date and appointment_ids are required"})
		return
	}
	anchor, err := domain.ParseDateKey(req.AnchorDate)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_anchor"), slog.String("campus_id", campusID))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "anchor_date must be YYYY-MM-DD"})
		return
	}

	ids := make([]uuid.UUID, 0, len(req.AppointmentIDs))
	for _, raw := range req.AppointmentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "bad_uuid"), slog.String("campus_id", campusID))
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "appointment_ids must be UUIDs"})
			return
		}
		ids = append(ids, id)
	}

	result, err := s.svc.RebookDisplaced(ctx.Request.Context(), scheduling.RebookInput{
		CampusID:       campusID,
		AnchorDate:     anchor,
		AppointmentIDs: ids,
		HorizonDays:    req.HorizonDays,
	})
	if err != nil {
		s.writeError(ctx, log, err, slog.String("campus_id", campusID), slog.String("anchor", req.AnchorDate))
		return
	}

	placements := make([]placementResponse, 0, len(result.Placements))
	for _, p := range result.Placements {
		placements = append(placements, placementResponse{
			AppointmentID: p.AppointmentID.String(),
			Date:          domain.DateKey(p.Date),
		})
	}

	log.Info(
		"rebook completed",
		slog.String("campus_id", campusID),
		slog.String("anchor", req.AnchorDate),
		slog.Int("placed", len(placements)),
		slog.Int("unplaced", result.Unplaced),
	)
	ctx.JSON(http.StatusOK, gin.H{"placements": placements, "unplaced": result.Unplaced})
}

type bookRequest struct {
	CampusID     string `json:"campus_id" binding:"required"`
	PatientName  string `json:"patient_name" binding:"required"`
	PatientPhone string `json:"patient_phone"`
	Notes        string `json:"notes"`
	Date         string `json:"date" binding:"required"`
	StartTime    string `json:"start_time" binding:"required"`
	EndTime      string `json:"end_time" binding:"required"`
}

func (s *SchedulingServer) book(ctx *gin.Context) {
	log := s.log.With(slog.String("handler", "book"))

	var req bookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_body"))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "campus_id, patient_name, date, start_time and end_time are required"})
		return
	}
	date, err := domain.ParseDateKey(req.Date)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_date"), slog.String("campus_id", req.CampusID))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	appt, err := s.svc.Book(ctx.Request.Context(), scheduling.BookInput{
		CampusID:     req.CampusID,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		Notes:        req.Notes,
		Date:         date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Info("booking refused, day full", slog.String("campus_id", req.CampusID), slog.String("date", req.Date))
			ctx.JSON(http.StatusConflict, gin.H{"error": "no capacity left on that day"})
			return
		}
		s.writeError(ctx, log, err, slog.String("campus_id", req.CampusID))
		return
	}

	log.Info(
		"appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("campus_id", appt.CampusID),
		slog.String("date", domain.DateKey(appt.AppointmentDate)),
	)
	ctx.JSON(http.StatusCreated, toAppointmentResponse(appt))
}

func (s *SchedulingServer) listAppointments(ctx *gin.Context) {
	log := s.log.With(slog.String("handler", "listAppointments"))

	campusID := ctx.Query("campus_id")
	rangeStart, rangeEnd, ok := s.dateRange(ctx, log)
	if !ok {
		return
	}

	appts, err := s.svc.List(ctx.Request.Context(), campusID, rangeStart, rangeEnd)
	if err != nil {
		s.writeError(ctx, log, err, slog.String("campus_id", campusID))
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	ctx.JSON(http.StatusOK, gin.H{"appointments": out})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *SchedulingServer) transitionStatus(ctx *gin.Context) {
	log := s.log.With(slog.String("handler", "transitionStatus"))

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_uuid"))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "appointment id must be a UUID"})
		return
	}
	var req statusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_body"), slog.String("appointment_id", id.String()))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	appt, err := s.svc.TransitionStatus(ctx.Request.Context(), id, domain.AppointmentStatus(req.Status))
	if err != nil {
		s.writeError(ctx, log, err, slog.String("appointment_id", id.String()))
		return
	}

	log.Info(
		"appointment status changed",
		slog.String("appointment_id", id.String()),
		slog.String("status", string(appt.Status)),
	)
	ctx.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (s *SchedulingServer) dateRange(ctx *gin.Context, log *slog.Logger) (time.Time, time.Time, bool) {
	rangeStart, err := domain.ParseDateKey(ctx.Query("start"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_start"))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	rangeEnd, err := domain.ParseDateKey(ctx.Query("end"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_end"))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	return rangeStart, rangeEnd, true
}

func (s *SchedulingServer) writeError(ctx *gin.Context, log *slog.Logger, err error, attrs ...any) {
	var vErr *scheduling.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", append([]any{slog.Any("err", err)}, attrs...)...)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		log.Info("not found", attrs...)
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	log.Error("request failed", append([]any{slog.Any("err", err)}, attrs...)...)
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

type appointmentResponse struct {
	ID           string `json:"id"`
	CampusID     string `json:"campus_id"`
	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:           a.ID.String(),
		CampusID:     a.CampusID,
		PatientName:  a.PatientName,
		PatientPhone: a.PatientPhone,
		Notes:        a.Notes,
		Date:         domain.DateKey(a.AppointmentDate),
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Status:       string(a.Status),
	}
}
