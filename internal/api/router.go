package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/caremesh/clinic-scheduling/internal/availability"
	"github.com/caremesh/clinic-scheduling/internal/scheduling"
)

// BookingService is what the handlers need from the coordinator.
// *scheduling.Service satisfies it.
type BookingService interface {
	Create(ctx context.Context, p scheduling.CreateParams) (*scheduling.Appointment, error)
	Confirm(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	CheckIn(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, actor scheduling.Role) (*scheduling.Appointment, error)
	Reschedule(ctx context.Context, id, newSlotID uuid.UUID) (*scheduling.Appointment, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentDetail, error)
	ListAppointments(ctx context.Context, f scheduling.AppointmentFilter) ([]scheduling.AppointmentDetail, error)
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]scheduling.Slot, error)
	CreateWindow(ctx context.Context, w availability.Window) (*availability.Window, error)
	DeleteWindow(ctx context.Context, doctorID, windowID uuid.UUID) error
	CreateBlock(ctx context.Context, b availability.Block) (*availability.Block, error)
	DeleteBlock(ctx context.Context, doctorID, blockID uuid.UUID) error
}

type RouterConfig struct {
	Service BookingService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service

	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Get("/slots", listSlotsHandler(svc))
		r.Post("/windows", createWindowHandler(svc))
		r.Delete("/windows/{windowID}", deleteWindowHandler(svc))
		r.Post("/blocks", createBlockHandler(svc))
		r.Delete("/blocks/{blockID}", deleteBlockHandler(svc))
	})

	r.Post("/appointments", createAppointmentHandler(svc))
	r.Get("/appointments", listAppointmentsHandler(svc))
	r.Get("/appointments/{id}", getAppointmentHandler(svc))
	r.Post("/appointments/{id}/confirm", transitionHandler(func(req *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.Confirm(req.Context(), id)
	}))
	r.Post("/appointments/{id}/check-in", transitionHandler(func(req *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.CheckIn(req.Context(), id)
	}))
	r.Post("/appointments/{id}/complete", transitionHandler(func(req *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.Complete(req.Context(), id)
	}))
	r.Post("/appointments/{id}/no-show", transitionHandler(func(req *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.MarkNoShow(req.Context(), id)
	}))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(svc))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(svc))

	return r
}
