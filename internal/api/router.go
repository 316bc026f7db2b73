package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medportal/scheduling-service/internal/appointment"
	"github.com/medportal/scheduling-service/internal/metrics"
)

type RouterConfig struct {
	Service        *appointment.Service
	SlotGenerator  *appointment.SlotGenerator
	SlotWindowDays int
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Logger         zerolog.Logger
	Metrics        *metrics.Collector
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))

	// Health and metrics endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", metrics.Handler())

	// Appointment endpoints
	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Patch("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Service))
	r.Patch("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

	// Slot endpoints
	r.Get("/doctors/{id}/slots", listSlotsHandler(cfg.SlotGenerator, cfg.SlotWindowDays, cfg.Metrics))

	return r
}
