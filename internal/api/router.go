package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-booking/internal/notify"
	"github.com/hackgods/practitioner-booking/internal/session"
)

type RouterConfig struct {
	Service     BookingService
	Tokens      *session.Tokens
	Revocations session.RevocationStore
	Bus         notify.Bus
	Logger      zerolog.Logger
	Now         func() time.Time
	Postgres    Pinger
	Redis       Pinger
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	ws := newNotificationHandler(cfg.Bus, cfg.Revocations, cfg.Now, cfg.Logger)
	h := &handlers{svc: cfg.Service, revoked: cfg.Revocations, onRevoke: ws.closeSession, log: cfg.Logger}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Revocations, cfg.Now, cfg.Logger))

		r.Post("/booking-requests", h.createBookingRequest)

		r.Get("/appointments", h.listAppointments)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Post("/appointments/{id}/transition", h.transitionAppointment)

		r.Post("/practitioners/{practitionerId}", h.registerPractitioner)
		r.Get("/availability/{practitionerId}", h.getAvailability)
		r.Put("/availability/{practitionerId}", h.putAvailability)
		r.Get("/availability/{practitionerId}/slots", h.listSlots)

		r.Post("/sessions/revoke", h.revokeSession)
		r.Method(http.MethodGet, "/notifications/ws", ws)
	})

	return r
}
