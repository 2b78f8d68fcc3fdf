package api

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-booking/internal/appointment"
	"github.com/hackgods/practitioner-booking/internal/apperr"
	"github.com/hackgods/practitioner-booking/internal/availability"
	"github.com/hackgods/practitioner-booking/internal/scheduler"
	"github.com/hackgods/practitioner-booking/internal/session"
)

// BookingService is the part of scheduler.Coordinator the transport needs.
type BookingService interface {
	AttemptBooking(ctx context.Context, req scheduler.BookingRequest) (appointment.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, ev appointment.Event, actor session.Actor) (appointment.Appointment, error)
	ListAvailableSlots(ctx context.Context, practitionerID uuid.UUID, date time.Time, durationMinutes int) (iter.Seq[scheduler.Window], error)
	RegisterPractitioner(ctx context.Context, practitionerID uuid.UUID, timezone string) (availability.Schedule, error)
	UpdateAvailability(ctx context.Context, actor session.Actor, practitionerID uuid.UUID, timezone string, rules []availability.Rule) (availability.Schedule, error)
	GetSchedule(ctx context.Context, practitionerID uuid.UUID) (availability.Schedule, error)
	GetAppointment(ctx context.Context, actor session.Actor, id uuid.UUID) (appointment.Appointment, error)
	ListAppointments(ctx context.Context, actor session.Actor, userID uuid.UUID, limit int) ([]appointment.Appointment, error)
}

type handlers struct {
	svc      BookingService
	revoked  session.RevocationStore
	onRevoke func(sessionID string)
	log      zerolog.Logger
}

func actorFrom(r *http.Request) session.Actor {
	sess, _ := session.FromContext(r.Context())
	return sess.Actor()
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("could not parse JSON body: %v", err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation("%s must be a valid UUID", name)
	}
	return id, nil
}

func (h *handlers) createBookingRequest(w http.ResponseWriter, r *http.Request) {
	var body BookingRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	practitionerID, err := uuid.Parse(body.PractitionerID)
	if err != nil {
		writeAppError(w, r, h.log, apperr.Validation("practitionerId must be a valid UUID"))
		return
	}

	actor := actorFrom(r)
	var patientID uuid.UUID
	switch actor.Role {
	case session.RolePatient:
		patientID = actor.ID
		if body.PatientID != "" && body.PatientID != actor.ID.String() {
			writeAppError(w, r, h.log, apperr.Unauthorized("patients may only book for themselves"))
			return
		}
	case session.RoleAdmin:
		patientID, err = uuid.Parse(body.PatientID)
		if err != nil {
			writeAppError(w, r, h.log, apperr.Validation("patientId must be a valid UUID"))
			return
		}
	default:
		writeAppError(w, r, h.log, apperr.Unauthorized("only patients can request bookings"))
		return
	}

	appt, err := h.svc.AttemptBooking(r.Context(), scheduler.BookingRequest{
		PatientID:      patientID,
		PractitionerID: practitionerID,
		TreatmentID:    body.TreatmentID,
		Start:          body.Start,
		End:            body.End,
	})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, appt)
}

func (h *handlers) transitionAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	var body TransitionRequest
	if err := decodeBody(r, &body); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	ev, err := appointment.ParseEvent(body.Event)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	appt, err := h.svc.Transition(r.Context(), id, ev, actorFrom(r))
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, appt)
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), actorFrom(r), id)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var userID uuid.UUID
	if raw := q.Get("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeAppError(w, r, h.log, apperr.Validation("userId must be a valid UUID"))
			return
		}
		userID = id
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeAppError(w, r, h.log, apperr.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	list, err := h.svc.ListAppointments(r.Context(), actorFrom(r), userID, limit)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []appointment.Appointment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) registerPractitioner(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerId")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	actor := actorFrom(r)
	owner := actor.Role == session.RolePractitioner && actor.ID == practitionerID
	if !owner && actor.Role != session.RoleAdmin {
		writeAppError(w, r, h.log, apperr.Unauthorized("only the practitioner or an admin may register a schedule"))
		return
	}

	var body RegisterPractitionerRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			writeAppError(w, r, h.log, err)
			return
		}
	}

	sched, err := h.svc.RegisterPractitioner(r.Context(), practitionerID, body.Timezone)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (h *handlers) getAvailability(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerId")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	sched, err := h.svc.GetSchedule(r.Context(), practitionerID)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (h *handlers) putAvailability(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerId")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	var body UpdateAvailabilityRequest
	if err := decodeBody(r, &body); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	sched, err := h.svc.UpdateAvailability(r.Context(), actorFrom(r), practitionerID, body.Timezone, body.Rules)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerId")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	q := r.URL.Query()
	date, err := time.Parse(time.DateOnly, q.Get("date"))
	if err != nil {
		writeAppError(w, r, h.log, apperr.Validation("date must be YYYY-MM-DD"))
		return
	}
	minutes, err := strconv.Atoi(q.Get("durationMinutes"))
	if err != nil {
		writeAppError(w, r, h.log, apperr.Validation("durationMinutes must be an integer"))
		return
	}

	seq, err := h.svc.ListAvailableSlots(r.Context(), practitionerID, date, minutes)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	resp := SlotsResponse{
		PractitionerID:  practitionerID,
		Date:            date.Format(time.DateOnly),
		DurationMinutes: minutes,
		Slots:           []scheduler.Window{},
	}
	for win := range seq {
		resp.Slots = append(resp.Slots, win)
	}
	writeJSON(w, http.StatusOK, resp)
}

// revokeSession logs the caller's current token out and closes the live
// notification streams opened with it.
func (h *handlers) revokeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok || h.revoked == nil {
		writeAppError(w, r, h.log, apperr.Unauthorized("no revocable session"))
		return
	}
	if err := h.revoked.Revoke(r.Context(), sess.ID, sess.ExpiresAt); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	if h.onRevoke != nil {
		h.onRevoke(sess.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}
