package main

import (
	"errors"
	"net/http"
	"time"

	"carevault/internal/store"
	"carevault/pkg/httpx"

	"github.com/go-chi/chi/v5"
)

// Working hours for availability slotting.
const (
	workdayStartHour = 9
	workdayEndHour   = 17
	slotMinutes      = 30
)

func (a *app) registerDoctorRoutes(api chi.Router) {
	api.Route("/doctors", func(dr chi.Router) {
		dr.Get("/", func(w http.ResponseWriter, r *http.Request) {
			doctors, err := a.store.ListDoctors(r.Context())
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"doctors": doctors, "count": len(doctors)})
		})

		dr.Get("/{doctor_id}", func(w http.ResponseWriter, r *http.Request) {
			doc, ok := a.loadDoctor(w, r)
			if !ok {
				return
			}
			httpx.OK(w, 200, map[string]any{"doctor": doc})
		})

		dr.Get("/{doctor_id}/appointments", func(w http.ResponseWriter, r *http.Request) {
			doc, ok := a.requireSelfDoctor(w, r)
			if !ok {
				return
			}
			appts, err := a.store.ListAppointmentsByDoctor(r.Context(), doc.DoctorID)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"appointments": appts, "count": len(appts)})
		})

		dr.Get("/{doctor_id}/upcoming-appointments", func(w http.ResponseWriter, r *http.Request) {
			doc, ok := a.requireSelfDoctor(w, r)
			if !ok {
				return
			}
			limit := queryIntDefault(r, "limit", 5)
			appts, err := a.store.UpcomingAppointments(r.Context(), "doctor_id", doc.DoctorID, time.Now().UTC(), limit)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"appointments": appts, "count": len(appts)})
		})

		dr.Get("/{doctor_id}/availability", func(w http.ResponseWriter, r *http.Request) {
			doc, ok := a.loadDoctor(w, r)
			if !ok {
				return
			}
			day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
			if err != nil {
				httpx.WriteError(w, 400, "BAD_REQUEST", "date query parameter must be YYYY-MM-DD", nil)
				return
			}
			dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
			booked, err := a.store.DoctorAppointmentsOn(r.Context(), doc.DoctorID, dayStart, dayStart.AddDate(0, 0, 1))
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			slots := availableSlots(dayStart, booked)
			httpx.OK(w, 200, map[string]any{
				"doctor_id": doc.DoctorID,
				"date":      day.Format("2006-01-02"),
				"slots":     slots,
				"count":     len(slots),
			})
		})
	})
}

func (a *app) loadDoctor(w http.ResponseWriter, r *http.Request) (store.Doctor, bool) {
	doc, err := a.store.GetDoctor(r.Context(), chi.URLParam(r, "doctor_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, 404, "NOT_FOUND", "doctor not found", nil)
			return store.Doctor{}, false
		}
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return store.Doctor{}, false
	}
	return doc, true
}

// requireSelfDoctor is loadDoctor plus the rule that a doctor's schedule
// is visible only to that doctor.
func (a *app) requireSelfDoctor(w http.ResponseWriter, r *http.Request) (store.Doctor, bool) {
	claims := claimsFrom(r)
	if !requireDoctor(w, claims) {
		return store.Doctor{}, false
	}
	if claims.ProfileID != chi.URLParam(r, "doctor_id") {
		httpx.WriteError(w, 403, "FORBIDDEN", "doctors can only access their own schedule", nil)
		return store.Doctor{}, false
	}
	return a.loadDoctor(w, r)
}

// availableSlots returns the free slot start times ("HH:MM") within
// working hours, skipping any slot that overlaps a non-cancelled
// appointment.
func availableSlots(dayStart time.Time, booked []store.Appointment) []string {
	slots := []string{}
	slot := dayStart.Add(workdayStartHour * time.Hour)
	end := dayStart.Add(workdayEndHour * time.Hour)
	for slot.Before(end) {
		slotEnd := slot.Add(slotMinutes * time.Minute)
		free := true
		for _, appt := range booked {
			if appt.Status == store.AppointmentCancelled {
				continue
			}
			apptEnd := appt.ScheduledAt.Add(time.Duration(appt.Duration) * time.Minute)
			if slot.Before(apptEnd) && appt.ScheduledAt.Before(slotEnd) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, slot.Format("15:04"))
		}
		slot = slotEnd
	}
	return slots
}
