package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"carevault/internal/store"
	"carevault/pkg/httpx"

	"github.com/go-chi/chi/v5"
)

func (a *app) registerPatientRoutes(api chi.Router) {
	api.Route("/patients", func(pr chi.Router) {
		pr.Get("/", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			if !requireDoctor(w, claims) {
				return
			}
			patients, err := a.store.ListPatients(r.Context())
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			out := make([]map[string]any, 0, len(patients))
			for _, p := range patients {
				out = append(out, patientView(p))
			}
			httpx.OK(w, 200, map[string]any{"patients": out})
		})

		pr.Get("/{patient_id}", func(w http.ResponseWriter, r *http.Request) {
			pat, ok := a.loadAccessiblePatient(w, r)
			if !ok {
				return
			}
			httpx.OK(w, 200, map[string]any{"patient": patientView(pat)})
		})

		pr.Get("/{patient_id}/records", func(w http.ResponseWriter, r *http.Request) {
			pat, ok := a.loadAccessiblePatient(w, r)
			if !ok {
				return
			}
			records, err := a.store.ListRecordsByPatient(r.Context(), pat.PatientID)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"records": records, "count": len(records)})
		})

		pr.Get("/{patient_id}/appointments", func(w http.ResponseWriter, r *http.Request) {
			pat, ok := a.loadAccessiblePatient(w, r)
			if !ok {
				return
			}
			appts, err := a.store.ListAppointmentsByPatient(r.Context(), pat.PatientID)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"appointments": appts, "count": len(appts)})
		})

		pr.Get("/{patient_id}/upcoming-appointments", func(w http.ResponseWriter, r *http.Request) {
			pat, ok := a.loadAccessiblePatient(w, r)
			if !ok {
				return
			}
			limit := queryIntDefault(r, "limit", 5)
			appts, err := a.store.UpcomingAppointments(r.Context(), "patient_id", pat.PatientID, time.Now().UTC(), limit)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"appointments": appts, "count": len(appts)})
		})
	})
}

// loadAccessiblePatient fetches the path patient and enforces the access
// rule shared by every patient route: doctors see any patient, patients
// see only themselves.
func (a *app) loadAccessiblePatient(w http.ResponseWriter, r *http.Request) (store.Patient, bool) {
	claims := claimsFrom(r)
	patientID := chi.URLParam(r, "patient_id")
	if claims.UserType == store.UserTypePatient && claims.ProfileID != patientID {
		httpx.WriteError(w, 403, "FORBIDDEN", "patients can only access their own data", nil)
		return store.Patient{}, false
	}
	pat, err := a.store.GetPatient(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, 404, "NOT_FOUND", "patient not found", nil)
			return store.Patient{}, false
		}
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return store.Patient{}, false
	}
	return pat, true
}

func patientView(p store.Patient) map[string]any {
	view := map[string]any{
		"patient_id":         p.PatientID,
		"user_id":            p.UserID,
		"full_name":          p.FullName,
		"email":              p.Email,
		"blood_type":         p.BloodType,
		"allergies":          p.Allergies,
		"emergency_contact":  p.EmergencyContact,
		"medical_history":    p.MedicalHistory,
		"insurance_provider": p.InsuranceProvider,
		"insurance_id":       p.InsuranceID,
	}
	if p.DateOfBirth != nil {
		view["date_of_birth"] = p.DateOfBirth.Format("2006-01-02")
	}
	if age := p.Age(time.Now().UTC()); age != nil {
		view["age"] = *age
	}
	return view
}

func queryIntDefault(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
