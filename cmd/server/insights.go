package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"carevault/internal/insight"
	"carevault/internal/store"
	"carevault/pkg/httpx"

	"github.com/go-chi/chi/v5"
)

func (a *app) registerInsightRoutes(api chi.Router) {
	api.Route("/insights", func(ir chi.Router) {
		ir.Post("/anomaly-detection", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			if !requireDoctor(w, claims) {
				return
			}
			pat, snapshots, ok := a.loadPatientSnapshots(w, r)
			if !ok {
				return
			}
			findings := insight.Scan(snapshots)
			httpx.OK(w, 200, map[string]any{
				"patient_id":       pat.PatientID,
				"records_analyzed": len(snapshots),
				"findings":         findings,
				"count":            len(findings),
			})
		})

		ir.Post("/health-prediction", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			pat, snapshots, ok := a.loadPatientSnapshots(w, r)
			if !ok {
				return
			}
			if claims.UserType == store.UserTypePatient && claims.ProfileID != pat.PatientID {
				httpx.WriteError(w, 403, "FORBIDDEN", "patients can only run predictions on their own history", nil)
				return
			}
			assessment := insight.Predict(snapshots, pat.Age(time.Now().UTC()))
			httpx.OK(w, 200, map[string]any{
				"patient_id":       pat.PatientID,
				"records_analyzed": len(snapshots),
				"assessment":       assessment,
			})
		})
	})
}

// loadPatientSnapshots reads the patient_id from the request body and
// returns that patient's history as normalized snapshots.
func (a *app) loadPatientSnapshots(w http.ResponseWriter, r *http.Request) (store.Patient, []insight.Snapshot, bool) {
	var req struct {
		PatientID string `json:"patient_id"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return store.Patient{}, nil, false
	}
	if strings.TrimSpace(req.PatientID) == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "patient_id is required", nil)
		return store.Patient{}, nil, false
	}
	pat, err := a.store.GetPatient(r.Context(), strings.TrimSpace(req.PatientID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, 404, "NOT_FOUND", "patient not found", nil)
			return store.Patient{}, nil, false
		}
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return store.Patient{}, nil, false
	}
	records, err := a.store.ListRecordsByPatient(r.Context(), pat.PatientID)
	if err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return store.Patient{}, nil, false
	}
	snapshots := make([]insight.Snapshot, 0, len(records))
	for _, rec := range records {
		snapshots = append(snapshots, snapshotFromRecord(rec))
	}
	return pat, snapshots, true
}

func snapshotFromRecord(rec store.MedicalRecord) insight.Snapshot {
	snap := insight.Snapshot{
		ID:          rec.RecordID,
		Title:       rec.Title,
		Type:        rec.RecordType,
		Description: rec.Description,
		Metadata:    rec.Metadata,
	}
	if rec.RecordDate != nil {
		snap.Date = rec.RecordDate.UTC().Format(time.RFC3339)
	}
	return snap
}
