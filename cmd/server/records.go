package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"carevault/internal/integrity"
	"carevault/internal/store"
	"carevault/pkg/httpx"
	"carevault/pkg/ledger"
	"carevault/pkg/recordhash"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (a *app) registerRecordRoutes(api chi.Router) {
	api.Route("/records", func(rr chi.Router) {
		rr.Get("/", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			var (
				records []store.MedicalRecord
				err     error
			)
			if claims.UserType == store.UserTypeDoctor {
				records, err = a.store.ListRecordsByDoctor(r.Context(), claims.ProfileID)
			} else {
				records, err = a.store.ListRecordsByPatient(r.Context(), claims.ProfileID)
			}
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"records": records, "count": len(records)})
		})

		rr.Post("/", a.handleCreateRecord)
		rr.Get("/{record_id}", a.handleGetRecord)
		rr.Put("/{record_id}", a.handleUpdateRecord)
		rr.Post("/{record_id}/ledger", a.handleAnchorRecord)
		rr.Get("/{record_id}/verify", a.handleVerifyRecord)
	})
}

type recordRequest struct {
	PatientID   string         `json:"patient_id"`
	Title       string         `json:"title"`
	RecordType  string         `json:"type"`
	Description string         `json:"description"`
	Date        string         `json:"date"`
	Notes       string         `json:"notes"`
	Metadata    map[string]any `json:"metadata"`
}

func (a *app) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if !requireDoctor(w, claims) {
		return
	}
	var req recordRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.PatientID) == "" || strings.TrimSpace(req.Title) == "" ||
		strings.TrimSpace(req.RecordType) == "" || strings.TrimSpace(req.Description) == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "patient_id, title, type and description are required", nil)
		return
	}
	pat, err := a.store.GetPatient(r.Context(), strings.TrimSpace(req.PatientID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, 404, "NOT_FOUND", "patient not found", nil)
			return
		}
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	recordDate, err := parseRecordDate(req.Date)
	if err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", err.Error(), nil)
		return
	}

	a.handleIdempotentMutation(r, w, pat.PatientID, claims.ProfileID, "POST /api/records", func() (int, map[string]any, error) {
		rec := store.MedicalRecord{
			RecordID:    "rec_" + uuid.NewString(),
			PatientID:   pat.PatientID,
			DoctorID:    claims.ProfileID,
			Title:       strings.TrimSpace(req.Title),
			RecordType:  strings.TrimSpace(req.RecordType),
			Description: req.Description,
			RecordDate:  recordDate,
			Notes:       req.Notes,
			Metadata:    req.Metadata,
		}
		if err := a.store.CreateRecord(r.Context(), rec); err != nil {
			return 500, nil, err
		}
		a.notify(r, store.Notification{
			UserID:        pat.UserID,
			Title:         "New medical record",
			Message:       "A new record was added to your chart: " + rec.Title,
			Kind:          store.NotifyRecord,
			ReferenceID:   rec.RecordID,
			ReferenceType: "record",
		})
		created, err := a.store.GetRecord(r.Context(), rec.RecordID)
		if err != nil {
			return 500, nil, err
		}
		return 201, map[string]any{"request_id": httpx.NewRequestID(), "record": created}, nil
	})
}

func (a *app) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadAccessibleRecord(w, r)
	if !ok {
		return
	}
	httpx.OK(w, 200, map[string]any{"record": rec})
}

func (a *app) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if !requireDoctor(w, claims) {
		return
	}
	rec, ok := a.loadAccessibleRecord(w, r)
	if !ok {
		return
	}
	if rec.DoctorID != claims.ProfileID {
		httpx.WriteError(w, 403, "FORBIDDEN", "only the authoring doctor can update a record", nil)
		return
	}
	if rec.Anchored {
		httpx.WriteError(w, 409, "RECORD_ANCHORED", "anchored records are immutable", nil)
		return
	}
	var req recordRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Title) != "" {
		rec.Title = strings.TrimSpace(req.Title)
	}
	if strings.TrimSpace(req.RecordType) != "" {
		rec.RecordType = strings.TrimSpace(req.RecordType)
	}
	if req.Description != "" {
		rec.Description = req.Description
	}
	if req.Notes != "" {
		rec.Notes = req.Notes
	}
	if req.Metadata != nil {
		rec.Metadata = req.Metadata
	}
	if req.Date != "" {
		recordDate, err := parseRecordDate(req.Date)
		if err != nil {
			httpx.WriteError(w, 400, "BAD_REQUEST", err.Error(), nil)
			return
		}
		rec.RecordDate = recordDate
	}
	if err := a.store.UpdateRecord(r.Context(), rec); err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	updated, err := a.store.GetRecord(r.Context(), rec.RecordID)
	if err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	httpx.OK(w, 200, map[string]any{"record": updated})
}

func (a *app) handleAnchorRecord(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if !requireDoctor(w, claims) {
		return
	}
	rec, ok := a.loadAccessibleRecord(w, r)
	if !ok {
		return
	}
	if rec.DoctorID != claims.ProfileID {
		httpx.WriteError(w, 403, "FORBIDDEN", "only the authoring doctor can anchor a record", nil)
		return
	}
	var req struct {
		LedgerType string `json:"ledger_type"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	kind, err := ledger.ParseKind(req.LedgerType)
	if err != nil {
		httpx.WriteError(w, 400, "UNSUPPORTED_LEDGER", err.Error(), nil)
		return
	}

	hash := recordDigest(rec)
	anchored, err := a.coord.Store(r.Context(), hash, kind)
	if err != nil {
		switch {
		case errors.Is(err, integrity.ErrDuplicateHash):
			httpx.WriteError(w, 409, "ALREADY_ANCHORED", "this record content is already anchored", nil)
		case errors.Is(err, integrity.ErrUnsupportedLedger):
			httpx.WriteError(w, 400, "UNSUPPORTED_LEDGER", err.Error(), nil)
		case errors.Is(err, integrity.ErrSubmission):
			httpx.WriteError(w, 502, "LEDGER_ERROR", err.Error(), nil)
		default:
			httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		}
		return
	}
	if err := a.store.MarkRecordAnchored(r.Context(), rec.RecordID, anchored.TxRef); err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	pat, err := a.store.GetPatient(r.Context(), rec.PatientID)
	if err == nil {
		a.notify(r, store.Notification{
			UserID:        pat.UserID,
			Title:         "Record anchored",
			Message:       "The record \"" + rec.Title + "\" was anchored on " + string(kind),
			Kind:          store.NotifyRecord,
			ReferenceID:   rec.RecordID,
			ReferenceType: "record",
		})
	}
	httpx.OK(w, 201, map[string]any{
		"record_id":   rec.RecordID,
		"record_hash": hash,
		"ledger":      anchored,
	})
}

func (a *app) handleVerifyRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadAccessibleRecord(w, r)
	if !ok {
		return
	}
	hash := recordDigest(rec)
	verification, err := a.coord.Verify(r.Context(), hash)
	if err != nil {
		switch {
		case errors.Is(err, integrity.ErrNotFound):
			httpx.WriteError(w, 404, "NOT_ANCHORED", "this record content has no ledger anchor", nil)
		case errors.Is(err, integrity.ErrVerification):
			httpx.WriteError(w, 502, "LEDGER_ERROR", err.Error(), nil)
		default:
			httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		}
		return
	}
	httpx.OK(w, 200, map[string]any{
		"record_id":   rec.RecordID,
		"record_hash": hash,
		"verified":    verification.Verified,
		"ledger":      verification.Record,
	})
}

// loadAccessibleRecord fetches the path record; doctors can read any
// record, patients only their own.
func (a *app) loadAccessibleRecord(w http.ResponseWriter, r *http.Request) (store.MedicalRecord, bool) {
	claims := claimsFrom(r)
	rec, err := a.store.GetRecord(r.Context(), chi.URLParam(r, "record_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, 404, "NOT_FOUND", "record not found", nil)
			return store.MedicalRecord{}, false
		}
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return store.MedicalRecord{}, false
	}
	if claims.UserType == store.UserTypePatient && rec.PatientID != claims.ProfileID {
		httpx.WriteError(w, 403, "FORBIDDEN", "patients can only access their own records", nil)
		return store.MedicalRecord{}, false
	}
	return rec, true
}

// recordDigest computes the canonical content hash of a record. Anchor
// and verify both derive the hash from stored fields, so a record whose
// content never changed always verifies against its original anchor.
func recordDigest(rec store.MedicalRecord) string {
	f := recordhash.Fields{
		ID:          rec.RecordID,
		PatientID:   rec.PatientID,
		DoctorID:    rec.DoctorID,
		Title:       rec.Title,
		Type:        rec.RecordType,
		Description: rec.Description,
	}
	if rec.RecordDate != nil {
		date := rec.RecordDate.UTC().Format(time.RFC3339)
		f.Date = &date
	}
	return f.Sum()
}

func parseRecordDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("date must be YYYY-MM-DD or RFC 3339")
}

// notify inserts a notification, logging instead of failing the request
// when the insert itself fails.
func (a *app) notify(r *http.Request, n store.Notification) {
	n.NotificationID = "ntf_" + uuid.NewString()
	if err := a.store.CreateNotification(r.Context(), n); err != nil {
		a.log.Error().Err(err).Str("user_id", n.UserID).Msg("notification insert failed")
	}
}
