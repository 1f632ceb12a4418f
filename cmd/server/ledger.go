package main

import (
	"errors"
	"net/http"
	"strings"

	"carevault/internal/integrity"
	"carevault/pkg/httpx"
	"carevault/pkg/ledger"
	"carevault/pkg/recordhash"

	"github.com/go-chi/chi/v5"
)

func (a *app) registerLedgerRoutes(api chi.Router) {
	api.Route("/ledger", func(lr chi.Router) {
		lr.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			statuses := map[string]any{}
			for kind, adapter := range a.adapters {
				st, err := adapter.Status(r.Context())
				if err != nil {
					statuses[string(kind)] = map[string]any{"connected": false, "error": err.Error()}
					continue
				}
				statuses[string(kind)] = st
			}
			httpx.OK(w, 200, map[string]any{"ledgers": statuses})
		})

		lr.Get("/records", func(w http.ResponseWriter, r *http.Request) {
			kindFilter := strings.TrimSpace(r.URL.Query().Get("type"))
			if kindFilter != "" {
				if _, err := ledger.ParseKind(kindFilter); err != nil {
					httpx.WriteError(w, 400, "UNSUPPORTED_LEDGER", err.Error(), nil)
					return
				}
			}
			records, err := a.integrity.List(r.Context(), kindFilter)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"records": records, "count": len(records)})
		})

		lr.Get("/records/{id}", func(w http.ResponseWriter, r *http.Request) {
			rec, err := a.integrity.GetByID(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				if errors.Is(err, integrity.ErrNotFound) {
					httpx.WriteError(w, 404, "NOT_FOUND", "integrity record not found", nil)
					return
				}
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"record": rec})
		})

		lr.Post("/verify", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Hash string `json:"hash"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			hash := strings.ToLower(strings.TrimSpace(req.Hash))
			if !recordhash.IsDigest(hash) {
				httpx.WriteError(w, 400, "INVALID_HASH", "hash must be a 64-char hex sha-256 digest", nil)
				return
			}
			verification, err := a.coord.Verify(r.Context(), hash)
			if err != nil {
				switch {
				case errors.Is(err, integrity.ErrNotFound):
					httpx.WriteError(w, 404, "NOT_ANCHORED", "no anchor exists for this hash", nil)
				case errors.Is(err, integrity.ErrVerification):
					httpx.WriteError(w, 502, "LEDGER_ERROR", err.Error(), nil)
				default:
					httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				}
				return
			}
			httpx.OK(w, 200, map[string]any{
				"hash":     hash,
				"verified": verification.Verified,
				"ledger":   verification.Record,
			})
		})
	})
}
