package main

import (
	"errors"
	"net/http"

	"carevault/internal/store"
	"carevault/pkg/httpx"

	"github.com/go-chi/chi/v5"
)

func (a *app) registerNotificationRoutes(api chi.Router) {
	api.Route("/notifications", func(nr chi.Router) {
		nr.Get("/", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			unreadOnly := r.URL.Query().Get("unread") == "true"
			limit := queryIntDefault(r, "limit", 50)
			notes, err := a.store.ListNotifications(r.Context(), claims.UserID, unreadOnly, limit)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			unread, err := a.store.CountUnreadNotifications(r.Context(), claims.UserID)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{
				"notifications": notes,
				"count":         len(notes),
				"unread":        unread,
			})
		})

		nr.Post("/{notification_id}/read", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			id := chi.URLParam(r, "notification_id")
			if err := a.store.MarkNotificationRead(r.Context(), id, claims.UserID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					httpx.WriteError(w, 404, "NOT_FOUND", "notification not found", nil)
					return
				}
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"notification_id": id, "read": true})
		})

		nr.Post("/read-all", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			n, err := a.store.MarkAllNotificationsRead(r.Context(), claims.UserID)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"marked": n})
		})
	})
}
