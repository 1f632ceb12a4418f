package main

import (
	"net/http"
	"time"

	"carevault/internal/store"
	"carevault/pkg/httpx"

	"github.com/go-chi/chi/v5"
)

func (a *app) registerAnalyticsRoutes(api chi.Router) {
	api.Route("/analytics", func(an chi.Router) {
		an.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			now := time.Now().UTC()

			var (
				stats store.DashboardStats
				err   error
			)
			if claims.UserType == store.UserTypeDoctor {
				stats, err = a.store.DoctorDashboard(r.Context(), claims.ProfileID, now)
			} else {
				stats, err = a.store.PatientDashboard(r.Context(), claims.ProfileID, now)
			}
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			unread, err := a.store.CountUnreadNotifications(r.Context(), claims.UserID)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}

			body := map[string]any{
				"stats":                stats,
				"unread_notifications": unread,
			}
			if claims.UserType == store.UserTypeDoctor {
				dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
				today, err := a.store.DoctorAppointmentsOn(r.Context(), claims.ProfileID, dayStart, dayStart.AddDate(0, 0, 1))
				if err != nil {
					httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
					return
				}
				body["todays_appointments"] = today
			}
			httpx.OK(w, 200, body)
		})

		an.Get("/appointments", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			column := ownerColumnFor(claims)

			byStatus, err := a.store.AppointmentsByStatus(r.Context(), column, claims.ProfileID)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			byMonth, err := a.store.AppointmentsByMonth(r.Context(), column, claims.ProfileID, time.Now().UTC())
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{
				"by_status": byStatus,
				"by_month":  byMonth,
			})
		})

		an.Get("/records", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			byType, err := a.store.RecordsByType(r.Context(), ownerColumnFor(claims), claims.ProfileID)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"by_type": byType})
		})
	})
}

func ownerColumnFor(claims authClaims) string {
	if claims.UserType == store.UserTypeDoctor {
		return "doctor_id"
	}
	return "patient_id"
}
