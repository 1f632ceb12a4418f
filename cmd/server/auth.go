package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"carevault/internal/store"
	"carevault/pkg/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ctxKey int

const claimsKey ctxKey = iota

// authClaims is the verified identity attached to each request.
// ProfileID is the doctor_id or patient_id matching UserType.
type authClaims struct {
	UserID    string
	UserType  string
	ProfileID string
}

func (a *app) registerAuthRoutes(api chi.Router) {
	api.Route("/auth", func(auth chi.Router) {
		auth.Post("/register", a.handleRegister)
		auth.Post("/login", a.handleLogin)
		auth.Get("/verify-token", a.handleVerifyToken)

		auth.Group(func(priv chi.Router) {
			priv.Use(a.authRequired)
			priv.Post("/change-password", a.handleChangePassword)
			priv.Put("/profile", a.handleUpdateProfile)
		})
	})
}

func (a *app) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		UserType string `json:"user_type"`
		Phone    string `json:"phone"`

		// Doctor profile.
		Specialization    string `json:"specialization"`
		LicenseNumber     string `json:"license_number"`
		Hospital          string `json:"hospital"`
		Bio               string `json:"bio"`
		YearsOfExperience int    `json:"years_of_experience"`

		// Patient profile.
		DateOfBirth       string `json:"date_of_birth"`
		BloodType         string `json:"blood_type"`
		Allergies         string `json:"allergies"`
		EmergencyContact  string `json:"emergency_contact"`
		MedicalHistory    string `json:"medical_history"`
		InsuranceProvider string `json:"insurance_provider"`
		InsuranceID       string `json:"insurance_id"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || strings.TrimSpace(req.Password) == "" || strings.TrimSpace(req.FullName) == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "email, password and full_name are required", nil)
		return
	}
	if req.UserType != store.UserTypeDoctor && req.UserType != store.UserTypePatient {
		httpx.WriteError(w, 400, "BAD_REQUEST", "user_type must be doctor or patient", nil)
		return
	}
	if len(req.Password) < 8 {
		httpx.WriteError(w, 400, "WEAK_PASSWORD", "password must be at least 8 characters", nil)
		return
	}
	if _, err := a.store.GetUserByEmail(r.Context(), email); err == nil {
		httpx.WriteError(w, 409, "EMAIL_TAKEN", "an account with this email already exists", nil)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}

	hash, err := store.HashPassword(req.Password)
	if err != nil {
		httpx.WriteError(w, 500, "HASH_ERROR", err.Error(), nil)
		return
	}
	usr := store.User{
		UserID:       "usr_" + uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		UserType:     req.UserType,
		Phone:        strings.TrimSpace(req.Phone),
	}

	var profileID string
	switch req.UserType {
	case store.UserTypeDoctor:
		doc := store.Doctor{
			DoctorID:          "doc_" + uuid.NewString(),
			UserID:            usr.UserID,
			Specialization:    strings.TrimSpace(req.Specialization),
			LicenseNumber:     strings.TrimSpace(req.LicenseNumber),
			Hospital:          strings.TrimSpace(req.Hospital),
			Bio:               strings.TrimSpace(req.Bio),
			YearsOfExperience: req.YearsOfExperience,
		}
		if err := a.store.CreateDoctorAccount(r.Context(), usr, doc); err != nil {
			httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
			return
		}
		profileID = doc.DoctorID
	case store.UserTypePatient:
		pat := store.Patient{
			PatientID:         "pat_" + uuid.NewString(),
			UserID:            usr.UserID,
			BloodType:         strings.TrimSpace(req.BloodType),
			Allergies:         strings.TrimSpace(req.Allergies),
			EmergencyContact:  strings.TrimSpace(req.EmergencyContact),
			MedicalHistory:    strings.TrimSpace(req.MedicalHistory),
			InsuranceProvider: strings.TrimSpace(req.InsuranceProvider),
			InsuranceID:       strings.TrimSpace(req.InsuranceID),
		}
		if dob := strings.TrimSpace(req.DateOfBirth); dob != "" {
			t, err := time.Parse("2006-01-02", dob)
			if err != nil {
				httpx.WriteError(w, 400, "BAD_REQUEST", "date_of_birth must be YYYY-MM-DD", nil)
				return
			}
			pat.DateOfBirth = &t
		}
		if err := a.store.CreatePatientAccount(r.Context(), usr, pat); err != nil {
			httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
			return
		}
		profileID = pat.PatientID
	}

	token, expiresAt, err := a.issueToken(usr, profileID)
	if err != nil {
		httpx.WriteError(w, 500, "TOKEN_ERROR", err.Error(), nil)
		return
	}
	httpx.OK(w, 201, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
		"user":       usr,
		"profile_id": profileID,
	})
}

func (a *app) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "email and password are required", nil)
		return
	}
	if !a.loginLimiter.Allow("login:"+clientIPFromRequest(r)+":"+email, time.Now().UTC()) {
		httpx.WriteError(w, 429, "RATE_LIMITED", "too many login attempts", nil)
		return
	}

	usr, err := a.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, 401, "INVALID_CREDENTIALS", "email or password is incorrect", nil)
			return
		}
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	if !store.CheckPassword(usr.PasswordHash, req.Password) {
		httpx.WriteError(w, 401, "INVALID_CREDENTIALS", "email or password is incorrect", nil)
		return
	}

	profileID, err := a.profileIDFor(r.Context(), usr)
	if err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	_ = a.store.TouchLastLogin(r.Context(), usr.UserID, time.Now().UTC())

	token, expiresAt, err := a.issueToken(usr, profileID)
	if err != nil {
		httpx.WriteError(w, 500, "TOKEN_ERROR", err.Error(), nil)
		return
	}
	httpx.OK(w, 200, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
		"user":       usr,
		"profile_id": profileID,
	})
}

func (a *app) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	claims, err := a.parseToken(r)
	if err != nil {
		httpx.WriteError(w, 401, "INVALID_TOKEN", err.Error(), nil)
		return
	}
	httpx.OK(w, 200, map[string]any{
		"valid":      true,
		"user_id":    claims.UserID,
		"user_type":  claims.UserType,
		"profile_id": claims.ProfileID,
	})
}

func (a *app) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if len(req.NewPassword) < 8 {
		httpx.WriteError(w, 400, "WEAK_PASSWORD", "new password must be at least 8 characters", nil)
		return
	}
	usr, err := a.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	if !store.CheckPassword(usr.PasswordHash, req.CurrentPassword) {
		httpx.WriteError(w, 401, "INVALID_CREDENTIALS", "current password is incorrect", nil)
		return
	}
	hash, err := store.HashPassword(req.NewPassword)
	if err != nil {
		httpx.WriteError(w, 500, "HASH_ERROR", err.Error(), nil)
		return
	}
	if err := a.store.UpdatePassword(r.Context(), claims.UserID, hash); err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	httpx.OK(w, 200, map[string]any{"changed": true})
}

func (a *app) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var req struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if err := a.store.UpdateProfile(r.Context(), claims.UserID, strings.TrimSpace(req.FullName), strings.TrimSpace(req.Phone)); err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	usr, err := a.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	httpx.OK(w, 200, map[string]any{"user": usr})
}

func (a *app) profileIDFor(ctx context.Context, usr store.User) (string, error) {
	switch usr.UserType {
	case store.UserTypeDoctor:
		doc, err := a.store.GetDoctorByUserID(ctx, usr.UserID)
		if err != nil {
			return "", err
		}
		return doc.DoctorID, nil
	default:
		pat, err := a.store.GetPatientByUserID(ctx, usr.UserID)
		if err != nil {
			return "", err
		}
		return pat.PatientID, nil
	}
}

func (a *app) issueToken(usr store.User, profileID string) (string, time.Time, error) {
	expiresAt := time.Now().UTC().Add(a.cfg.TokenTTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        usr.UserID,
		"user_type":  usr.UserType,
		"profile_id": profileID,
		"iat":        time.Now().UTC().Unix(),
		"exp":        expiresAt.Unix(),
	})
	signed, err := tok.SignedString([]byte(a.cfg.JWTSecret))
	return signed, expiresAt, err
}

func (a *app) parseToken(r *http.Request) (authClaims, error) {
	raw, ok := parseBearer(r.Header.Get("Authorization"))
	if !ok {
		return authClaims{}, errors.New("bearer token required")
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(a.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return authClaims{}, err
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return authClaims{}, errors.New("unexpected token claims")
	}
	sub, _ := mc["sub"].(string)
	userType, _ := mc["user_type"].(string)
	profileID, _ := mc["profile_id"].(string)
	if sub == "" || userType == "" || profileID == "" {
		return authClaims{}, errors.New("token is missing identity claims")
	}
	return authClaims{UserID: sub, UserType: userType, ProfileID: profileID}, nil
}

func (a *app) authRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.parseToken(r)
		if err != nil {
			httpx.WriteError(w, 401, "UNAUTHORIZED", err.Error(), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func claimsFrom(r *http.Request) authClaims {
	claims, _ := r.Context().Value(claimsKey).(authClaims)
	return claims
}

// requireDoctor rejects the request unless the caller is a doctor.
func requireDoctor(w http.ResponseWriter, claims authClaims) bool {
	if claims.UserType != store.UserTypeDoctor {
		httpx.WriteError(w, 403, "DOCTORS_ONLY", "this operation requires a doctor account", nil)
		return false
	}
	return true
}

func parseBearer(authorization string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(strings.TrimSpace(authorization), prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(authorization), prefix))
	if tok == "" {
		return "", false
	}
	return tok, true
}

type fixedWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	byKey  map[string]windowState
}

type windowState struct {
	start time.Time
	count int
}

func newFixedWindowLimiter(limit int, window time.Duration) *fixedWindowLimiter {
	return &fixedWindowLimiter{
		limit:  limit,
		window: window,
		byKey:  map[string]windowState{},
	}
}

func (l *fixedWindowLimiter) Allow(key string, now time.Time) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	if key == "" {
		key = "anonymous"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.byKey[key]
	if cur.start.IsZero() || now.Sub(cur.start) >= l.window {
		l.byKey[key] = windowState{start: now, count: 1}
		return true
	}
	if cur.count >= l.limit {
		return false
	}
	cur.count++
	l.byKey[key] = cur
	return true
}

func clientIPFromRequest(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if v := strings.TrimSpace(parts[0]); v != "" {
			return v
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}
	return strings.TrimSpace(r.RemoteAddr)
}
