// Package store is the postgres persistence layer. One Store serves the
// whole service; each entity family keeps its queries in its own file.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var ErrNotFound = errors.New("store: not found")

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// User roles.
const (
	UserTypeDoctor  = "doctor"
	UserTypePatient = "patient"
)

type User struct {
	UserID       string     `json:"user_id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	UserType     string     `json:"user_type"`
	Phone        string     `json:"phone,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.DB.QueryRow(ctx, `
SELECT user_id,email,password_hash,full_name,user_type,COALESCE(phone,''),created_at,last_login
FROM users
WHERE email=lower($1)
`, email).Scan(&u.UserID, &u.Email, &u.PasswordHash, &u.FullName, &u.UserType, &u.Phone, &u.CreatedAt, &u.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	err := s.DB.QueryRow(ctx, `
SELECT user_id,email,password_hash,full_name,user_type,COALESCE(phone,''),created_at,last_login
FROM users
WHERE user_id=$1
`, userID).Scan(&u.UserID, &u.Email, &u.PasswordHash, &u.FullName, &u.UserType, &u.Phone, &u.CreatedAt, &u.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `UPDATE users SET last_login=$2 WHERE user_id=$1`, userID, at)
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.DB.Exec(ctx, `UPDATE users SET password_hash=$2 WHERE user_id=$1`, userID, passwordHash)
	return err
}

func (s *Store) UpdateProfile(ctx context.Context, userID, fullName, phone string) error {
	_, err := s.DB.Exec(ctx, `
UPDATE users SET full_name=COALESCE(NULLIF($2,''),full_name), phone=COALESCE(NULLIF($3,''),phone)
WHERE user_id=$1
`, userID, fullName, phone)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
