package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tap4impact/internal/server/database"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the original deployment's work factor.
const bcryptCost = 12

// Users manages admin accounts.
type Users struct {
	repo *database.Repository
}

// NewUsers creates a new user service.
func NewUsers(repo *database.Repository) *Users {
	return &Users{repo: repo}
}

// ErrUsernameTaken is re-exported so handlers need not import the database
// package for this case.
var ErrUsernameTaken = database.ErrUsernameTaken

// Create hashes the password and stores a new admin user.
func (u *Users) Create(ctx context.Context, username, password string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 50 {
		return nil, invalid("username", "must be 3-50 characters")
	}
	if len(password) < 8 {
		return nil, invalid("password", "must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := u.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("admin user created", "username", username)
	return user, nil
}

// VerifyPassword checks a username/password pair. It returns the user on
// success and nil without error on a failed match, so callers cannot
// distinguish a missing user from a wrong password.
func (u *Users) VerifyPassword(ctx context.Context, username, password string) (*database.User, error) {
	user, err := u.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			// Burn a comparison anyway to keep timing uniform.
			bcrypt.CompareHashAndPassword([]byte("$2a$12$invalidinvalidinvalidinvalidinvalidinval"), []byte(password))
			return nil, nil
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return user, nil
}
