package service

import (
	"context"
	"os"
	"testing"

	"tap4impact/internal/server/database"

	"github.com/google/uuid"
)

// testUsers connects to the database named by TEST_DATABASE_URL and skips
// the test when it is unset.
func testUsers(t *testing.T) *Users {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewUsers(database.NewRepository(db))
}

func TestVerifyPassword(t *testing.T) {
	users := testUsers(t)
	ctx := context.Background()

	username := "admin-" + uuid.New().String()
	const password = "correct-horse-battery"
	if _, err := users.Create(ctx, username, password); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	t.Run("correct password", func(t *testing.T) {
		user, err := users.VerifyPassword(ctx, username, password)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user == nil || user.Username != username {
			t.Errorf("user = %v, want %s", user, username)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		user, err := users.VerifyPassword(ctx, username, "not-the-password")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user != nil {
			t.Error("wrong password verified")
		}
	})

	t.Run("unknown user indistinguishable from wrong password", func(t *testing.T) {
		user, err := users.VerifyPassword(ctx, "nobody-"+uuid.New().String(), password)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user != nil {
			t.Error("unknown user verified")
		}
	})
}
