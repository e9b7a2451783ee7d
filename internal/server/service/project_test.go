package service

import (
	"context"
	"errors"
	"testing"
)

func TestProjectCreateValidation(t *testing.T) {
	svc := NewProjects(nil) // validation fails before the repository is touched

	longString := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = 'x'
		}
		return string(b)
	}

	cases := []struct {
		name string
		in   CreateProjectInput
	}{
		{"missing title", CreateProjectInput{Description: "d", Location: "l"}},
		{"title too long", CreateProjectInput{Title: longString(201), Description: "d", Location: "l"}},
		{"missing description", CreateProjectInput{Title: "t", Location: "l"}},
		{"missing location", CreateProjectInput{Title: "t", Description: "d"}},
		{"unknown status", CreateProjectInput{Title: "t", Description: "d", Location: "l", Status: "archived"}},
		{"bad target amount", CreateProjectInput{Title: "t", Description: "d", Location: "l", TargetAmount: "-1"}},
		{"relative image url", CreateProjectInput{Title: "t", Description: "d", Location: "l", ImageURL: "/img.png"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.in); !errors.Is(err, ErrValidation) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestProjectUpdateValidation(t *testing.T) {
	svc := NewProjects(nil)
	bad := "archived"

	t.Run("malformed id", func(t *testing.T) {
		if _, err := svc.Update(context.Background(), "not-a-uuid", UpdateProjectInput{}); !errors.Is(err, ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.Update(context.Background(),
			"7f6c2f6e-7c9a-4a1e-9f9a-2b3c4d5e6f70",
			UpdateProjectInput{Status: &bad})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}
	})
}

func TestValidateImageURL(t *testing.T) {
	valid := []string{
		"https://cdn.tap4impact.org/projects/radios.jpg",
		"http://example.com/a.png",
	}
	for _, u := range valid {
		if err := validateImageURL(u); err != nil {
			t.Errorf("validateImageURL(%q) failed: %v", u, err)
		}
	}

	bad := []string{"ftp://example.com/a.png", "/relative.png", "not a url"}
	for _, u := range bad {
		if err := validateImageURL(u); err == nil {
			t.Errorf("validateImageURL(%q) accepted", u)
		}
	}
}

func TestUserCreateValidation(t *testing.T) {
	svc := NewUsers(nil)

	t.Run("short username", func(t *testing.T) {
		if _, err := svc.Create(context.Background(), "ab", "longenoughpassword"); !errors.Is(err, ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}
	})

	t.Run("short password", func(t *testing.T) {
		if _, err := svc.Create(context.Background(), "admin", "short"); !errors.Is(err, ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}
	})
}
