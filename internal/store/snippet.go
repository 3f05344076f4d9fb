// Package store persists snippet records.
package store

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"
)

var (
	// ErrNotFound is returned when no snippet has the requested id.
	ErrNotFound = errors.New("snippet not found")

	// ErrInvalid is matched by every ValidationError.
	ErrInvalid = errors.New("invalid snippet")
)

const previewLength = 100

// Snippet is a stored code snippet.
type Snippet struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preview returns the first 100 characters of the code, with "..." appended
// when it was truncated.
func (s Snippet) Preview() string {
	if utf8.RuneCountInString(s.Code) <= previewLength {
		return s.Code
	}
	runes := []rune(s.Code)
	return string(runes[:previewLength]) + "..."
}

// ValidationError describes a rejected snippet field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Validate checks the fields required to create a snippet. Only empty
// values are rejected; whitespace is stored as given.
func Validate(title, code string) error {
	if title == "" {
		return &ValidationError{Message: "Title is required"}
	}
	return validateCode(code)
}

func validateCode(code string) error {
	if code == "" {
		return &ValidationError{Message: "Code is required"}
	}
	return nil
}

// Store is the record store used by the CLI and HTTP surface.
type Store interface {
	Create(ctx context.Context, title, code string) (int64, error)
	Get(ctx context.Context, id int64) (*Snippet, error)
	// Update replaces the code, and the title when it is non-empty.
	Update(ctx context.Context, id int64, code, title string) error
	Delete(ctx context.Context, id int64) error
	// List returns every snippet, most recently updated first.
	List(ctx context.Context) ([]Snippet, error)
	Close() error
}
