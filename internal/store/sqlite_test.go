package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestSQLite_Create(t *testing.T) {
	t.Run("returns_id_of_stored_snippet", func(t *testing.T) {
		s := openTestStore(t)
		ctx := context.Background()

		id, err := s.Create(ctx, "Hello", "console.log('hi')")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got.Title != "Hello" || got.Code != "console.log('hi')" {
			t.Errorf("got %+v", got)
		}
		if got.CreatedAt.IsZero() || !got.CreatedAt.Equal(got.UpdatedAt) {
			t.Errorf("timestamps = %v, %v", got.CreatedAt, got.UpdatedAt)
		}
	})

	t.Run("keeps_whitespace_only_fields", func(t *testing.T) {
		s := openTestStore(t)
		ctx := context.Background()

		id, err := s.Create(ctx, "   ", "\n")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got.Title != "   " || got.Code != "\n" {
			t.Errorf("got title %q code %q", got.Title, got.Code)
		}
	})

	tests := []struct {
		name    string
		title   string
		code    string
		message string
	}{
		{"rejects_missing_title", "", "x", "Title is required"},
		{"rejects_missing_code", "t", "", "Code is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)

			_, err := s.Create(context.Background(), tt.title, tt.code)

			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want %v", err, ErrInvalid)
			}
			if err.Error() != tt.message {
				t.Errorf("message = %q, want %q", err.Error(), tt.message)
			}
		})
	}
}

func TestSQLite_Get(t *testing.T) {
	t.Run("returns_not_found_for_missing_id", func(t *testing.T) {
		s := openTestStore(t)

		_, err := s.Get(context.Background(), 42)

		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want %v", err, ErrNotFound)
		}
	})
}

func TestSQLite_Update(t *testing.T) {
	t.Run("replaces_code_and_title", func(t *testing.T) {
		s := openTestStore(t)
		ctx := context.Background()
		id, _ := s.Create(ctx, "Old", "1")

		if err := s.Update(ctx, id, "2", "New"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, _ := s.Get(ctx, id)
		if got.Title != "New" || got.Code != "2" {
			t.Errorf("got %+v", got)
		}
		if !got.UpdatedAt.After(got.CreatedAt) {
			t.Errorf("UpdatedAt %v not after CreatedAt %v", got.UpdatedAt, got.CreatedAt)
		}
	})

	t.Run("keeps_title_when_empty", func(t *testing.T) {
		s := openTestStore(t)
		ctx := context.Background()
		id, _ := s.Create(ctx, "Keep", "1")

		if err := s.Update(ctx, id, "2", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, _ := s.Get(ctx, id)
		if got.Title != "Keep" {
			t.Errorf("Title = %q, want %q", got.Title, "Keep")
		}
	})

	t.Run("rejects_empty_code", func(t *testing.T) {
		s := openTestStore(t)
		ctx := context.Background()
		id, _ := s.Create(ctx, "T", "1")

		err := s.Update(ctx, id, " ", "T")

		if !errors.Is(err, ErrInvalid) {
			t.Errorf("err = %v, want %v", err, ErrInvalid)
		}
	})

	t.Run("returns_not_found_for_missing_id", func(t *testing.T) {
		s := openTestStore(t)

		err := s.Update(context.Background(), 7, "x", "y")

		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want %v", err, ErrNotFound)
		}
	})
}

func TestSQLite_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, _ := s.Create(ctx, "T", "1")

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete err = %v, want %v", err, ErrNotFound)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() err = %v, want %v", err, ErrNotFound)
	}
}

func TestSQLite_List(t *testing.T) {
	t.Run("returns_empty_for_new_store", func(t *testing.T) {
		s := openTestStore(t)

		got, err := s.List(context.Background())

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d snippets, want 0", len(got))
		}
	})

	t.Run("orders_by_most_recent_update", func(t *testing.T) {
		s := openTestStore(t)
		ctx := context.Background()
		first, _ := s.Create(ctx, "first", "1")
		second, _ := s.Create(ctx, "second", "2")
		_ = s.Update(ctx, first, "1b", "")

		got, err := s.List(ctx)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0].ID != first || got[1].ID != second {
			t.Errorf("order = %+v", got)
		}
	})
}

func TestOpenSQLite_persists_to_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snippets.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	id, err := s.Create(ctx, "T", "code")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	s.Close()

	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Code != "code" {
		t.Errorf("Code = %q", got.Code)
	}
}

func TestSnippet_Preview(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"keeps_short_code", "print(1)", "print(1)"},
		{"keeps_exactly_100_chars", strings.Repeat("a", 100), strings.Repeat("a", 100)},
		{"truncates_long_code", strings.Repeat("b", 101), strings.Repeat("b", 100) + "..."},
		{"counts_runes", strings.Repeat("é", 120), strings.Repeat("é", 100) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Snippet{Code: tt.code}).Preview(); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}
