package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name  string
		title string
		lang  Language
		want  string
	}{
		{"uses_title_and_java_extension", "foo", LanguageJava, "foo.java"},
		{"falls_back_to_snippet", "", LanguageJavaScript, "snippet.js"},
		{"uses_python_extension", "script", LanguagePython, "script.py"},
		{"uses_cpp_extension", "main", LanguageCPP, "main.cpp"},
		{"keeps_spaces", "hello world", LanguageJavaScript, "hello world.js"},
		{"replaces_path_separators", "a/b\\c", LanguagePython, "a-b-c.py"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(tt.title, tt.lang); got != tt.want {
				t.Errorf("Filename(%q, %q) = %q, want %q", tt.title, tt.lang, got, tt.want)
			}
		})
	}
}

func TestSession_Download(t *testing.T) {
	t.Run("writes_source_using_export_name", func(t *testing.T) {
		dir := t.TempDir()
		s := defaultSession(t, nil)
		s.SetTitle("foo")
		s.SetSource("class Foo {}")
		_ = s.Select(context.Background(), LanguageJava)

		path, err := s.Download(dir)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if path != filepath.Join(dir, "foo.java") {
			t.Errorf("path = %q", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error: %v", err)
		}
		if string(data) != "class Foo {}" {
			t.Errorf("contents = %q", string(data))
		}
	})

	t.Run("does_not_touch_run_state", func(t *testing.T) {
		s := defaultSession(t, nil)
		s.SetTitle("")

		name, _ := s.Export()

		if name != "snippet.js" {
			t.Errorf("name = %q, want %q", name, "snippet.js")
		}
		if state := s.Snapshot(); state.Running || state.Output != "" {
			t.Errorf("state changed: %+v", state)
		}
	})

	t.Run("returns_error_for_missing_directory", func(t *testing.T) {
		s := defaultSession(t, nil)

		_, err := s.Download(filepath.Join(t.TempDir(), "missing"))

		if err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestSession_WriteTo(t *testing.T) {
	s := defaultSession(t, nil)
	s.SetSource("print('hi')")

	var buf strings.Builder
	n, err := s.WriteTo(&buf)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "print('hi')" || n != int64(len("print('hi')")) {
		t.Errorf("wrote %d bytes %q", n, buf.String())
	}
}
