package util

import (
	"slices"
	"testing"
)

func TestFilterEnv_includes_safe_vars(t *testing.T) {
	safeVars := map[string]string{
		"LANG":             "en_US.UTF-8",
		"TERM":             "xterm",
		"TZ":               "UTC",
		"PYTHONIOENCODING": "utf-8",
	}
	for k, v := range safeVars {
		t.Setenv(k, v)
	}

	result := FilterEnv(nil)

	for k, v := range safeVars {
		if !slices.Contains(result, k+"="+v) {
			t.Errorf("safe var %s not found in filtered env", k)
		}
	}
}

func TestFilterEnv_includes_safe_prefixes(t *testing.T) {
	t.Setenv("LC_MESSAGES", "en_US.UTF-8")
	t.Setenv("LC_CTYPE", "UTF-8")

	result := FilterEnv(nil)

	for _, want := range []string{"LC_MESSAGES=en_US.UTF-8", "LC_CTYPE=UTF-8"} {
		if !slices.Contains(result, want) {
			t.Errorf("prefix var %s not found in filtered env", want)
		}
	}
}

func TestFilterEnv_excludes_secrets_and_host_paths(t *testing.T) {
	excluded := []string{
		"AWS_SECRET_ACCESS_KEY",
		"API_TOKEN",
		"DATABASE_PASSWORD",
		"GITHUB_TOKEN",
		"PATH",
		"HOME",
	}
	for _, name := range excluded {
		t.Setenv(name, "value")
	}

	result := FilterEnv(nil)

	for _, name := range excluded {
		if slices.Contains(result, name+"=value") {
			t.Errorf("%s should be excluded from filtered env", name)
		}
	}
}

func TestFilterEnv_allows_explicit_vars(t *testing.T) {
	t.Setenv("CUSTOM_SETTING", "on")

	result := FilterEnv([]string{"CUSTOM_SETTING"})

	if !slices.Contains(result, "CUSTOM_SETTING=on") {
		t.Error("explicitly allowed var CUSTOM_SETTING not found in filtered env")
	}
}

func TestFilterEnv_explicit_values(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		allow   []string
		want    []string
	}{
		{
			name:  "adds_value_missing_from_host",
			allow: []string{"NEW_VAR=new-value"},
			want:  []string{"NEW_VAR=new-value"},
		},
		{
			name:    "overrides_host_value",
			environ: []string{"LANG=C", "TERM=xterm"},
			allow:   []string{"LANG=en_GB.UTF-8"},
			want:    []string{"TERM=xterm", "LANG=en_GB.UTF-8"},
		},
		{
			name:    "skips_malformed_entries",
			environ: []string{"=broken", "novalue", "TZ=UTC"},
			allow:   []string{"", "=x", "WITH_VALUE=value"},
			want:    []string{"TZ=UTC", "WITH_VALUE=value"},
		},
		{
			name:  "last_explicit_value_wins",
			allow: []string{"A=1", "A=2"},
			want:  []string{"A=2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterEnv(tt.environ, tt.allow)

			if !slices.Equal(got, tt.want) {
				t.Errorf("filterEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitEnv(t *testing.T) {
	tests := []struct {
		entry     string
		wantName  string
		wantValue string
		wantOK    bool
	}{
		{"A=b", "A", "b", true},
		{"A=b=c", "A", "b=c", true},
		{"A=", "A", "", true},
		{"A", "A", "", false},
		{"=b", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			name, value, ok := SplitEnv(tt.entry)

			if name != tt.wantName || value != tt.wantValue || ok != tt.wantOK {
				t.Errorf("SplitEnv(%q) = %q, %q, %v", tt.entry, name, value, ok)
			}
		})
	}
}
