package util

import (
	"os"
	"strings"
)

// SafeEnvPrefixes are environment variable prefixes passed through to the
// Python guest.
var SafeEnvPrefixes = []string{
	"LC_", // Locale settings
}

// SafeEnvVars are specific environment variables passed through to the
// Python guest. Host paths (PATH, HOME, TMPDIR) are meaningless inside the
// guest's filesystem and are left out.
var SafeEnvVars = map[string]bool{
	// Locale
	"LANG":     true,
	"LANGUAGE": true,
	"TZ":       true,

	// Terminal
	"TERM":      true,
	"COLORTERM": true,
	"COLUMNS":   true,
	"LINES":     true,

	// Interpreter behaviour (non-sensitive)
	"PYTHONIOENCODING": true,
	"PYTHONHASHSEED":   true,
	"PYTHONUTF8":       true,
}

// FilterEnv returns the host environment reduced to safe vars, plus anything
// named in allow. Entries in allow may be "VAR" (copy from the host) or
// "VAR=value" (set explicitly, overriding the host).
func FilterEnv(allow []string) []string {
	return filterEnv(os.Environ(), allow)
}

func filterEnv(environ, allow []string) []string {
	explicitAllow := make(map[string]bool)
	explicitValue := make(map[string]string)
	var explicitOrder []string
	for _, v := range allow {
		name, value, hasValue := strings.Cut(v, "=")
		if name == "" {
			continue
		}
		if hasValue {
			if _, seen := explicitValue[name]; !seen {
				explicitOrder = append(explicitOrder, name)
			}
			explicitValue[name] = value
			continue
		}
		explicitAllow[name] = true
	}

	var filtered []string
	for _, env := range environ {
		name, _, ok := strings.Cut(env, "=")
		if !ok || name == "" {
			continue
		}
		if _, overridden := explicitValue[name]; overridden {
			continue
		}
		if explicitAllow[name] || isSafe(name) {
			filtered = append(filtered, env)
		}
	}

	for _, name := range explicitOrder {
		filtered = append(filtered, name+"="+explicitValue[name])
	}
	return filtered
}

func isSafe(name string) bool {
	if SafeEnvVars[name] {
		return true
	}
	for _, prefix := range SafeEnvPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// SplitEnv splits a "VAR=value" entry. ok is false for entries without "=".
func SplitEnv(entry string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(entry, "=")
	if name == "" {
		return "", "", false
	}
	return name, value, ok
}
