package metadata

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/snipx-dev/snipx/internal/sandbox"
)

// commentPrefixes are the line comment markers a header may use.
var commentPrefixes = []string{"//", "#"}

// Metadata represents the parsed snipx header block of a snippet file.
type Metadata struct {
	Title    string `toml:"title"`
	Language string `toml:"language"`
}

// Parse extracts metadata from a snippet file's snipx comment block.
//
// The block is introduced by "// snipx" or "# snipx" and continues while
// lines use the same comment marker:
//
//	# snipx
//	# title = "Fizz buzz"
//	# language = "python"
func Parse(content []byte) (*Metadata, error) {
	scanner := bufio.NewScanner(bytes.NewReader(content))

	prefix := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if p, ok := marker(line); ok {
			prefix = p
			break
		}
	}

	if prefix == "" {
		return &Metadata{}, nil
	}

	var tomlLines []string
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())

		if !strings.HasPrefix(trimmed, prefix) {
			break
		}

		content := strings.TrimPrefix(trimmed, prefix)
		content = strings.TrimPrefix(content, " ")
		tomlLines = append(tomlLines, content)
	}

	if len(tomlLines) == 0 {
		return &Metadata{}, nil
	}

	var meta Metadata
	if _, err := toml.Decode(strings.Join(tomlLines, "\n"), &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func marker(line string) (string, bool) {
	for _, p := range commentPrefixes {
		rest, ok := strings.CutPrefix(line, p)
		if ok && strings.TrimSpace(rest) == "snipx" {
			return p, true
		}
	}
	return "", false
}

// ResolveLanguage picks the snippet language: the header value when set,
// otherwise the file extension, otherwise JavaScript.
func (m *Metadata) ResolveLanguage(filename string) (sandbox.Language, error) {
	if m.Language != "" {
		return sandbox.ParseLanguage(m.Language)
	}
	if lang, ok := sandbox.LanguageForExtension(filepath.Ext(filename)); ok {
		return lang, nil
	}
	return sandbox.LanguageJavaScript, nil
}

// ResolveTitle returns the header title, falling back to the file name
// without its extension.
func (m *Metadata) ResolveTitle(filename string) string {
	if m.Title != "" {
		return m.Title
	}
	if filename == "" || filename == "-" {
		return ""
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
