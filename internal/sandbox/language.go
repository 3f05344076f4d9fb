package sandbox

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLanguage is returned when a language name is not in the supported set.
var ErrUnknownLanguage = errors.New("unknown language")

// Language identifies one of the languages the editor can select.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageCPP        Language = "cpp"
	LanguageJava       Language = "java"
)

type languageInfo struct {
	label     string
	extension string
}

var languageTable = map[Language]languageInfo{
	LanguageJavaScript: {label: "JavaScript", extension: ".js"},
	LanguagePython:     {label: "Python", extension: ".py"},
	LanguageCPP:        {label: "C++", extension: ".cpp"},
	LanguageJava:       {label: "Java", extension: ".java"},
}

// Common aliases accepted on the command line and in snippet headers.
var languageAliases = map[string]Language{
	"js":      LanguageJavaScript,
	"node":    LanguageJavaScript,
	"py":      LanguagePython,
	"python3": LanguagePython,
	"c++":     LanguageCPP,
	"cxx":     LanguageCPP,
}

// Languages returns the selectable languages in display order.
func Languages() []Language {
	return []Language{LanguageJavaScript, LanguagePython, LanguageCPP, LanguageJava}
}

// ParseLanguage maps a name or alias to a Language.
func ParseLanguage(name string) (Language, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := languageTable[Language(key)]; ok {
		return Language(key), nil
	}
	if lang, ok := languageAliases[key]; ok {
		return lang, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, name)
}

// LanguageForExtension returns the language whose export extension matches ext.
func LanguageForExtension(ext string) (Language, bool) {
	ext = strings.ToLower(ext)
	for lang, info := range languageTable {
		if info.extension == ext {
			return lang, true
		}
	}
	return "", false
}

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	_, ok := languageTable[l]
	return ok
}

// Label returns the human-readable name shown in the language selector.
func (l Language) Label() string {
	if info, ok := languageTable[l]; ok {
		return info.label
	}
	return string(l)
}

// Extension returns the file extension used when exporting source in this language.
func (l Language) Extension() string {
	if info, ok := languageTable[l]; ok {
		return info.extension
	}
	return ".txt"
}
