package sandbox

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

const defaultExportName = "snippet"

var filenameReplacer = strings.NewReplacer("/", "-", "\\", "-", "\x00", "")

// Filename returns the download name for source in lang: the title, or
// "snippet" when it is empty, followed by the language extension.
func Filename(title string, lang Language) string {
	name := filenameReplacer.Replace(title)
	if name == "" {
		name = defaultExportName
	}
	return name + lang.Extension()
}

// Export returns the download name and contents for the current source.
func (s *Session) Export() (string, []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Filename(s.title, s.language), []byte(s.source)
}

// Download writes the current source into dir and returns the file path.
func (s *Session) Download(dir string) (string, error) {
	name, data := s.Export()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return path, err
	}
	return path, nil
}

// WriteTo writes the current source to w.
func (s *Session) WriteTo(w io.Writer) (int64, error) {
	_, data := s.Export()
	n, err := w.Write(data)
	return int64(n), err
}
