package pkginfo

import (
	"fmt"
	"io"
	"strings"

	"github.com/frederic-klein/stackdist/internal/dist"
)

// MetadataVersion is the PKG-INFO format version written by the Emitter.
const MetadataVersion = "1.1"

const unknown = "UNKNOWN"

// Emitter writes PKG-INFO files.
type Emitter struct {
	w io.Writer
}

// NewEmitter creates a new PKG-INFO emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes the metadata in PKG-INFO format.
func (e *Emitter) Emit(m *dist.Metadata) error {
	fields := []struct {
		key, value string
	}{
		{"Metadata-Version", MetadataVersion},
		{"Name", orUnknown(m.Name)},
		{"Version", m.DisplayVersion()},
		{"Summary", orUnknown(m.Description)},
		{"Home-page", orUnknown(m.URL)},
		{"Author", orUnknown(m.Author)},
		{"Author-email", orUnknown(m.AuthorEmail)},
		{"License", orUnknown(m.License)},
	}
	for _, f := range fields {
		if err := e.header(f.key, f.value); err != nil {
			return err
		}
	}

	if m.DownloadURL != "" {
		if err := e.header("Download-URL", m.DownloadURL); err != nil {
			return err
		}
	}

	if err := e.header("Description", escapeDescription(m.LongDescription)); err != nil {
		return err
	}

	if len(m.Keywords) > 0 {
		if err := e.header("Keywords", strings.Join(m.Keywords, ",")); err != nil {
			return err
		}
	}

	if err := e.header("Platform", unknown); err != nil {
		return err
	}

	for _, c := range m.Classifiers {
		if err := e.header("Classifier", c); err != nil {
			return err
		}
	}

	return nil
}

// Bytes renders the metadata as PKG-INFO content.
func Bytes(m *dist.Metadata) ([]byte, error) {
	var buf strings.Builder
	if err := NewEmitter(&buf).Emit(m); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

func (e *Emitter) header(key, value string) error {
	_, err := fmt.Fprintf(e.w, "%s: %s\n", key, value)
	return err
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// escapeDescription indents continuation lines so the description stays a
// single header. A trailing newline yields a trailing blank continuation
// line, as distutils writes it.
func escapeDescription(s string) string {
	if s == "" {
		return unknown
	}
	return strings.ReplaceAll(s, "\n", "\n"+continuation)
}

const continuation = "        "
