package stack

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html/charset"
)

// DefaultPath is the descriptor read when no path is given.
const DefaultPath = "stack.xml"

// ErrVersionUnavailable is returned whenever the version cannot be read.
var ErrVersionUnavailable = errors.New("version metadata unavailable")

// VersionError describes why the version could not be read from a descriptor.
type VersionError struct {
	Path string
	Err  error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("Could not extract version from your %s:\n%s", e.Path, e.Err)
}

func (e *VersionError) Unwrap() []error {
	return []error{ErrVersionUnavailable, e.Err}
}

// ReadVersion returns the text of the first version element directly under
// the root of the descriptor at path. A descriptor without one yields "".
func ReadVersion(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", &VersionError{Path: path, Err: err}
	}
	defer file.Close()

	version, err := FindText(file, "version")
	if err != nil {
		return "", &VersionError{Path: path, Err: err}
	}
	return version, nil
}

// FindText returns the text of the first child of the root element named tag.
// Only text preceding the element's own first child is returned, and only an
// element without a namespace matches.
// The whole document is read so malformed input is reported.
func FindText(r io.Reader, tag string) (string, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		depth     int
		found     bool
		capturing bool
		rootSeen  bool
		text      strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if rootSeen {
					return "", fmt.Errorf("junk after document element: <%s>", t.Name.Local)
				}
				rootSeen = true
			}
			capturing = false
			depth++
			if depth == 2 && !found && t.Name.Space == "" && t.Name.Local == tag {
				found = true
				capturing = true
			}
		case xml.EndElement:
			capturing = false
			depth--
		case xml.CharData:
			if capturing {
				text.Write(t)
			}
		}
	}

	if !rootSeen {
		return "", errors.New("no element found")
	}
	return text.String(), nil
}
