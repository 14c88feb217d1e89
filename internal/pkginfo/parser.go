package pkginfo

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/frederic-klein/stackdist/internal/dist"
)

var headerRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9-]*): ?(.*)$`)

// Parser reads PKG-INFO files.
type Parser struct {
	r io.Reader
}

// NewParser creates a new PKG-INFO parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

// Parse reads metadata from a PKG-INFO file.
// Fields rendered as UNKNOWN come back empty.
func (p *Parser) Parse() (*dist.Metadata, error) {
	m := &dist.Metadata{}
	var lastKey string
	var description []string

	scanner := bufio.NewScanner(p.r)
	for scanner.Scan() {
		line := scanner.Text()

		// Continuation of the previous header
		if strings.HasPrefix(line, continuation) || (line == "" && lastKey == "Description") {
			if lastKey == "Description" {
				description = append(description, strings.TrimPrefix(line, continuation))
			}
			continue
		}

		matches := headerRe.FindStringSubmatch(line)
		if matches == nil {
			if line == "" {
				continue
			}
			return nil, fmt.Errorf("malformed PKG-INFO line: %q", line)
		}

		key, value := matches[1], matches[2]
		lastKey = key
		if value == unknown && key != "Platform" {
			value = ""
		}

		switch key {
		case "Name":
			m.Name = value
		case "Version":
			m.Version = value
		case "Summary":
			m.Description = value
		case "Home-page":
			m.URL = value
		case "Author":
			m.Author = value
		case "Author-email":
			m.AuthorEmail = value
		case "License":
			m.License = value
		case "Download-URL":
			m.DownloadURL = value
		case "Description":
			description = []string{value}
		case "Keywords":
			if value != "" {
				m.Keywords = strings.Split(value, ",")
			}
		case "Classifier":
			m.Classifiers = append(m.Classifiers, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading PKG-INFO: %w", err)
	}

	m.LongDescription = strings.Join(description, "\n")

	return m, nil
}
