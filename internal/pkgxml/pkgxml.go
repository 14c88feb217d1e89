// Package pkgxml reads catkin package.xml manifests and renders them as CMake
// variable assignments.
package pkgxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalidPackage is returned for manifests missing required fields.
var ErrInvalidPackage = errors.New("invalid package manifest")

var versionRe = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)

// Person is a maintainer or author entry.
type Person struct {
	Name  string `xml:",chardata"`
	Email string `xml:"email,attr"`
}

func (p Person) String() string {
	name := strings.TrimSpace(p.Name)
	if p.Email == "" {
		return name
	}
	return fmt.Sprintf("%s <%s>", name, p.Email)
}

// Export is a child element of <export>.
type Export struct {
	XMLName xml.Name
	Content string `xml:",innerxml"`
}

// Package is the subset of package.xml consumed by the build system.
type Package struct {
	Name             string   `xml:"name"`
	Version          string   `xml:"version"`
	Maintainers      []Person `xml:"maintainer"`
	BuildDepends     []string `xml:"build_depend"`
	BuildtoolDepends []string `xml:"buildtool_depend"`
	RunDepends       []string `xml:"run_depend"`
	Export           struct {
		Items []Export `xml:",any"`
	} `xml:"export"`
}

// Parse reads the manifest at path.
func Parse(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading package manifest: %w", err)
	}

	var root struct {
		XMLName xml.Name
		Package
	}
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if root.XMLName.Local != "package" {
		return nil, fmt.Errorf("%w: root element is <%s>, expected <package>", ErrInvalidPackage, root.XMLName.Local)
	}

	pkg := root.Package
	pkg.Name = strings.TrimSpace(pkg.Name)
	pkg.Version = strings.TrimSpace(pkg.Version)
	pkg.BuildDepends = trimAll(pkg.BuildDepends)
	pkg.BuildtoolDepends = trimAll(pkg.BuildtoolDepends)
	pkg.RunDepends = trimAll(pkg.RunDepends)

	if pkg.Name == "" {
		return nil, fmt.Errorf("%w: %s has no <name>", ErrInvalidPackage, path)
	}
	if pkg.Version == "" {
		return nil, fmt.Errorf("%w: %s has no <version>", ErrInvalidPackage, path)
	}
	if !versionRe.MatchString(pkg.Version) {
		return nil, fmt.Errorf("%w: %s: version %q is not of the form X.Y.Z", ErrInvalidPackage, path, pkg.Version)
	}
	if len(pkg.Maintainers) == 0 {
		return nil, fmt.Errorf("%w: %s has no <maintainer>", ErrInvalidPackage, path)
	}

	return &pkg, nil
}

// Deprecated returns the content of the first <deprecated> export and
// whether one exists.
func (p *Package) Deprecated() (string, bool) {
	for _, e := range p.Export.Items {
		if e.XMLName.Local == "deprecated" {
			return strings.TrimSpace(e.Content), true
		}
	}
	return "", false
}

// CMakeLines renders the package as CMake set() commands.
func CMakeLines(p *Package) []string {
	maintainers := make([]string, len(p.Maintainers))
	for i, m := range p.Maintainers {
		maintainers[i] = m.String()
	}

	deprecated := ""
	if msg, ok := p.Deprecated(); ok {
		deprecated = msg
		if deprecated == "" {
			deprecated = "TRUE"
		}
	}

	values := map[string]string{
		"VERSION":           quote(p.Version),
		"MAINTAINER":        quote(strings.Join(maintainers, ", ")),
		"BUILD_DEPENDS":     quoteAll(p.BuildDepends),
		"BUILDTOOL_DEPENDS": quoteAll(p.BuildtoolDepends),
		"RUN_DEPENDS":       quoteAll(p.RunDepends),
		"DEPRECATED":        quote(deprecated),
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := []string{fmt.Sprintf("set(_CATKIN_CURRENT_PACKAGE %s)", quote(p.Name))}
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("set(%s_%s %s)", p.Name, k, values[k]))
	}
	return lines
}

// WriteCMake parses the manifest at manifestPath and writes its CMake
// rendering to outPath.
func WriteCMake(manifestPath, outPath string) error {
	pkg, err := Parse(manifestPath)
	if err != nil {
		return err
	}

	content := strings.Join(CMakeLines(pkg), "\n")
	if err := os.WriteFile(outPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return nil
}

func quote(s string) string {
	return `"` + s + `"`
}

func quoteAll(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = quote(s)
	}
	return strings.Join(quoted, " ")
}

func trimAll(items []string) []string {
	for i, s := range items {
		items[i] = strings.TrimSpace(s)
	}
	return items
}
