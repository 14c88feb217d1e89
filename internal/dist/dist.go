package dist

import (
	"errors"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// DefaultVersion is rendered in place of an empty version string.
const DefaultVersion = "0.0.0"

// Metadata represents the registration metadata of a distribution.
type Metadata struct {
	Name            string            `json:"name" yaml:"name"`
	Version         string            `json:"version" yaml:"version"`
	Packages        []string          `json:"packages" yaml:"packages"`
	PackageDir      map[string]string `json:"package_dir" yaml:"package_dir"` // package -> source directory
	Scripts         []string          `json:"scripts" yaml:"scripts"`
	Author          string            `json:"author" yaml:"author"`
	AuthorEmail     string            `json:"author_email" yaml:"author_email"`
	URL             string            `json:"url" yaml:"url"`
	DownloadURL     string            `json:"download_url" yaml:"download_url"`
	Keywords        []string          `json:"keywords" yaml:"keywords"`
	Classifiers     []string          `json:"classifiers" yaml:"classifiers"`
	Description     string            `json:"description" yaml:"description"`
	LongDescription string            `json:"long_description" yaml:"long_description"`
	License         string            `json:"license" yaml:"license"`
}

// Catkin returns the registration metadata of the catkin package.
// Every field except Version is fixed.
func Catkin(version string) *Metadata {
	return &Metadata{
		Name:     "catkin",
		Version:  version,
		Packages: []string{"catkin"},
		PackageDir: map[string]string{
			"catkin": "python/catkin",
		},
		Scripts:     []string{},
		Author:      "Troy Straszheim, Morten Kjaergaard",
		AuthorEmail: "straszheim@willowgarage.com",
		URL:         "http://www.ros.org",
		DownloadURL: "http://github.com/straszheim/catkin/",
		Keywords:    []string{"ROS"},
		Classifiers: []string{
			"Programming Language :: Python",
			"License :: OSI Approved :: BSD License",
		},
		Description:     "Catkin cmake library",
		LongDescription: "Build system stuff\n",
		License:         "BSD",
	}
}

// DisplayVersion returns the version, or DefaultVersion when none was given.
func (m *Metadata) DisplayVersion() string {
	if m.Version == "" {
		return DefaultVersion
	}
	return m.Version
}

// FullName returns the distribution name, e.g. "catkin-0.4.2".
func (m *Metadata) FullName() string {
	return m.Name + "-" + m.DisplayVersion()
}

// PackagePath returns the source directory of pkg relative to the source root.
// Packages without an explicit mapping live at their dotted path.
func (m *Metadata) PackagePath(pkg string) string {
	if dir, ok := m.PackageDir[pkg]; ok {
		return dir
	}
	return strings.ReplaceAll(pkg, ".", "/")
}

var (
	ErrMissingName    = errors.New("missing required meta-data: name")
	ErrMissingVersion = errors.New("missing required meta-data: version")
	ErrMissingURL     = errors.New("missing required meta-data: url")
	ErrMissingAuthor  = errors.New("missing meta-data: author and author_email must be supplied")
)

// Validate reports every required field that is missing.
func (m *Metadata) Validate() error {
	var merr *multierror.Error

	if m.Name == "" {
		merr = multierror.Append(merr, ErrMissingName)
	}
	if m.Version == "" {
		merr = multierror.Append(merr, ErrMissingVersion)
	}
	if m.URL == "" {
		merr = multierror.Append(merr, ErrMissingURL)
	}
	if m.Author == "" || m.AuthorEmail == "" {
		merr = multierror.Append(merr, ErrMissingAuthor)
	}

	return merr.ErrorOrNil()
}
