package dist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatkin_FixedFields(t *testing.T) {
	a := Catkin("1.2.3")
	b := Catkin("")

	assert.Equal(t, "1.2.3", a.Version)
	assert.Empty(t, b.Version)

	// Everything but the version is identical.
	b.Version = a.Version
	assert.Equal(t, a, b)

	assert.Equal(t, "catkin", a.Name)
	assert.Equal(t, []string{"catkin"}, a.Packages)
	assert.Equal(t, map[string]string{"catkin": "python/catkin"}, a.PackageDir)
	assert.Empty(t, a.Scripts)
	assert.Equal(t, "Troy Straszheim, Morten Kjaergaard", a.Author)
	assert.Equal(t, "straszheim@willowgarage.com", a.AuthorEmail)
	assert.Equal(t, "http://www.ros.org", a.URL)
	assert.Equal(t, "http://github.com/straszheim/catkin/", a.DownloadURL)
	assert.Equal(t, []string{"ROS"}, a.Keywords)
	assert.Equal(t, []string{
		"Programming Language :: Python",
		"License :: OSI Approved :: BSD License",
	}, a.Classifiers)
	assert.Equal(t, "Catkin cmake library", a.Description)
	assert.Equal(t, "Build system stuff\n", a.LongDescription)
	assert.Equal(t, "BSD", a.License)
}

func TestMetadata_DisplayVersion(t *testing.T) {
	tests := []struct {
		version  string
		want     string
		fullName string
	}{
		{"1.2.3", "1.2.3", "catkin-1.2.3"},
		{"", "0.0.0", "catkin-0.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			m := Catkin(tt.version)
			assert.Equal(t, tt.want, m.DisplayVersion())
			assert.Equal(t, tt.fullName, m.FullName())
		})
	}
}

func TestMetadata_PackagePath(t *testing.T) {
	m := Catkin("1.0")
	m.Packages = append(m.Packages, "catkin.tools")

	assert.Equal(t, "python/catkin", m.PackagePath("catkin"))
	assert.Equal(t, "catkin/tools", m.PackagePath("catkin.tools"))
}

func TestMetadata_Validate(t *testing.T) {
	require.NoError(t, Catkin("1.0").Validate())

	err := Catkin("").Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingVersion))

	err = (&Metadata{}).Validate()
	require.Error(t, err)
	for _, want := range []error{ErrMissingName, ErrMissingVersion, ErrMissingURL, ErrMissingAuthor} {
		assert.ErrorIs(t, err, want)
	}
}
