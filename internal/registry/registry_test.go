package registry

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frederic-klein/stackdist/internal/dist"
	"github.com/frederic-klein/stackdist/internal/sdist"
)

func buildArchive(t *testing.T, version string) string {
	t.Helper()

	src := t.TempDir()
	pkgDir := filepath.Join(src, "python", "catkin")
	require.NoError(t, os.MkdirAll(pkgDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "__init__.py"), nil, 0644))

	archive, err := sdist.NewBuilder(log.New(io.Discard)).Build(dist.Catkin(version), src, t.TempDir())
	require.NoError(t, err)
	return archive
}

func TestClient_Register(t *testing.T) {
	var (
		form     map[string][]string
		user     string
		password string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form = r.PostForm
		user, password, _ = r.BasicAuth()
	}))
	defer server.Close()

	c := NewClient(server.URL, log.New(io.Discard), WithCredentials("ros", "secret"))
	err := c.Register(context.Background(), dist.Catkin("1.2.3"))
	require.NoError(t, err)

	assert.Equal(t, "ros", user)
	assert.Equal(t, "secret", password)
	assert.Equal(t, []string{"submit"}, form[":action"])
	assert.Equal(t, []string{"catkin"}, form["name"])
	assert.Equal(t, []string{"1.2.3"}, form["version"])
	assert.Equal(t, []string{"1.1"}, form["metadata_version"])
	assert.Equal(t, []string{"ROS"}, form["keywords"])
	assert.Equal(t, []string{
		"Programming Language :: Python",
		"License :: OSI Approved :: BSD License",
	}, form["classifiers"])
}

func TestClient_Register_EmptyVersion(t *testing.T) {
	var version string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version = r.FormValue("version")
	}))
	defer server.Close()

	c := NewClient(server.URL, log.New(io.Discard))
	require.NoError(t, c.Register(context.Background(), dist.Catkin("")))
	assert.Equal(t, "0.0.0", version)
}

func TestClient_Register_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient(server.URL, log.New(io.Discard))
	err := c.Register(context.Background(), dist.Catkin("1.0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
	assert.Contains(t, err.Error(), "forbidden")
}

func TestClient_Upload(t *testing.T) {
	archive := buildArchive(t, "0.4.2")
	content, err := os.ReadFile(archive)
	require.NoError(t, err)
	sum := md5.Sum(content)

	var (
		mu       sync.Mutex
		received = make(map[string]string)
		fields   = make(map[string]string)
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("content")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		received[hdr.Filename] = string(data)
		for _, key := range []string{":action", "name", "version", "md5_digest", "filetype"} {
			fields[key] = r.FormValue(key)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, log.New(io.Discard), WithWorkers(2))
	results := c.Upload(context.Background(), []string{archive})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Error)
	assert.Equal(t, archive, results[0].File)
	assert.Equal(t, string(content), received["catkin-0.4.2.tar.gz"])
	assert.Equal(t, "file_upload", fields[":action"])
	assert.Equal(t, "catkin", fields["name"])
	assert.Equal(t, "0.4.2", fields["version"])
	assert.Equal(t, "sdist", fields["filetype"])
	assert.Equal(t, hex.EncodeToString(sum[:]), fields["md5_digest"])
}

func TestClient_Upload_ResultsInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	good := buildArchive(t, "1.0")
	missing := filepath.Join(t.TempDir(), "missing.tar.gz")

	c := NewClient(server.URL, log.New(io.Discard), WithWorkers(3))
	results := c.Upload(context.Background(), []string{missing, good, missing})

	require.Len(t, results, 3)
	assert.Error(t, results[0].Error)
	assert.NoError(t, results[1].Error)
	assert.Equal(t, good, results[1].File)
	assert.Error(t, results[2].Error)
}

func TestNewClient_DefaultURL(t *testing.T) {
	c := NewClient("", log.New(io.Discard))
	assert.Equal(t, DefaultURL, c.URL())
}
