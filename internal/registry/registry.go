package registry

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/frederic-klein/stackdist/internal/dist"
	"github.com/frederic-klein/stackdist/internal/pkginfo"
	"github.com/frederic-klein/stackdist/internal/sdist"
)

// DefaultURL is the package index used when none is configured.
const DefaultURL = "https://upload.pypi.org/legacy/"

// Result represents the outcome of uploading one file.
type Result struct {
	File  string
	Error error
}

// Client registers and uploads distributions to a package index.
type Client struct {
	url      string
	username string
	password string
	workers  int
	client   *http.Client
	logger   *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCredentials sets the basic-auth credentials sent with every request.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithWorkers sets the number of parallel uploads.
func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a client for the index at indexURL.
func NewClient(indexURL string, logger *log.Logger, opts ...Option) *Client {
	if indexURL == "" {
		indexURL = DefaultURL
	}
	c := &Client{
		url:     indexURL,
		workers: 1,
		client:  &http.Client{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the index URL.
func (c *Client) URL() string {
	return c.url
}

// Register submits the metadata of a distribution to the index.
func (c *Client) Register(ctx context.Context, m *dist.Metadata) error {
	form := metadataForm(m)
	form.Set(":action", "submit")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if err := c.do(req); err != nil {
		return fmt.Errorf("registering %s: %w", m.FullName(), err)
	}

	c.logger.Info("registered", "name", m.Name, "version", m.DisplayVersion(), "index", c.url)
	return nil
}

// Upload sends source archives to the index in parallel.
// Results are returned in the order of files.
func (c *Client) Upload(ctx context.Context, files []string) []Result {
	type job struct {
		index int
		file  string
	}

	jobChan := make(chan job, len(files))
	results := make([]Result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobChan {
				results[j.index] = Result{File: j.file, Error: c.uploadOne(ctx, j.file)}
			}
		}()
	}

	for i, file := range files {
		jobChan <- job{index: i, file: file}
	}
	close(jobChan)
	wg.Wait()

	return results
}

func (c *Client) uploadOne(ctx context.Context, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := sdist.ReadMetadata(file)
	if err != nil {
		return fmt.Errorf("reading metadata of %s: %w", file, err)
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	sum := md5.Sum(content)

	form := metadataForm(m)
	form.Set(":action", "file_upload")
	form.Set("protocol_version", "1")
	form.Set("filetype", "sdist")
	form.Set("pyversion", "")
	form.Set("md5_digest", hex.EncodeToString(sum[:]))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range form {
		for _, v := range values {
			if err := mw.WriteField(key, v); err != nil {
				return err
			}
		}
	}
	part, err := mw.CreateFormFile("content", filepath.Base(file))
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if err := c.do(req); err != nil {
		return fmt.Errorf("uploading %s: %w", filepath.Base(file), err)
	}

	c.logger.Info("uploaded", "file", filepath.Base(file), "index", c.url)
	return nil
}

func (c *Client) do(req *http.Request) error {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(bytes.TrimSpace(msg)) > 0 {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}

// metadataForm encodes the metadata as index form fields.
func metadataForm(m *dist.Metadata) url.Values {
	form := url.Values{}
	form.Set("metadata_version", pkginfo.MetadataVersion)
	form.Set("name", m.Name)
	form.Set("version", m.DisplayVersion())
	form.Set("summary", m.Description)
	form.Set("home_page", m.URL)
	form.Set("author", m.Author)
	form.Set("author_email", m.AuthorEmail)
	form.Set("license", m.License)
	form.Set("description", m.LongDescription)
	form.Set("keywords", strings.Join(m.Keywords, ","))
	form.Set("platform", "UNKNOWN")
	form.Set("download_url", m.DownloadURL)
	for _, c := range m.Classifiers {
		form.Add("classifiers", c)
	}
	return form
}
