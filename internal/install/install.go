package install

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/frederic-klein/stackdist/internal/dist"
	"github.com/frederic-klein/stackdist/internal/pkginfo"
	"github.com/frederic-klein/stackdist/internal/sdist"
)

// Options controls where files are installed.
type Options struct {
	Root    string // staging root prepended to every destination, may be empty
	Prefix  string // installation prefix, e.g. "/usr/local/lib/python/site-packages"
	Workers int
}

// copyJob is a single file copy.
type copyJob struct {
	src  string
	dest string
	mode os.FileMode
}

// Installer copies a distribution's modules and scripts into a prefix.
type Installer struct {
	opts   Options
	logger *log.Logger
}

// NewInstaller creates a new installer.
func NewInstaller(opts Options, logger *log.Logger) *Installer {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Installer{opts: opts, logger: logger}
}

// Target returns the directory files are installed below.
func (i *Installer) Target() string {
	if i.opts.Root == "" {
		return i.opts.Prefix
	}
	return filepath.Join(i.opts.Root, i.opts.Prefix)
}

// Install copies the distribution from srcRoot and returns the sorted list of
// installed files.
func (i *Installer) Install(ctx context.Context, m *dist.Metadata, srcRoot string) ([]string, error) {
	target := i.Target()

	var jobs []copyJob
	for _, pkg := range m.Packages {
		pkgDir := m.PackagePath(pkg)
		files, err := sdist.PackageFiles(srcRoot, pkgDir)
		if err != nil {
			return nil, fmt.Errorf("collecting package %s: %w", pkg, err)
		}
		pkgTarget := filepath.Join(target, filepath.FromSlash(strings.ReplaceAll(pkg, ".", "/")))
		for _, rel := range files {
			inPkg := strings.TrimPrefix(rel, strings.TrimSuffix(filepath.ToSlash(pkgDir), "/")+"/")
			jobs = append(jobs, copyJob{
				src:  filepath.Join(srcRoot, filepath.FromSlash(rel)),
				dest: filepath.Join(pkgTarget, filepath.FromSlash(inPkg)),
				mode: 0644,
			})
		}
	}
	for _, script := range m.Scripts {
		jobs = append(jobs, copyJob{
			src:  filepath.Join(srcRoot, script),
			dest: filepath.Join(target, "bin", filepath.Base(script)),
			mode: 0755,
		})
	}

	var (
		mu        sync.Mutex
		installed []string
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := copyFile(job); err != nil {
				return err
			}
			i.logger.Debug("copied", "src", job.src, "dest", job.dest)

			mu.Lock()
			installed = append(installed, job.dest)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("installing files: %w", err)
	}

	eggInfo, err := i.writeEggInfo(m, target)
	if err != nil {
		return nil, err
	}
	installed = append(installed, eggInfo)

	sort.Strings(installed)
	i.logger.Info("installed distribution", "name", m.FullName(), "target", target, "files", len(installed))
	return installed, nil
}

func (i *Installer) writeEggInfo(m *dist.Metadata, target string) (string, error) {
	data, err := pkginfo.Bytes(m)
	if err != nil {
		return "", fmt.Errorf("rendering PKG-INFO: %w", err)
	}

	if err := os.MkdirAll(target, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", target, err)
	}
	eggInfo := filepath.Join(target, m.FullName()+".egg-info")
	if err := os.WriteFile(eggInfo, data, 0644); err != nil {
		return "", fmt.Errorf("writing egg-info: %w", err)
	}
	return eggInfo, nil
}

// WriteRecord writes one installed path per line.
func WriteRecord(path string, files []string) error {
	content := strings.Join(files, "\n")
	if len(files) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

func copyFile(job copyJob) error {
	if err := os.MkdirAll(filepath.Dir(job.dest), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	in, err := os.Open(job.src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", job.src, err)
	}
	defer in.Close()

	// Write to temp file first, then rename
	tmpPath := job.dest + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, job.mode)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	_, err = io.Copy(out, in)
	out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing file: %w", err)
	}

	if err := os.Chmod(tmpPath, job.mode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting mode: %w", err)
	}

	if err := os.Rename(tmpPath, job.dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming file: %w", err)
	}

	return nil
}
