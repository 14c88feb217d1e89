package sdist

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"

	"github.com/frederic-klein/stackdist/internal/dist"
	"github.com/frederic-klein/stackdist/internal/pkginfo"
)

// ErrNoPKGINFO is returned when an archive carries no top-level PKG-INFO.
var ErrNoPKGINFO = errors.New("no PKG-INFO found in archive")

// Top-level files copied into every source distribution when present.
var standardFiles = []string{"stack.xml", "setup.py", "setup.cfg"}

// entry is a file to place in the archive.
type entry struct {
	name string // path inside the archive, below the root directory
	src  string // path on disk; empty for generated content
	data []byte
	mode int64
}

// Builder writes gzip-compressed source archives.
type Builder struct {
	logger *log.Logger
	mtime  time.Time
}

// NewBuilder creates a new source distribution builder.
func NewBuilder(logger *log.Logger) *Builder {
	return &Builder{logger: logger, mtime: time.Now()}
}

// Build writes <outDir>/<name>-<version>.tar.gz from the sources under
// srcRoot and returns its path.
func (b *Builder) Build(m *dist.Metadata, srcRoot, outDir string) (string, error) {
	entries, err := b.collect(m, srcRoot)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("creating dist directory: %w", err)
	}

	archivePath := filepath.Join(outDir, m.FullName()+".tar.gz")
	tmpPath := archivePath + ".tmp"

	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}

	err = b.write(out, m.FullName(), entries)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing archive: %w", err)
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming archive: %w", err)
	}

	b.logger.Info("wrote source distribution", "path", archivePath, "files", len(entries))
	return archivePath, nil
}

func (b *Builder) collect(m *dist.Metadata, srcRoot string) ([]entry, error) {
	info, err := pkginfo.Bytes(m)
	if err != nil {
		return nil, fmt.Errorf("rendering PKG-INFO: %w", err)
	}
	entries := []entry{{name: "PKG-INFO", data: info, mode: 0644}}

	for _, name := range standardFiles {
		if isRegular(filepath.Join(srcRoot, name)) {
			entries = append(entries, entry{name: name, src: filepath.Join(srcRoot, name), mode: 0644})
		}
	}

	readmes, err := filepath.Glob(filepath.Join(srcRoot, "README*"))
	if err != nil {
		return nil, err
	}
	for _, readme := range readmes {
		if !isRegular(readme) {
			b.logger.Debug("skipping non-regular file", "path", readme)
			continue
		}
		entries = append(entries, entry{name: filepath.Base(readme), src: readme, mode: 0644})
	}

	for _, pkg := range m.Packages {
		files, err := PackageFiles(srcRoot, m.PackagePath(pkg))
		if err != nil {
			return nil, fmt.Errorf("collecting package %s: %w", pkg, err)
		}
		for _, rel := range files {
			entries = append(entries, entry{
				name: rel,
				src:  filepath.Join(srcRoot, filepath.FromSlash(rel)),
				mode: 0644,
			})
		}
	}

	for _, script := range m.Scripts {
		entries = append(entries, entry{
			name: filepath.ToSlash(script),
			src:  filepath.Join(srcRoot, script),
			mode: 0755,
		})
	}

	// Drop duplicates, e.g. a README also listed as a script
	seen := make(map[string]bool)
	unique := entries[:0]
	for _, e := range entries {
		if !seen[e.name] {
			seen[e.name] = true
			unique = append(unique, e)
		}
	}

	sort.Slice(unique, func(i, j int) bool {
		return unique[i].name < unique[j].name
	})
	return unique, nil
}

// PackageFiles returns the slash-separated paths, relative to srcRoot, of every
// Python module below pkgDir.
func PackageFiles(srcRoot, pkgDir string) ([]string, error) {
	root := filepath.Join(srcRoot, filepath.FromSlash(pkgDir))
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("package directory %s: %w", pkgDir, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("package directory %s is not a directory", pkgDir)
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(p) != ".py" {
			return nil
		}
		rel, err := filepath.Rel(srcRoot, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func (b *Builder) write(w io.Writer, root string, entries []entry) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	dirs := make(map[string]bool)
	for _, e := range entries {
		name := path.Join(root, e.name)

		// Parent directories first
		for _, dir := range parents(name) {
			if dirs[dir] {
				continue
			}
			dirs[dir] = true
			hdr := &tar.Header{
				Typeflag: tar.TypeDir,
				Name:     dir + "/",
				Mode:     0755,
				ModTime:  b.mtime,
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
		}

		data := e.data
		if e.src != "" {
			var err error
			data, err = os.ReadFile(e.src)
			if err != nil {
				return fmt.Errorf("reading %s: %w", e.src, err)
			}
		}

		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     e.mode,
			Size:     int64(len(data)),
			ModTime:  b.mtime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
		b.logger.Debug("added", "file", name)
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}

// parents returns the ancestor directories of name, outermost first.
func parents(name string) []string {
	var dirs []string
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		dirs = append([]string{dir}, dirs...)
	}
	return dirs
}

// ReadMetadata reads the PKG-INFO at the top of a source archive.
func ReadMetadata(archivePath string) (*dist.Metadata, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("decompressing archive: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}

		// Only look at top-level files (one directory deep)
		parts := strings.Split(header.Name, "/")
		if len(parts) != 2 || parts[1] != "PKG-INFO" {
			continue
		}

		m, err := pkginfo.NewParser(tarReader).Parse()
		if err != nil {
			return nil, fmt.Errorf("parsing PKG-INFO: %w", err)
		}
		return m, nil
	}

	return nil, ErrNoPKGINFO
}

func isRegular(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}
