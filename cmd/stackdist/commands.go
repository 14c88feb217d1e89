package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/frederic-klein/stackdist/internal/config"
	"github.com/frederic-klein/stackdist/internal/install"
	"github.com/frederic-klein/stackdist/internal/pkginfo"
	"github.com/frederic-klein/stackdist/internal/pkgxml"
	"github.com/frederic-klein/stackdist/internal/registry"
	"github.com/frederic-klein/stackdist/internal/sdist"
	"github.com/frederic-klein/stackdist/internal/version"
)

func newShowCmd(opts *options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the package metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.metadata()
			if err != nil {
				return err
			}

			switch format {
			case "yaml":
				enc := yaml.NewEncoder(opts.stdout)
				enc.SetIndent(2)
				if err := enc.Encode(m); err != nil {
					return fmt.Errorf("encoding metadata: %w", err)
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(opts.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			case "pkg-info":
				return pkginfo.NewEmitter(opts.stdout).Emit(m)
			default:
				return fmt.Errorf("unknown format %q (want yaml, json or pkg-info)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "Output format: yaml, json or pkg-info")
	return cmd
}

func newCheckCmd(opts *options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the package metadata for missing fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.metadata()
			if err != nil {
				return err
			}

			err = m.Validate()
			if err == nil {
				opts.logger.Info("metadata ok", "name", m.FullName())
				return nil
			}
			if strict {
				return fmt.Errorf("checking metadata: %w", err)
			}

			if merr, ok := err.(*multierror.Error); ok {
				for _, e := range merr.Errors {
					opts.logger.Warn(e.Error())
				}
			} else {
				opts.logger.Warn(err.Error())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail instead of warning")
	return cmd
}

func newEggInfoCmd(opts *options) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "egg-info",
		Short: "Write the <name>-<version>.egg-info metadata directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.metadata()
			if err != nil {
				return err
			}

			dir := filepath.Join(outDir, m.FullName()+".egg-info")
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}

			data, err := pkginfo.Bytes(m)
			if err != nil {
				return fmt.Errorf("rendering PKG-INFO: %w", err)
			}
			if err := os.WriteFile(filepath.Join(dir, "PKG-INFO"), data, 0644); err != nil {
				return fmt.Errorf("writing PKG-INFO: %w", err)
			}

			topLevel := strings.Join(m.Packages, "\n") + "\n"
			if err := os.WriteFile(filepath.Join(dir, "top_level.txt"), []byte(topLevel), 0644); err != nil {
				return fmt.Errorf("writing top_level.txt: %w", err)
			}

			opts.logger.Info("wrote egg-info", "path", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", ".", "Directory to write the egg-info into")
	return cmd
}

func newSdistCmd(opts *options) *cobra.Command {
	var distDir string

	cmd := &cobra.Command{
		Use:   "sdist",
		Short: "Build a source distribution tarball",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.metadata()
			if err != nil {
				return err
			}

			archive, err := sdist.NewBuilder(opts.logger).Build(m, opts.srcRoot, distDir)
			if err != nil {
				return fmt.Errorf("building source distribution: %w", err)
			}

			fmt.Fprintln(opts.stdout, archive)
			return nil
		},
	}

	cmd.Flags().StringVarP(&distDir, "dist-dir", "d", "dist", "Directory to write the archive into")
	return cmd
}

func newInstallCmd(opts *options) *cobra.Command {
	var (
		root   string
		prefix string
		record string
		jobs   int
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the package modules and scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.metadata()
			if err != nil {
				return err
			}

			inst := install.NewInstaller(install.Options{
				Root:    root,
				Prefix:  prefix,
				Workers: jobs,
			}, opts.logger)

			files, err := inst.Install(cmd.Context(), m, opts.srcRoot)
			if err != nil {
				return err
			}

			if record != "" {
				if err := install.WriteRecord(record, files); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Install everything relative to this alternate root directory")
	cmd.Flags().StringVar(&prefix, "prefix", "/usr/local/lib/python/site-packages", "Installation directory for modules")
	cmd.Flags().StringVar(&record, "record", "", "File to record the list of installed files in")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "Parallel file copies")
	return cmd
}

func addRepositoryFlags(cmd *cobra.Command) {
	defaults := config.Default()
	cmd.Flags().StringP("repository", "r", defaults.Repository, "Package index URL")
	cmd.Flags().StringP("username", "u", "", "Package index username")
	cmd.Flags().StringP("password", "p", "", "Package index password")
	cmd.Flags().IntP("workers", "w", defaults.Workers, "Parallel uploads")
}

func (o *options) registryClient(cmd *cobra.Command) (*registry.Client, error) {
	cfg, used, err := config.Load(o.configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if used != "" {
		o.logger.Debug("loaded config", "path", used)
	}

	return registry.NewClient(cfg.Repository, o.logger,
		registry.WithCredentials(cfg.Username, cfg.Password),
		registry.WithWorkers(cfg.Workers),
	), nil
}

func newRegisterCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the package metadata with a package index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.metadata()
			if err != nil {
				return err
			}

			client, err := opts.registryClient(cmd)
			if err != nil {
				return err
			}
			return client.Register(cmd.Context(), m)
		},
	}

	addRepositoryFlags(cmd)
	return cmd
}

func newUploadCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [FILE...]",
		Short: "Upload source distributions to a package index",
		Long:  "Upload the given archives, or build a source distribution into a temporary directory and upload it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.metadata()
			if err != nil {
				return err
			}

			client, err := opts.registryClient(cmd)
			if err != nil {
				return err
			}

			files := args
			if len(files) == 0 {
				tmpDir, err := os.MkdirTemp("", "stackdist-upload-*")
				if err != nil {
					return fmt.Errorf("creating temp dir: %w", err)
				}
				defer os.RemoveAll(tmpDir)

				archive, err := sdist.NewBuilder(opts.logger).Build(m, opts.srcRoot, tmpDir)
				if err != nil {
					return fmt.Errorf("building source distribution: %w", err)
				}
				files = []string{archive}
			}

			var merr *multierror.Error
			for _, r := range client.Upload(cmd.Context(), files) {
				if r.Error != nil {
					merr = multierror.Append(merr, r.Error)
				}
			}
			return merr.ErrorOrNil()
		},
	}

	addRepositoryFlags(cmd)
	return cmd
}

func newParsePackageXMLCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "parse-package-xml PACKAGE_XML OUTFILE",
		Short: "Read package.xml and write its CMake variables to OUTFILE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pkgxml.WriteCMake(args[0], args[1]); err != nil {
				return err
			}
			opts.logger.Debug("wrote cmake variables", "manifest", args[0], "out", args[1])
			return nil
		},
	}
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the stackdist version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(opts.stdout, "stackdist", version.String())
		},
	}
}
