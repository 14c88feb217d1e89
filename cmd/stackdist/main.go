package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/frederic-klein/stackdist/internal/dist"
	"github.com/frederic-klein/stackdist/internal/stack"
	"github.com/frederic-klein/stackdist/internal/version"
)

// Exit statuses.
const (
	exitOK                 = 0
	exitError              = 1
	exitVersionUnavailable = 255
)

type options struct {
	stackPath  string
	srcRoot    string
	configPath string
	verbose    bool

	stdout io.Writer
	stderr io.Writer
	logger *log.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &options{stdout: stdout, stderr: stderr}
	rootCmd := newRootCmd(opts)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var verr *stack.VersionError
	if errors.As(err, &verr) {
		fmt.Fprintln(stderr, verr.Error())
		return exitVersionUnavailable
	}

	if opts.logger != nil {
		opts.logger.Error(err.Error())
	} else {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return exitError
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stackdist",
		Short:         "Package the catkin build system library for distribution",
		Long:          "stackdist reads the stack version from stack.xml and builds, installs, registers or uploads the catkin package.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if opts.verbose {
				level = log.DebugLevel
			}
			opts.logger = log.NewWithOptions(opts.stderr, log.Options{
				Prefix: "stackdist",
				Level:  level,
			})
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.stackPath, "stack", stack.DefaultPath, "Stack descriptor to read the version from")
	flags.StringVar(&opts.srcRoot, "src", ".", "Source root holding the package directories")
	flags.StringVar(&opts.configPath, "config", "", "Repository config file (default .stackdist.yaml in . or $HOME)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		newShowCmd(opts),
		newCheckCmd(opts),
		newEggInfoCmd(opts),
		newSdistCmd(opts),
		newInstallCmd(opts),
		newRegisterCmd(opts),
		newUploadCmd(opts),
		newParsePackageXMLCmd(opts),
		newVersionCmd(opts),
	)

	return rootCmd
}

// metadata reads the stack version and returns the registration metadata.
// No registration step runs when this fails.
func (o *options) metadata() (*dist.Metadata, error) {
	o.logger.Debug("reading version", "descriptor", o.stackPath)
	v, err := stack.ReadVersion(o.stackPath)
	if err != nil {
		return nil, err
	}
	if v == "" {
		o.logger.Warn("descriptor has no version, continuing with an empty one", "descriptor", o.stackPath)
	}
	return dist.Catkin(v), nil
}
