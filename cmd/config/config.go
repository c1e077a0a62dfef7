package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marupanda/sync/cmd/util"
	"github.com/marupanda/sync/pkg/config"
	"github.com/marupanda/sync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	parseMirrorConfig   = config.Parse
)

type options struct {
	path     string
	interval int
	logFile  string
	watch    bool
}

// New creates a new `config` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "config <source> <destination>",
		Short: "Save the default source and destination",
		Long: "Save the source, destination, and other settings to a config file,\n" +
			"so that `dirmirror` can be run without arguments.",
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := writeConfig(opts, args[0], args[1]); err != nil {
				err = errors.NewFriendlyError("Failed to write configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&opts.path, "path", config.DefaultPath,
		"Path to write the config to.")
	cmd.Flags().IntVarP(&opts.interval, "interval", "i", config.DefaultInterval,
		"Seconds to wait between passes.")
	cmd.Flags().StringVarP(&opts.logFile, "log-file", "l", "",
		"File to log each synced file to.")
	cmd.Flags().BoolVar(&opts.watch, "watch", false,
		"Start a pass as soon as the source changes.")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved settings",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			if err := showConfig(opts.path); err != nil {
				util.HandleFatalError(errors.WithContext(err, "read config"))
			}
		},
	})
	return cmd
}

func writeConfig(opts options, source, destination string) error {
	if opts.interval <= 0 {
		return errors.New("interval must be positive, but it's %d", opts.interval)
	}

	cfg := config.Mirror{
		Interval: opts.interval,
		Watch:    opts.watch,
	}

	fields := []struct {
		field *string
		value string
	}{
		{&cfg.Source, source},
		{&cfg.Destination, destination},
		{&cfg.LogFile, opts.logFile},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}

		abs, err := absPath(f.value)
		if err != nil {
			return errors.WithContext(err, "resolve path")
		}
		*f.field = abs
	}

	path, err := config.ExpandPath(opts.path)
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	if err := config.Write(path, cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func showConfig(path string) error {
	cfg, err := parseMirrorConfig(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "source:      %s\n", cfg.Source)
	fmt.Fprintf(stdout, "destination: %s\n", cfg.Destination)
	fmt.Fprintf(stdout, "interval:    %ds\n", cfg.Interval)
	if cfg.LogFile != "" {
		fmt.Fprintf(stdout, "log file:    %s\n", cfg.LogFile)
	}
	fmt.Fprintf(stdout, "watch:       %t\n", cfg.Watch)
	return nil
}

// absPath resolves paths relative to the working directory, so that the
// config means the same thing wherever it's read from.
func absPath(path string) (string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}
