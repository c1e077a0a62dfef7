package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marupanda/sync/cmd/util"
	"github.com/marupanda/sync/pkg/config"
	"github.com/marupanda/sync/pkg/errors"
	"github.com/marupanda/sync/pkg/fswatch"
	"github.com/marupanda/sync/pkg/sync"
)

// Mocked out for unit testing.
var (
	fs               = afero.NewOsFs()
	stdout io.Writer = os.Stdout
)

type options struct {
	configPath string
	logFile    string
	interval   int
	watch      bool
	once       bool
}

func (opts *options) register(flags *pflag.FlagSet) {
	flags.StringVar(&opts.configPath, "config", config.DefaultPath,
		"Path to a config file with default settings.")
	flags.IntVarP(&opts.interval, "interval", "i", config.DefaultInterval,
		"Seconds to wait between passes.")
	flags.StringVarP(&opts.logFile, "log-file", "l", "",
		"File to log each synced file to. Defaults to stdout.")
	flags.BoolVar(&opts.watch, "watch", false,
		"Start a pass as soon as the source changes, rather than only every interval.")
	flags.BoolVar(&opts.once, "once", false,
		"Run a single pass and exit.")
}

// New creates the `dirmirror` command.
func New() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "dirmirror <source> <destination>",
		Short: "Mirror a directory into another directory.",
		Long: "Mirror a directory into another directory.\n\n" +
			"Every interval, new and changed files are copied from the source to\n" +
			"the destination, and anything that was removed from the source since\n" +
			"the previous pass is removed from the destination.\n\n" +
			"The source and destination may be omitted if they're set in the\n" +
			"config file.\n\n" +
			"A source named like a subcommand, such as `config` or `version`,\n" +
			"must come after `--`, as in `dirmirror -- config backup`, or be\n" +
			"written as a path, as in `dirmirror ./config backup`.",
		Args: cobra.MaximumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			settings, err := opts.resolve(cmd.Flags(), args)
			if err != nil {
				util.HandleFatalError(err)
			}

			if err := run(settings, opts.once); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	opts.register(cmd.Flags())
	return cmd
}

// resolve merges the config file, flags, and arguments. Flags and arguments
// take precedence over the config file.
func (opts *options) resolve(flags *pflag.FlagSet, args []string) (config.Mirror, error) {
	settings := config.Mirror{Interval: config.DefaultInterval}
	parsed, err := config.Parse(opts.configPath)
	switch {
	case err == nil:
		settings = parsed
		if settings.Interval == 0 {
			settings.Interval = config.DefaultInterval
		}
	case isNotFound(err) && !flags.Changed("config"):
		log.WithField("path", opts.configPath).Debug("No config file. Using defaults.")
	default:
		return config.Mirror{}, errors.WithContext(err, "read config")
	}

	if flags.Changed("interval") {
		settings.Interval = opts.interval
	}
	if flags.Changed("log-file") {
		settings.LogFile = opts.logFile
	}
	if flags.Changed("watch") {
		settings.Watch = opts.watch
	}
	if len(args) > 0 {
		settings.Source = args[0]
	}
	if len(args) > 1 {
		settings.Destination = args[1]
	}

	if settings.Source == "" || settings.Destination == "" {
		return config.Mirror{}, errors.NewFriendlyError(
			"Both a source and a destination are required.\n" +
				"Pass them as arguments, or set them in the config file.")
	}

	if settings.Interval <= 0 {
		return config.Mirror{}, errors.NewFriendlyError(
			"The interval must be at least one second, but it's %d.", settings.Interval)
	}

	for _, path := range []*string{&settings.Source, &settings.Destination, &settings.LogFile} {
		if *path == "" {
			continue
		}

		expanded, err := config.ExpandPath(*path)
		if err != nil {
			return config.Mirror{}, errors.WithContext(err, "expand path")
		}
		*path = expanded
	}
	return settings, nil
}

func isNotFound(err error) bool {
	_, ok := errors.RootCause(err).(errors.FileNotFound)
	return ok
}

func run(settings config.Mirror, once bool) error {
	if err := checkSource(settings.Source); err != nil {
		return err
	}

	sink, closeSink, err := newLogSink(settings.LogFile)
	if err != nil {
		return errors.WithContext(err, "open log file")
	}
	defer closeSink()

	syncer, err := sync.New(settings.Source, settings.Destination, sync.WithFs(fs), sync.WithLogSink(sink))
	if err != nil {
		return errors.WithContext(err, "create syncer")
	}

	r := runner{
		syncer:   syncer,
		interval: time.Duration(settings.Interval) * time.Second,
		clock:    clockwork.NewRealClock(),
		log:      log.StandardLogger(),
	}
	if once {
		return r.syncOnce()
	}

	if settings.Watch {
		watcher, err := fswatch.Watch(settings.Source)
		switch {
		case err == nil:
			defer watcher.Close()
			r.trigger = watcher.Events()
		case strings.Contains(errors.RootCause(err).Error(), "too many open files"):
			log.Warnf("Too many files to watch for changes. "+
				"Changes will be picked up every %d seconds instead.", settings.Interval)
		default:
			return errors.WithContext(err, "watch source")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.WithFields(log.Fields{
		"source":      syncer.Source(),
		"destination": syncer.Destination(),
		"interval":    r.interval,
	}).Info("Mirroring")
	r.Run(ctx)
	return nil
}

func checkSource(source string) error {
	fi, err := fs.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFriendlyError("The source directory %q doesn't exist.", source)
		}
		return errors.WithContext(err, "stat source")
	}

	if !fi.IsDir() {
		return errors.NewFriendlyError("The source %q is not a directory.", source)
	}
	return nil
}

// newLogSink returns the sink that the per-file lines are written to, and a
// function that closes it.
func newLogSink(path string) (sync.LogSink, func(), error) {
	sink := log.New()
	sink.SetFormatter(sync.LineFormatter{})
	if path == "" {
		sink.SetOutput(stdout)
		return sink, func() {}, nil
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, errors.WithContext(err, "create parent directory")
	}

	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, errors.WithContext(err, fmt.Sprintf("open %q", path))
	}
	sink.SetOutput(f)
	return sink, func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Warn("Failed to close log file")
		}
	}, nil
}
