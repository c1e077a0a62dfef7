package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	goSync "sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/marupanda/sync/pkg/errors"
)

// LogSink receives one line for every source file considered during a pass.
// *logrus.Logger and *log.Logger both satisfy it.
type LogSink interface {
	Println(args ...interface{})
}

// Syncer mirrors a source directory into a destination directory. Each call
// to Sync is a complete pass. The only state kept between passes is the
// Snapshot of the nodes seen during the previous pass, which is used to
// remove destination nodes whose source disappeared or changed type.
//
// Syncer doesn't protect against other processes syncing into the same
// destination.
type Syncer struct {
	fs          afero.Fs
	source      string
	destination string
	sink        LogSink
	log         logrus.FieldLogger

	// lock serializes passes.
	lock     goSync.Mutex
	previous Snapshot
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithFs makes the Syncer operate on `fs` rather than the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(s *Syncer) {
		s.fs = fs
	}
}

// WithLogSink sets where the per-file "source -> destination" lines are
// written. They're written to stdout by default.
func WithLogSink(sink LogSink) Option {
	return func(s *Syncer) {
		s.sink = sink
	}
}

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Syncer) {
		s.log = log
	}
}

// Result describes what a pass did. The paths are relative to the roots.
type Result struct {
	// Copied are the files whose contents were copied to the destination.
	Copied []string

	// Removed are the stale destination nodes that were removed.
	Removed []string

	// Failed are the files that couldn't be read or copied.
	Failed []string
}

// NewLineSink returns a logger that writes bare lines to stdout.
func NewLineSink() *logrus.Logger {
	sink := logrus.New()
	sink.SetOutput(os.Stdout)
	sink.SetFormatter(LineFormatter{})
	return sink
}

// LineFormatter formats log entries as just their message.
type LineFormatter struct{}

// Format implements logrus.Formatter.
func (LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(entry.Message + "\n"), nil
}

// New creates a Syncer that mirrors `source` into `destination`. The
// destination directory and its parents are created if they don't exist.
func New(source, destination string, opts ...Option) (*Syncer, error) {
	s := &Syncer{
		fs:          afero.NewOsFs(),
		source:      filepath.Clean(source),
		destination: filepath.Clean(destination),
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = NewLineSink()
	}

	if err := s.fs.MkdirAll(s.destination, 0755); err != nil {
		return nil, errors.WithContext(err, "create destination")
	}
	return s, nil
}

// Source returns the source root.
func (s *Syncer) Source() string {
	return s.source
}

// Destination returns the destination root.
func (s *Syncer) Destination() string {
	return s.destination
}

// Snapshot returns the nodes recorded by the most recent pass.
func (s *Syncer) Snapshot() Snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append(Snapshot{}, s.previous...)
}

// Sync runs a single pass. First, destination nodes whose source was removed
// or changed mode since the previous pass are removed. Then the source tree
// is walked, and every directory is created in the destination and every
// file whose contents differ from the destination is copied over.
//
// Problems with individual files are logged and reported in the Result. An
// error is only returned if the source root is missing, or if part of the
// source tree couldn't be walked, in which case the pass stops where it was.
func (s *Syncer) Sync() (Result, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	// A missing source root would otherwise make every recorded entry look
	// stale and empty the destination.
	root, err := resolveRoot(s.fs, s.source)
	if err != nil {
		return Result{}, errors.WithContext(err, "resolve source")
	}
	fi, err := lstat(s.fs, root)
	if err != nil {
		return Result{}, errors.WithContext(err, "stat source")
	}
	if !fi.IsDir() {
		return Result{}, errors.WithContext(errors.ErrNotDirectory, s.source)
	}

	var res Result
	survivors := s.cleanStaleEntries(&res)

	current, err := s.walkAndReconcile(&res, root)
	if err != nil {
		s.previous = current.withUnvisited(survivors)
		return res, errors.WithContext(err, "walk source")
	}
	s.previous = current
	return res, nil
}

// cleanStaleEntries removes the destination counterpart of every entry from
// the previous pass whose source node is gone or has a different mode. It
// consumes the previous snapshot, and returns the entries that are still
// valid.
func (s *Syncer) cleanStaleEntries(res *Result) (survivors Snapshot) {
	previous := s.previous
	s.previous = nil

	for _, e := range previous {
		sourcePath := filepath.Join(s.source, e.RelativePath)
		fi, err := lstat(s.fs, sourcePath)
		if err == nil && fi.Mode() == e.Mode {
			survivors = append(survivors, e)
			continue
		}

		// The removal is best effort. The destination node may already be
		// gone, for example because its parent directory was removed
		// earlier in this loop. Failures are intentionally ignored.
		_ = removeAnyway(s.fs, filepath.Join(s.destination, e.RelativePath))
		res.Removed = append(res.Removed, e.RelativePath)
	}
	return survivors
}

// walkAndReconcile walks the source tree, starting at `root`, and brings the
// destination up to date with it. `root` is the source root with any
// symlinks at the top level resolved. Parents are always visited before their
// children, so the destination directory for a file exists before the file is
// copied. It returns the entries that were visited, even if the walk failed.
func (s *Syncer) walkAndReconcile(res *Result, root string) (current Snapshot, err error) {
	err = afero.Walk(s.fs, root, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			// The node was removed after its parent directory was read.
			if os.IsNotExist(err) && walkPath != root {
				return nil
			}
			return errors.WithContext(err, fmt.Sprintf("read %q", walkPath))
		}

		if walkPath == root {
			s.removeStagingFiles(s.source, s.destination)
			return nil
		}

		relativePath, err := filepath.Rel(root, walkPath)
		if err != nil {
			return errors.WithContext(err, "relative path")
		}
		if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
			// This shouldn't happen because `walkPath` is always a child of
			// the root.
			return errors.New("%q is outside of %q", walkPath, root)
		}
		sourcePath := filepath.Join(s.source, relativePath)
		destinationPath := filepath.Join(s.destination, relativePath)

		entry := Entry{RelativePath: relativePath, Mode: fi.Mode()}
		if fi.IsDir() {
			if err := s.fs.MkdirAll(destinationPath, 0755); err != nil {
				return errors.WithContext(err, "create destination directory")
			}
			s.removeStagingFiles(sourcePath, destinationPath)
			current = append(current, entry)
			return nil
		}

		s.sink.Println(sourcePath + " -> " + destinationPath)
		if isSpecial(fi.Mode()) {
			s.log.WithField("path", sourcePath).Debug("Skipping special file")
		} else {
			entry.ContentsHash = s.reconcileFile(res, relativePath, sourcePath, destinationPath)
		}
		current = append(current, entry)
		return nil
	})
	return current, err
}

// removeStagingFiles removes the staging files left in `destinationDir` by
// copies that were interrupted, such as when the process was killed. Names
// that also exist in `sourceDir` are real files and are kept.
func (s *Syncer) removeStagingFiles(sourceDir, destinationDir string) {
	children, err := afero.ReadDir(s.fs, destinationDir)
	if err != nil {
		s.log.WithError(err).WithField("path", destinationDir).Debug(
			"Failed to list destination directory")
		return
	}

	for _, child := range children {
		if !isStagingName(child.Name()) {
			continue
		}

		if _, err := lstat(s.fs, filepath.Join(sourceDir, child.Name())); !os.IsNotExist(err) {
			continue
		}

		path := filepath.Join(destinationDir, child.Name())
		if err := removeAnyway(s.fs, path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("Failed to remove staging file")
		}
	}
}

// reconcileFile copies `sourcePath` to `destinationPath` if their contents
// differ, and returns the digest of the source.
func (s *Syncer) reconcileFile(res *Result, relativePath, sourcePath, destinationPath string) Digest {
	log := s.log.WithFields(logrus.Fields{
		"source":      sourcePath,
		"destination": destinationPath,
	})

	sourceHash, err := HashFile(s.fs, sourcePath)
	if err != nil {
		log.WithError(err).Warn("Failed to read source file. It will be retried on the next pass.")
		res.Failed = append(res.Failed, relativePath)
		return NoDigest
	}

	// A destination that doesn't exist or can't be read just gets
	// overwritten.
	destinationHash, _ := HashFile(s.fs, destinationPath)
	if !needsCopy(sourceHash, destinationHash) {
		return sourceHash
	}

	if err := copyFile(s.fs, sourcePath, destinationPath); err != nil {
		log.WithError(err).Warn("Failed to copy file. It will be retried on the next pass.")
		res.Failed = append(res.Failed, relativePath)
		return sourceHash
	}
	res.Copied = append(res.Copied, relativePath)
	return sourceHash
}

// isSpecial reports whether the mode is for a node that can't be copied by
// reading it, such as a named pipe or a device.
func isSpecial(mode os.FileMode) bool {
	return mode&(os.ModeNamedPipe|os.ModeSocket|os.ModeDevice|os.ModeCharDevice|os.ModeIrregular) != 0
}
