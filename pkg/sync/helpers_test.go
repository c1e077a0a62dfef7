package sync

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFile struct {
	path     string
	contents string
	mode     os.FileMode
	modTime  time.Time
}

func (f mockFile) writeToFs(fs afero.Fs) error {
	if err := fs.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	// Recreate the file so that read-only files can be rewritten.
	if err := fs.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := afero.WriteFile(fs, f.path, []byte(f.contents), f.mode); err != nil {
		return err
	}
	// The umask may have masked the mode given to WriteFile.
	if err := fs.Chmod(f.path, f.mode); err != nil {
		return err
	}
	return fs.Chtimes(f.path, time.Now(), f.modTime)
}

func randomFile(overrides mockFile) mockFile {
	if overrides.path == "" {
		overrides.path = strconv.Itoa(rand.Int())
	}

	if overrides.contents == "" {
		overrides.contents = strconv.Itoa(rand.Int())
	}

	if overrides.modTime.IsZero() {
		randomTime := time.Date(2019, 11, 10, rand.Intn(23), rand.Intn(59), rand.Intn(59), 0, time.UTC)
		overrides.modTime = randomTime
	}

	if overrides.mode == 0000 {
		overrides.mode = os.FileMode(0640 | rand.Intn(8))
	}
	return overrides
}

// failingFs fails opening the paths in `failOpen` with the given error.
type failingFs struct {
	afero.Fs
	failOpen map[string]error
}

func newFailingFs(fs afero.Fs) *failingFs {
	return &failingFs{Fs: fs, failOpen: map[string]error{}}
}

func (fs *failingFs) Open(name string) (afero.File, error) {
	if err, ok := fs.failOpen[name]; ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	return fs.Fs.Open(name)
}

func (fs *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if err, ok := fs.failOpen[name]; ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	return fs.Fs.OpenFile(name, flag, perm)
}

// newTestSyncer creates a Syncer between `src` and `dst` whose log lines are
// captured by the returned hook.
func newTestSyncer(t *testing.T, fs afero.Fs, src, dst string) (*Syncer, *test.Hook) {
	sink, hook := test.NewNullLogger()
	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	s, err := New(src, dst, WithFs(fs), WithLogSink(sink), WithLogger(log))
	require.NoError(t, err)
	return s, hook
}

func assertContents(t *testing.T, fs afero.Fs, path, exp string) {
	actual, err := afero.ReadFile(fs, path)
	if assert.NoError(t, err, path) {
		assert.Equal(t, exp, string(actual), path)
	}
}

func assertDoesNotExist(t *testing.T, fs afero.Fs, path string) {
	exists, err := afero.Exists(fs, path)
	assert.NoError(t, err)
	assert.False(t, exists, "%s should not exist", path)
}
