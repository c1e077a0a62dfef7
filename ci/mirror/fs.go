package mirror

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/marupanda/sync/pkg/errors"
)

type file struct {
	path     string
	contents string
	mode     os.FileMode
	modTime  time.Time
}

func (f file) WithContents(contents string) file {
	f.contents = contents
	return f
}

func (f file) WithMode(mode os.FileMode) file {
	f.mode = mode
	return f
}

func randomFile(path string) file {
	randomTime := time.Date(2019, 11, 10, rand.Intn(23), rand.Intn(59), rand.Intn(59), 0, time.UTC)
	return file{
		path:     path,
		contents: strconv.Itoa(rand.Int()),
		mode:     os.FileMode(0640 | rand.Intn(8)),
		modTime:  randomTime,
	}
}

// mockFs is a temporary source and destination pair.
type mockFs struct {
	root        string
	source      string
	destination string
}

type fsOp func(mockFs) error

func newMockFs() (mockFs, error) {
	root, err := os.MkdirTemp("", "dirmirror-ci")
	if err != nil {
		return mockFs{}, errors.WithContext(err, "make root dir")
	}

	source := filepath.Join(root, "source")
	if err := os.Mkdir(source, 0755); err != nil {
		return mockFs{}, errors.WithContext(err, "make source directory")
	}

	return mockFs{
		root:        root,
		source:      source,
		destination: filepath.Join(root, "destination"),
	}, nil
}

func (fs mockFs) cleanup() error {
	return os.RemoveAll(fs.root)
}

func createFile(toCreate file) fsOp {
	return func(fs mockFs) error {
		path := filepath.Join(fs.source, toCreate.path)

		parent := filepath.Dir(path)
		if err := os.MkdirAll(parent, 0755); err != nil {
			return errors.WithContext(err, "make parent")
		}

		f, err := os.Create(path)
		if err != nil {
			return errors.WithContext(err, "create")
		}
		defer f.Close()

		_, err = io.Copy(f, bytes.NewReader([]byte(toCreate.contents)))
		if err != nil {
			return errors.WithContext(err, "write")
		}

		if err := os.Chmod(path, toCreate.mode); err != nil {
			return errors.WithContext(err, "chmod")
		}

		if err := os.Chtimes(path, time.Now(), toCreate.modTime); err != nil {
			return errors.WithContext(err, "chtimes")
		}
		return nil
	}
}

func removeFile(path string) fsOp {
	return func(fs mockFs) error {
		return os.RemoveAll(filepath.Join(fs.source, path))
	}
}

func getMirroredFile(fs mockFs, path string) (file, bool, error) {
	fullPath := filepath.Join(fs.destination, path)
	fi, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return file{}, false, nil
		}
		return file{}, false, errors.WithContext(err, "stat")
	}

	contents, err := os.ReadFile(fullPath)
	if err != nil {
		return file{}, false, errors.WithContext(err, "read")
	}

	return file{
		path:     path,
		contents: string(contents),
		mode:     fi.Mode(),
		modTime:  fi.ModTime().UTC(),
	}, true, nil
}

type mirrorAssertion func(mockFs) error

func shouldExist(exp file) mirrorAssertion {
	return func(fs mockFs) error {
		actual, exists, err := getMirroredFile(fs, exp.path)
		if err != nil {
			return errors.WithContext(err, "get mirrored file")
		}

		if !exists {
			return fmt.Errorf("file %q does not exist", exp.path)
		}

		if actual != exp {
			return fmt.Errorf("Expected file %v, got %v", exp, actual)
		}
		return nil
	}
}

func shouldNotExist(path string) mirrorAssertion {
	return func(fs mockFs) error {
		_, exists, err := getMirroredFile(fs, path)
		if err != nil {
			return errors.WithContext(err, "get mirrored file")
		}

		if exists {
			return fmt.Errorf("file %q exists", path)
		}
		return nil
	}
}

func all(assertions ...mirrorAssertion) func(mockFs) func() error {
	return func(fs mockFs) func() error {
		return func() error {
			for _, assertion := range assertions {
				if err := assertion(fs); err != nil {
					return err
				}
			}
			return nil
		}
	}
}
