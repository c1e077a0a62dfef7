package sync

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/marupanda/sync/pkg/errors"
)

// tempFilePattern names the staging files that copies are written to before
// they're moved into place.
const tempFilePattern = stagingPrefix + "*"

const stagingPrefix = ".dirmirror-"

// maxSymlinks bounds how many links resolveRoot follows.
const maxSymlinks = 40

func isStagingName(name string) bool {
	return strings.HasPrefix(name, stagingPrefix)
}

// resolveRoot follows `path` while it's a symlink, so that a source root that
// links to a directory is walked like the directory itself. Filesystems that
// can't read links return `path` unchanged.
func resolveRoot(fs afero.Fs, path string) (string, error) {
	reader, ok := fs.(afero.LinkReader)
	if !ok {
		return path, nil
	}

	resolved := path
	for i := 0; i < maxSymlinks; i++ {
		fi, err := lstat(fs, resolved)
		if err != nil {
			return "", err
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			return resolved, nil
		}

		target, err := reader.ReadlinkIfPossible(resolved)
		if err != nil {
			return "", errors.WithContext(err, "read link")
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(resolved), target)
		}
		resolved = target
	}
	return "", errors.New("too many levels of symbolic links: %q", path)
}

// lstat stats `path` without following symlinks if the filesystem supports
// it.
func lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if lstater, ok := fs.(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(path)
		return fi, err
	}
	return fs.Stat(path)
}

// removeAnyway removes whatever is at `path`, whether it's a file or a
// directory, and whether or not the directory is empty.
func removeAnyway(fs afero.Fs, path string) error {
	return fs.RemoveAll(path)
}

// copyFile copies the contents, permissions, and modification time of `src`
// to `dst`, replacing `dst` if it exists. The contents are first written to a
// staging file in the destination directory, so `dst` is either the old file
// or the complete new one.
func copyFile(fs afero.Fs, src, dst string) (err error) {
	srcFile, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	stagingFile, err := afero.TempFile(fs, filepath.Dir(dst), tempFilePattern)
	if err != nil {
		return errors.WithContext(err, "open staging file")
	}
	stagingPath := stagingFile.Name()
	defer func() {
		if err != nil {
			stagingFile.Close()
			fs.Remove(stagingPath)
		}
	}()

	if _, err := io.Copy(stagingFile, srcFile); err != nil {
		return errors.WithContext(err, "copy")
	}

	if err := stagingFile.Close(); err != nil {
		return errors.WithContext(err, "close staging file")
	}

	if err := fs.Chmod(stagingPath, fileInfo.Mode()); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	if err := fs.Rename(stagingPath, dst); err != nil {
		return errors.WithContext(err, "move into place")
	}

	// Change the modification time as the last step so that it doesn't get
	// reset by other file operations.
	if err := fs.Chtimes(dst, time.Now(), fileInfo.ModTime()); err != nil {
		return errors.WithContext(err, "set file modtime")
	}
	return nil
}
