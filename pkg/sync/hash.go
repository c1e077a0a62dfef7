package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/spf13/afero"

	"github.com/marupanda/sync/pkg/errors"
)

// Digest is the hex-encoded sha256 of a file's contents.
type Digest string

// NoDigest is the digest of a file whose contents couldn't be read. It never
// equals the digest of real contents.
const NoDigest Digest = ""

// Known reports whether the digest was computed from actual file contents.
func (d Digest) Known() bool {
	return d != NoDigest
}

// HashFile returns the sha256 hash of the file at the given path.
func HashFile(fs afero.Fs, path string) (Digest, error) {
	f, err := fs.Open(path)
	if err != nil {
		return NoDigest, errors.WithContext(err, "open")
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return NoDigest, errors.WithContext(err, "read")
	}

	return Digest(hex.EncodeToString(hasher.Sum(nil))), nil
}

// needsCopy decides whether the destination has to be overwritten. A source
// that couldn't be read is never copied, even if the destination is
// unreadable too.
func needsCopy(src, dst Digest) bool {
	return src.Known() && src != dst
}
