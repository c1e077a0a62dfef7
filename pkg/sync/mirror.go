package sync

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// An Entry is a node that was seen under the source root during a pass.
type Entry struct {
	// RelativePath is the path of the node relative to the source root. It's
	// also the node's path relative to the destination root.
	RelativePath string

	// Mode is the mode of the source node, as reported by Lstat.
	Mode os.FileMode

	// ContentsHash is the digest of the source file. It's NoDigest for
	// directories, special files, and files that couldn't be read.
	ContentsHash Digest
}

// Snapshot is every node seen under the source root during the most recent
// pass, in the order they were visited.
type Snapshot []Entry

// Paths returns the relative paths of all the entries.
func (snapshot Snapshot) Paths() (paths []string) {
	for _, e := range snapshot {
		paths = append(paths, e.RelativePath)
	}
	return paths
}

// Get returns the entry for `relativePath`, if it was recorded.
func (snapshot Snapshot) Get(relativePath string) (Entry, bool) {
	for _, e := range snapshot {
		if e.RelativePath == relativePath {
			return e, true
		}
	}
	return Entry{}, false
}

// Version returns a fingerprint of the snapshot. Two snapshots with the same
// entries have the same version regardless of the order they were walked in.
func (snapshot Snapshot) Version() string {
	sorted := append(Snapshot{}, snapshot...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RelativePath < sorted[j].RelativePath
	})

	hasher := xxhash.New()
	for _, e := range sorted {
		fmt.Fprintf(hasher, "%s\x00%#o\x00%s\n", e.RelativePath, uint32(e.Mode), e.ContentsHash)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], hasher.Sum64())
	return hex.EncodeToString(buf[:])
}

// withUnvisited returns the snapshot extended with the entries of `previous`
// that weren't visited during this pass. It's used when a walk is aborted so
// that the next pass still checks the nodes the walk never reached.
func (snapshot Snapshot) withUnvisited(previous Snapshot) Snapshot {
	visited := map[string]struct{}{}
	for _, e := range snapshot {
		visited[e.RelativePath] = struct{}{}
	}

	merged := append(Snapshot{}, snapshot...)
	for _, e := range previous {
		if _, ok := visited[e.RelativePath]; !ok {
			merged = append(merged, e)
		}
	}
	return merged
}
