/*
The sync package implements the one-way mirroring of a source directory into
a destination directory.

Each pass has two steps:
1) Stale entries are cleaned. Every node recorded during the previous pass is
   stat'ed again in the source. If it's gone, or its mode changed (e.g. a file
   was replaced by a directory, or its permissions changed), its counterpart
   in the destination is removed.
2) The source tree is walked. Directories are created in the destination, and
   files are copied over if the sha256 of their contents differs from the
   destination's. Every node visited is recorded for the next pass's cleanup.

The walk never removes anything, so deletions are driven entirely by the
previous pass's snapshot. Nodes that only exist in the destination, and were
never seen in the source, are left alone.

A source root that is a symlink is followed, and its target is walked in its
place. Symlinks below the root are not followed by the walk.

Copies are written to a ".dirmirror-*" staging file next to their target and
renamed into place. Staging files left behind by an interrupted copy are
removed when their directory is next walked, unless the source has a file of
the same name.

There is no metadata stored on disk. The destination tree is the persisted
state, and digests are recomputed from the file contents on every pass.
*/
package sync
