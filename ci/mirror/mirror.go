package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marupanda/sync/ci/util"
)

func Test(t *testing.T, helper *util.TestHelper) {
	t.Run("FileChange", func(t *testing.T) {
		testFileChange(t, helper)
	})
	t.Run("DirectoryChange", func(t *testing.T) {
		testDirectoryChange(t, helper)
	})
	t.Run("ConfigFile", func(t *testing.T) {
		testConfigFile(t, helper)
	})
}

func testFileChange(t *testing.T, helper *util.TestHelper) {
	testCtx, cancelTest := context.WithCancel(context.Background())

	refFile := randomFile("test-file")
	changedContents := refFile.WithContents("changed contents")
	changedFileMode := refFile.WithMode(os.FileMode(0600))

	tests := []struct {
		name   string
		change fsOp
		check  mirrorAssertion
	}{
		{
			name:   "ChangeContents",
			change: createFile(changedContents),
			check:  shouldExist(changedContents),
		},
		{
			name:   "ChangeMode",
			change: createFile(changedFileMode),
			check:  shouldExist(changedFileMode),
		},
		{
			name:   "RemoveFile",
			change: removeFile(refFile.path),
			check:  shouldNotExist(refFile.path),
		},
	}

	fs, err := newMockFs()
	require.NoError(t, err)
	defer fs.cleanup()

	mirrorCtx, cancelMirror := context.WithCancel(testCtx)
	waitErr, err := helper.Mirror(mirrorCtx, fs.source, fs.destination, "--watch", "--interval", "1")
	require.NoError(t, err, "start dirmirror")
	go func() {
		assert.NoError(t, <-waitErr, "run dirmirror")
		cancelTest()
	}()
	defer cancelMirror()

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			require.NoError(t, createFile(refFile)(fs))
			require.NoError(t, helper.WaitUntilSynced(testCtx, all(shouldExist(refFile))(fs)))

			require.NoError(t, test.change(fs))
			assert.NoError(t, helper.WaitUntilSynced(testCtx, all(test.check)(fs)))
		})
	}
}

func testDirectoryChange(t *testing.T, helper *util.TestHelper) {
	testCtx, cancelTest := context.WithCancel(context.Background())
	defer cancelTest()

	nested := randomFile("dir/nested/file")
	sibling := randomFile("dir/sibling")

	fs, err := newMockFs()
	require.NoError(t, err)
	defer fs.cleanup()

	require.NoError(t, createFile(nested)(fs))
	require.NoError(t, createFile(sibling)(fs))

	waitErr, err := helper.Mirror(testCtx, fs.source, fs.destination, "--interval", "1")
	require.NoError(t, err, "start dirmirror")
	require.NoError(t, helper.WaitUntilSynced(testCtx,
		all(shouldExist(nested), shouldExist(sibling))(fs)))

	// Replace the directory with a file of the same name.
	replacement := randomFile("dir")
	require.NoError(t, removeFile("dir")(fs))
	require.NoError(t, createFile(replacement)(fs))
	assert.NoError(t, helper.WaitUntilSynced(testCtx,
		all(shouldExist(replacement), shouldNotExist(nested.path))(fs)))

	cancelTest()
	assert.NoError(t, <-waitErr)
}

func testConfigFile(t *testing.T, helper *util.TestHelper) {
	ctx := context.Background()

	fs, err := newMockFs()
	require.NoError(t, err)
	defer fs.cleanup()

	f := randomFile("configured")
	require.NoError(t, createFile(f)(fs))

	configPath := filepath.Join(fs.root, "dirmirror.yaml")
	_, err = helper.Run(ctx, "config", fs.source, fs.destination, "--path", configPath)
	require.NoError(t, err, "write config")

	out, err := helper.Run(ctx, "--config", configPath, "--once")
	require.NoError(t, err, "mirror once")
	assert.Contains(t, string(out), filepath.Join(fs.source, f.path)+" -> "+filepath.Join(fs.destination, f.path))
	assert.NoError(t, shouldExist(f)(fs))
}
