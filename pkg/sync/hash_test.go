package sync

import (
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile(t *testing.T) {
	fs := newFailingFs(afero.NewMemMapFs())
	require.NoError(t, afero.WriteFile(fs, "/a", []byte("a"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/also-a", []byte("a"), 0600))
	require.NoError(t, afero.WriteFile(fs, "/b", []byte("b"), 0644))

	a, err := HashFile(fs, "/a")
	assert.NoError(t, err)
	assert.Equal(t, Digest("ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb"), a)
	assert.True(t, a.Known())

	alsoA, err := HashFile(fs, "/also-a")
	assert.NoError(t, err)
	assert.Equal(t, a, alsoA)

	b, err := HashFile(fs, "/b")
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)

	missing, err := HashFile(fs, "/missing")
	assert.Error(t, err)
	assert.Equal(t, NoDigest, missing)
	assert.False(t, missing.Known())

	fs.failOpen["/b"] = syscall.EACCES
	unreadable, err := HashFile(fs, "/b")
	assert.Error(t, err)
	assert.Equal(t, NoDigest, unreadable)
}

func TestNeedsCopy(t *testing.T) {
	tests := []struct {
		name string
		src  Digest
		dst  Digest
		exp  bool
	}{
		{name: "Equal", src: "a", dst: "a", exp: false},
		{name: "Different", src: "a", dst: "b", exp: true},
		{name: "MissingDestination", src: "a", dst: NoDigest, exp: true},
		{name: "UnreadableSource", src: NoDigest, dst: "b", exp: false},
		{name: "BothUnreadable", src: NoDigest, dst: NoDigest, exp: false},
	}

	for _, test := range tests {
		assert.Equal(t, test.exp, needsCopy(test.src, test.dst), test.name)
	}
}
