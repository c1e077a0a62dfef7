package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContext(t *testing.T) {
	assert.Nil(t, WithContext(nil, "open"))

	root := New("permission denied")
	err := WithContext(WithContext(root, "open"), "hash source")
	assert.EqualError(t, err, "hash source: open: permission denied")
	assert.Equal(t, root, RootCause(err))
	assert.ErrorIs(t, err, root)
}

func TestGetPrintableMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		exp  string
	}{
		{
			name: "Internal",
			err:  WithContext(New("boom"), "walk"),
			exp:  "walk: boom",
		},
		{
			name: "Friendly",
			err:  WithContext(NewFriendlyError("Source %q is missing.", "/src"), "parse"),
			exp:  `Source "/src" is missing.`,
		},
		{
			name: "Typed",
			err:  WithContext(FileNotFound{Path: "/cfg.yaml"}, "read"),
			exp:  `read: "/cfg.yaml" does not exist`,
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.exp, GetPrintableMessage(test.err), test.name)
	}
}

func TestRootCauseTyped(t *testing.T) {
	err := WithContext(FileNotFound{Path: "/cfg.yaml"}, "parse")
	dneErr, ok := RootCause(err).(FileNotFound)
	assert.True(t, ok)
	assert.Equal(t, "/cfg.yaml", dneErr.Path)
}
