//go:build ci
// +build ci

package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marupanda/sync/ci/mirror"
	"github.com/marupanda/sync/ci/util"
)

type TestFunction func(*testing.T, *util.TestHelper)

func TestDirmirror(t *testing.T) {
	binary, ok := os.LookupEnv("CI_DIRMIRROR_BINARY")
	if !ok {
		binary = "dirmirror"
	}

	helper, err := util.NewTestHelper(binary)
	require.NoError(t, err)

	tests := []struct {
		name   string
		testFn TestFunction
	}{
		{
			name:   "Mirror",
			testFn: mirror.Test,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			test.testFn(t, helper)
		})
	}
}
