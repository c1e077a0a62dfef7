package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceNamedLikeSubcommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		expCmd  string
		expArgs []string
	}{
		{
			name:    "Subcommand",
			args:    []string{"config", "backup"},
			expCmd:  "config",
			expArgs: []string{"backup"},
		},
		{
			name:    "AfterDoubleDash",
			args:    []string{"--", "config", "backup"},
			expCmd:  "dirmirror",
			expArgs: []string{"config", "backup"},
		},
		{
			name:    "FlagsBeforeDoubleDash",
			args:    []string{"--interval", "5", "--", "version", "backup"},
			expCmd:  "dirmirror",
			expArgs: []string{"version", "backup"},
		},
		{
			name:    "RelativePath",
			args:    []string{"./config", "backup"},
			expCmd:  "dirmirror",
			expArgs: []string{"./config", "backup"},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			cmd, args, err := newRootCommand().Find(test.args)
			require.NoError(t, err)
			assert.Equal(t, test.expCmd, cmd.Name())

			require.NoError(t, cmd.ParseFlags(args))
			assert.Equal(t, test.expArgs, cmd.Flags().Args())
		})
	}
}
