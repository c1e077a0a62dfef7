package config

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/marupanda/sync/pkg/errors"
)

func TestParseMirror(t *testing.T) {
	out := "/home/user/.dirmirror.yaml"

	tests := []struct {
		name      string
		input     []byte
		expConfig Mirror
		expError  error
	}{
		{
			name:  "EmptyVersion",
			input: mustMarshal(Mirror{Source: "/src", Destination: "/dst"}),
			expConfig: Mirror{
				Version:     InitialMirrorConfigVersion,
				Source:      "/src",
				Destination: "/dst",
			},
		},
		{
			name: "AllFields",
			input: mustMarshal(Mirror{
				Version:     SupportedMirrorConfigVersion,
				Source:      "/src",
				Destination: "/dst",
				Interval:    5,
				LogFile:     "/var/log/dirmirror.log",
				Watch:       true,
			}),
			expConfig: Mirror{
				Version:     SupportedMirrorConfigVersion,
				Source:      "/src",
				Destination: "/dst",
				Interval:    5,
				LogFile:     "/var/log/dirmirror.log",
				Watch:       true,
			},
		},
		{
			name:  "RelativePaths",
			input: mustMarshal(Mirror{Source: "src", Destination: "../backup/dst", LogFile: "mirror.log"}),
			expConfig: Mirror{
				Version:     InitialMirrorConfigVersion,
				Source:      "/home/user/src",
				Destination: "/home/backup/dst",
				LogFile:     "/home/user/mirror.log",
			},
		},
		{
			name: "IncorrectVersion",
			input: mustMarshal(Mirror{
				Version: "incorrect_version",
				Source:  "/src",
			}),
			expError: errors.WithContext(incompatibleVersionError{
				path:   out,
				exp:    SupportedMirrorConfigVersion,
				actual: "incorrect_version",
			}, "parse"),
		},
		{
			name: "IncorrectVersionAndExtraFields",
			input: []byte(`
version: incorrect_version
extra: fields
`),
			expError: errors.WithContext(incompatibleVersionError{
				path:   out,
				exp:    SupportedMirrorConfigVersion,
				actual: "incorrect_version",
			}, "parse"),
		},
		{
			name:     "NegativeInterval",
			input:    mustMarshal(Mirror{Source: "/src", Interval: -1}),
			expError: errors.NewFriendlyError("The interval in %q must be positive, but it's %d.", out, -1),
		},
	}

	fs = afero.NewMemMapFs()
	homedirExpand = func(path string) (string, error) {
		if strings.HasPrefix(path, "~") {
			return "/home/user" + strings.TrimPrefix(path, "~"), nil
		}
		return path, nil
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			err := afero.WriteFile(fs, out, test.input, 0644)
			assert.NoError(t, err)
			config, err := Parse("~/.dirmirror.yaml")
			assert.Equal(t, test.expConfig, config)
			assert.Equal(t, test.expError, err)
		})
	}
}

func TestParseMirrorErrors(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(path string) (string, error) {
		return path, nil
	}

	_, err := Parse("/missing.yaml")
	_, ok := errors.RootCause(err).(errors.FileNotFound)
	assert.True(t, ok, "expected FileNotFound, got %v", err)

	path := "/extra.yaml"
	extraFields := []byte(fmt.Sprintf("version: %s\nextra: fields", SupportedMirrorConfigVersion))
	assert.NoError(t, afero.WriteFile(fs, path, extraFields, 0644))
	_, err = Parse(path)
	_, ok = errors.RootCause(err).(errors.FriendlyError)
	assert.True(t, ok, "expected FriendlyError, got %v", err)
	assert.Contains(t, errors.GetPrintableMessage(err), path)

	path = "/wrong-type.yaml"
	assert.NoError(t, afero.WriteFile(fs, path, []byte("interval: often"), 0644))
	_, err = Parse(path)
	_, ok = errors.RootCause(err).(errors.FriendlyError)
	assert.True(t, ok, "expected FriendlyError, got %v", err)
}

func TestParseWrittenMirror(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(path string) (string, error) {
		return strings.Replace(path, "~", "/home/user", 1), nil
	}

	cfg := Mirror{
		Source:      "/src",
		Destination: "/dst",
		Interval:    10,
		Watch:       true,
	}

	// Write the config to disk, and assert that we get the same config when
	// we parse it.
	assert.NoError(t, Write(DefaultPath, cfg))

	parsed, err := Parse(DefaultPath)
	assert.NoError(t, err)

	cfg.Version = SupportedMirrorConfigVersion
	assert.Equal(t, cfg, parsed)

	exists, err := afero.Exists(fs, "/home/user/.dirmirror.yaml")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func mustMarshal(cfg interface{}) []byte {
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		panic(fmt.Errorf("bad test input, unable to marshal to yaml: %s", err))
	}
	return yamlBytes
}
