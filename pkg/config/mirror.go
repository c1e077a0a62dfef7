package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/marupanda/sync/pkg/errors"
)

const (
	// DefaultPath is where the config is read from if no path is given.
	DefaultPath = "~/.dirmirror.yaml"

	// DefaultInterval is the number of seconds between passes if the
	// interval isn't configured.
	DefaultInterval = 30

	// InitialMirrorConfigVersion is the first version of the mirror
	// config. Config files that do not specify a version will default to
	// this version.
	InitialMirrorConfigVersion = "v1alpha1"

	// SupportedMirrorConfigVersion is the supported version of the mirror
	// config of the current binary.
	SupportedMirrorConfigVersion = "v1alpha1"
)

// Mirror contains the settings for mirroring a directory. Every field can
// also be set on the command line, which takes precedence.
type Mirror struct {
	Version     string `json:"version,omitempty"`
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`

	// Interval is the number of seconds to wait between passes.
	Interval int `json:"interval,omitempty"`

	// LogFile is where the per-file log lines are written. Stdout is used
	// if it's empty.
	LogFile string `json:"logFile,omitempty"`

	// Watch triggers a pass as soon as the source changes, in addition to
	// the interval.
	Watch bool `json:"watch,omitempty"`
}

// incompatibleVersionError is returned for configs written for a different
// release of dirmirror.
type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The config file %q was written for a different "+
		"version of dirmirror.\n"+
		"Expected version %q, but got %q.", err.path, err.exp, err.actual)
}

// invalidConfigError wraps a yaml error. The yaml library's errors don't say
// which field was wrong in a structured way, so only the message is shown.
func invalidConfigError(path string, err error) error {
	return errors.NewFriendlyError("The config file %q could not be parsed.\n"+
		"Check that every field has the right type, and that there are no "+
		"fields other than version, source, destination, interval, logFile "+
		"and watch.\n\n"+
		"The parser reported:\n%s", path, err)
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ExpandPath expands a leading ~ in `path` to the user's home directory.
func ExpandPath(path string) (string, error) {
	return homedirExpand(path)
}

// Parse parses the mirror config at `path`. Relative paths in the config are
// evaluated relative to the directory containing the config.
func Parse(path string) (Mirror, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return Mirror{}, errors.WithContext(err, "expand config path")
	}

	config, err := decode(path)
	if err != nil {
		return Mirror{}, errors.WithContext(err, "parse")
	}

	if config.Interval < 0 {
		return Mirror{}, errors.NewFriendlyError(
			"The interval in %q must be positive, but it's %d.",
			path, config.Interval)
	}

	for _, field := range []*string{&config.Source, &config.Destination, &config.LogFile} {
		if *field == "" {
			continue
		}

		expanded, err := ExpandPath(*field)
		if err != nil {
			return Mirror{}, errors.WithContext(err, "expand path")
		}

		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(filepath.Dir(path), expanded)
		}
		*field = expanded
	}
	return config, nil
}

// decode reads the config at `path`. The version is checked before unknown
// fields are rejected, so a config from a newer release reports its version
// rather than its new fields.
func decode(path string) (Mirror, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return Mirror{}, errors.FileNotFound{Path: path}
		}
		return Mirror{}, errors.WithContext(err, "read file")
	}

	config := Mirror{Version: InitialMirrorConfigVersion}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return Mirror{}, invalidConfigError(path, err)
	}

	if config.Version != SupportedMirrorConfigVersion {
		return Mirror{}, incompatibleVersionError{path, SupportedMirrorConfigVersion, config.Version}
	}

	if err := yaml.UnmarshalStrict(raw, &config, yaml.DisallowUnknownFields); err != nil {
		return Mirror{}, invalidConfigError(path, err)
	}
	return config, nil
}

// Write writes the given mirror config to `path`.
func Write(path string, cfg Mirror) error {
	cfg.Version = SupportedMirrorConfigVersion
	path, err := ExpandPath(path)
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}
