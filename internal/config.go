package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ScanConfig holds scan defaults read from a YAML file. Every field is
// optional; unset fields leave the flag default alone.
type ScanConfig struct {
	Format           *string  `yaml:"format,omitempty"`
	NoHeader         *bool    `yaml:"noHeader,omitempty"`
	Hidden           *bool    `yaml:"hidden,omitempty"`
	Recursive        *bool    `yaml:"recursive,omitempty"`
	FollowSymlinks   *bool    `yaml:"followSymlinks,omitempty"`
	CrossFilesystems *bool    `yaml:"crossFilesystems,omitempty"`
	Unlimited        *bool    `yaml:"unlimited,omitempty"`
	MaxFiles         *int     `yaml:"maxFiles,omitempty"`
	Catalog          *string  `yaml:"catalog,omitempty"`
	MozillaRoots     *bool    `yaml:"mozillaRoots,omitempty"`
	Color            *string  `yaml:"color,omitempty"`
	Passwords        []string `yaml:"passwords,omitempty"`
	PasswordFile     *string  `yaml:"passwordFile,omitempty"`
	LogLevel         *string  `yaml:"logLevel,omitempty"`
	LogFormat        *string  `yaml:"logFormat,omitempty"`
}

// LoadScanConfig loads scan defaults from the specified YAML file. Unknown
// keys are rejected so that typos do not silently fall back to defaults.
// An empty file yields an empty config.
func LoadScanConfig(path string) (*ScanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg ScanConfig
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyScanConfig copies config values into flags that were not set on the
// command line, so explicit flags always win over the file.
func ApplyScanConfig(flags *pflag.FlagSet, cfg *ScanConfig) error {
	values := map[string]string{}
	setString := func(name string, v *string) {
		if v != nil {
			values[name] = *v
		}
	}
	setBool := func(name string, v *bool) {
		if v != nil {
			values[name] = strconv.FormatBool(*v)
		}
	}

	setString("format", cfg.Format)
	setBool("oneline-no-header", cfg.NoHeader)
	setBool("hidden", cfg.Hidden)
	setBool("recursive", cfg.Recursive)
	setBool("follow-symlinks", cfg.FollowSymlinks)
	setBool("cross-filesystems", cfg.CrossFilesystems)
	setBool("unlimited", cfg.Unlimited)
	if cfg.MaxFiles != nil {
		values["max-files"] = strconv.Itoa(*cfg.MaxFiles)
	}
	setString("catalog", cfg.Catalog)
	setBool("mozilla-roots", cfg.MozillaRoots)
	setString("color", cfg.Color)
	setString("password-file", cfg.PasswordFile)
	setString("log-level", cfg.LogLevel)
	setString("log-format", cfg.LogFormat)

	for name, value := range values {
		if err := setUnchanged(flags, name, value); err != nil {
			return err
		}
	}

	if len(cfg.Passwords) > 0 && flags.Lookup("passwords") != nil && !flags.Changed("passwords") {
		// The first Set on a string slice replaces the default; later ones append.
		for _, p := range cfg.Passwords {
			if err := flags.Set("passwords", p); err != nil {
				return fmt.Errorf("applying config passwords: %w", err)
			}
		}
	}
	return nil
}

func setUnchanged(flags *pflag.FlagSet, name, value string) error {
	if flags.Lookup(name) == nil || flags.Changed(name) {
		return nil
	}
	if err := flags.Set(name, value); err != nil {
		return fmt.Errorf("applying config %s=%q: %w", name, value, err)
	}
	return nil
}
