package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = "webnoise.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// EnvPrefix is the prefix of all environment variables read by FromEnv.
const EnvPrefix = "WEBNOISE_"

// LoadConfigFile loads configuration from a YAML file on top of the
// defaults. If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether the
// config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cfg := NewConfig()
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.Normalize()
	return cfg, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. If configPath is specified, use it directly
//  2. Look for webnoise.yaml in the current directory
//  3. Look for webnoise.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if
// not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), DefaultConfigFile)
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}

// ApplyEnv overlays WEBNOISE_* environment variables onto cfg, following
// the original tool's environment-driven settings. List variables are
// comma-separated; duration variables accept Go duration strings or bare
// integer seconds. Unset variables leave the existing value in place.
//
// Recognized variables:
//
//	WEBNOISE_ROOT_URLS          comma-separated seed URLs
//	WEBNOISE_BLACKLISTED_URLS   comma-separated blacklist substrings
//	WEBNOISE_USER_AGENTS        comma-separated User-Agent strings
//	WEBNOISE_MIN_SLEEP          duration or seconds
//	WEBNOISE_MAX_SLEEP          duration or seconds
//	WEBNOISE_TIMEOUT            duration or seconds (0 = unbounded)
//	WEBNOISE_REQUEST_TIMEOUT    duration or seconds
//	WEBNOISE_RESELECT_EVERY     integer
func ApplyEnv(cfg *Config) error {
	if v, ok := lookupEnv("ROOT_URLS"); ok {
		cfg.RootURLs = splitList(v)
	}
	if v, ok := lookupEnv("BLACKLISTED_URLS"); ok {
		cfg.BlacklistedURLs = splitList(v)
	}
	if v, ok := lookupEnv("USER_AGENTS"); ok {
		cfg.UserAgents = splitList(v)
	}

	for _, entry := range []struct {
		key string
		dst *Duration
	}{
		{"MIN_SLEEP", &cfg.MinSleep},
		{"MAX_SLEEP", &cfg.MaxSleep},
		{"TIMEOUT", &cfg.Timeout},
		{"REQUEST_TIMEOUT", &cfg.RequestTimeout},
	} {
		v, ok := lookupEnv(entry.key)
		if !ok {
			continue
		}
		if err := entry.dst.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, entry.key, err)
		}
	}

	if v, ok := lookupEnv("RESELECT_EVERY"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sRESELECT_EVERY: invalid integer %q", EnvPrefix, v)
		}
		cfg.ReselectEvery = n
	}

	cfg.Normalize()
	return nil
}

// lookupEnv reads an environment variable with the webnoise prefix.
// Empty values count as unset so that `WEBNOISE_X=` does not wipe a list.
func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// splitList splits a comma-separated environment value into a clean list.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	return cleanList(parts)
}
