// Package config loads the command-line settings from the environment,
// optionally seeded from dotenv files.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvHistoryFile = "CEL_HISTORY_FILE"
	EnvLibraryDB   = "CEL_LIBRARY_DB"
	EnvOutput      = "CEL_OUTPUT"
	EnvLogLevel    = "CEL_LOG_LEVEL"
	EnvPromote     = "CEL_PROMOTE"
	EnvTruthy      = "CEL_TRUTHY"
)

// Output formats.
const (
	OutputAuto   = "auto"
	OutputJSON   = "json"
	OutputPretty = "pretty"
)

// Config holds the CLI settings. Flags override the values loaded here.
type Config struct {
	HistoryFile string
	LibraryDB   string
	Output      string
	LogLevel    slog.Level
	Promote     bool
	Truthy      bool
}

// Default returns the settings used when nothing is configured. Files are
// placed under the user configuration directory when it is known.
func Default() Config {
	cfg := Config{
		HistoryFile: ".cel_history",
		LibraryDB:   "cel-library.db",
		Output:      OutputAuto,
		LogLevel:    slog.LevelWarn,
	}
	if dir, err := os.UserConfigDir(); err == nil {
		cfg.HistoryFile = filepath.Join(dir, "cel", "history")
		cfg.LibraryDB = filepath.Join(dir, "cel", "library.db")
	}
	return cfg
}

// Load reads dotenv files into the process environment (existing variables
// win) and builds a Config from it. Missing files named explicitly are an
// error; with no files, a ".env" in the working directory is loaded if
// present.
func Load(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("loading env files: %w", err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("loading .env: %w", err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function such as os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if v, ok := lookup(EnvHistoryFile); ok && v != "" {
		cfg.HistoryFile = v
	}
	if v, ok := lookup(EnvLibraryDB); ok && v != "" {
		cfg.LibraryDB = v
	}
	if v, ok := lookup(EnvOutput); ok && v != "" {
		out, err := ParseOutput(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Output = out
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		lvl, err := ParseLevel(v)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = lvl
	}
	var err error
	if cfg.Promote, err = boolVar(lookup, EnvPromote); err != nil {
		return Config{}, err
	}
	if cfg.Truthy, err = boolVar(lookup, EnvTruthy); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func boolVar(lookup func(string) (string, bool), name string) (bool, error) {
	v, ok := lookup(name)
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", name, v)
	}
	return b, nil
}

// ParseOutput validates an output format name.
func ParseOutput(s string) (string, error) {
	switch out := strings.ToLower(strings.TrimSpace(s)); out {
	case OutputAuto, OutputJSON, OutputPretty:
		return out, nil
	}
	return "", fmt.Errorf("invalid output format %q (want auto, json or pretty)", s)
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%s: invalid log level %q", EnvLogLevel, s)
	}
	return lvl, nil
}

// ReadVars parses dotenv files into a map of string variables without
// touching the process environment. Later files override earlier ones.
func ReadVars(files ...string) (map[string]any, error) {
	env, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("reading env files: %w", err)
	}
	vars := make(map[string]any, len(env))
	for k, v := range env {
		vars[k] = v
	}
	return vars, nil
}
