package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from a YAML file, then overrides with environment
// variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (HARVESTD_SERVER_PORT, HARVESTD_MONGO_URI, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// If configPath is empty, ~/.config/harvestd/config.yaml is used. A missing
// file is not an error; defaults and environment variables still apply.
//
// Config files must live under ~/.config/harvestd/ or /etc/harvestd/, must
// not be world-readable, and are capped at 1MB.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "harvestd", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a TOCTOU
		// race between stat and read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment overrides: HARVESTD_<SECTION>_<FIELD_NAME>.
	// The first underscore after the prefix separates section from field;
	// remaining underscores belong to the field name.
	//
	//	HARVESTD_SERVER_PORT        -> server.port
	//	HARVESTD_MODEL_BASE_URL     -> model.base_url
	//	HARVESTD_PIPELINE_CONTEXT_K -> pipeline.context_k
	if err := k.Load(env.Provider("HARVESTD_", ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, "HARVESTD_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validateConfigPath checks that path is in an allowed directory. Runs even
// when the file does not exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Resolve symlinks so a link cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Not-yet-existing paths still get validated by prefix.
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "harvestd"),
		"/etc/harvestd",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/harvestd/ or /etc/harvestd/")
}

// validateConfigFileProperties checks file permissions and size using
// FileInfo from an already-opened descriptor.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
