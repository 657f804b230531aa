package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	if err := validateStaticConfig(&config.Static); err != nil {
		return fmt.Errorf("static config: %w", err)
	}

	if config.Project.ManifestFile == "" {
		return fmt.Errorf("project config: manifest_file cannot be empty")
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// 0 lets the OS pick a free port.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}

	u, err := url.Parse(config.PublicURL)
	if err != nil {
		return fmt.Errorf("public_url %q: %w", config.PublicURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("public_url %q must be an http or https URL", config.PublicURL)
	}

	return nil
}

// validateBuildConfig validates build configuration values
func validateBuildConfig(config *BuildConfig) error {
	if config.Env == "" {
		return fmt.Errorf("env cannot be empty")
	}

	if config.PublicPath != "" {
		if strings.Contains(config.PublicPath, "..") {
			return fmt.Errorf("public_path contains path traversal: %s", config.PublicPath)
		}
		if strings.Contains(config.PublicPath, "://") {
			return fmt.Errorf("public_path must be a path, not a URL: %s", config.PublicPath)
		}
	}

	return nil
}

// validateStaticConfig validates static render configuration values
func validateStaticConfig(config *StaticConfig) error {
	if strings.TrimSpace(config.Destination) == "" {
		return fmt.Errorf("destination cannot be empty")
	}

	if config.Runtime == "" {
		return fmt.Errorf("runtime cannot be empty")
	}

	for _, char := range dangerousChars {
		if char == "\\" && filepath.Separator == '\\' {
			continue
		}
		if strings.Contains(config.Runtime, char) {
			return fmt.Errorf("runtime contains dangerous character: %s", char)
		}
	}

	return nil
}
