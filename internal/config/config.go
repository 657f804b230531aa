// Package config builds the explicit runtime configuration for rwb using
// Viper, merging an optional .rwb.yml file, RWB_* environment variables and
// command-line flags.
//
// The configuration is constructed once per process in cmd and passed to
// the services layer; nothing below cmd reads the environment directly.
package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultPort         = 3000
	DefaultHost         = "" // every interface
	DefaultManifestFile = "package.json"
	DefaultDestination  = "dist"
	DefaultRuntime      = "node"
	DefaultEnv          = "development"
)

type Config struct {
	Project  ProjectConfig `yaml:"project" json:"project" mapstructure:"project"`
	Server   ServerConfig  `yaml:"server" json:"server" mapstructure:"server"`
	Build    BuildConfig   `yaml:"build" json:"build" mapstructure:"build"`
	Static   StaticConfig  `yaml:"static" json:"static" mapstructure:"static"`
	LogLevel string        `yaml:"log_level" json:"log_level" mapstructure:"log-level"`
}

type ProjectConfig struct {
	Root         string `yaml:"root" json:"root" mapstructure:"root"`
	ManifestFile string `yaml:"manifest_file" json:"manifest_file" mapstructure:"manifest_file"`
}

type ServerConfig struct {
	Host      string `yaml:"host" json:"host" mapstructure:"host"`
	Port      int    `yaml:"port" json:"port" mapstructure:"port"`
	PublicURL string `yaml:"public_url" json:"public_url" mapstructure:"public_url"`
}

type BuildConfig struct {
	Env                string `yaml:"env" json:"env" mapstructure:"env"`
	SkipSourceMaps     bool   `yaml:"skip_sourcemaps" json:"skip_sourcemaps" mapstructure:"-"`
	DisableCacheBuster bool   `yaml:"disable_cachebuster" json:"disable_cachebuster" mapstructure:"-"`
	PublicPath         string `yaml:"public_path" json:"public_path" mapstructure:"public_path"`
	ToolRoot           string `yaml:"tool_root" json:"tool_root" mapstructure:"tool_root"`
}

type StaticConfig struct {
	Destination string `yaml:"destination" json:"destination" mapstructure:"destination"`
	Runtime     string `yaml:"runtime" json:"runtime" mapstructure:"runtime"`
}

// envBindings maps config keys to the environment variables rwb has always
// honoured. They do not follow the RWB_<SECTION>_<KEY> pattern.
var envBindings = map[string][]string{
	"server.port":               {"RWB_PORT"},
	"server.host":               {"RWB_HOST"},
	"server.public_url":         {"RWB_PUBLIC_URL"},
	"build.env":                 {"NODE_ENV"},
	"build.skip_sourcemaps":     {"RWB_SKIP_SOURCEMAPS"},
	"build.disable_cachebuster": {"RWB_DISABLE_CACHEBUSTER"},
	"build.public_path":         {"RWB_PUBLIC_PATH"},
	"build.tool_root":           {"RWB_HOME"},
	"static.runtime":            {"RWB_RUNTIME"},
}

// BindEnv registers the legacy environment variable names on v.
func BindEnv(v *viper.Viper) error {
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

// SetDefaults installs default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project.manifest_file", DefaultManifestFile)
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("build.env", DefaultEnv)
	v.SetDefault("static.destination", DefaultDestination)
	v.SetDefault("static.runtime", DefaultRuntime)
	v.SetDefault("log-level", "info")
}

// Load builds the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := BindEnv(v); err != nil {
		return nil, err
	}
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	// Toggles accept any non-empty value except 0/false, matching how the
	// environment variables were historically read.
	config.Build.SkipSourceMaps = toggle(v.GetString("build.skip_sourcemaps"))
	config.Build.DisableCacheBuster = toggle(v.GetString("build.disable_cachebuster"))

	if config.Project.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		config.Project.Root = wd
	}
	if abs, err := filepath.Abs(config.Project.Root); err == nil {
		config.Project.Root = abs
	}

	if config.Build.ToolRoot == "" {
		config.Build.ToolRoot = defaultToolRoot()
	}

	if config.Server.PublicURL == "" {
		config.Server.PublicURL = fmt.Sprintf("http://%s:%d/", publicHost(config.Server.Host), config.Server.Port)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// publicHost is the host printed in URLs for a bind address. Wildcard binds
// are reached through localhost.
func publicHost(host string) string {
	switch host {
	case "", "0.0.0.0", "::":
		return "localhost"
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// ManifestPath returns the absolute path of the project manifest.
func (c *Config) ManifestPath() string {
	if filepath.IsAbs(c.Project.ManifestFile) {
		return c.Project.ManifestFile
	}
	return filepath.Join(c.Project.Root, c.Project.ManifestFile)
}

// AssetPath returns the public path prefix for static output: "/" unless
// RWB_PUBLIC_PATH is set, in which case it is rooted and gets a trailing slash.
func (b BuildConfig) AssetPath() string {
	if b.PublicPath == "" {
		return "/"
	}
	p := path.Clean("/" + strings.ReplaceAll(b.PublicPath, "\\", "/"))
	if p == "/" {
		return p
	}
	return p + "/"
}

// ResolveDestination returns the absolute static output directory.
func (s StaticConfig) ResolveDestination(projectRoot string) string {
	if filepath.IsAbs(s.Destination) {
		return filepath.Clean(s.Destination)
	}
	return filepath.Join(projectRoot, s.Destination)
}

func toggle(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func defaultToolRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
