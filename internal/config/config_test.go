package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range envBindings {
		for _, name := range names {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	clearEnv(t)
	v := viper.New()
	v.Set("project.root", t.TempDir())
	v.Set("build.tool_root", "/opt/rwb")
	return v
}

func TestLoadDefaults(t *testing.T) {
	v := newViper(t)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Empty(t, cfg.Server.Host, "binds every interface")
	assert.Equal(t, "http://localhost:3000/", cfg.Server.PublicURL)
	assert.Equal(t, DefaultEnv, cfg.Build.Env)
	assert.False(t, cfg.Build.SkipSourceMaps)
	assert.False(t, cfg.Build.DisableCacheBuster)
	assert.Equal(t, "/", cfg.Build.AssetPath())
	assert.Equal(t, DefaultDestination, cfg.Static.Destination)
	assert.Equal(t, DefaultRuntime, cfg.Static.Runtime)
	assert.Equal(t, "/opt/rwb", cfg.Build.ToolRoot)
	assert.Equal(t, filepath.Join(cfg.Project.Root, "package.json"), cfg.ManifestPath())
}

func TestPublicURLHost(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"", "http://localhost:3000/"},
		{"0.0.0.0", "http://localhost:3000/"},
		{"::", "http://localhost:3000/"},
		{"127.0.0.1", "http://127.0.0.1:3000/"},
		{"::1", "http://[::1]:3000/"},
		{"dev.local", "http://dev.local:3000/"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			v := newViper(t)
			v.Set("server.host", tt.host)

			cfg, err := LoadFrom(v)
			require.NoError(t, err)
			assert.Equal(t, tt.host, cfg.Server.Host)
			assert.Equal(t, tt.want, cfg.Server.PublicURL)
		})
	}
}

func TestLoadEnvironment(t *testing.T) {
	v := newViper(t)
	t.Setenv("RWB_PORT", "8080")
	t.Setenv("RWB_PUBLIC_URL", "https://dev.example.com/")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("RWB_SKIP_SOURCEMAPS", "1")
	t.Setenv("RWB_DISABLE_CACHEBUSTER", "yes")
	t.Setenv("RWB_PUBLIC_PATH", "assets")
	t.Setenv("RWB_RUNTIME", "bun")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://dev.example.com/", cfg.Server.PublicURL)
	assert.Equal(t, "production", cfg.Build.Env)
	assert.True(t, cfg.Build.SkipSourceMaps)
	assert.True(t, cfg.Build.DisableCacheBuster)
	assert.Equal(t, "/assets/", cfg.Build.AssetPath())
	assert.Equal(t, "bun", cfg.Static.Runtime)
}

func TestLoadExplicitOverridesEnvironment(t *testing.T) {
	v := newViper(t)
	t.Setenv("RWB_PORT", "8080")
	v.Set("server.port", 4000)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:4000/", cfg.Server.PublicURL)
}

func TestLoadConfigFile(t *testing.T) {
	v := newViper(t)
	file := filepath.Join(t.TempDir(), ".rwb.yml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 5000\nstatic:\n  destination: public\n"), 0o644))
	v.SetConfigFile(file)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "public", cfg.Static.Destination)
	assert.Equal(t, filepath.Join(cfg.Project.Root, "public"), cfg.Static.ResolveDestination(cfg.Project.Root))
}

func TestToggle(t *testing.T) {
	for _, s := range []string{"", "0", "false", "FALSE", "off", "no"} {
		assert.False(t, toggle(s), s)
	}
	for _, s := range []string{"1", "true", "yes", "anything"} {
		assert.True(t, toggle(s), s)
	}
}

func TestAssetPath(t *testing.T) {
	tests := map[string]string{
		"":               "/",
		"/":              "/",
		"static":         "/static/",
		"/static/":       "/static/",
		"a//b":           "/a/b/",
		"nested/path/./": "/nested/path/",
	}
	for in, want := range tests {
		assert.Equal(t, want, BuildConfig{PublicPath: in}.AssetPath(), in)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Project: ProjectConfig{Root: "/project", ManifestFile: "package.json"},
			Server:  ServerConfig{Host: "localhost", Port: 3000, PublicURL: "http://localhost:3000/"},
			Build:   BuildConfig{Env: "development"},
			Static:  StaticConfig{Destination: "dist", Runtime: "node"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "port 70000"},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, "not in valid range"},
		{"dangerous host", func(c *Config) { c.Server.Host = "localhost;rm" }, "dangerous character"},
		{"bad public url", func(c *Config) { c.Server.PublicURL = "ftp://x" }, "http or https"},
		{"empty env", func(c *Config) { c.Build.Env = "" }, "env cannot be empty"},
		{"public path traversal", func(c *Config) { c.Build.PublicPath = "../up" }, "traversal"},
		{"public path url", func(c *Config) { c.Build.PublicPath = "https://cdn/x" }, "not a URL"},
		{"empty destination", func(c *Config) { c.Static.Destination = " " }, "destination cannot be empty"},
		{"empty runtime", func(c *Config) { c.Static.Runtime = "" }, "runtime cannot be empty"},
		{"runtime injection", func(c *Config) { c.Static.Runtime = "node;echo" }, "dangerous character"},
		{"empty manifest", func(c *Config) { c.Project.ManifestFile = "" }, "manifest_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
