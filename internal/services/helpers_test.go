package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meyer/rwb/internal/config"
)

const testManifest = `{
  "name": "demo",
  "private": true,
  "rwb": {
    "main": "./src/App.js",
    "dom_node": "span#root"
  }
}
`

// writeProject creates a project with stub react packages so esbuild can
// bundle it offline. files override or extend the defaults.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()

	all := map[string]string{
		"package.json":                        testManifest,
		"node_modules/react/package.json":     `{"name":"react","main":"index.js"}`,
		"node_modules/react/index.js":         `module.exports = { createElement: function (t) { return { type: t }; } };`,
		"node_modules/react-dom/package.json": `{"name":"react-dom","main":"index.js"}`,
		"node_modules/react-dom/index.js":     `module.exports = { render: function () {} };`,
		"src/App.js": `import React from 'react';
export default function App() { return <h1>hello from demo</h1>; }
`,
	}
	for name, contents := range files {
		all[name] = contents
	}

	for name, contents := range all {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	}
	return root
}

func testConfig(root string) *config.Config {
	return &config.Config{
		Project: config.ProjectConfig{
			Root:         root,
			ManifestFile: config.DefaultManifestFile,
		},
		Server: config.ServerConfig{
			Host:      "127.0.0.1",
			Port:      0,
			PublicURL: "http://127.0.0.1:3000/",
		},
		Build: config.BuildConfig{
			Env:      config.DefaultEnv,
			ToolRoot: filepath.Join(root, ".rwb-tool"),
		},
		Static: config.StaticConfig{
			Destination: config.DefaultDestination,
			Runtime:     config.DefaultRuntime,
		},
		LogLevel: "info",
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
