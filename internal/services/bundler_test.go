package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meyer/rwb/internal/bundler"
	"github.com/meyer/rwb/internal/errors"
)

func TestBundlerConfig(t *testing.T) {
	root := writeProject(t, nil)
	cfg := testConfig(root)
	cfg.Build.PublicPath = "/assets"

	client, err := BundlerConfig(cfg, bundler.TargetClient)
	require.NoError(t, err)
	assert.Equal(t, bundler.TargetClient, client.Target)
	assert.Equal(t, "/", client.Output.PublicPath, "the dev server always serves from the root")
	assert.Contains(t, client.Entry, bundler.HotDevServerModule+"?http://127.0.0.1:3000/")
	assert.Equal(t, filepath.Join(root, "src", "App.js"), client.Resolve.Alias[bundler.RootAlias])

	server, err := BundlerConfig(cfg, bundler.TargetServer)
	require.NoError(t, err)
	assert.Equal(t, "/assets/", server.Output.PublicPath)
	assert.Equal(t, filepath.Join(root, "dist", "assets"), server.Output.Path)

	plugin, ok := server.Plugin(bundler.PluginDefine)
	require.True(t, ok)
	assert.Equal(t, `"root"`, plugin.Options["RWB.DOM_NODE_ID"])
	assert.Equal(t, `"span"`, plugin.Options["RWB.DOM_NODE_ELEMENT"])
}

func TestBundlerConfigUnsupportedTarget(t *testing.T) {
	root := writeProject(t, nil)

	_, err := BundlerConfig(testConfig(root), bundler.Target("electron"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedTarget))
}
