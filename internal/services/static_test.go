package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/meyer/rwb/internal/bundler"
	"github.com/meyer/rwb/internal/environ"
	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/render"
	"github.com/meyer/rwb/internal/scaffolding"
)

type recordingRenderer struct {
	calls  int
	cfg    *bundler.Config
	script string
	rctx   render.Context
	err    error
}

func (r *recordingRenderer) Run(ctx context.Context, cfg *bundler.Config, script string, rctx render.Context) error {
	r.calls++
	r.cfg, r.script, r.rctx = cfg, script, rctx
	return r.err
}

const generatorManifest = `{
  "name": "demo",
  "rwb": {
    "main": "./src/App.js",
    "dom_node": "#app",
    "static_generator": "./render-static-page.js"
  }
}
`

func TestStaticService_FirstRunScaffolds(t *testing.T) {
	root := writeProject(t, nil)
	env := &environ.Fake{Answer: true}
	renderer := &recordingRenderer{}
	var out bytes.Buffer

	res, err := NewStaticService(testConfig(root), env, renderer, nil, &out).Static(context.Background(), StaticOptions{})
	require.NoError(t, err)

	assert.True(t, res.Scaffolded)
	assert.Equal(t, []string{ScaffoldPrompt}, env.Prompts)
	assert.Contains(t, out.String(), "first time running `rwb static`")
	assert.Contains(t, out.String(), "Copied render-static-page.js to project folder.")

	_, err = os.Stat(filepath.Join(root, scaffolding.GeneratorFile))
	assert.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(root, "package.json"))
	require.NoError(t, err)
	assert.Equal(t, scaffolding.GeneratorRef, gjson.GetBytes(raw, "rwb.static_generator").String())
	assert.Equal(t, "span#root", gjson.GetBytes(raw, "rwb.dom_node").String())

	assert.Zero(t, renderer.calls, "first run stops after scaffolding")
	entries, err := os.ReadDir(filepath.Join(root, "dist"))
	require.NoError(t, err, "the destination is created up front")
	assert.Empty(t, entries, "nothing is built on the first run")
}

func TestStaticService_FirstRunDeclined(t *testing.T) {
	root := writeProject(t, nil)
	env := &environ.Fake{Answer: false}

	renderer := &recordingRenderer{}
	var out bytes.Buffer

	res, err := NewStaticService(testConfig(root), env, renderer, nil, &out).
		Static(context.Background(), StaticOptions{})
	require.NoError(t, err, "declining is not a failure")
	assert.True(t, res.Declined)
	assert.False(t, res.Scaffolded)
	assert.Nil(t, res.Build)
	assert.Zero(t, renderer.calls)
	assert.Contains(t, out.String(), "rwb.static_generator key is not set in package.json")

	raw, err := os.ReadFile(filepath.Join(root, "package.json"))
	require.NoError(t, err)
	assert.Equal(t, testManifest, string(raw), "manifest untouched")
	_, err = os.Stat(filepath.Join(root, scaffolding.GeneratorFile))
	assert.True(t, os.IsNotExist(err))
}

func TestStaticService_MissingMain(t *testing.T) {
	root := writeProject(t, map[string]string{"package.json": `{"rwb":{"static_generator":"./r.js"}}`})
	renderer := &recordingRenderer{}

	_, err := NewStaticService(testConfig(root), &environ.Fake{}, renderer, nil, &bytes.Buffer{}).
		Static(context.Background(), StaticOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NewManifestError(errors.ErrCodeManifestMainMissing, "")))
	assert.Zero(t, renderer.calls)

	entries, err := os.ReadDir(filepath.Join(root, "dist"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no bundle is written")
}

func TestStaticService_Static(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": generatorManifest,
		"src/App.js": `import React from 'react';
import './style.css';
export default function App() { return <h1>static demo</h1>; }
`,
		"src/style.css": `h1 { font-weight: bold; }`,
	})
	renderer := &recordingRenderer{}
	var out bytes.Buffer

	res, err := NewStaticService(testConfig(root), &environ.Fake{}, renderer, nil, &out).
		Static(context.Background(), StaticOptions{Destination: "public"})
	require.NoError(t, err)

	dest := filepath.Join(root, "public")
	assert.Equal(t, dest, res.Destination)
	assert.False(t, res.Scaffolded)
	assert.Contains(t, out.String(), "Hash: "+res.Build.Hash)

	require.Len(t, res.Assets["js"], 1)
	require.Len(t, res.Assets["css"], 1)
	for _, asset := range append(res.Assets["js"], res.Assets["css"]...) {
		_, err := os.Stat(filepath.Join(dest, strings.TrimPrefix(asset, "/")))
		assert.NoError(t, err, asset)
	}

	require.Equal(t, 1, renderer.calls)
	assert.Equal(t, filepath.Join(root, "render-static-page.js"), renderer.script)
	assert.Equal(t, bundler.TargetServer, renderer.cfg.Target)
	assert.Equal(t, "app", renderer.rctx.DomNodeID)
	assert.Equal(t, "div", renderer.rctx.DomNodeElement)
	assert.Equal(t, root, renderer.rctx.ProjectRoot)
	assert.Equal(t, dest, renderer.rctx.StaticRoot)
	assert.Equal(t, res.Assets, renderer.rctx.Assets)
	assert.Equal(t, res.Build.Hash, renderer.rctx.Stats.Hash)
}

func TestStaticService_PublicPath(t *testing.T) {
	root := writeProject(t, map[string]string{"package.json": generatorManifest})
	cfg := testConfig(root)
	cfg.Build.PublicPath = "sub/dir"
	cfg.Build.DisableCacheBuster = true
	renderer := &recordingRenderer{}

	res, err := NewStaticService(cfg, &environ.Fake{}, renderer, nil, &bytes.Buffer{}).
		Static(context.Background(), StaticOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"/sub/dir/bundle.js"}, res.Assets["js"])
	assert.Equal(t, "/sub/dir/", renderer.cfg.Output.PublicPath)
	_, err = os.Stat(filepath.Join(root, "dist", "sub", "dir", "bundle.js"))
	assert.NoError(t, err)
}

func TestStaticService_BuildFailure(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": generatorManifest,
		"src/App.js":   `import nope from './nope';`,
	})
	renderer := &recordingRenderer{}

	_, err := NewStaticService(testConfig(root), &environ.Fake{}, renderer, nil, &bytes.Buffer{}).
		Static(context.Background(), StaticOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NewRuntimeError(errors.ErrCodeBuildFailed, "", nil)))
	assert.Zero(t, renderer.calls, "render never runs after a failed build")
}

func TestStaticService_RenderFailure(t *testing.T) {
	root := writeProject(t, map[string]string{"package.json": generatorManifest})
	renderer := &recordingRenderer{err: errors.NewRuntimeError(errors.ErrCodeRenderFailed, "static generator failed", nil)}

	_, err := NewStaticService(testConfig(root), &environ.Fake{}, renderer, nil, &bytes.Buffer{}).
		Static(context.Background(), StaticOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NewRuntimeError(errors.ErrCodeRenderFailed, "", nil)))
}
