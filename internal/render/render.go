// Package render runs the project's static generator script in an external
// JavaScript runtime with the RWB context injected.
package render

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/meyer/rwb/internal/bundler"
	"github.com/meyer/rwb/internal/environ"
	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/logging"
	"github.com/meyer/rwb/internal/mountpoint"
)

const (
	harnessModule = "render-harness.js"
	scriptName    = "rwb-render.js"
)

// Context is the RWB global seen by the render script.
type Context struct {
	DomNodeID      string                `json:"DOM_NODE_ID"`
	DomNodeElement string                `json:"DOM_NODE_ELEMENT"`
	ProjectRoot    string                `json:"PROJECT_ROOT"`
	StaticRoot     string                `json:"STATIC_ROOT"`
	Assets         bundler.AssetManifest `json:"ASSETS"`
	Stats          bundler.Stats         `json:"STATS"`
}

// NewContext assembles the render context for a finished static build.
func NewContext(mp mountpoint.MountPoint, projectRoot, staticRoot string, result *bundler.Result) Context {
	return Context{
		DomNodeID:      mp.ID,
		DomNodeElement: mp.Tag,
		ProjectRoot:    projectRoot,
		StaticRoot:     staticRoot,
		Assets:         result.AssetManifest(),
		Stats:          result.Stats(),
	}
}

// Runner bundles and executes render scripts.
type Runner struct {
	// Runtime is the JS runtime binary, resolved through PATH.
	Runtime string
	Env     environ.Environment
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  logging.Logger
}

// Run bundles script against cfg, then executes it once with rctx as the
// RWB global. The script's default export is called and awaited.
func (r *Runner) Run(ctx context.Context, cfg *bundler.Config, script string, rctx Context) error {
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("render")

	dir, release, err := r.Env.ScopedTempDir("rwb-render-")
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			logger.Warn(ctx, rerr, "Failed to remove render directory", "dir", dir)
		}
	}()

	source, err := harnessSource(script, rctx)
	if err != nil {
		return err
	}

	outfile := filepath.Join(dir, scriptName)
	warnings, err := bundler.BundleScript(ctx, cfg, source, scriptName, outfile)
	if err != nil {
		return errors.WrapRuntime(err, errors.ErrCodeRenderFailed, "cannot load static generator").WithFile(script)
	}
	for _, w := range warnings {
		logger.Warn(ctx, nil, "Render script warning", "message", w)
	}

	return r.exec(ctx, cfg, outfile, script, logger)
}

func (r *Runner) exec(ctx context.Context, cfg *bundler.Config, outfile, script string, logger logging.Logger) error {
	runtime := r.Runtime
	if runtime == "" {
		runtime = "node"
	}

	bin, err := exec.LookPath(runtime)
	if err != nil {
		return errors.WrapRuntime(err, errors.ErrCodeRenderFailed, "JavaScript runtime not found").
			WithContext("runtime", runtime)
	}

	cmd := exec.CommandContext(ctx, bin, outfile)
	cmd.Dir = cfg.ProjectRoot
	cmd.Env = append(os.Environ(), "NODE_PATH="+strings.Join(cfg.Resolve.Roots, string(os.PathListSeparator)))
	cmd.Stdout = writerOr(r.Stdout, os.Stdout)
	cmd.Stderr = writerOr(r.Stderr, os.Stderr)

	perf := logging.StartOperation(logger, "render")
	if err := cmd.Run(); err != nil {
		perf.EndWithError(ctx, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.WrapRuntime(err, errors.ErrCodeRenderFailed, "static generator failed").WithFile(script)
	}
	perf.End(ctx)
	return nil
}

// harnessSource fills the render harness with the script path and context.
func harnessSource(script string, rctx Context) (string, error) {
	ctxJSON, err := json.Marshal(rctx)
	if err != nil {
		return "", errors.WrapRuntime(err, errors.ErrCodeRenderFailed, "cannot encode render context")
	}
	scriptJSON, err := json.Marshal(filepath.ToSlash(script))
	if err != nil {
		return "", errors.WrapRuntime(err, errors.ErrCodeRenderFailed, "cannot encode script path")
	}

	src, err := bundler.RuntimeSource(harnessModule, map[string]string{
		"__RWB_CONTEXT__": string(ctxJSON),
		"__RWB_SCRIPT__":  string(scriptJSON),
	})
	if err != nil {
		return "", errors.WrapRuntime(err, errors.ErrCodeRenderFailed, "render harness missing")
	}
	return src, nil
}

func writerOr(w, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}
