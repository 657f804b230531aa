package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/meyer/rwb/internal/bundler"
	"github.com/meyer/rwb/internal/config"
	"github.com/meyer/rwb/internal/environ"
	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/logging"
	"github.com/meyer/rwb/internal/manifest"
	"github.com/meyer/rwb/internal/mountpoint"
	"github.com/meyer/rwb/internal/render"
	"github.com/meyer/rwb/internal/scaffolding"
)

// ScaffoldPrompt is asked when no static generator is registered.
const ScaffoldPrompt = "Copy static generator to your project folder? [Y/n]:"

// Renderer executes the project's static generator.
type Renderer interface {
	Run(ctx context.Context, cfg *bundler.Config, script string, rctx render.Context) error
}

// StaticService renders the project to a directory.
type StaticService struct {
	config   *config.Config
	env      environ.Environment
	renderer Renderer
	logger   logging.Logger
	out      io.Writer
}

// NewStaticService creates a new static service
func NewStaticService(cfg *config.Config, env environ.Environment, renderer Renderer, logger logging.Logger, out io.Writer) *StaticService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &StaticService{
		config:   cfg,
		env:      env,
		renderer: renderer,
		logger:   logger.WithComponent("static"),
		out:      out,
	}
}

// StaticOptions contains options for the static render
type StaticOptions struct {
	// Destination overrides the configured output directory.
	Destination string
}

// StaticResult describes what a static run did.
type StaticResult struct {
	Destination string
	// Scaffolded is true when the run only installed the static generator.
	Scaffolded bool
	// Declined is true when the first-run prompt was answered no.
	Declined bool
	Build      *bundler.Result
	Assets     bundler.AssetManifest
}

// Static bundles the project once and runs its static generator. On the
// first run it offers to scaffold a generator instead and stops there.
func (s *StaticService) Static(ctx context.Context, opts StaticOptions) (*StaticResult, error) {
	staticCfg := s.config.Static
	if opts.Destination != "" {
		staticCfg.Destination = opts.Destination
	}
	dest := staticCfg.ResolveDestination(s.config.Project.Root)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, errors.WrapRuntime(err, errors.ErrCodeIO, "cannot create destination").WithFile(dest)
	}

	m, err := manifest.LoadFile(s.config.ManifestPath())
	if err != nil {
		return nil, err
	}

	if m.StaticGenerator == "" {
		return s.firstRun(m, dest)
	}

	mp, err := mountpoint.FromManifest(m.DomNode)
	if err != nil {
		return nil, err
	}

	bcfg, err := bundler.Build(bundler.TargetServer, serverOptions(s.config, m, mp, dest))
	if err != nil {
		return nil, err
	}

	perf := logging.StartOperation(s.logger, "bundle")
	stop := startSpinner(s.out, "Bundling")
	result, err := bundler.Run(ctx, bcfg)
	stop()
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	perf.End(ctx)

	fmt.Fprintln(s.out, result.Stats().String())

	rctx := render.NewContext(mp, s.config.Project.Root, dest, result)
	if err := s.renderer.Run(ctx, bcfg, m.StaticGeneratorPath(), rctx); err != nil {
		return nil, err
	}

	return &StaticResult{
		Destination: dest,
		Build:       result,
		Assets:      rctx.Assets,
	}, nil
}

func (s *StaticService) firstRun(m *manifest.Manifest, dest string) (*StaticResult, error) {
	fmt.Fprintln(s.out, "Looks like this is your first time running `rwb static`.")

	ok, err := s.env.Confirm(ScaffoldPrompt, true)
	if err != nil {
		return nil, errors.WrapRuntime(err, errors.ErrCodeIO, "cannot read answer")
	}
	if !ok {
		fmt.Fprintln(s.out, "rwb.static_generator key is not set in package.json")
		return &StaticResult{Destination: dest, Declined: true}, nil
	}

	plan, err := scaffolding.NewPlan(m)
	if err != nil {
		return nil, err
	}
	if err := plan.Apply(); err != nil {
		return nil, err
	}

	if plan.Exists {
		fmt.Fprintf(s.out, "Kept existing %s and registered it in %s.\n", scaffolding.GeneratorFile, filepath.Base(m.Path))
	} else {
		fmt.Fprintf(s.out, "Copied %s to project folder.\n", scaffolding.GeneratorFile)
	}

	return &StaticResult{Destination: dest, Scaffolded: true}, nil
}
