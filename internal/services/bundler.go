package services

import (
	"os"
	"path/filepath"

	"github.com/meyer/rwb/internal/bundler"
	"github.com/meyer/rwb/internal/config"
	"github.com/meyer/rwb/internal/manifest"
	"github.com/meyer/rwb/internal/mountpoint"
)

// clientOptions are the bundler inputs for the dev server. Output stays in
// memory; outputPath only anchors relative asset names.
func clientOptions(cfg *config.Config, m *manifest.Manifest, mp mountpoint.MountPoint, outputPath string) bundler.Options {
	opts := commonOptions(cfg, m, mp)
	opts.Hot = true
	opts.OutputPath = outputPath
	opts.PublicPath = "/"
	return opts
}

// serverOptions are the bundler inputs for a static render into dest.
func serverOptions(cfg *config.Config, m *manifest.Manifest, mp mountpoint.MountPoint, dest string) bundler.Options {
	assetPath := cfg.Build.AssetPath()
	opts := commonOptions(cfg, m, mp)
	opts.OutputPath = filepath.Join(dest, filepath.FromSlash(assetPath))
	opts.PublicPath = assetPath
	return opts
}

func commonOptions(cfg *config.Config, m *manifest.Manifest, mp mountpoint.MountPoint) bundler.Options {
	return bundler.Options{
		ProjectRoot:        cfg.Project.Root,
		ToolRoot:           cfg.Build.ToolRoot,
		RootComponent:      m.MainPath(),
		MountPoint:         mp,
		Env:                cfg.Build.Env,
		PublicURL:          cfg.Server.PublicURL,
		SkipSourceMaps:     cfg.Build.SkipSourceMaps,
		DisableCacheBuster: cfg.Build.DisableCacheBuster,
	}
}

// BundlerConfig returns the configuration serve (client) or static (server)
// would build with, without building anything.
func BundlerConfig(cfg *config.Config, target bundler.Target) (*bundler.Config, error) {
	m, err := manifest.LoadFile(cfg.ManifestPath())
	if err != nil {
		return nil, err
	}
	mp, err := mountpoint.FromManifest(m.DomNode)
	if err != nil {
		return nil, err
	}

	var opts bundler.Options
	switch target {
	case bundler.TargetClient:
		opts = clientOptions(cfg, m, mp, filepath.Join(os.TempDir(), "rwb-serve"))
	default:
		opts = serverOptions(cfg, m, mp, cfg.Static.ResolveDestination(cfg.Project.Root))
	}

	return bundler.Build(target, opts)
}
