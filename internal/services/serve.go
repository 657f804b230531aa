package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/meyer/rwb/internal/bundler"
	"github.com/meyer/rwb/internal/config"
	"github.com/meyer/rwb/internal/environ"
	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/logging"
	"github.com/meyer/rwb/internal/manifest"
	"github.com/meyer/rwb/internal/mountpoint"
	"github.com/meyer/rwb/internal/page"
	"github.com/meyer/rwb/internal/server"
)

const shutdownTimeout = 5 * time.Second

// ServeService runs the development server.
type ServeService struct {
	config *config.Config
	env    environ.Environment
	logger logging.Logger
	out    io.Writer
}

// NewServeService creates a new serve service
func NewServeService(cfg *config.Config, env environ.Environment, logger logging.Logger, out io.Writer) *ServeService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ServeService{
		config: cfg,
		env:    env,
		logger: logger.WithComponent("serve"),
		out:    out,
	}
}

// ServeOptions contains options for the serve process
type ServeOptions struct {
	// Ready is called once the server is listening.
	Ready func(srv *server.Server)
}

// ServeResult describes a finished serve session.
type ServeResult struct {
	ServerURL   string
	Address     string
	ContentBase string
}

// Serve blocks until ctx is cancelled. The temp dir holding the HTML shell
// is removed on return.
func (s *ServeService) Serve(ctx context.Context, opts ServeOptions) (*ServeResult, error) {
	m, err := manifest.LoadFile(s.config.ManifestPath())
	if err != nil {
		return nil, err
	}

	mp, err := mountpoint.FromManifest(m.DomNode)
	if err != nil {
		return nil, err
	}

	dir, release, err := s.env.ScopedTempDir("rwb-serve-")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			s.logger.Warn(ctx, rerr, "Failed to remove temporary directory", "dir", dir)
		}
	}()

	if _, err := page.WriteShell(ctx, dir, mp); err != nil {
		return nil, err
	}

	bcfg, err := bundler.Build(bundler.TargetClient, clientOptions(s.config, m, mp, dir))
	if err != nil {
		return nil, err
	}

	bctx, err := bundler.NewContext(bcfg)
	if err != nil {
		return nil, err
	}
	defer bctx.Dispose()

	srv := server.New(server.Options{
		Host:        s.config.Server.Host,
		Port:        s.config.Server.Port,
		ContentBase: dir,
		WatchRoot:   s.config.Project.Root,
		Logger:      s.logger,
	}, bctx)

	if err := srv.Start(ctx); err != nil {
		_ = srv.Shutdown(context.Background())
		if errors.Is(err, errors.NewRuntimeError(errors.ErrCodeServerBind, "", nil)) {
			return nil, errors.NewEnhancedError(
				fmt.Sprintf("Failed to start server on port %d", s.config.Server.Port),
				err,
				errors.ServerStartError(err, s.config.Server.Port),
			)
		}
		return nil, err
	}

	result := &ServeResult{
		ServerURL:   s.config.Server.PublicURL,
		Address:     srv.Addr(),
		ContentBase: dir,
	}

	fmt.Fprintf(s.out, "Serving %s at %s\n", dir, s.config.Server.PublicURL)
	if opts.Ready != nil {
		opts.Ready(srv)
	}

	<-ctx.Done()
	s.logger.Info(context.Background(), "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(shutdownCtx, err, "Error during server shutdown")
	}

	return result, nil
}
