// Package server implements the development server: it serves the HTML
// shell and the in-memory bundle, rebuilds on file changes and pushes live
// reload messages to connected browsers.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/meyer/rwb/internal/bundler"
	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/logging"
	"github.com/meyer/rwb/internal/page"
	"github.com/meyer/rwb/internal/watcher"
)

const (
	// WebSocketPath is the live reload endpoint the hot client connects to.
	WebSocketPath = "/__rwb/ws"
	// StatusPath reports the state of the last build.
	StatusPath = "/__rwb/status"
)

// Builder produces bundles. *bundler.Context satisfies it.
type Builder interface {
	Config() *bundler.Config
	Rebuild(ctx context.Context) (*bundler.Result, error)
}

// Options configures a Server.
type Options struct {
	Host string
	Port int
	// ContentBase is the directory holding index.html.
	ContentBase string
	// WatchRoot is watched recursively for changes. Empty disables watching.
	WatchRoot string
	Debounce  time.Duration
	Logger    logging.Logger
}

// Server is the live reloading development server.
type Server struct {
	opts       Options
	builder    Builder
	logger     logging.Logger
	httpServer *http.Server
	listener   net.Listener
	watcher    *watcher.FileWatcher

	rebuildMutex sync.Mutex
	resultMutex  sync.RWMutex
	result       *bundler.Result
	lastErrors   []string

	clients      map[*Client]bool
	clientsMutex sync.RWMutex
	register     chan *Client
	unregister   chan *Client
	broadcast    chan []byte

	done         chan struct{}
	startOnce    sync.Once
	shutdownOnce sync.Once
}

// New creates a server. Nothing is bound or built until Start.
func New(opts Options, builder Builder) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = watcher.DefaultDebounce
	}

	s := &Server{
		opts:       opts,
		builder:    builder,
		logger:     logger.WithComponent("server"),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start binds the listener, runs the first build and starts serving in the
// background. ctx bounds the watcher and the rebuilds it triggers.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapRuntime(err, errors.ErrCodeServerBind, "cannot start dev server").
			WithContext("address", addr)
	}
	s.listener = ln

	s.startOnce.Do(func() { go s.runHub() })

	if err := s.Rebuild(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn(ctx, err, "Initial build failed")
	}

	if s.opts.WatchRoot != "" {
		if err := s.startWatcher(ctx); err != nil {
			_ = ln.Close()
			s.shutdownOnce.Do(func() { close(s.done) })
			return err
		}
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error(ctx, err, "Dev server stopped")
		}
	}()

	s.logger.Info(ctx, "Dev server listening", "address", ln.Addr().String())
	return nil
}

func (s *Server) startWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(s.opts.Debounce, s.logger)
	if err != nil {
		return errors.WrapRuntime(err, errors.ErrCodeIO, "cannot create file watcher")
	}

	fw.SkipDirs(watcher.DependencyDirs)
	if s.opts.ContentBase != "" {
		fw.SkipDirs(watcher.UnderDir(s.opts.ContentBase))
	}
	fw.AddFilter(watcher.SourceFilter)
	fw.AddFilter(watcher.NoNodeModulesFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, e := range events {
			s.logger.Debug(ctx, "File changed", "path", e.Path, "type", e.Type.String())
		}
		if err := s.Rebuild(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})

	if err := fw.AddRecursive(s.opts.WatchRoot); err != nil {
		_ = fw.Stop()
		return errors.WrapRuntime(err, errors.ErrCodeIO, "cannot watch project").WithFile(s.opts.WatchRoot)
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return errors.WrapRuntime(err, errors.ErrCodeIO, "cannot start file watcher")
	}

	s.watcher = fw
	return nil
}

// Rebuild runs the builder once and notifies clients. A failed build keeps
// serving the previous outputs when the no-errors plugin is configured.
func (s *Server) Rebuild(ctx context.Context) error {
	s.rebuildMutex.Lock()
	defer s.rebuildMutex.Unlock()

	perf := logging.StartOperation(s.logger, "rebuild")
	result, err := s.builder.Rebuild(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		perf.EndWithError(ctx, err)

		msgs := bundler.Messages(err)
		if len(msgs) == 0 {
			msgs = []string{err.Error()}
		}

		s.resultMutex.Lock()
		s.lastErrors = msgs
		if !s.builder.Config().HasPlugin(bundler.PluginNoErrors) {
			s.result = nil
		}
		s.resultMutex.Unlock()

		s.Broadcast(UpdateMessage{Type: MessageError, Errors: msgs})
		return err
	}
	perf.End(ctx)

	s.resultMutex.Lock()
	s.result = result
	s.lastErrors = nil
	s.resultMutex.Unlock()

	for _, w := range result.Warnings {
		s.logger.Warn(ctx, nil, "Build warning", "message", w)
	}

	s.Broadcast(UpdateMessage{Type: MessageReload, Hash: result.Hash})
	return nil
}

// Result returns the bundle currently being served, or nil.
func (s *Server) Result() *bundler.Result {
	s.resultMutex.RLock()
	defer s.resultMutex.RUnlock()
	return s.result
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the watcher, the hub and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.done)

		if s.watcher != nil {
			if werr := s.watcher.Stop(); werr != nil {
				s.logger.Warn(ctx, werr, "Failed to stop file watcher")
			}
		}

		if s.listener == nil {
			return
		}
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	mux.HandleFunc(StatusPath, s.handleStatus)
	mux.HandleFunc("/", s.handleContent)
	return s.addMiddleware(mux)
}

func (s *Server) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	urlPath := path.Clean("/" + r.URL.Path)

	if s.serveOutput(w, r, urlPath) {
		return
	}

	if s.opts.ContentBase != "" {
		local := filepath.Join(s.opts.ContentBase, filepath.FromSlash(urlPath))
		if serveFile(w, r, local) {
			return
		}
		if serveFile(w, r, filepath.Join(local, page.IndexFile)) {
			return
		}
		if wantsHistoryFallback(r, urlPath) &&
			serveFile(w, r, filepath.Join(s.opts.ContentBase, page.IndexFile)) {
			return
		}
	}

	http.NotFound(w, r)
}

// serveOutput serves a file of the current bundle that lives under the
// configured public path.
func (s *Server) serveOutput(w http.ResponseWriter, r *http.Request, urlPath string) bool {
	result := s.Result()
	if result == nil {
		return false
	}

	publicPath := result.Config.Output.PublicPath
	if publicPath == "" {
		publicPath = "/"
	}
	if !strings.HasSuffix(publicPath, "/") {
		publicPath += "/"
	}
	if !strings.HasPrefix(urlPath, publicPath) {
		return false
	}

	f, ok := result.File(strings.TrimPrefix(urlPath, publicPath))
	if !ok {
		return false
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, path.Base(f.Name), time.Time{}, bytes.NewReader(f.Contents))
	return true
}

func serveFile(w http.ResponseWriter, r *http.Request, name string) bool {
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

// wantsHistoryFallback reports whether a miss should be answered with the
// shell: browser navigations to paths without a file extension.
func wantsHistoryFallback(r *http.Request, urlPath string) bool {
	if strings.Contains(path.Base(urlPath), ".") {
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

// BuildStatus is the body of the status endpoint.
type BuildStatus struct {
	OK      bool     `json:"ok"`
	Hash    string   `json:"hash,omitempty"`
	Assets  []string `json:"assets"`
	Errors  []string `json:"errors"`
	Clients int      `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.resultMutex.RLock()
	status := BuildStatus{
		OK:     len(s.lastErrors) == 0 && s.result != nil,
		Assets: []string{},
		Errors: append([]string{}, s.lastErrors...),
	}
	if s.result != nil {
		status.Hash = s.result.Hash
		for _, f := range s.result.Outputs {
			status.Assets = append(status.Assets, f.Name)
		}
	}
	s.resultMutex.RUnlock()
	status.Clients = s.ClientCount()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error(r.Context(), err, "Failed to encode status")
	}
}

// URL returns the http URL of the bound listener.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s/", s.Addr())
}
