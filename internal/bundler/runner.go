package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/tidwall/gjson"

	"github.com/meyer/rwb/internal/errors"
)

// OutputFile is one emitted file after renaming.
type OutputFile struct {
	// Name is relative to Output.Path, slash separated.
	Name     string
	Path     string
	Contents []byte
	// Chunk marks files that belong to the main chunk (the bundle and its
	// stylesheet) as opposed to emitted assets such as images.
	Chunk bool
}

// Result is a completed build.
type Result struct {
	Config   *Config
	Hash     string
	Outputs  []OutputFile
	Warnings []string
	Metafile string
	Duration time.Duration
}

// BuildError carries the formatted esbuild diagnostics of a failed build.
type BuildError struct {
	Messages []string
}

func (e *BuildError) Error() string {
	if len(e.Messages) == 0 {
		return "build failed"
	}
	return strings.TrimSpace(strings.Join(e.Messages, "\n"))
}

// Messages returns the diagnostics of a failed build, or nil.
func Messages(err error) []string {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Messages
	}
	return nil
}

func buildFailed(msgs []api.Message) error {
	be := &BuildError{Messages: api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: api.ErrorMessage})}
	return errors.NewRuntimeError(errors.ErrCodeBuildFailed, "build failed", be)
}

// Run builds cfg once and writes the outputs under cfg.Output.Path.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	result, err := Compile(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := result.WriteFiles(); err != nil {
		return nil, err
	}
	return result, nil
}

// Compile builds cfg once and keeps the outputs in memory.
func Compile(ctx context.Context, cfg *Config) (*Result, error) {
	bctx, err := NewContext(cfg)
	if err != nil {
		return nil, err
	}
	defer bctx.Dispose()

	return bctx.Rebuild(ctx)
}

// BundleScript bundles contents into a single node script at outfile using
// cfg's resolve rules and loaders, and returns the build warnings.
func BundleScript(ctx context.Context, cfg *Config, contents, sourcefile, outfile string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := api.Build(cfg.ScriptOptions(contents, sourcefile, outfile))
	if len(res.Errors) > 0 {
		return nil, buildFailed(res.Errors)
	}

	for _, f := range res.OutputFiles {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			return nil, errors.WrapRuntime(err, errors.ErrCodeIO, "cannot create script directory").WithFile(filepath.Dir(f.Path))
		}
		if err := os.WriteFile(f.Path, f.Contents, 0o644); err != nil {
			return nil, errors.WrapRuntime(err, errors.ErrCodeIO, "cannot write script").WithFile(f.Path)
		}
	}

	return api.FormatMessages(res.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}), nil
}

// Context is an incremental build used by the dev server. Rebuilds are
// serialised.
type Context struct {
	cfg   *Config
	build api.BuildContext
	mu    sync.Mutex
}

// NewContext prepares an incremental build for cfg.
func NewContext(cfg *Config) (*Context, error) {
	build, cerr := api.Context(cfg.ESBuildOptions())
	if cerr != nil {
		return nil, buildFailed(cerr.Errors)
	}
	return &Context{cfg: cfg, build: build}, nil
}

// Config returns the configuration the context was built from.
func (c *Context) Config() *Config {
	return c.cfg
}

// Rebuild runs the build. Cancelling ctx aborts the build in progress.
func (c *Context) Rebuild(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, c.build.Cancel)
	defer stop()

	start := time.Now()
	res := c.build.Rebuild()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, buildFailed(res.Errors)
	}

	return newResult(c.cfg, res, time.Since(start)), nil
}

// Dispose releases the esbuild context.
func (c *Context) Dispose() {
	c.build.Dispose()
}

func newResult(cfg *Config, res api.BuildResult, took time.Duration) *Result {
	files := append([]api.OutputFile(nil), res.OutputFiles...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	h := xxhash.New()
	for _, f := range files {
		_, _ = h.WriteString(relativeName(cfg.Output.Path, f.Path))
		_, _ = h.Write(f.Contents)
	}
	hash := fmt.Sprintf("%016x", h.Sum64())

	cssName := "bundle.css"
	if p, ok := cfg.Plugin(PluginExtractCSS); ok {
		if name := p.Option("filename"); name != "" {
			cssName = name
		}
	}

	chunkFiles := mainChunkOutputs(res.Metafile)

	result := &Result{
		Config:   cfg,
		Hash:     hash,
		Metafile: res.Metafile,
		Duration: took,
		Warnings: api.FormatMessages(res.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}),
	}

	for _, f := range files {
		name := relativeName(cfg.Output.Path, f.Path)
		chunk := chunkFiles[name]

		switch name {
		case bundleOutputBase + ".js":
			name = expandName(cfg.Output.Filename, hash, f.Contents)
			chunk = true
		case bundleOutputBase + ".css":
			name = expandName(cssName, hash, f.Contents)
			chunk = true
		}

		result.Outputs = append(result.Outputs, OutputFile{
			Name:     name,
			Path:     filepath.Join(cfg.Output.Path, filepath.FromSlash(name)),
			Contents: f.Contents,
			Chunk:    chunk,
		})
	}

	sort.SliceStable(result.Outputs, func(i, j int) bool {
		a, b := result.Outputs[i], result.Outputs[j]
		if a.Chunk != b.Chunk {
			return a.Chunk
		}
		return a.Name < b.Name
	})

	return result
}

// mainChunkOutputs reads the metafile and returns the outputs generated for
// the entry point, keyed by name relative to the output directory.
func mainChunkOutputs(metafile string) map[string]bool {
	chunk := map[string]bool{}
	gjson.Get(metafile, "outputs").ForEach(func(key, value gjson.Result) bool {
		if value.Get("entryPoint").String() != mainModule {
			return true
		}
		chunk[filepath.ToSlash(filepath.Base(key.String()))] = true
		if css := value.Get("cssBundle"); css.Exists() {
			chunk[filepath.ToSlash(filepath.Base(css.String()))] = true
		}
		return true
	})
	return chunk
}

func relativeName(dir, p string) string {
	if dir != "" {
		if rel, err := filepath.Rel(dir, p); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(p)
}

func expandName(pattern, hash string, contents []byte) string {
	return strings.NewReplacer(
		"[name]", "main",
		"[hash]", hash,
		"[contenthash]", fmt.Sprintf("%016x", xxhash.Sum64(contents)),
	).Replace(pattern)
}

// File returns the output with the given name.
func (r *Result) File(name string) (OutputFile, bool) {
	name = strings.TrimPrefix(name, "/")
	for _, f := range r.Outputs {
		if f.Name == name {
			return f, true
		}
	}
	return OutputFile{}, false
}

// WriteFiles writes every output to disk.
func (r *Result) WriteFiles() error {
	for _, f := range r.Outputs {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			return errors.WrapRuntime(err, errors.ErrCodeIO, "cannot create output directory").WithFile(filepath.Dir(f.Path))
		}
		if err := os.WriteFile(f.Path, f.Contents, 0o644); err != nil {
			return errors.WrapRuntime(err, errors.ErrCodeIO, "cannot write output").WithFile(f.Path)
		}
	}
	return nil
}
