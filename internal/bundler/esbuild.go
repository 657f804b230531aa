package bundler

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	virtualNamespace = "rwb"
	mainModule       = "rwb:main"
	bundleOutputBase = "bundle"
)

// browserEngines stand in for the autoprefixer browser list: esbuild adds
// vendor prefixes and lowers syntax for these.
var browserEngines = []api.Engine{
	{Name: api.EngineChrome, Version: "58"},
	{Name: api.EngineEdge, Version: "16"},
	{Name: api.EngineFirefox, Version: "57"},
	{Name: api.EngineSafari, Version: "11"},
}

var svgTitle = regexp.MustCompile(`(?is)<title[^>]*>.*?</title>`)

// ESBuildOptions translates the configuration into options for the browser
// bundle. Outputs stay in memory; Result renames and writes them.
func (c *Config) ESBuildOptions() api.BuildOptions {
	opts := c.baseOptions()
	opts.EntryPointsAdvanced = []api.EntryPoint{{InputPath: mainModule, OutputPath: bundleOutputBase}}
	opts.Platform = api.PlatformBrowser
	opts.Format = api.FormatIIFE
	if len(c.RulesFor(LoaderPostCSS)) > 0 {
		opts.Engines = browserEngines
	}
	return opts
}

// ScriptOptions returns options for bundling contents as a node script with
// this configuration's resolution and loader rules.
func (c *Config) ScriptOptions(contents, sourcefile, outfile string) api.BuildOptions {
	opts := c.baseOptions()
	opts.Stdin = &api.StdinOptions{
		Contents:   contents,
		ResolveDir: c.ProjectRoot,
		Sourcefile: sourcefile,
		Loader:     api.LoaderJS,
	}
	opts.Outdir = ""
	opts.Outfile = outfile
	opts.Platform = api.PlatformNode
	opts.Format = api.FormatCommonJS
	opts.Sourcemap = api.SourceMapInline
	opts.MinifyWhitespace = false
	opts.MinifyIdentifiers = false
	opts.MinifySyntax = false
	return opts
}

func (c *Config) baseOptions() api.BuildOptions {
	define := map[string]string{}
	if p, ok := c.Plugin(PluginDefine); ok {
		for k, v := range p.Options {
			define[k] = v
		}
	}

	opts := api.BuildOptions{
		AbsWorkingDir:     c.ProjectRoot,
		Bundle:            true,
		Write:             false,
		Metafile:          true,
		Outdir:            c.Output.Path,
		Outbase:           c.ProjectRoot,
		PublicPath:        c.Output.PublicPath,
		NodePaths:         append([]string(nil), c.Resolve.Roots...),
		ResolveExtensions: resolveExtensions(c.Resolve.Extensions),
		MainFields:        []string{"browser", "module", "main"},
		Define:            define,
		Loader:            map[string]api.Loader{},
		JSX:               api.JSXTransform,
		LogLevel:          api.LogLevelSilent,
		AssetNames:        c.assetNames(),
		Plugins:           []api.Plugin{c.virtualPlugin(), c.loaderPlugin()},
	}

	if c.Devtool == DevtoolInlineSourceMap {
		opts.Sourcemap = api.SourceMapInline
	}

	if c.HasPlugin(PluginMinify) {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}

	for _, r := range c.Rules {
		switch r.Loader {
		case LoaderJSON:
			opts.Loader[".json"] = api.LoaderJSON
		case LoaderExtractCSS:
			opts.Loader[".css"] = api.LoaderCSS
		}
	}

	return opts
}

// resolveExtensions drops the bare "" entry, which esbuild always tries first.
func resolveExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// assetNames converts the url rule's name pattern into esbuild's form.
func (c *Config) assetNames() string {
	for _, r := range c.RulesFor(LoaderURL) {
		name, _ := r.Options["name"].(string)
		if name == "" {
			continue
		}
		name = strings.TrimSuffix(name, ".[ext]")
		name = strings.ReplaceAll(name, "[path]", "[dir]/")
		return name
	}
	return "[name]-[hash]"
}

// virtualPlugin resolves rwb: modules and the root component alias.
func (c *Config) virtualPlugin() api.Plugin {
	aliases := make([]string, 0, len(c.Resolve.Alias))
	for k := range c.Resolve.Alias {
		aliases = append(aliases, regexp.QuoteMeta(k))
	}

	return api.Plugin{
		Name: "rwb-virtual",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `^rwb:`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					name, query, _ := strings.Cut(strings.TrimPrefix(args.Path, "rwb:"), "?")
					if args.Path != mainModule {
						if _, ok := virtualModules[name]; !ok {
							return api.OnResolveResult{}, fmt.Errorf("unknown rwb module %q", args.Path)
						}
					}
					return api.OnResolveResult{
						Path:       name,
						Namespace:  virtualNamespace,
						PluginData: query,
					}, nil
				})

			if len(aliases) > 0 {
				filter := `^(` + strings.Join(aliases, "|") + `)$`
				build.OnResolve(api.OnResolveOptions{Filter: filter},
					func(args api.OnResolveArgs) (api.OnResolveResult, error) {
						target := c.Resolve.Alias[args.Path]
						res := build.Resolve(target, api.ResolveOptions{
							ResolveDir: c.ProjectRoot,
							Kind:       args.Kind,
						})
						if len(res.Errors) > 0 {
							return api.OnResolveResult{}, fmt.Errorf("cannot resolve %s (%s): %s", args.Path, target, res.Errors[0].Text)
						}
						return api.OnResolveResult{Path: res.Path, Namespace: res.Namespace}, nil
					})
			}

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: virtualNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					contents, err := c.virtualContents(args.Path, args.PluginData)
					if err != nil {
						return api.OnLoadResult{}, err
					}

					loader := api.LoaderJS
					if rule, ok := c.scriptRule(); ok && rule.Includes(EntrypointModule) && args.Path == "entrypoint" {
						loader = api.LoaderJSX
					}

					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: c.ProjectRoot,
						Loader:     loader,
					}, nil
				})
		},
	}
}

func (c *Config) virtualContents(name string, data interface{}) (string, error) {
	if name == strings.TrimPrefix(mainModule, "rwb:") {
		var sb strings.Builder
		for _, entry := range c.Entry {
			fmt.Fprintf(&sb, "import %s;\n", jsonString(entry))
		}
		return sb.String(), nil
	}

	query, _ := data.(string)
	return RuntimeSource(virtualModules[name], map[string]string{
		"__RWB_PUBLIC_URL__": jsonString(query),
	})
}

func (c *Config) scriptRule() (Rule, bool) {
	rules := c.RulesFor(LoaderBabel)
	if len(rules) == 0 {
		return Rule{}, false
	}
	return rules[0], true
}

// loaderPlugin applies the rules esbuild has no direct option for.
func (c *Config) loaderPlugin() api.Plugin {
	return api.Plugin{
		Name: "rwb-loaders",
		Setup: func(build api.PluginBuild) {
			for _, rule := range c.Rules {
				rule := rule
				switch rule.Loader {
				case LoaderBabel:
					// JSX is only enabled inside the whitelist; everything
					// else is treated as plain JS.
					build.OnLoad(api.OnLoadOptions{Filter: rule.Test, Namespace: "file"},
						func(args api.OnLoadArgs) (api.OnLoadResult, error) {
							loader := api.LoaderJS
							if rule.Includes(args.Path) {
								loader = api.LoaderJSX
							}
							return loadFile(args.Path, loader)
						})

				case LoaderURL:
					limit := ImageInlineLimit
					if l, ok := rule.Options["limit"].(int); ok {
						limit = l
					}
					build.OnLoad(api.OnLoadOptions{Filter: rule.Test, Namespace: "file"},
						func(args api.OnLoadArgs) (api.OnLoadResult, error) {
							info, err := os.Stat(args.Path)
							if err != nil {
								return api.OnLoadResult{}, err
							}
							loader := api.LoaderFile
							if info.Size() <= int64(limit) {
								loader = api.LoaderDataURL
							}
							return loadFile(args.Path, loader)
						})

				case LoaderRaw:
					removeTitle := c.svgoRemovesTitle()
					build.OnLoad(api.OnLoadOptions{Filter: rule.Test, Namespace: "file"},
						func(args api.OnLoadArgs) (api.OnLoadResult, error) {
							data, err := os.ReadFile(args.Path)
							if err != nil {
								return api.OnLoadResult{}, err
							}
							if removeTitle {
								data = svgTitle.ReplaceAll(data, nil)
							}
							contents := string(data)
							return api.OnLoadResult{Contents: &contents, Loader: api.LoaderText}, nil
						})

				case LoaderStyle:
					build.OnLoad(api.OnLoadOptions{Filter: rule.Test, Namespace: "file"},
						func(args api.OnLoadArgs) (api.OnLoadResult, error) {
							return c.styleModule(args.Path)
						})
				}
			}
		},
	}
}

func (c *Config) svgoRemovesTitle() bool {
	for _, r := range c.RulesFor(LoaderSVGO) {
		if v, ok := r.Options["removeTitle"].(bool); ok && v {
			return true
		}
	}
	return false
}

// styleModule compiles a stylesheet on its own and returns a module that
// injects it into the document head.
func (c *Config) styleModule(path string) (api.OnLoadResult, error) {
	opts := api.BuildOptions{
		EntryPoints:   []string{path},
		AbsWorkingDir: c.ProjectRoot,
		Bundle:        true,
		Write:         false,
		Outdir:        filepath.Join(os.TempDir(), "rwb-css"),
		NodePaths:     append([]string(nil), c.Resolve.Roots...),
		LogLevel:      api.LogLevelSilent,
		Loader: map[string]api.Loader{
			".png":   api.LoaderDataURL,
			".jpg":   api.LoaderDataURL,
			".gif":   api.LoaderDataURL,
			".svg":   api.LoaderDataURL,
			".woff":  api.LoaderDataURL,
			".woff2": api.LoaderDataURL,
		},
		MinifyWhitespace: c.HasPlugin(PluginMinify),
	}
	if len(c.RulesFor(LoaderPostCSS)) > 0 {
		opts.Engines = browserEngines
	}

	res := api.Build(opts)
	if len(res.Errors) > 0 {
		return api.OnLoadResult{Errors: res.Errors}, nil
	}

	var css string
	for _, f := range res.OutputFiles {
		if strings.HasSuffix(f.Path, ".css") {
			css = string(f.Contents)
			break
		}
	}

	contents, err := RuntimeSource("style-inject.js", map[string]string{
		"__RWB_CSS__":        jsonString(css),
		"__RWB_CSS_SOURCE__": jsonString(filepath.Base(path)),
	})
	if err != nil {
		return api.OnLoadResult{}, err
	}

	return api.OnLoadResult{
		Contents:   &contents,
		Loader:     api.LoaderJS,
		ResolveDir: filepath.Dir(path),
		WatchFiles: []string{path},
		Warnings:   res.Warnings,
	}, nil
}

func loadFile(path string, loader api.Loader) (api.OnLoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	contents := string(data)
	return api.OnLoadResult{
		Contents:   &contents,
		Loader:     loader,
		ResolveDir: filepath.Dir(path),
	}, nil
}
