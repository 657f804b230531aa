// Package bundler builds the bundler configuration for a target and runs
// esbuild with it.
//
// Build is a pure function of its inputs: it never touches the filesystem or
// the environment, so the same target and Options always yield an identical
// Config. Translating a Config into esbuild options and running the build
// live in esbuild.go and runner.go.
package bundler

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/mountpoint"
)

// Target selects which flavour of configuration Build produces.
type Target string

const (
	TargetClient Target = "client"
	TargetServer Target = "server"
)

// Virtual modules served by the rwb plugin.
const (
	EntrypointModule    = "rwb:entrypoint"
	HotPatchModule      = "rwb:hot/patch"
	HotDevServerModule  = "rwb:hot/dev-server"
	HotOnlyServerModule = "rwb:hot/only-dev-server"
	RootAlias           = "__rwb_root__"
)

// Plugin names.
const (
	PluginDefine          = "define"
	PluginHotReplacement  = "hot-module-replacement"
	PluginNoErrors        = "no-errors"
	PluginMinify          = "minify"
	PluginOccurrenceOrder = "occurrence-order"
	PluginExtractCSS      = "extract-css"
)

// Loader names used in rules.
const (
	LoaderBabel      = "babel"
	LoaderJSON       = "json"
	LoaderURL        = "url"
	LoaderRaw        = "raw"
	LoaderSVGO       = "svgo"
	LoaderPostCSS    = "postcss"
	LoaderStyle      = "style"
	LoaderCSS        = "css"
	LoaderExtractCSS = "extract-css"
)

const (
	// ImageInlineLimit is the largest png/jpg inlined as a data URL.
	ImageInlineLimit = 8192

	DevtoolInlineSourceMap = "inline-source-map"
	EnforcePost            = "post"
)

// Options are the inputs to Build.
type Options struct {
	ProjectRoot        string                `json:"projectRoot"`
	ToolRoot           string                `json:"toolRoot"`
	RootComponent      string                `json:"rootComponent"`
	MountPoint         mountpoint.MountPoint `json:"mountPoint"`
	Env                string                `json:"env"`
	Hot                bool                  `json:"hot"`
	PublicURL          string                `json:"publicURL"`
	SkipSourceMaps     bool                  `json:"skipSourceMaps"`
	DisableCacheBuster bool                  `json:"disableCacheBuster"`
	OutputPath         string                `json:"outputPath"`
	PublicPath         string                `json:"publicPath"`
}

// Config is the bundler configuration for one invocation.
type Config struct {
	Target        Target        `json:"target"`
	Entry         []string      `json:"entry"`
	Output        Output        `json:"output"`
	Devtool       string        `json:"devtool,omitempty"`
	Plugins       []Plugin      `json:"plugins"`
	Resolve       Resolve       `json:"resolve"`
	ResolveLoader ResolveLoader `json:"resolveLoader"`
	Rules         []Rule        `json:"rules"`
	ProjectRoot   string        `json:"projectRoot"`
	ToolRoot      string        `json:"toolRoot"`
}

type Output struct {
	Path                          string `json:"path"`
	PublicPath                    string `json:"publicPath"`
	Filename                      string `json:"filename"`
	DevtoolModuleFilenameTemplate string `json:"devtoolModuleFilenameTemplate,omitempty"`
}

// Plugin is a named directive. Options values are JSON-encoded.
type Plugin struct {
	Name    string            `json:"name"`
	Options map[string]string `json:"options,omitempty"`
}

type Resolve struct {
	Roots      []string          `json:"roots"`
	Alias      map[string]string `json:"alias"`
	Extensions []string          `json:"extensions"`
}

type ResolveLoader struct {
	Roots []string `json:"roots"`
}

// Rule applies a loader to files whose path matches Test.
type Rule struct {
	Test       string                 `json:"test"`
	Loader     string                 `json:"loader"`
	Enforce    string                 `json:"enforce,omitempty"`
	Include    []Condition            `json:"include,omitempty"`
	Transforms []string               `json:"transforms,omitempty"`
	Options    map[string]interface{} `json:"options,omitempty"`
}

// Condition matches a path exactly, or everything under a directory except
// an excluded subdirectory.
type Condition struct {
	Path   string `json:"path"`
	Exact  bool   `json:"exact,omitempty"`
	Except string `json:"except,omitempty"`
}

// Match reports whether p satisfies the condition.
func (c Condition) Match(p string) bool {
	if c.Exact {
		return p == c.Path
	}
	if !within(p, c.Path) {
		return false
	}
	return c.Except == "" || !within(p, c.Except)
}

// Includes reports whether the rule's include filter admits p. A rule with
// no filter admits everything.
func (r Rule) Includes(p string) bool {
	if len(r.Include) == 0 {
		return true
	}
	for _, c := range r.Include {
		if c.Match(p) {
			return true
		}
	}
	return false
}

func within(p, dir string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Build produces the configuration for target.
func Build(target Target, opts Options) (*Config, error) {
	if target != TargetClient && target != TargetServer {
		return nil, errors.NewConfigError(errors.ErrCodeUnsupportedTarget,
			fmt.Sprintf("config builder only supports `client` and `server` targets (got %q)", target))
	}

	env := opts.Env
	if env == "" {
		env = "development"
	}

	projectModules := filepath.Join(opts.ProjectRoot, "node_modules")
	toolModules := filepath.Join(opts.ToolRoot, "node_modules")
	// Project first so its packages override the tool's.
	roots := []string{projectModules, toolModules}

	cfg := &Config{
		Target: target,
		Entry:  []string{EntrypointModule},
		Output: Output{
			Path:       opts.OutputPath,
			PublicPath: opts.PublicPath,
		},
		Plugins: []Plugin{definePlugin(env, opts)},
		Resolve: Resolve{
			Roots:      roots,
			Alias:      map[string]string{RootAlias: opts.RootComponent},
			Extensions: []string{".web.js", "", ".js", ".json"},
		},
		ResolveLoader: ResolveLoader{Roots: append([]string(nil), roots...)},
		Rules:         commonRules(opts, projectModules, toolModules),
		ProjectRoot:   opts.ProjectRoot,
		ToolRoot:      opts.ToolRoot,
	}

	switch target {
	case TargetClient:
		cfg.Output.Filename = "bundle.js"
		cfg.Output.DevtoolModuleFilenameTemplate = "[absolute-resource-path]"
		if !opts.SkipSourceMaps {
			cfg.Devtool = DevtoolInlineSourceMap
		}

		if opts.Hot {
			cfg.Plugins = append(cfg.Plugins, Plugin{Name: PluginHotReplacement})
			cfg.Entry = append([]string{
				HotPatchModule,
				HotDevServerModule + "?" + opts.PublicURL,
				HotOnlyServerModule,
			}, cfg.Entry...)
			cfg.Rules[0].Transforms = append([]string{"react-hot-loader/babel"}, cfg.Rules[0].Transforms...)
		}

		cfg.Plugins = append(cfg.Plugins, Plugin{Name: PluginNoErrors})
		cfg.Rules = append(cfg.Rules,
			Rule{Test: `\.css$`, Loader: LoaderStyle},
			Rule{Test: `\.css$`, Loader: LoaderCSS, Options: map[string]interface{}{
				"localIdentName": "[name]__[local]___[hash:base64:5]",
				"sourceMap":      !opts.SkipSourceMaps,
			}},
		)

	case TargetServer:
		cfg.Output.Filename = "bundle-[hash].js"
		cssName := "style-[contenthash].css"
		if opts.DisableCacheBuster {
			cfg.Output.Filename = "bundle.js"
			cssName = "style.css"
		}

		if env == "production" {
			cfg.Plugins = append(cfg.Plugins, Plugin{Name: PluginMinify}, Plugin{Name: PluginOccurrenceOrder})
		}

		cfg.Plugins = append(cfg.Plugins, Plugin{Name: PluginExtractCSS, Options: map[string]string{
			"filename": jsonString(cssName),
		}})
		cfg.Rules = append(cfg.Rules, Rule{Test: `\.css$`, Loader: LoaderExtractCSS})
	}

	return cfg, nil
}

func definePlugin(env string, opts Options) Plugin {
	return Plugin{Name: PluginDefine, Options: map[string]string{
		"process.env.NODE_ENV": jsonString(env),
		"RWB.DOM_NODE_ID":      jsonString(opts.MountPoint.ID),
		"RWB.DOM_NODE_ELEMENT": jsonString(opts.MountPoint.Tag),
		"RWB.PROJECT_ROOT":     jsonString(opts.ProjectRoot),
	}}
}

func commonRules(opts Options, projectModules, toolModules string) []Rule {
	imageName := "image-[hash].[ext]"
	if opts.DisableCacheBuster {
		imageName = "[path][name].[ext]"
	}

	return []Rule{
		{
			Test:   `\.js$`,
			Loader: LoaderBabel,
			Include: []Condition{
				{Path: EntrypointModule, Exact: true},
				{Path: opts.ToolRoot, Except: toolModules},
				{Path: opts.ProjectRoot, Except: projectModules},
			},
			Transforms: []string{"add-module-exports", "transform-object-rest-spread"},
			Options: map[string]interface{}{
				"presets": []string{"react", "es2015"},
			},
		},
		{Test: `\.json$`, Loader: LoaderJSON},
		{Test: `\.(png|jpg)$`, Loader: LoaderURL, Options: map[string]interface{}{
			"limit": ImageInlineLimit,
			"name":  imageName,
		}},
		{Test: `\.svg$`, Loader: LoaderRaw},
		{Test: `\.svg$`, Loader: LoaderSVGO, Enforce: EnforcePost, Options: map[string]interface{}{
			"removeTitle":     true,
			"convertPathData": false,
		}},
		{Test: `\.css$`, Loader: LoaderPostCSS, Enforce: EnforcePost},
	}
}

// HasPlugin reports whether the named plugin is configured.
func (c *Config) HasPlugin(name string) bool {
	return c.CountPlugin(name) > 0
}

// CountPlugin returns how many times the named plugin is configured.
func (c *Config) CountPlugin(name string) int {
	n := 0
	for _, p := range c.Plugins {
		if p.Name == name {
			n++
		}
	}
	return n
}

// Plugin returns the first plugin with the given name.
func (c *Config) Plugin(name string) (Plugin, bool) {
	for _, p := range c.Plugins {
		if p.Name == name {
			return p, true
		}
	}
	return Plugin{}, false
}

// RulesFor returns the rules using loader, in order.
func (c *Config) RulesFor(loader string) []Rule {
	var rules []Rule
	for _, r := range c.Rules {
		if r.Loader == loader {
			rules = append(rules, r)
		}
	}
	return rules
}

// Option decodes a JSON-encoded plugin option into a string. Non-string
// values are returned in their JSON form.
func (p Plugin) Option(key string) string {
	raw, ok := p.Options[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return raw
	}
	return s
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
