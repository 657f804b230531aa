package bundler

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/pretty"
)

// MiscAssets is the bucket for files without an extension.
const MiscAssets = "misc"

// AssetManifest maps an extension (without the dot) to public asset paths
// in emission order. The css and js keys are always present.
type AssetManifest map[string][]string

// NewAssetManifest groups files by extension under publicPath.
func NewAssetManifest(publicPath string, files []string) AssetManifest {
	if publicPath == "" {
		publicPath = "/"
	}

	assets := AssetManifest{
		"css": []string{},
		"js":  []string{},
	}

	for _, f := range files {
		ext := strings.TrimPrefix(path.Ext(f), ".")
		if ext == "" {
			ext = MiscAssets
		}
		assets[ext] = append(assets[ext], path.Join(publicPath, f))
	}

	return assets
}

// AssetManifest returns the main chunk's files grouped by extension.
func (r *Result) AssetManifest() AssetManifest {
	stats := r.Stats()
	return NewAssetManifest(stats.PublicPath, stats.AssetsByChunkName["main"])
}

// Stats mirrors the parts of a build report the render script relies on.
type Stats struct {
	Hash              string              `json:"hash"`
	Time              int64               `json:"time"`
	PublicPath        string              `json:"publicPath"`
	OutputPath        string              `json:"outputPath"`
	AssetsByChunkName map[string][]string `json:"assetsByChunkName"`
	Assets            []AssetStat         `json:"assets"`
	Warnings          []string            `json:"warnings"`
	Errors            []string            `json:"errors"`
}

type AssetStat struct {
	Name   string   `json:"name"`
	Size   int      `json:"size"`
	Chunks []string `json:"chunks"`
}

// Stats summarises the result.
func (r *Result) Stats() Stats {
	s := Stats{
		Hash:              r.Hash,
		Time:              r.Duration.Milliseconds(),
		PublicPath:        r.Config.Output.PublicPath,
		OutputPath:        r.Config.Output.Path,
		AssetsByChunkName: map[string][]string{"main": {}},
		Assets:            []AssetStat{},
		Warnings:          append([]string{}, r.Warnings...),
		Errors:            []string{},
	}

	for _, f := range r.Outputs {
		stat := AssetStat{Name: f.Name, Size: len(f.Contents), Chunks: []string{}}
		if f.Chunk {
			stat.Chunks = append(stat.Chunks, "main")
			s.AssetsByChunkName["main"] = append(s.AssetsByChunkName["main"], f.Name)
		}
		s.Assets = append(s.Assets, stat)
	}

	return s
}

// JSON returns the stats as indented JSON.
func (s Stats) JSON() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return pretty.Pretty(raw), nil
}

// String renders a short human readable report.
func (s Stats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hash: %s\n", s.Hash)
	fmt.Fprintf(&sb, "Time: %dms\n", s.Time)

	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Asset\tSize\tChunks\t")
	for _, a := range s.Assets {
		chunks := ""
		if len(a.Chunks) > 0 {
			chunks = "[" + strings.Join(a.Chunks, ", ") + "]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", a.Name, humanize.Bytes(uint64(a.Size)), chunks)
	}
	_ = tw.Flush()

	for _, w := range s.Warnings {
		sb.WriteString("\nWARNING ")
		sb.WriteString(w)
	}

	return sb.String()
}
