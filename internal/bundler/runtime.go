package bundler

import (
	"embed"
	"strings"
)

//go:embed runtime/*.js
var runtimeFS embed.FS

// RuntimeSource returns an embedded runtime module with each placeholder
// replaced by its value. Values must already be valid JS expressions.
func RuntimeSource(name string, replacements map[string]string) (string, error) {
	data, err := runtimeFS.ReadFile("runtime/" + name)
	if err != nil {
		return "", err
	}

	src := string(data)
	for placeholder, value := range replacements {
		src = strings.ReplaceAll(src, placeholder, value)
	}
	return src, nil
}

// virtualModules maps rwb: module paths to their runtime file.
var virtualModules = map[string]string{
	"entrypoint":          "entrypoint.js",
	"hot/patch":           "hot-patch.js",
	"hot/dev-server":      "hot-client.js",
	"hot/only-dev-server": "hot-only-dev-server.js",
}
