// Package page renders the HTML document the dev server uses to host the
// client bundle.
package page

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"

	"github.com/meyer/rwb/internal/mountpoint"
)

// DefaultBundleSrc is the script the shell loads.
const DefaultBundleSrc = "/bundle.js"

// IndexFile is the name the shell is written under.
const IndexFile = "index.html"

// Shell returns the document with the mount element and a script tag for
// bundleSrc.
func Shell(mp mountpoint.MountPoint, bundleSrc string) templ.Component {
	if bundleSrc == "" {
		bundleSrc = DefaultBundleSrc
	}

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		lines := []string{
			"<!doctype html>",
			`<meta charset="utf-8">`,
			"<title>rwb</title>",
			mp.Markup(),
			`<script src="` + templ.EscapeString(bundleSrc) + `"></script>`,
		}
		_, err := io.WriteString(w, strings.Join(lines, "\n"))
		return err
	})
}

// RenderShell renders the shell to a string.
func RenderShell(ctx context.Context, mp mountpoint.MountPoint, bundleSrc string) (string, error) {
	var sb strings.Builder
	if err := Shell(mp, bundleSrc).Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteShell writes index.html into dir and returns its path.
func WriteShell(ctx context.Context, dir string, mp mountpoint.MountPoint) (string, error) {
	doc, err := RenderShell(ctx, mp, DefaultBundleSrc)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, IndexFile)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
