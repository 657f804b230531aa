// Package scaffolding installs the default static generator into a project
// the first time `rwb static` runs.
package scaffolding

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/manifest"
)

const (
	// GeneratorFile is the scaffolded script's file name.
	GeneratorFile = "render-static-page.js"
	// GeneratorRef is the value stored in rwb.static_generator.
	GeneratorRef = "./" + GeneratorFile
)

//go:embed template/render-static-page.js
var generatorTemplate []byte

// Template returns the default static generator source.
func Template() []byte {
	return append([]byte(nil), generatorTemplate...)
}

// Plan describes the first-run changes before anything is written.
type Plan struct {
	// Target is where the generator script goes.
	Target string
	// Exists is true when Target is already present; it is left untouched.
	Exists bool
	// Manifest is the updated manifest with rwb.static_generator set.
	Manifest *manifest.Manifest
}

// NewPlan computes the scaffolding for m without touching the filesystem
// beyond a stat of the target.
func NewPlan(m *manifest.Manifest) (*Plan, error) {
	updated, err := m.SetStaticGenerator(GeneratorRef)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(m.Dir(), GeneratorFile)
	_, statErr := os.Stat(target)

	return &Plan{
		Target:   target,
		Exists:   statErr == nil,
		Manifest: updated,
	}, nil
}

// Apply writes the generator (never overwriting) and saves the manifest.
func (p *Plan) Apply() error {
	if !p.Exists {
		if err := writeExclusive(p.Target, generatorTemplate); err != nil {
			return err
		}
	}
	return p.Manifest.Save()
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return errors.WrapRuntime(err, errors.ErrCodeIO, "cannot create static generator").WithFile(path)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.WrapRuntime(err, errors.ErrCodeIO, "cannot write static generator").WithFile(path)
	}
	if err := f.Close(); err != nil {
		return errors.WrapRuntime(err, errors.ErrCodeIO, "cannot write static generator").WithFile(path)
	}
	return nil
}
