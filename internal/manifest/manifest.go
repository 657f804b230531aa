// Package manifest reads the rwb section of a project's package.json.
//
// The manifest is treated as an opaque JSON document: only the rwb object is
// interpreted, and write-back edits the original bytes in place so key order
// and formatting of the rest of the file survive.
package manifest

import (
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/meyer/rwb/internal/errors"
)

// FileName is the manifest file looked up in the project root.
const FileName = "package.json"

// Manifest holds the fields rwb depends on.
type Manifest struct {
	Path            string
	Main            string
	DomNode         *string
	StaticGenerator string
	Raw             []byte
}

// Load reads and validates <projectRoot>/package.json.
func Load(projectRoot string) (*Manifest, error) {
	return LoadFile(filepath.Join(projectRoot, FileName))
}

// LoadFile reads and validates the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewManifestError(errors.ErrCodeManifestNotFound, "does not exist").WithFile(path)
		}
		return nil, errors.WrapManifest(err, errors.ErrCodeManifestInvalid, "cannot read manifest").WithFile(path)
	}

	return Parse(path, raw)
}

// Parse validates raw manifest bytes. path is only used for diagnostics.
func Parse(path string, raw []byte) (*Manifest, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.NewManifestError(errors.ErrCodeManifestInvalid, "is not valid JSON").WithFile(path)
	}

	rwb := gjson.GetBytes(raw, "rwb")
	if !rwb.IsObject() {
		return nil, errors.NewManifestError(errors.ErrCodeManifestSectionMissing,
			"rwb key does not exist. Did you forget to add an rwb section?").WithFile(path)
	}

	main := rwb.Get("main")
	if main.Type != gjson.String || main.String() == "" {
		return nil, errors.NewManifestError(errors.ErrCodeManifestMainMissing,
			"'rwb.main' key needs to be set to a module path").WithFile(path)
	}

	m := &Manifest{
		Path: path,
		Main: main.String(),
		Raw:  raw,
	}

	if node := rwb.Get("dom_node"); node.Exists() && node.Type != gjson.Null {
		s := node.String()
		m.DomNode = &s
	}

	m.StaticGenerator = rwb.Get("static_generator").String()

	return m, nil
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// MainPath resolves rwb.main against the project root.
func (m *Manifest) MainPath() string {
	return m.resolve(m.Main)
}

// StaticGeneratorPath resolves rwb.static_generator against the project root.
// It returns "" when no generator is registered.
func (m *Manifest) StaticGeneratorPath() string {
	if m.StaticGenerator == "" {
		return ""
	}
	return m.resolve(m.StaticGenerator)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(m.Dir(), filepath.FromSlash(p))
}

// SetStaticGenerator returns a copy of the manifest with
// rwb.static_generator set to generator. The receiver is not modified.
func (m *Manifest) SetStaticGenerator(generator string) (*Manifest, error) {
	raw, err := sjson.SetBytes(append([]byte(nil), m.Raw...), "rwb.static_generator", generator)
	if err != nil {
		return nil, errors.WrapManifest(err, errors.ErrCodeManifestWrite, "cannot set rwb.static_generator").WithFile(m.Path)
	}

	updated := *m
	updated.Raw = raw
	updated.StaticGenerator = generator
	return &updated, nil
}

// Save writes the raw document back to Path.
func (m *Manifest) Save() error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(m.Path); err == nil {
		mode = info.Mode().Perm()
	}

	if err := os.WriteFile(m.Path, m.Raw, mode); err != nil {
		return errors.WrapManifest(err, errors.ErrCodeManifestWrite, "cannot save manifest").WithFile(m.Path)
	}
	return nil
}
