// Package mountpoint parses the rwb.dom_node selector into the element the
// root component is rendered into.
package mountpoint

import (
	"fmt"
	"strings"

	"github.com/a-h/templ"

	"github.com/meyer/rwb/internal/errors"
)

// DefaultSelector is used when the manifest has no dom_node.
const DefaultSelector = "#.rwb"

// DefaultTag is used when the selector has no element name.
const DefaultTag = "div"

var allowedTags = map[string]bool{
	"div":  true,
	"span": true,
}

// MountPoint is the element the root component is mounted into.
type MountPoint struct {
	Tag string
	ID  string
}

// Parse turns a selector such as "#app" or "span#root" into a MountPoint.
// An empty selector means DefaultSelector, taken verbatim.
func Parse(selector string) (MountPoint, error) {
	if selector == "" {
		selector = DefaultSelector
	}

	bits := strings.Split(selector, "#")
	if len(bits) != 2 || bits[1] == "" {
		return MountPoint{}, errors.NewSelectorError(errors.ErrCodeInvalidSelector,
			fmt.Sprintf("rwb.dom_node can only be a valid ID (e.g. `#react-stuff`), got %q", selector))
	}

	tag := bits[0]
	if tag == "" {
		tag = DefaultTag
	} else if !allowedTags[tag] {
		return MountPoint{}, errors.NewSelectorError(errors.ErrCodeInvalidElement,
			fmt.Sprintf("element can only be a div or a span (got %s)", tag))
	}

	return MountPoint{Tag: tag, ID: bits[1]}, nil
}

// FromManifest parses an optional dom_node value.
func FromManifest(domNode *string) (MountPoint, error) {
	if domNode == nil {
		return Parse("")
	}
	return Parse(*domNode)
}

// Markup renders the empty mount element, e.g. <div id="app"></div>.
func (m MountPoint) Markup() string {
	return fmt.Sprintf(`<%s id="%s"></%s>`, m.Tag, templ.EscapeString(m.ID), m.Tag)
}

// String returns the selector form of the mount point.
func (m MountPoint) String() string {
	return m.Tag + "#" + m.ID
}
