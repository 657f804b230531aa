//go:build property
// +build property

package mountpoint

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/meyer/rwb/internal/errors"
)

// TestSelectorProperties checks the parser against the selector grammar.
func TestSelectorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	idGen := gen.RegexMatch(`^[a-zA-Z0-9_.-]+$`).SuchThat(func(s string) bool { return s != "" })

	properties.Property("valid selectors parse to (tag || div, id)", prop.ForAll(
		func(tag, id string) bool {
			mp, err := Parse(tag + "#" + id)
			if err != nil {
				return false
			}
			want := tag
			if want == "" {
				want = "div"
			}
			return mp.Tag == want && mp.ID == id
		},
		gen.OneConstOf("", "div", "span"),
		idGen,
	))

	properties.Property("selectors without exactly one # or with an empty id fail", prop.ForAll(
		func(s string) bool {
			if s == "" {
				return true // empty means the default selector
			}
			parts := strings.Split(s, "#")
			if len(parts) == 2 && parts[1] != "" {
				return true
			}
			_, err := Parse(s)
			return errors.IsSelectorError(err)
		},
		gen.RegexMatch(`^[a-z#]{0,8}$`),
	))

	properties.Property("tags outside the whitelist fail", prop.ForAll(
		func(tag, id string) bool {
			if tag == "div" || tag == "span" {
				return true
			}
			_, err := Parse(tag + "#" + id)
			return errors.Is(err, errors.NewSelectorError(errors.ErrCodeInvalidElement, ""))
		},
		gen.Identifier(),
		idGen,
	))

	properties.Property("parsing is deterministic", prop.ForAll(
		func(s string) bool {
			a, errA := Parse(s)
			b, errB := Parse(s)
			return a == b && (errA == nil) == (errB == nil)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
