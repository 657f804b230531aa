package mountpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meyer/rwb/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		selector string
		want     MountPoint
	}{
		{"#app", MountPoint{Tag: "div", ID: "app"}},
		{"span#root", MountPoint{Tag: "span", ID: "root"}},
		{"div#react-stuff", MountPoint{Tag: "div", ID: "react-stuff"}},
		{"", MountPoint{Tag: "div", ID: ".rwb"}},
		{"#.rwb", MountPoint{Tag: "div", ID: ".rwb"}},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			got, err := Parse(tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		selector string
		code     string
	}{
		{"app", errors.ErrCodeInvalidSelector},
		{"div#", errors.ErrCodeInvalidSelector},
		{"#", errors.ErrCodeInvalidSelector},
		{"div#a#b", errors.ErrCodeInvalidSelector},
		{"section#app", errors.ErrCodeInvalidElement},
		{"p#app", errors.ErrCodeInvalidElement},
		{"DIV#app", errors.ErrCodeInvalidElement},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			_, err := Parse(tt.selector)
			require.Error(t, err)
			assert.True(t, errors.IsSelectorError(err))
			assert.True(t, errors.Is(err, errors.NewSelectorError(tt.code, "")), err.Error())
		})
	}
}

func TestFromManifest(t *testing.T) {
	mp, err := FromManifest(nil)
	require.NoError(t, err)
	assert.Equal(t, MountPoint{Tag: "div", ID: ".rwb"}, mp)

	node := "span#root"
	mp, err = FromManifest(&node)
	require.NoError(t, err)
	assert.Equal(t, MountPoint{Tag: "span", ID: "root"}, mp)
}

func TestMarkup(t *testing.T) {
	mp, err := Parse("#app")
	require.NoError(t, err)
	assert.Equal(t, `<div id="app"></div>`, mp.Markup())
	assert.Equal(t, "div#app", mp.String())

	assert.Equal(t, `<span id="a&#34;b"></span>`, MountPoint{Tag: "span", ID: `a"b`}.Markup())
}
