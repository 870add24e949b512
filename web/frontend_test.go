package web

import (
	"bytes"
	"io/fs"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerColors(t *testing.T) {
	colors, err := LayerColors(5)
	require.NoError(t, err)
	require.Len(t, colors, 5)

	hex := regexp.MustCompile(`^#[0-9a-f]{6}$`)
	for _, c := range colors {
		assert.Regexp(t, hex, c)
	}

	none, err := LayerColors(0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIndexTemplate(t *testing.T) {
	tmpl, err := IndexTemplate()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, tmpl.Execute(&out, `{"maps":[]}`))
	assert.Contains(t, out.String(), "GEOTILE_REPORT")

	scripts, err := Scripts()
	require.NoError(t, err)
	_, err = fs.Stat(scripts, "report.js")
	assert.NoError(t, err)
}
