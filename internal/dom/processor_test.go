package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const voxelPage = `<!DOCTYPE html>
<html>
<head><title>Voxel</title><style>.title { content: "HIDDEN STYLE"; }</style></head>
<body>
  <header><h1 class="title">VOXEL
     WALKER</h1></header>
  <!-- Research Lab (commented out) -->
  <script>var label = "Research & Development";</script>
  <nav><button id="lab" onclick="open()">Research Lab</button></nav>
  <canvas width="800" height="600" data-engine="three"></canvas>
</body>
</html>`

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "VOXEL WALKER", NormalizeText("  VOXEL \n\t WALKER  "))
	assert.Equal(t, "", NormalizeText(" \n "))
}

func TestMatchText(t *testing.T) {
	rendered := "VOXEL\n   WALKER\nResearch Lab\n"
	tests := []struct {
		name   string
		needle string
		want   bool
	}{
		{"exact", "VOXEL WALKER", true},
		{"case insensitive", "voxel walker", true},
		{"whitespace normalized", "VOXEL   WALKER", true},
		{"button label", "Research Lab", true},
		{"absent", "Research & Development", false},
		{"empty needle", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchText(rendered, tt.needle))
		})
	}
}

func TestGetSimplifiedDOM(t *testing.T) {
	out, err := GetSimplifiedDOM(voxelPage)
	require.NoError(t, err)

	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, `<h1 class="title">VOXEL WALKER </h1>`)
	assert.Contains(t, out, `<button id="lab">Research Lab </button>`)
	assert.Contains(t, out, `<canvas width="800" height="600"></canvas>`)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<style")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "data-engine")
	assert.NotContains(t, out, "<!--")
}

func TestGetSimplifiedDOM_UnknownTagsUnwrapped(t *testing.T) {
	out, err := GetSimplifiedDOM(`<html><body><custom-panel><p>inside</p></custom-panel></body></html>`)
	require.NoError(t, err)
	assert.Contains(t, out, "<p>inside </p>")
	assert.NotContains(t, out, "custom-panel")
}
