package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind string
		want     string
	}{
		{"bare css", "canvas", SelectorCSS, "canvas"},
		{"css with attribute", "input[name='code']", SelectorCSS, "input[name='code']"},
		{"explicit css", "css=#lab > button", SelectorCSS, "#lab > button"},
		{"xpath", "xpath=//button[@id='lab']", SelectorXPath, "//button[@id='lab']"},
		{"text", "text=Research Lab", SelectorText, TextXPath("Research Lab")},
		{"quoted text", `text="Research Lab"`, SelectorText, TextXPath("Research Lab")},
		{"prefix case", "TEXT=Research Lab", SelectorText, TextXPath("Research Lab")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseSelector(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, q.Kind)
			assert.Equal(t, tt.want, q.Value)
			assert.Equal(t, tt.input, q.Raw)
			assert.NotNil(t, q.By())
		})
	}
}

func TestParseSelector_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "text=", "xpath=", "css= "} {
		_, err := ParseSelector(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestTextXPath(t *testing.T) {
	xp := TextXPath("  Research   LAB ")
	assert.Contains(t, xp, "'research lab'")
	assert.Contains(t, xp, "normalize-space(.)")
	assert.Contains(t, xp, "not(self::script or self::style)")
	assert.Contains(t, xp, "not(.//*[")
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, "'plain'", xpathLiteral("plain"))
	assert.Equal(t, `"it's"`, xpathLiteral("it's"))
	assert.Equal(t, `concat('say "it', "'", 's"')`, xpathLiteral(`say "it's"`))
}
