package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// Selector kinds
const (
	SelectorCSS   = "css"
	SelectorXPath = "xpath"
	SelectorText  = "text"
)

// Query is a parsed selector ready for chromedp.
type Query struct {
	Raw   string
	Kind  string
	Value string // CSS selector or XPath expression
}

// By returns the chromedp query option matching the query kind.
func (q Query) By() chromedp.QueryOption {
	if q.Kind == SelectorCSS {
		return chromedp.ByQuery
	}
	return chromedp.BySearch
}

// ParseSelector understands "text=...", "xpath=..." and "css=..." prefixes.
// Anything without a prefix is a CSS selector.
func ParseSelector(sel string) (Query, error) {
	raw := sel
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return Query{}, fmt.Errorf("empty selector")
	}

	prefix, rest, found := strings.Cut(sel, "=")
	if found {
		rest = strings.TrimSpace(rest)
		switch strings.ToLower(strings.TrimSpace(prefix)) {
		case SelectorText:
			text := strings.Trim(rest, `"'`)
			if text == "" {
				return Query{}, fmt.Errorf("text selector %q has no text", raw)
			}
			return Query{Raw: raw, Kind: SelectorText, Value: TextXPath(text)}, nil
		case SelectorXPath:
			if rest == "" {
				return Query{}, fmt.Errorf("xpath selector %q is empty", raw)
			}
			return Query{Raw: raw, Kind: SelectorXPath, Value: rest}, nil
		case SelectorCSS:
			if rest == "" {
				return Query{}, fmt.Errorf("css selector %q is empty", raw)
			}
			return Query{Raw: raw, Kind: SelectorCSS, Value: rest}, nil
		}
	}
	return Query{Raw: raw, Kind: SelectorCSS, Value: sel}, nil
}

const (
	upperASCII = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerASCII = "abcdefghijklmnopqrstuvwxyz"
)

// TextXPath matches the innermost element whose normalized text contains
// text, case-insensitively.
func TextXPath(text string) string {
	needle := xpathLiteral(strings.ToLower(strings.Join(strings.Fields(text), " ")))
	normalized := fmt.Sprintf("translate(normalize-space(.), '%s', '%s')", upperASCII, lowerASCII)
	match := fmt.Sprintf("contains(%s, %s)", normalized, needle)
	return fmt.Sprintf("//*[not(self::script or self::style)][%s][not(.//*[%s])]", match, match)
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
