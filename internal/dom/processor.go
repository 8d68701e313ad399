package dom

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"
)

func GetFullHTMLAction(res *string) chromedp.Action {
	return chromedp.Evaluate(`document.documentElement.outerHTML`, res)
}

// GetTextContentAction reads the rendered text of the body. Hidden elements
// (display:none, the hidden attribute, collapsed details) contribute nothing.
func GetTextContentAction(res *string) chromedp.Action {
	return chromedp.Evaluate(`document.body ? document.body.innerText : ""`, res)
}

// IsElementPresentAction checks whether the query matches at least one node
// without waiting for it to appear.
func IsElementPresentAction(query string, by chromedp.QueryOption, isPresent *bool) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		err := chromedp.Nodes(query, &nodes, by, chromedp.AtLeast(0)).Do(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Other errors mean the document is mid-navigation; treat as absent.
			*isPresent = false
			return nil
		}
		*isPresent = len(nodes) > 0
		return nil
	})
}

// NormalizeText collapses runs of whitespace into single spaces and trims.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MatchText reports whether text occurs in rendered. Matching is
// case-insensitive and whitespace-normalized; an empty needle never matches.
func MatchText(rendered, text string) bool {
	needle := strings.ToLower(NormalizeText(text))
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(NormalizeText(rendered)), needle)
}

var (
	// allowedTags maps kept tags to whether they get a closing tag.
	allowedTags = map[string]bool{
		"html": true, "head": true, "body": true, "title": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"p": true, "div": true, "span": true, "br": false, "hr": false,
		"ul": true, "ol": true, "li": true,
		"table": true, "thead": true, "tbody": true, "tfoot": true, "tr": true, "th": true, "td": true,
		"a": true, "button": true, "input": false, "textarea": true, "select": true, "option": true, "label": true,
		"form": true, "img": false, "pre": true, "code": true, "strong": true, "em": true, "b": true, "i": true,
		"canvas": true, "dialog": true, "section": true, "header": true, "footer": true, "nav": true, "main": true,
	}
	allowedAttrs = map[string]bool{
		"href": true, "src": true, "alt": true, "title": true,
		"id": true, "class": true,
		"type": true, "value": true, "placeholder": true, "name": true,
		"selected": true, "checked": true, "disabled": true, "readonly": true,
		"aria-label": true, "aria-hidden": true, "role": true,
		"width": true, "height": true, "open": true,
	}
	// emptyAllowedAttrs are written even without a value.
	emptyAllowedAttrs = map[string]bool{
		"value": true, "selected": true, "checked": true, "disabled": true, "readonly": true, "open": true,
	}
)

// GetSimplifiedDOM strips scripts, styles, comments and unknown attributes,
// keeping the structural skeleton of the page for diagnostics.
func GetSimplifiedDOM(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = simplifyNode(&buf, doc)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func simplifyNode(w io.Writer, n *html.Node) error {
	switch n.Type {
	case html.ErrorNode, html.CommentNode:
		return nil
	case html.DoctypeNode:
		if _, err := io.WriteString(w, "<!DOCTYPE "+n.Data+">"); err != nil {
			return err
		}
	case html.TextNode:
		trimmed := NormalizeText(n.Data)
		if trimmed != "" {
			if _, err := io.WriteString(w, html.EscapeString(trimmed)+" "); err != nil {
				return err
			}
		}
		return nil
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" || n.Data == "noscript" || n.Data == "meta" || n.Data == "link" {
			return nil
		}
		if _, ok := allowedTags[n.Data]; !ok {
			return simplifyChildren(w, n)
		}

		if _, err := io.WriteString(w, "<"+n.Data); err != nil {
			return err
		}
		for _, a := range n.Attr {
			if !allowedAttrs[a.Key] {
				continue
			}
			val := strings.TrimSpace(a.Val)
			if val != "" || emptyAllowedAttrs[a.Key] {
				if _, err := io.WriteString(w, " "+a.Key+"=\""+html.EscapeString(val)+"\""); err != nil {
					return err
				}
			}
		}
		if _, err := io.WriteString(w, ">"); err != nil {
			return err
		}
	}

	if err := simplifyChildren(w, n); err != nil {
		return err
	}

	if n.Type == html.ElementNode && allowedTags[n.Data] {
		if _, err := io.WriteString(w, "</"+n.Data+">"); err != nil {
			return err
		}
	}
	return nil
}

func simplifyChildren(w io.Writer, n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := simplifyNode(w, c); err != nil {
			return err
		}
	}
	return nil
}
