package courier

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// absolutizeHTML rewrites every relative href and src against the base URL.
// Fragments, mailto:, tel:, cid: and data: references stay untouched, and
// so does anything already absolute or scheme-relative.
func absolutizeHTML(src, base string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}

	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for i, attr := range n.Attr {
				if attr.Key != "href" && attr.Key != "src" {
					continue
				}
				n.Attr[i].Val = absolutizeRef(baseURL, attr.Val)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	var buf strings.Builder
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("render HTML: %w", err)
	}
	return buf.String(), nil
}

func absolutizeRef(base *url.URL, ref string) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
		return ref
	}
	for _, scheme := range []string{"mailto:", "tel:", "cid:", "data:"} {
		if strings.HasPrefix(trimmed, scheme) {
			return ref
		}
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.IsAbs() {
		return ref
	}
	return base.ResolveReference(u).String()
}
