package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// parse returns the document with script, style and noscript removed, or
// nil for blank or unparseable markup.
func parse(markup string) *goquery.Document {
	if strings.TrimSpace(markup) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	doc.Find("script, style, noscript").Remove()
	return doc
}

// text returns the text under s with whitespace collapsed. Unlike
// Selection.Text, adjacent text nodes are kept apart by a space.
func text(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// lines returns the document text with one line per text node, the shape
// the label regexes expect.
func lines(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				out = append(out, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(out, "\n")
}

// anchors returns absolute hrefs of all links, unwrapping search-engine
// redirect links of the form /url?q=<target>.
func anchors(doc *goquery.Document, base string) []string {
	baseURL, _ := url.Parse(base)
	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		out = append(out, resolve(unwrapRedirect(href), baseURL))
	})
	return out
}

func unwrapRedirect(href string) string {
	if !strings.HasPrefix(href, "/url?") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	for _, key := range []string{"q", "url"} {
		if v := u.Query().Get(key); v != "" {
			return v
		}
	}
	return href
}

func resolve(href string, base *url.URL) string {
	if base == nil || base.Scheme == "" {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}
