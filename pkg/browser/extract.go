package browser

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ExtractedPage holds what the DOM walker pulled out of a rendered page.
type ExtractedPage struct {
	Title   string
	Text    string
	Links   []Link
	Favicon string
}

// skippedElements never contribute text or links.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
	"svg":      true,
	"canvas":   true,
	"object":   true,
	"embed":    true,
}

// blockElements get a newline between their text runs so headings and
// paragraphs stay distinguishable in the flattened output.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "br": true, "blockquote": true, "pre": true,
	"header": true, "footer": true, "nav": true, "aside": true,
}

// ExtractPage parses rendered HTML and returns its visible text, outbound
// links resolved against baseURL, the document title, and the declared
// favicon. Text is bounded by maxText characters and links by maxLinks.
func ExtractPage(rawHTML, baseURL string, maxText, maxLinks int) (*ExtractedPage, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	base, baseErr := url.Parse(baseURL)

	result := &ExtractedPage{}
	var text strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.CommentNode {
			return
		}

		if n.Type == html.ElementNode {
			tag := strings.ToLower(n.Data)
			if skippedElements[tag] {
				return
			}

			switch tag {
			case "title":
				if result.Title == "" {
					result.Title = strings.TrimSpace(nodeText(n))
				}
				return // title text is metadata, not page text
			case "a":
				if href := attrValue(n, "href"); href != "" {
					if maxLinks <= 0 || len(result.Links) < maxLinks {
						if resolved := resolveHref(base, baseErr, href); resolved != "" {
							linkText := strings.TrimSpace(nodeText(n))
							result.Links = append(result.Links, Link{Text: linkText, Href: resolved})
						}
					}
				}
			case "link":
				rel := strings.ToLower(attrValue(n, "rel"))
				if result.Favicon == "" && strings.Contains(rel, "icon") {
					if href := attrValue(n, "href"); href != "" {
						result.Favicon = resolveHref(base, baseErr, href)
					}
				}
			}

			if blockElements[tag] && text.Len() > 0 {
				text.WriteByte('\n')
			}
		}

		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				if text.Len() > 0 {
					last := text.String()[text.Len()-1]
					if last != '\n' && last != ' ' {
						text.WriteByte(' ')
					}
				}
				text.WriteString(t)
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	result.Text = collapseText(text.String())
	if maxText > 0 && len(result.Text) > maxText {
		result.Text = truncateOnRuneBoundary(result.Text, maxText)
	}

	if result.Favicon == "" && base != nil && baseErr == nil && base.Host != "" {
		result.Favicon = base.Scheme + "://" + base.Host + "/favicon.ico"
	}

	return result, nil
}

// truncateOnRuneBoundary cuts s to at most max bytes without splitting a
// multi-byte rune at the tail.
func truncateOnRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// nodeText flattens the text content of a subtree.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return strings.TrimSpace(attr.Val)
		}
	}
	return ""
}

// resolveHref makes href absolute against the page URL. Relative hrefs on
// an unparseable base are dropped rather than guessed at.
func resolveHref(base *url.URL, baseErr error, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if base == nil || baseErr != nil {
		if strings.Contains(href, "://") {
			return href
		}
		return ""
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return resolved.String()
}

// collapseText squeezes runs of blank lines and trailing spaces out of the
// flattened text.
func collapseText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
