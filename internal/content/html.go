package content

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlAnalysis is everything one walk of the HTML tree yields.
type htmlAnalysis struct {
	Text           string
	Links          []linkInfo
	Headline       string
	ImageCount     int
	TrackingPixels int
	TableCount     int
	StyledCount    int
	HasMediaQuery  bool
	CTATexts       []string
}

type linkInfo struct {
	Href string
	Text string
}

// analyzeHTML tokenizes the body once, collecting text, links, images,
// structural counts, and CTA candidates. Quote blocks (gmail_quote and
// blockquote) are skipped entirely.
func analyzeHTML(body string) *htmlAnalysis {
	a := &htmlAnalysis{}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		a.Text = body
		return a
	}

	var (
		text   strings.Builder
		h1, h2 string
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head":
				return
			case "blockquote":
				return
			case "br", "p", "div", "tr", "li", "h1", "h2", "h3":
				text.WriteString("\n")
			case "table":
				a.TableCount++
			case "img":
				a.ImageCount++
				if isTrackingPixel(n) {
					a.TrackingPixels++
				}
			case "a":
				link := linkInfo{Href: attr(n, "href"), Text: strings.TrimSpace(nodeText(n))}
				if link.Href != "" && !strings.HasPrefix(link.Href, "mailto:") {
					a.Links = append(a.Links, link)
				}
				if isCTA(n, link.Text) {
					a.CTATexts = append(a.CTATexts, link.Text)
				}
			case "button":
				if t := strings.TrimSpace(nodeText(n)); t != "" && len(t) < 80 {
					a.CTATexts = append(a.CTATexts, t)
				}
			}
			if cls := attr(n, "class"); strings.Contains(cls, "gmail_quote") {
				return
			}
			if attr(n, "style") != "" {
				a.StyledCount++
			}
			if n.Data == "style" || strings.Contains(attr(n, "media"), "max-width") {
				a.HasMediaQuery = true
			}
			if n.Data == "h1" && h1 == "" {
				h1 = strings.TrimSpace(nodeText(n))
			}
			if n.Data == "h2" && h2 == "" {
				h2 = strings.TrimSpace(nodeText(n))
			}
		}
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// <style> blocks carry media queries as text; a cheap substring check
	// covers them without a CSS parser.
	if !a.HasMediaQuery && strings.Contains(body, "@media") {
		a.HasMediaQuery = true
	}

	a.Text = collapseBlankLines(text.String())
	if h1 != "" {
		a.Headline = h1
	} else if h2 != "" {
		a.Headline = h2
	}
	return a
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// isTrackingPixel flags 1x1 or 0x0 images and known beacon paths.
func isTrackingPixel(n *html.Node) bool {
	w, h := attr(n, "width"), attr(n, "height")
	if (w == "1" || w == "0") && (h == "1" || h == "0") {
		return true
	}
	src := strings.ToLower(attr(n, "src"))
	for _, marker := range []string{"open.aspx", "/track/open", "/o.gif", "pixel.gif", "spacer.gif", "/wf/open"} {
		if strings.Contains(src, marker) {
			return true
		}
	}
	return false
}

// isCTA treats button-classed or background-styled anchors with short
// text as calls to action.
func isCTA(n *html.Node, text string) bool {
	if text == "" || len(text) >= 80 {
		return false
	}
	cls := strings.ToLower(attr(n, "class"))
	for _, marker := range []string{"button", "btn", "cta"} {
		if strings.Contains(cls, marker) {
			return true
		}
	}
	style := strings.ToLower(attr(n, "style"))
	return strings.Contains(style, "background-color") || strings.Contains(style, "background:")
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
