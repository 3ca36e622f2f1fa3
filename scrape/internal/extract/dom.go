package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// querySelectorAll returns all nodes matching a simple CSS selector.
// Supports a subset of CSS selectors:
//   - tag: "h1", "table", "div"
//   - .class: ".fund-name"
//   - #id: "#scheme-header"
//   - tag.class, tag#id
//   - [attr*=val]: substring attribute match, e.g. [class*=fund-name]
//   - combinations separated by space (descendant combinator)
func querySelectorAll(doc *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return nil
	}

	matches := matchSimple(doc, parts[0])
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		for _, parent := range matches {
			next = append(next, matchSimple(parent, parts[i])...)
		}
		matches = next
	}
	return matches
}

// querySelector returns the first node matching the selector, or nil.
func querySelector(doc *html.Node, selector string) *html.Node {
	matches := querySelectorAll(doc, selector)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimpleSelector(sel)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matchesSelector(n, m) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag        string
	id         string
	class      string
	attrKey    string
	attrVal    string
	attrSubstr bool // [attr*=val] instead of [attr=val]
}

func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if opIdx := strings.Index(attrPart, "*="); opIdx >= 0 {
			s.attrKey = attrPart[:opIdx]
			s.attrVal = strings.Trim(attrPart[opIdx+2:], `"'`)
			s.attrSubstr = true
		} else if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}
	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}
	s.tag = sel
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && getAttr(n, "id") != s.id {
		return false
	}
	if s.class != "" {
		found := false
		for _, c := range strings.Fields(getAttr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.attrKey != "" {
		val := getAttr(n, s.attrKey)
		switch {
		case s.attrSubstr:
			if !strings.Contains(val, s.attrVal) {
				return false
			}
		case s.attrVal != "":
			if val != s.attrVal {
				return false
			}
		default:
			if !hasAttr(n, s.attrKey) {
				return false
			}
		}
	}
	return true
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// collectText extracts all visible text from a node subtree, whitespace
// collapsed to single spaces.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		// Skip script, style, noscript.
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

// pageText flattens the document to text with newlines between
// block-level elements, approximating the rendered line structure the
// field vocabulary regexes assume.
func pageText(doc *html.Node) string {
	var sb strings.Builder
	last := byte('\n')
	write := func(b byte) {
		if b == '\n' && last == '\n' {
			return
		}
		sb.WriteByte(b)
		last = b
	}
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if last != '\n' {
					write(' ')
				}
				for i := 0; i < len(text); i++ {
					write(text[i])
				}
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			write('\n')
		}
	}
	f(doc)
	return sb.String()
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Td, atom.Th,
		atom.Table, atom.Br, atom.Header, atom.Footer, atom.Title:
		return true
	}
	return false
}

// tableRow is one label/value pair from a two-column table row.
type tableRow struct {
	Label string
	Value string
}

// tableRows collects every table row with at least two cells, as
// (first-cell text, second-cell text) pairs. This feeds the last-resort
// field heuristic: match the label against a keyword set, parse the value.
func tableRows(doc *html.Node) []tableRow {
	var rows []tableRow
	for _, table := range findAllByTag(doc, atom.Table) {
		for _, tr := range findAllByTag(table, atom.Tr) {
			var cells []string
			for c := tr.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, collectText(c))
				}
			}
			if len(cells) >= 2 {
				rows = append(rows, tableRow{Label: cells[0], Value: cells[1]})
			}
		}
	}
	return rows
}

// Link is a hyperlink with its visible text and title attribute.
type Link struct {
	Href  string
	Text  string
	Title string
}

// Links collects every <a href> in the document.
func Links(doc *html.Node) []Link {
	var out []Link
	for _, a := range findAllByTag(doc, atom.A) {
		href := getAttr(a, "href")
		if href == "" {
			continue
		}
		title := getAttr(a, "title")
		if title == "" {
			title = getAttr(a, "data-title")
		}
		out = append(out, Link{Href: href, Text: collectText(a), Title: title})
	}
	return out
}

func findAllByTag(root *html.Node, tag atom.Atom) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

// pageTitle returns the <title> text, or "".
func pageTitle(doc *html.Node) string {
	if t := querySelector(doc, "title"); t != nil {
		return collectText(t)
	}
	return ""
}
