package extract

import "golang.org/x/net/html"

// FactsheetContent pulls label/value pairs out of every two-column table
// row in a factsheet page.
func FactsheetContent(doc *html.Node) map[string]string {
	content := make(map[string]string)
	for _, row := range tableRows(doc) {
		if row.Label != "" && row.Value != "" {
			content[row.Label] = row.Value
		}
	}
	return content
}

// PageText exposes the flattened page text used by the field heuristics.
// The fallback answer path reuses it to run NAV vocabulary over raw
// context documents.
func PageText(doc *html.Node) string {
	return pageText(doc)
}
