// Package extract parses fetched scheme pages into structured fact records.
//
// Every field is extracted by a chain of heuristics tried in priority
// order: structural selectors first, then vocabulary regexes over the
// flattened page text, then a scan of two-column table rows keyed by
// label keywords. The first heuristic that yields a value wins. A field
// no heuristic can produce is left unset; extraction itself never fails.
package extract

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/fundveille/fundveille/scrape/internal/store"
	"github.com/fundveille/fundveille/urlguard"
)

// Extractor pulls structured fields out of parsed scheme pages.
// URL-valued fields (factsheet links, notice links) pass through the
// domain guard before being recorded.
type Extractor struct {
	guard *urlguard.Validator
	now   func() time.Time
}

func New(guard *urlguard.Validator) *Extractor {
	return &Extractor{guard: guard, now: time.Now}
}

var schemeCodeURLRe = regexp.MustCompile(`/(\d{6})`)
var schemeCodeTextRe = regexp.MustCompile(`(?i)(?:scheme\s*code|fund\s*code)[:\s]*(\d{6})`)

// SchemeCode recovers the six-digit scheme code from the page URL, or
// failing that from the page text. Returns "" when neither carries one.
func (e *Extractor) SchemeCode(pageURL string, doc *html.Node) string {
	if m := schemeCodeURLRe.FindStringSubmatch(pageURL); m != nil {
		return m[1]
	}
	if doc != nil {
		if m := schemeCodeTextRe.FindStringSubmatch(collectText(doc)); m != nil {
			return m[1]
		}
	}
	return ""
}

// Scheme extracts a best-effort record from a parsed scheme page.
// schemeCode may be "" in which case it is recovered from the URL/page.
func (e *Extractor) Scheme(doc *html.Node, pageURL, schemeCode string) *store.SchemeRecord {
	text := pageText(doc)
	rows := tableRows(doc)

	if schemeCode == "" {
		schemeCode = e.SchemeCode(pageURL, doc)
		if schemeCode == "" {
			schemeCode = "UNKNOWN"
		}
	}

	rec := &store.SchemeRecord{
		Metadata: store.SchemeMetadata{
			SchemeCode:       schemeCode,
			SchemeName:       "Unknown Scheme",
			SourceURL:        pageURL,
			LastUpdated:      e.now().UTC(),
			ValidationStatus: store.StatusPending,
		},
		FieldSources: map[string]string{"scheme_page": pageURL},
	}
	src := func(field string, url string) { rec.FieldSources[field] = url }

	if name := fundName(doc); name != "" {
		rec.Metadata.SchemeName = name
		src("scheme_name", pageURL)
	}
	if cat := category(text, rows); cat != "" {
		rec.Metadata.Category = cat
		src("category", pageURL)
	}
	rec.Metadata.SchemeType = ClassifyType(rec.Metadata.Category)

	if points := navData(text, rows, e.now); len(points) > 0 {
		rec.NAVHistory = points
		rec.CurrentNAV = &points[0].NAV
		rec.NAVDate = points[0].Date
		src("nav", pageURL)
	}
	if v := aum(text, rows); v != nil {
		rec.AUM = v
		src("aum", pageURL)
	}
	if v := expenseRatio(text, rows); v != nil {
		rec.ExpenseRatio = v
		src("expense_ratio", pageURL)
	}
	if b := benchmark(text, rows); b != "" {
		rec.Benchmark = b
		src("benchmark", pageURL)
	}
	if d := inceptionDate(text, rows); d != "" {
		rec.LaunchDate = d
		src("inception_date", pageURL)
	}
	if m := fundManager(text, rows); m != "" {
		rec.FundManager = m
		src("fund_manager", pageURL)
	}
	minInv, sipMin := investmentMins(text, rows)
	if minInv != nil || sipMin != nil {
		rec.MinInvestment = minInv
		rec.SIPMinInvestment = sipMin
		src("investment_details", pageURL)
	}
	if r := riskLevel(text, rows); r != "" {
		rec.RiskLevel = r
		src("risk_level", pageURL)
	}
	if fs := e.factsheetURL(doc, pageURL); fs != "" {
		rec.Metadata.FactsheetURL = fs
		src("factsheet", fs)
	}
	if perf := performance(text, rows); len(perf) > 0 {
		rec.Performance = perf
		src("performance", pageURL)
	}
	if ns := e.notices(doc, pageURL); len(ns) > 0 {
		rec.Notices = ns
		src("notices", pageURL)
	}

	return rec
}

// --- Fund name ---

var titleSuffixRe = regexp.MustCompile(`(?i)\s*-\s*Nippon.*$`)

func fundName(doc *html.Node) string {
	selectors := []string{
		"h1",
		".fund-name",
		".scheme-name",
		"[class*=fund-name]",
		"[class*=scheme-name]",
		"[id*=fund-name]",
		"[id*=scheme-name]",
	}
	for _, sel := range selectors {
		if n := querySelector(doc, sel); n != nil {
			if text := collectText(n); len(text) > 3 {
				return text
			}
		}
	}
	if title := pageTitle(doc); title != "" {
		return strings.TrimSpace(titleSuffixRe.ReplaceAllString(title, ""))
	}
	return ""
}

// --- Category and type ---

var categoryRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:category|fund\s*category)[:\s]*([A-Za-z\s]+?)(?:\n|$)`),
	regexp.MustCompile(`(?i)\b(equity|debt|hybrid|elss|liquid|arbitrage|balanced)\b`),
	regexp.MustCompile(`(?i)\b(large\s*cap|mid\s*cap|small\s*cap|multi\s*cap)\b`),
}

func category(text string, rows []tableRow) string {
	for _, re := range categoryRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return titleCase(strings.TrimSpace(m[1]))
		}
	}
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Label), "category") {
			return row.Value
		}
	}
	return ""
}

// ClassifyType maps a category string onto the coarse scheme type.
func ClassifyType(category string) string {
	if category == "" {
		return store.TypeUnknown
	}
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "equity") || strings.Contains(c, "elss"):
		return store.TypeEquity
	case strings.Contains(c, "debt") || strings.Contains(c, "bond") || strings.Contains(c, "gilt"):
		return store.TypeDebt
	case strings.Contains(c, "hybrid") || strings.Contains(c, "balanced") || strings.Contains(c, "multi-asset"):
		return store.TypeHybrid
	case strings.Contains(c, "liquid") || strings.Contains(c, "money market"):
		return store.TypeLiquid
	default:
		return store.TypeOther
	}
}

// --- NAV ---

var navRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)NAV[:\s]*₹?\s*([\d,]+\.?\d*)\s*(?:as\s*of|dated|on)?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})?`),
	regexp.MustCompile(`(?i)Net\s*Asset\s*Value[:\s]*₹?\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)Latest\s*NAV[:\s]*₹?\s*([\d,]+\.?\d*)`),
}

// NAVCandidates returns every numeric value on the page matching NAV
// vocabulary. The cross-validator compares the stored NAV against this
// full set rather than the single best match.
func NAVCandidates(text string) []float64 {
	var out []float64
	for _, re := range navRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if v := parseNumber(m[1]); v != nil {
				out = append(out, *v)
			}
		}
	}
	return out
}

func navData(text string, rows []tableRow, now func() time.Time) []store.NAVPoint {
	var points []store.NAVPoint
	for _, re := range navRes {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		v := parseNumber(m[1])
		if v == nil {
			continue
		}
		date := ""
		if len(m) > 2 {
			date = m[2]
		}
		if date == "" {
			// No inline date; scan a ±50-char window around the match.
			date = findDateNear(text, loc[0], loc[1], 50)
		}
		if date == "" {
			date = now().Format("02-01-2006")
		}
		points = append(points, store.NAVPoint{Date: date, NAV: *v})
		break // first match wins per pattern family
	}

	for _, row := range rows {
		if !strings.Contains(strings.ToLower(row.Label), "nav") {
			continue
		}
		if v := parseNumber(row.Value); v != nil {
			points = append(points, store.NAVPoint{Date: now().Format("02-01-2006"), NAV: *v})
		}
	}
	return points
}

// --- AUM ---

var aumRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)AUM[:\s]*₹?\s*[\d,]+\.?\d*\s*(?:Cr|Crore|Lakh|L)`),
	regexp.MustCompile(`(?i)Assets\s*Under\s*Management[:\s]*₹?\s*[\d,]+\.?\d*\s*(?:Cr|Crore|Lakh)`),
	regexp.MustCompile(`(?i)Fund\s*Size[:\s]*₹?\s*[\d,]+\.?\d*\s*(?:Cr|Crore|Lakh)`),
}

func aum(text string, rows []tableRow) *float64 {
	for _, re := range aumRes {
		if m := re.FindString(text); m != "" {
			if v := parseAmountCrore(m); v != nil {
				return v
			}
		}
	}
	for _, row := range rows {
		label := strings.ToLower(row.Label)
		if strings.Contains(label, "aum") ||
			(strings.Contains(label, "assets") && strings.Contains(label, "management")) {
			if v := parseAmountCrore(row.Value); v != nil {
				return v
			}
		}
	}
	return nil
}

// --- Expense ratio ---

var expenseRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Expense\s*Ratio[:\s]*([\d.]+)\s*%?`),
	regexp.MustCompile(`(?i)Total\s*Expense\s*Ratio[:\s]*([\d.]+)\s*%?`),
	regexp.MustCompile(`(?i)\bTER[:\s]*([\d.]+)\s*%?`),
}

func expenseRatio(text string, rows []tableRow) *float64 {
	for _, re := range expenseRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if v := parseNumber(m[1]); v != nil {
				return v
			}
		}
	}
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Label), "expense") {
			if v := parseNumber(row.Value); v != nil {
				return v
			}
		}
	}
	return nil
}

// --- Benchmark ---

var benchmarkRe = regexp.MustCompile(`(?i)Benchmark(?:\s*Index)?[:\s]+([^\n]+)`)
var spaceRe = regexp.MustCompile(`\s+`)

func benchmark(text string, rows []tableRow) string {
	if m := benchmarkRe.FindStringSubmatch(text); m != nil {
		b := spaceRe.ReplaceAllString(strings.TrimSpace(m[1]), " ")
		return clip(b, 200)
	}
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Label), "benchmark") {
			return strings.TrimSpace(row.Value)
		}
	}
	return ""
}

// --- Inception date ---

var inceptionRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Inception|Launch|Inception\s*Date)[:\s]+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	regexp.MustCompile(`(?i)Date\s*of\s*Inception[:\s]+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
}

func inceptionDate(text string, rows []tableRow) string {
	for _, re := range inceptionRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	for _, row := range rows {
		label := strings.ToLower(row.Label)
		if strings.Contains(label, "inception") || strings.Contains(label, "launch") {
			if d := dateRe.FindString(row.Value); d != "" {
				return d
			}
		}
	}
	return ""
}

// --- Fund manager ---

var managerRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Fund\s*Managers?[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Managed\s*by[:\s]+([^\n]+)`),
}

func fundManager(text string, rows []tableRow) string {
	for _, re := range managerRes {
		if m := re.FindStringSubmatch(text); m != nil {
			mgr := spaceRe.ReplaceAllString(strings.TrimSpace(m[1]), " ")
			return clip(mgr, 200)
		}
	}
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Label), "manager") {
			return strings.TrimSpace(row.Value)
		}
	}
	return ""
}

// --- Minimum investment / SIP ---

var minInvRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Minimum\s*Investment[:\s]*₹?\s*([\d,]+)`),
	regexp.MustCompile(`(?i)Min\s*Investment[:\s]*₹?\s*([\d,]+)`),
	regexp.MustCompile(`(?i)Initial\s*Investment[:\s]*₹?\s*([\d,]+)`),
}

var sipMinRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)SIP\s*Minimum[:\s]*₹?\s*([\d,]+)`),
	regexp.MustCompile(`(?i)Minimum\s*SIP[:\s]*₹?\s*([\d,]+)`),
	regexp.MustCompile(`(?i)Systematic\s*Investment\s*Plan[:\s]*₹?\s*([\d,]+)`),
}

func investmentMins(text string, rows []tableRow) (minInv, sipMin *float64) {
	for _, re := range minInvRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if v := parseNumber(m[1]); v != nil {
				minInv = v
				break
			}
		}
	}
	for _, re := range sipMinRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if v := parseNumber(m[1]); v != nil {
				sipMin = v
				break
			}
		}
	}
	for _, row := range rows {
		label := strings.ToLower(row.Label)
		switch {
		case minInv == nil && strings.Contains(label, "minimum") &&
			strings.Contains(label, "investment") && !strings.Contains(label, "sip"):
			minInv = parseNumber(row.Value)
		case sipMin == nil && strings.Contains(label, "sip") && strings.Contains(label, "minimum"):
			sipMin = parseNumber(row.Value)
		}
	}
	return minInv, sipMin
}

// --- Risk level ---

var riskRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Risk\s*Level[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Risk\s*Profile[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Riskometer[:\s]+([^\n]+)`),
}

func riskLevel(text string, rows []tableRow) string {
	for _, re := range riskRes {
		if m := re.FindStringSubmatch(text); m != nil {
			risk := strings.ToLower(m[1])
			switch {
			case strings.Contains(risk, "low"):
				return "Low"
			case strings.Contains(risk, "medium") || strings.Contains(risk, "moderate"):
				return "Medium"
			case strings.Contains(risk, "high"):
				return "High"
			}
			return clip(strings.TrimSpace(m[1]), 50)
		}
	}
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Label), "risk") {
			return strings.TrimSpace(row.Value)
		}
	}
	return ""
}

// --- Factsheet URL ---

func (e *Extractor) factsheetURL(doc *html.Node, base string) string {
	for _, a := range Links(doc) {
		linkText := strings.ToLower(a.Text)
		href := strings.ToLower(a.Href)
		if strings.Contains(linkText, "factsheet") || strings.Contains(linkText, "fact sheet") ||
			strings.HasSuffix(href, ".pdf") && strings.Contains(href, "factsheet") {
			if resolved, ok := e.guard.Normalize(a.Href, base); ok {
				return resolved
			}
		}
	}
	// Second pass: any .pdf link at all, when the page mentions factsheets.
	if strings.Contains(strings.ToLower(collectText(doc)), "factsheet") {
		for _, a := range Links(doc) {
			if strings.HasSuffix(strings.ToLower(a.Href), ".pdf") {
				if resolved, ok := e.guard.Normalize(a.Href, base); ok {
					return resolved
				}
			}
		}
	}
	return ""
}

// --- Performance ---

var perfRes = map[string]*regexp.Regexp{
	"1Y": regexp.MustCompile(`(?i)(?:1\s*Year|1Y)[:\s]+([\d.]+)\s*%`),
	"3Y": regexp.MustCompile(`(?i)(?:3\s*Year|3Y)[:\s]+([\d.]+)\s*%`),
	"5Y": regexp.MustCompile(`(?i)(?:5\s*Year|5Y)[:\s]+([\d.]+)\s*%`),
}

var perfRowRes = map[string]*regexp.Regexp{
	"1Y": regexp.MustCompile(`(?i)1\s*(?:year|y)`),
	"3Y": regexp.MustCompile(`(?i)3\s*(?:year|y)`),
	"5Y": regexp.MustCompile(`(?i)5\s*(?:year|y)`),
}

func performance(text string, rows []tableRow) map[string]float64 {
	perf := make(map[string]float64)
	for period, re := range perfRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if v := parseNumber(m[1]); v != nil {
				perf[period] = *v
			}
		}
	}
	for _, row := range rows {
		for period, re := range perfRowRes {
			if _, done := perf[period]; done {
				continue
			}
			if re.MatchString(row.Label) {
				if v := parseNumber(row.Value); v != nil {
					perf[period] = *v
				}
			}
		}
	}
	if len(perf) == 0 {
		return nil
	}
	return perf
}

// --- Notices ---

var noticeClassRe = regexp.MustCompile(`(?i)notice|announcement`)

func (e *Extractor) notices(doc *html.Node, base string) []store.Notice {
	var out []store.Notice
	seen := make(map[string]bool)

	add := func(title, href, excerpt string) {
		resolved, ok := e.guard.Normalize(href, base)
		if !ok || seen[resolved] {
			return
		}
		seen[resolved] = true
		if title == "" {
			title = "Notice"
		}
		out = append(out, store.Notice{Title: title, URL: resolved, Excerpt: clip(excerpt, 500)})
	}

	// Sections whose class names look like notice containers.
	for _, sel := range []string{"div[class*=notice]", "section[class*=notice]", "div[class*=announcement]"} {
		for _, section := range querySelectorAll(doc, sel) {
			sectionText := collectText(section)
			for _, a := range Links(section) {
				add(a.Text, a.Href, sectionText)
			}
		}
	}
	// Links whose target path mentions notices.
	for _, a := range Links(doc) {
		if noticeClassRe.MatchString(a.Href) && a.Text != "" {
			add(a.Text, a.Href, "")
		}
	}
	return out
}

// titleCase uppercases the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func clip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
