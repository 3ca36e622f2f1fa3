package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/fundveille/fundveille/scrape/internal/store"
	"github.com/fundveille/fundveille/urlguard"
)

func parse(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func testExtractor() *Extractor {
	return New(urlguard.New([]string{"mf.nipponindiaim.com", "nipponindiaim.com"}))
}

const schemePage = `<html>
<head><title>Nippon India Growth Fund - Nippon India Mutual Fund</title></head>
<body>
<h1>Nippon India Growth Fund</h1>
<p>Category: Equity</p>
<p>NAV: ₹3,456.78 as of 28-08-2026</p>
<p>AUM: ₹25,000 Crore</p>
<p>Expense Ratio: 1.85%</p>
<p>Benchmark: NIFTY Midcap 150 TRI</p>
<p>Inception Date: 08-10-1995</p>
<p>Fund Manager: Rupesh Patel</p>
<p>Minimum Investment: ₹100</p>
<p>Minimum SIP: ₹100</p>
<p>Risk Level: Very High</p>
<p>1 Year: 24.50% 3 Year: 21.20% 5 Year: 18.90%</p>
<a href="/factsheets/118550-factsheet.pdf">Download Factsheet</a>
<div class="notices-section"><a href="/notices/merger-2026">Scheme merger notice</a></div>
</body></html>`

// WHAT: a typical scheme page yields a fully populated record with a
// field_sources entry per extracted field.
func TestSchemeFullPage(t *testing.T) {
	doc := parse(t, schemePage)
	rec := testExtractor().Scheme(doc, "https://mf.nipponindiaim.com/funds/118550/growth", "")

	if rec.Metadata.SchemeCode != "118550" {
		t.Errorf("scheme code = %q, want 118550 from URL", rec.Metadata.SchemeCode)
	}
	if rec.Metadata.SchemeName != "Nippon India Growth Fund" {
		t.Errorf("name = %q", rec.Metadata.SchemeName)
	}
	if rec.Metadata.SchemeType != store.TypeEquity {
		t.Errorf("type = %q, want Equity", rec.Metadata.SchemeType)
	}
	if rec.CurrentNAV == nil || *rec.CurrentNAV != 3456.78 {
		t.Errorf("NAV = %v, want 3456.78", rec.CurrentNAV)
	}
	if rec.NAVDate != "28-08-2026" {
		t.Errorf("NAV date = %q", rec.NAVDate)
	}
	if rec.AUM == nil || *rec.AUM != 25000 {
		t.Errorf("AUM = %v, want 25000 crore", rec.AUM)
	}
	if rec.ExpenseRatio == nil || *rec.ExpenseRatio != 1.85 {
		t.Errorf("expense ratio = %v", rec.ExpenseRatio)
	}
	if rec.Benchmark != "NIFTY Midcap 150 TRI" {
		t.Errorf("benchmark = %q", rec.Benchmark)
	}
	if rec.LaunchDate != "08-10-1995" {
		t.Errorf("launch date = %q", rec.LaunchDate)
	}
	if rec.FundManager != "Rupesh Patel" {
		t.Errorf("fund manager = %q", rec.FundManager)
	}
	if rec.MinInvestment == nil || *rec.MinInvestment != 100 {
		t.Errorf("min investment = %v", rec.MinInvestment)
	}
	if rec.SIPMinInvestment == nil || *rec.SIPMinInvestment != 100 {
		t.Errorf("SIP minimum = %v", rec.SIPMinInvestment)
	}
	if rec.RiskLevel != "High" {
		t.Errorf("risk = %q, want High (normalised)", rec.RiskLevel)
	}
	if rec.Performance["1Y"] != 24.5 || rec.Performance["3Y"] != 21.2 || rec.Performance["5Y"] != 18.9 {
		t.Errorf("performance = %v", rec.Performance)
	}
	if rec.Metadata.FactsheetURL != "https://mf.nipponindiaim.com/factsheets/118550-factsheet.pdf" {
		t.Errorf("factsheet URL = %q", rec.Metadata.FactsheetURL)
	}
	if len(rec.Notices) == 0 {
		t.Error("no notices extracted")
	}

	for _, field := range []string{"scheme_name", "category", "nav", "aum", "expense_ratio", "factsheet"} {
		if rec.FieldSources[field] == "" {
			t.Errorf("field_sources missing %q", field)
		}
	}
	if rec.FieldSources["factsheet"] != rec.Metadata.FactsheetURL {
		t.Error("factsheet source must be the resolved factsheet URL, not the page URL")
	}
}

// WHAT: "₹50000 Lakh" converts to 500.0 crore.
func TestAUMLakhConversion(t *testing.T) {
	doc := parse(t, `<html><body><p>AUM: ₹50000 Lakh</p></body></html>`)
	rec := testExtractor().Scheme(doc, "https://mf.nipponindiaim.com/funds/100001/x", "")
	if rec.AUM == nil || *rec.AUM != 500.0 {
		t.Fatalf("AUM = %v, want 500.0 crore", rec.AUM)
	}
}

// WHAT: when the NAV line carries no inline date, a date within 50 chars
// of the match is picked up.
func TestNAVDateWindow(t *testing.T) {
	doc := parse(t, `<html><body><p>Net Asset Value: ₹45.67</p><p>Valuation date 15-08-2026</p></body></html>`)
	rec := testExtractor().Scheme(doc, "https://mf.nipponindiaim.com/funds/100002/x", "")
	if rec.CurrentNAV == nil || *rec.CurrentNAV != 45.67 {
		t.Fatalf("NAV = %v", rec.CurrentNAV)
	}
	if rec.NAVDate != "15-08-2026" {
		t.Errorf("NAV date = %q, want the nearby 15-08-2026", rec.NAVDate)
	}
}

// WHAT: fields absent from both text and tables stay unset, and the
// record still comes back (extraction never fails on missing fields).
func TestSparsePage(t *testing.T) {
	doc := parse(t, `<html><body><h1>Some Fund</h1></body></html>`)
	rec := testExtractor().Scheme(doc, "https://mf.nipponindiaim.com/funds/100003/x", "")
	if rec == nil {
		t.Fatal("nil record for sparse page")
	}
	if rec.CurrentNAV != nil || rec.AUM != nil || rec.ExpenseRatio != nil {
		t.Errorf("unset fields populated: nav=%v aum=%v er=%v", rec.CurrentNAV, rec.AUM, rec.ExpenseRatio)
	}
	if rec.Metadata.SchemeType != store.TypeUnknown {
		t.Errorf("type = %q, want Unknown without category", rec.Metadata.SchemeType)
	}
}

// WHAT: two-column table rows serve as the last-resort heuristic when the
// running text has no vocabulary matches.
func TestTableFallback(t *testing.T) {
	doc := parse(t, `<html><body><table>
<tr><td>Fund Category</td><td>Debt - Gilt</td></tr>
<tr><td>Current NAV</td><td>12.3456</td></tr>
<tr><td>Total Expense</td><td>0.45</td></tr>
<tr><td>Benchmark Index</td><td>CRISIL Gilt Index</td></tr>
</table></body></html>`)
	rec := testExtractor().Scheme(doc, "https://mf.nipponindiaim.com/funds/100004/x", "")
	if rec.Metadata.SchemeType != store.TypeDebt {
		t.Errorf("type = %q, want Debt from table category", rec.Metadata.SchemeType)
	}
	if rec.CurrentNAV == nil || *rec.CurrentNAV != 12.3456 {
		t.Errorf("NAV = %v", rec.CurrentNAV)
	}
	if rec.ExpenseRatio == nil || *rec.ExpenseRatio != 0.45 {
		t.Errorf("expense ratio = %v", rec.ExpenseRatio)
	}
	if rec.Benchmark != "CRISIL Gilt Index" {
		t.Errorf("benchmark = %q", rec.Benchmark)
	}
}

func TestSchemeCodeFromPageText(t *testing.T) {
	e := testExtractor()
	doc := parse(t, `<html><body><p>Scheme Code: 120503</p></body></html>`)
	if code := e.SchemeCode("https://mf.nipponindiaim.com/funds/liquid", doc); code != "120503" {
		t.Errorf("code = %q, want 120503 from page text", code)
	}
	if code := e.SchemeCode("https://mf.nipponindiaim.com/funds/118550/growth", nil); code != "118550" {
		t.Errorf("code = %q, want 118550 from URL", code)
	}
}

func TestClassifyType(t *testing.T) {
	cases := []struct {
		category string
		want     string
	}{
		{"Equity - Large Cap", store.TypeEquity},
		{"ELSS", store.TypeEquity},
		{"Debt - Corporate Bond", store.TypeDebt},
		{"Gilt Fund", store.TypeDebt},
		{"Hybrid Aggressive", store.TypeHybrid},
		{"Balanced Advantage", store.TypeHybrid},
		{"Liquid", store.TypeLiquid},
		{"Money Market", store.TypeLiquid},
		{"Index Fund", store.TypeOther},
		{"", store.TypeUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyType(tc.category); got != tc.want {
			t.Errorf("ClassifyType(%q) = %q, want %q", tc.category, got, tc.want)
		}
	}
}

// WHAT: off-domain factsheet and notice links are dropped by the guard.
func TestOffDomainLinksRejected(t *testing.T) {
	doc := parse(t, `<html><body>
<a href="https://evil.example.com/factsheet.pdf">Factsheet</a>
<a href="https://evil.example.com/notices/fake">Notice</a>
</body></html>`)
	rec := testExtractor().Scheme(doc, "https://mf.nipponindiaim.com/funds/100005/x", "")
	if rec.Metadata.FactsheetURL != "" {
		t.Errorf("off-domain factsheet accepted: %q", rec.Metadata.FactsheetURL)
	}
	if len(rec.Notices) != 0 {
		t.Errorf("off-domain notices accepted: %+v", rec.Notices)
	}
}

func TestNAVCandidates(t *testing.T) {
	text := "NAV: ₹100.50 Latest NAV: 100.52 Net Asset Value: 101.00"
	got := NAVCandidates(text)
	if len(got) < 2 {
		t.Fatalf("candidates = %v, want all vocabulary matches", got)
	}
}

func TestParseNumber(t *testing.T) {
	if v := parseNumber("₹1,234.56 crore"); v == nil || *v != 1234.56 {
		t.Errorf("parseNumber comma value = %v", v)
	}
	if v := parseNumber("no digits here"); v != nil {
		t.Errorf("parseNumber non-numeric = %v, want nil", v)
	}
}
