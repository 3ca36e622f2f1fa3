package store

import "time"

// Validation statuses carried on SchemeMetadata.
const (
	StatusPending = "pending"
	StatusValid   = "valid"
	StatusPartial = "partial"
	StatusInvalid = "invalid"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Scheme types produced by category classification.
const (
	TypeEquity  = "Equity"
	TypeDebt    = "Debt"
	TypeHybrid  = "Hybrid"
	TypeLiquid  = "Liquid"
	TypeOther   = "Other"
	TypeUnknown = "Unknown"
)

// SchemeMetadata carries identity, provenance, and audit state.
type SchemeMetadata struct {
	SchemeCode       string     `json:"scheme_code"`
	SchemeName       string     `json:"scheme_name"`
	SchemeType       string     `json:"scheme_type"`
	Category         string     `json:"category,omitempty"`
	SourceURL        string     `json:"source_url"`
	FactsheetURL     string     `json:"factsheet_url,omitempty"`
	LastUpdated      time.Time  `json:"last_updated"`
	LastValidated    *time.Time `json:"last_validated,omitempty"`
	ValidationStatus string     `json:"validation_status"`
}

// NAVPoint is one dated NAV observation.
type NAVPoint struct {
	Date string  `json:"date"`
	NAV  float64 `json:"nav"`
}

// Notice is an official announcement linked from a scheme page.
type Notice struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt,omitempty"`
}

// SchemeRecord is the full extracted state of one scheme.
//
// Every populated fact field carries a matching FieldSources entry whose
// URL has passed domain validation. Numeric facts are pointers: nil means
// the heuristics found nothing, never zero-by-default.
type SchemeRecord struct {
	Metadata         SchemeMetadata     `json:"metadata"`
	NAVHistory       []NAVPoint         `json:"nav_history,omitempty"`
	CurrentNAV       *float64           `json:"current_nav,omitempty"`
	NAVDate          string             `json:"nav_date,omitempty"`
	AUM              *float64           `json:"aum,omitempty"` // crore units
	ExpenseRatio     *float64           `json:"expense_ratio,omitempty"`
	FundManager      string             `json:"fund_manager,omitempty"`
	LaunchDate       string             `json:"launch_date,omitempty"`
	Benchmark        string             `json:"benchmark,omitempty"`
	RiskLevel        string             `json:"risk_level,omitempty"`
	MinInvestment    *float64           `json:"min_investment,omitempty"`
	SIPMinInvestment *float64           `json:"sip_min_investment,omitempty"`
	Performance      map[string]float64 `json:"performance,omitempty"` // 1Y/3Y/5Y → percent
	Notices          []Notice           `json:"notices,omitempty"`
	FieldSources     map[string]string  `json:"field_sources,omitempty"`
}

// FactsheetRecord is the extracted content of a scheme factsheet.
type FactsheetRecord struct {
	SchemeCode  string            `json:"scheme_code"`
	SchemeName  string            `json:"scheme_name"`
	SourceURL   string            `json:"source_url"`
	LastUpdated time.Time         `json:"last_updated"`
	Content     map[string]string `json:"content"`
	RawText     string            `json:"raw_text"`
}

// SchemeSummary is the per-scheme line kept in the global metadata file.
type SchemeSummary struct {
	SchemeCode string `json:"scheme_code"`
	SchemeName string `json:"scheme_name"`
	SourceURL  string `json:"source_url"`
}

// Metadata is the global aggregate document.
type Metadata struct {
	TotalSchemes    int             `json:"total_schemes"`
	TotalFactsheets int             `json:"total_factsheets"`
	TotalChunks     int             `json:"total_chunks"`
	LastFullRefresh *time.Time      `json:"last_full_refresh,omitempty"`
	LastNAVUpdate   *time.Time      `json:"last_nav_update,omitempty"`
	Schemes         []SchemeSummary `json:"schemes"`
}
