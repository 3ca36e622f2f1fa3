package scrape

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fundveille/fundveille/scrape/internal/extract"
)

// ValidationResult is the outcome of auditing a stored record against a
// fresh fetch of its source page.
type ValidationResult struct {
	Status      string           `json:"status"`
	Checks      map[string]Check `json:"checks,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	ValidatedAt time.Time        `json:"validated_at"`
}

// Check records one field audit: the stored value, what the live page
// showed, and why the check failed when it did.
type Check struct {
	Valid       bool   `json:"valid"`
	Stored      any    `json:"stored,omitempty"`
	FoundOnPage any    `json:"found_on_page,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Apply writes the audit outcome back into the record. Validation is a
// persistent trail, not a transient report.
func (r *ValidationResult) Apply(rec *SchemeRecord) {
	rec.Metadata.ValidationStatus = r.Status
	t := r.ValidatedAt
	rec.Metadata.LastValidated = &t
}

// Validate re-fetches the record's source page and checks the stored
// name, NAV, and scheme type against it.
func (s *Service) Validate(ctx context.Context, rec *SchemeRecord) *ValidationResult {
	result := &ValidationResult{
		Status:      StatusPending,
		Checks:      make(map[string]Check),
		ValidatedAt: s.now().UTC(),
	}
	if !s.config.ValidationEnabled {
		result.Status = StatusSkipped
		result.Reason = "validation disabled"
		return result
	}

	vctx, cancel := context.WithTimeout(ctx, s.config.ValidationTimeout)
	defer cancel()
	doc, err := s.fetchDoc(vctx, rec.Metadata.SourceURL)
	if err != nil {
		result.Status = StatusError
		result.Reason = err.Error()
		return result
	}
	liveText := extract.PageText(doc)

	result.Checks["scheme_name"] = checkName(rec.Metadata.SchemeName, liveText)
	if rec.CurrentNAV != nil {
		result.Checks["nav"] = checkNAV(*rec.CurrentNAV, liveText)
	}
	result.Checks["scheme_type"] = checkType(rec.Metadata.SchemeType, liveText)

	passed := 0
	for _, c := range result.Checks {
		if c.Valid {
			passed++
		}
	}
	switch {
	case passed == len(result.Checks):
		result.Status = StatusValid
	case passed > 0:
		result.Status = StatusPartial
	default:
		result.Status = StatusInvalid
	}
	return result
}

func checkName(name, pageText string) Check {
	found := nameOnPage(name, pageText)
	c := Check{Valid: found, Stored: name, FoundOnPage: found}
	if !found {
		c.Reason = "scheme name not found on page"
	}
	return c
}

func checkType(schemeType, pageText string) Check {
	c := Check{Stored: schemeType}
	c.Valid = strings.Contains(strings.ToLower(pageText), strings.ToLower(schemeType))
	c.FoundOnPage = c.Valid
	if !c.Valid {
		c.Reason = "scheme type not found on page"
	}
	return c
}

// checkNAV compares the stored NAV to every NAV-vocabulary value on the
// live page and keeps the closest one as evidence.
func checkNAV(stored float64, pageText string) Check {
	c := Check{Stored: stored}
	candidates := extract.NAVCandidates(pageText)
	if len(candidates) == 0 {
		c.Reason = "no NAV found on page"
		return c
	}
	closest := candidates[0]
	for _, live := range candidates[1:] {
		if relDiff(stored, live) < relDiff(stored, closest) {
			closest = live
		}
	}
	c.FoundOnPage = closest
	if relDiff(stored, closest) < navTolerance {
		c.Valid = true
		return c
	}
	c.Reason = fmt.Sprintf("NAV mismatch: stored %.2f, closest on page %.2f", stored, closest)
	return c
}

// navTolerance is the relative difference below which a stored NAV still
// counts as matching a live value.
const navTolerance = 0.01

func relDiff(a, b float64) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	max := a
	if b > max {
		max = b
	}
	if max <= 0 {
		return math.Inf(1)
	}
	return diff / max
}

// nameOnPage checks the stored name as a substring of the live page, or
// failing that any of its words longer than three characters.
func nameOnPage(name, pageText string) bool {
	page := strings.ToLower(pageText)
	lower := strings.ToLower(name)
	if strings.Contains(page, lower) {
		return true
	}
	for _, word := range strings.Fields(lower) {
		if len(word) > 3 && strings.Contains(page, word) {
			return true
		}
	}
	return false
}

// navOnPage reports whether the stored NAV matches any NAV-vocabulary
// value on the live page, within the relative tolerance.
func navOnPage(stored float64, pageText string) bool {
	return checkNAV(stored, pageText).Valid
}
