package query

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fundveille/fundveille/index"
	"github.com/fundveille/fundveille/oracle"
)

const systemPrompt = `You are an assistant answering questions about Nippon India mutual fund schemes.
Rules:
- Answer only from the context documents provided. Never invent values.
- Cite the source URL of the document you used.
- If the context does not contain the answer, say you do not have that information.
- State facts with their dates where available.
- Never give investment advice or recommendations.`

// generate asks the oracle for a grounded answer over the top context
// documents. On any oracle failure it degrades to a deterministic
// extractive answer from the top document.
func (s *Service) generate(ctx context.Context, q string, results []index.Result) string {
	docs := results
	if len(docs) > s.cfg.ContextDocs {
		docs = docs[:s.cfg.ContextDocs]
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "\nDocument %d (source: %s):\n%s\n", i+1, d.SourceURL, d.Content)
	}
	fmt.Fprintf(&b, "\nQuestion: %s", q)

	text, err := s.completer.Complete(ctx, []oracle.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		if !errors.Is(err, oracle.ErrConfiguration) {
			s.logger.Warn("oracle unavailable, falling back to extraction", "error", err)
		}
		return extractiveAnswer(q, results[0])
	}
	return text
}

// guardTerms flag answers that echo placeholder or demo content instead
// of real fund data. "not available"/"n/a" alone are legitimate answers;
// they only count alongside demo/example wording.
var guardTerms = []string{
	"demo", "example", "sample", "test data", "placeholder", "xxx", "000.00", "tbd",
}

func guardTriggered(answer string) bool {
	lower := strings.ToLower(answer)
	for _, term := range guardTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	if strings.Contains(lower, "not available") || strings.Contains(lower, "n/a") {
		return strings.Contains(lower, "demo") || strings.Contains(lower, "example")
	}
	return false
}

var navLineRe = regexp.MustCompile(`(?i)current\s+nav[:\s₹]*([\d,]+\.?\d*)`)

// extractiveAnswer builds an answer straight from the top chunk when the
// oracle cannot. It prefers the fact the question asks about, then any
// line sharing vocabulary with the question, then the chunk's first line.
func extractiveAnswer(q string, top index.Result) string {
	lines := nonEmptyLines(top.Content)
	lq := strings.ToLower(q)

	if strings.Contains(lq, "nav") {
		if m := navLineRe.FindStringSubmatch(top.Content); m != nil {
			ans := "The current NAV is ₹" + m[1]
			if date := lineValue(lines, "NAV Date:"); date != "" {
				ans += " as of " + date
			}
			return ans + "."
		}
	}
	if name := lineValue(lines, "Scheme Name:"); name != "" &&
		(strings.Contains(lq, "name") || strings.Contains(lq, "which") || strings.Contains(lq, "what is this")) {
		return "This is " + name + "."
	}

	for _, l := range lines {
		ll := strings.ToLower(l)
		for _, w := range strings.Fields(lq) {
			if len(w) > 3 && strings.Contains(ll, w) {
				return l
			}
		}
	}
	if len(lines) > 0 {
		return lines[0]
	}
	return msgNoInfo
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func lineValue(lines []string, prefix string) string {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(l, prefix))
		}
	}
	return ""
}
