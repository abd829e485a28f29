package guardrail

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// ComplianceReport is Tier 3's compliance-report payload (spec.md §6,
// "guardrail.report(window?) -> {total_incidents, by_kind, by_severity, ...}").
type ComplianceReport struct {
	Window         time.Duration
	TotalIncidents int
	ByKind         map[string]int
	BySeverity     map[string]int
	GeneratedAt    time.Time
}

// RenderMarkdown turns the report into an operator-facing markdown
// summary, grounded on the teacher's Markdown-to-HTML rendering in
// showcases/deerflow/nodes.go (ReporterNode).
func (r ComplianceReport) RenderMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Guardrail Compliance Report\n\n")
	fmt.Fprintf(&b, "Generated at %s, covering the trailing %s.\n\n", r.GeneratedAt.Format(time.RFC3339), r.Window)
	fmt.Fprintf(&b, "**Total incidents**: %d\n\n", r.TotalIncidents)

	fmt.Fprintf(&b, "## By kind\n\n")
	for _, k := range sortedKeys(r.ByKind) {
		fmt.Fprintf(&b, "- %s: %d\n", k, r.ByKind[k])
	}

	fmt.Fprintf(&b, "\n## By severity\n\n")
	for _, k := range sortedKeys(r.BySeverity) {
		fmt.Fprintf(&b, "- %s: %d\n", k, r.BySeverity[k])
	}
	return b.String()
}

// RenderHTML converts RenderMarkdown's output to HTML via
// github.com/gomarkdown/markdown, the same library and renderer
// configuration the teacher uses for its research report.
func (r ComplianceReport) RenderHTML() string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(r.RenderMarkdown()))

	opts := html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank}
	renderer := html.NewRenderer(opts)
	return string(markdown.Render(doc, renderer))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
