package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/revbot/internal/payload"
	"github.com/dshills/revbot/internal/review"
)

// WriteSummary prints a short terminal summary of a run.
func WriteSummary(w io.Writer, report *review.Report, p payload.ReviewPayload, paths Paths) error {
	ew := &errWriter{w: w}
	out := report.Output()

	ew.printf("revbot review: %s #%s (%s -> %s)\n",
		report.PR.Repo, report.PR.Number, report.PR.HeadBranch, report.PR.BaseBranch)
	ew.println(strings.Repeat("─", 60))
	ew.printf("Decision: %s", out.Decision)
	if p.Event != payload.Event(out.Decision) {
		ew.printf(" (submitted as %s)", p.Event)
	}
	ew.println("")
	ew.printf("Comments: %d total (%d inline)\n", len(out.Comments), len(p.Comments))
	if fb, ok := report.Result.(review.FallbackResult); ok {
		ew.printf("Structuring failed, fallback review used: %v\n", fb.Reason)
	}
	if report.Redactions > 0 {
		ew.printf("Redacted %d secret(s) before review\n", report.Redactions)
	}
	ew.println(strings.Repeat("─", 60))

	for _, line := range wrapText(out.Summary, 70) {
		ew.printf("  %s\n", line)
	}

	ew.println("")
	for _, a := range []struct{ label, path string }{
		{"Markdown", paths.Markdown},
		{"Review JSON", paths.Review},
		{"Payload", paths.Payload},
	} {
		if a.path != "" {
			ew.printf("%-12s %s\n", a.label+":", a.path)
		}
	}
	ew.printf("Completed in %dms (agent: %dms, structuring: %dms)\n",
		report.Timing.TotalMs, report.Timing.AgentMs, report.Timing.NormalizeMs)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
