package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/revbot/internal/review"
)

// WriteMarkdown writes the human-readable review. A fallback report is
// written exactly as the agent produced it.
func WriteMarkdown(w io.Writer, report *review.Report) error {
	text := report.Text
	if fb, ok := report.Result.(review.FallbackResult); ok {
		text = fb.Raw
	}
	if strings.TrimSpace(text) == "" {
		text = review.RenderMarkdown(report.Output())
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(text, "\n"))
	return err
}
