package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const bodyDelimiter = "EOF_REVIEW_BODY"

// ActionsOutputs are the step outputs exposed to later workflow steps.
type ActionsOutputs struct {
	AgentOutputPath string
	PayloadPath     string
	Event           string
	Body            string
}

// WriteActionsOutputs writes outputs in the GitHub Actions output file
// format. The body uses the multiline heredoc form.
func WriteActionsOutputs(w io.Writer, o ActionsOutputs) error {
	ew := &errWriter{w: w}
	ew.printf("agent-output-path=%s\n", o.AgentOutputPath)
	ew.printf("payload-path=%s\n", o.PayloadPath)
	ew.printf("review-event=%s\n", o.Event)

	delim := heredocDelimiter(o.Body)
	ew.printf("review-body<<%s\n", delim)
	ew.printf("%s\n", o.Body)
	ew.printf("%s\n", delim)
	return ew.err
}

// AppendActionsOutputs appends outputs to the file at path, normally
// $GITHUB_OUTPUT.
func AppendActionsOutputs(path string, o ActionsOutputs) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening outputs file: %w", err)
	}
	if err := WriteActionsOutputs(f, o); err != nil {
		f.Close()
		return fmt.Errorf("writing outputs file: %w", err)
	}
	return f.Close()
}

// heredocDelimiter returns a delimiter that does not occur in body.
func heredocDelimiter(body string) string {
	delim := bodyDelimiter
	for strings.Contains(body, delim) {
		delim += "_X"
	}
	return delim
}
