package review

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Decision is the reviewer's verdict on a change set.
type Decision string

const (
	DecisionApprove        Decision = "APPROVE"
	DecisionRequestChanges Decision = "REQUEST_CHANGES"
)

// ParseDecision parses a decision string case-insensitively.
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(s))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionRequestChanges:
		return DecisionRequestChanges, nil
	default:
		return "", fmt.Errorf("invalid decision %q: want APPROVE or REQUEST_CHANGES", s)
	}
}

// UnmarshalJSON accepts any casing of the two known decisions.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decision must be a string: %w", err)
	}
	parsed, err := ParseDecision(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ReviewComment is a single piece of feedback. A nil Line means the comment
// applies to the file as a whole.
type ReviewComment struct {
	Path    string `json:"path"`
	Line    *int   `json:"line"`
	Comment string `json:"comment"`
}

// NewComment builds a comment anchored to line. Pass line <= 0 for a
// file-level comment.
func NewComment(path string, line int, comment string) ReviewComment {
	c := ReviewComment{Path: path, Comment: comment}
	if line > 0 {
		l := line
		c.Line = &l
	}
	return c
}

// HasLine reports whether the comment is anchored to a line.
func (c ReviewComment) HasLine() bool {
	return c.Line != nil
}

// UnmarshalJSON decodes a comment, keeping line only when it is a positive
// JSON integer. Anything else (null, floats, strings, zero) is file-level.
func (c *ReviewComment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Path    string          `json:"path"`
		Line    json.RawMessage `json:"line"`
		Comment string          `json:"comment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ReviewComment{Path: raw.Path, Comment: raw.Comment, Line: parseLine(raw.Line)}
	return nil
}

func parseLine(raw json.RawMessage) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil || n <= 0 {
		return nil
	}
	return &n
}

// ReviewOutput is the canonical structured review produced once per run.
type ReviewOutput struct {
	Decision Decision        `json:"decision"`
	Summary  string          `json:"summary"`
	Comments []ReviewComment `json:"comments"`
}

// MarshalJSON always writes comments as an array, never null.
func (o ReviewOutput) MarshalJSON() ([]byte, error) {
	type alias ReviewOutput
	a := alias(o)
	if a.Comments == nil {
		a.Comments = []ReviewComment{}
	}
	return json.Marshal(a)
}

// LineComments returns the number of comments anchored to a line.
func (o ReviewOutput) LineComments() int {
	n := 0
	for _, c := range o.Comments {
		if c.HasLine() {
			n++
		}
	}
	return n
}

// DecodeOutput strictly decodes a ReviewOutput document. The decision is
// required; comments default to an empty list.
func DecodeOutput(data []byte) (ReviewOutput, error) {
	var raw struct {
		Decision *Decision       `json:"decision"`
		Summary  string          `json:"summary"`
		Comments []ReviewComment `json:"comments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ReviewOutput{}, fmt.Errorf("decoding review output: %w", err)
	}
	if raw.Decision == nil {
		return ReviewOutput{}, fmt.Errorf("decoding review output: missing decision")
	}
	out := ReviewOutput{
		Decision: *raw.Decision,
		Summary:  raw.Summary,
		Comments: raw.Comments,
	}
	if out.Comments == nil {
		out.Comments = []ReviewComment{}
	}
	return out, nil
}
