package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/revbot/internal/review"
)

// Event is the review action submitted to the remote API.
type Event string

const (
	EventApprove        Event = "APPROVE"
	EventRequestChanges Event = "REQUEST_CHANGES"
	EventComment        Event = "COMMENT"
)

// SideRight anchors inline comments to the new version of the file.
const SideRight = "RIGHT"

const (
	// FallbackBody is used when the review summary is blank.
	FallbackBody = "Automated review result."
	// NotesHeader introduces the file-level comments in the body.
	NotesHeader = "Additional notes:"
	// DowngradeNotice is appended when an approval is turned into a comment.
	DowngradeNotice = "_Auto-review would approve, but this token cannot submit approvals._"
)

// InlineComment is a comment anchored to a line of the new file.
type InlineComment struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Side string `json:"side"`
	Body string `json:"body"`
}

// ReviewPayload is the review submission derived from a ReviewOutput.
// Comments is omitted entirely when there are no inline comments.
type ReviewPayload struct {
	Event    Event           `json:"event"`
	Body     string          `json:"body"`
	Comments []InlineComment `json:"comments,omitempty"`
}

type generalNote struct {
	path, comment string
}

// Build converts a review into a payload. It is pure: the same inputs always
// give the same payload.
func Build(out review.ReviewOutput, allowApprovals bool) ReviewPayload {
	var inline []InlineComment
	var general []generalNote

	for _, c := range out.Comments {
		path := strings.TrimSpace(c.Path)
		body := strings.TrimSpace(c.Comment)
		if path == "" || body == "" {
			continue
		}
		if c.HasLine() {
			inline = append(inline, InlineComment{Path: path, Line: *c.Line, Side: SideRight, Body: body})
		} else {
			general = append(general, generalNote{path: path, comment: body})
		}
	}

	lines := []string{strings.TrimSpace(out.Summary)}
	if lines[0] == "" {
		lines[0] = FallbackBody
	}
	if len(general) > 0 {
		lines = append(lines, "", NotesHeader)
		for _, n := range general {
			lines = append(lines, fmt.Sprintf("- %s: %s", n.path, n.comment))
		}
	}

	p := ReviewPayload{
		Event: Event(out.Decision),
		Body:  strings.TrimSpace(strings.Join(lines, "\n")),
	}
	if len(inline) > 0 {
		p.Comments = inline
	}

	if p.Event == EventApprove && !allowApprovals {
		p.Event = EventComment
		p.Body = strings.TrimSpace(p.Body + "\n\n" + DowngradeNotice)
	}
	return p
}

// Downgraded reports whether Build turned an approval into a comment.
func (p ReviewPayload) Downgraded() bool {
	return p.Event == EventComment && strings.HasSuffix(p.Body, DowngradeNotice)
}

// Marshal renders the payload as indented JSON with a trailing newline and
// no HTML escaping.
func Marshal(p ReviewPayload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a payload file and checks its event.
func Unmarshal(data []byte) (ReviewPayload, error) {
	var p ReviewPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ReviewPayload{}, fmt.Errorf("decoding payload: %w", err)
	}
	switch p.Event {
	case EventApprove, EventRequestChanges, EventComment:
	default:
		return ReviewPayload{}, fmt.Errorf("decoding payload: invalid event %q", p.Event)
	}
	return p, nil
}
