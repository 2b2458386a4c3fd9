package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dshills/revbot/internal/providers"
)

// FallbackPath is the comment path used when a review could not be
// structured. It marks the comment as carrying the unstructured source.
const FallbackPath = "unstructured-review"

const maxSummaryRunes = 120

// Result is a normalized review. It is either a StructuredResult or a
// FallbackResult; both yield a ReviewOutput.
type Result interface {
	Output() ReviewOutput
	isResult()
}

// StructuredResult holds a review the agent or the structuring call produced
// in the expected shape.
type StructuredResult struct {
	Review ReviewOutput
}

func (r StructuredResult) Output() ReviewOutput { return r.Review }
func (StructuredResult) isResult()              {}

// FallbackResult holds the deterministic review built from raw text when
// structuring failed.
type FallbackResult struct {
	Review ReviewOutput
	Raw    string
	Reason error
}

func (r FallbackResult) Output() ReviewOutput { return r.Review }
func (FallbackResult) isResult()              {}

// Fallback builds the fail-safe review for text: REQUEST_CHANGES, the first
// non-blank line as summary, and the whole text as one file-level comment.
func Fallback(text string, reason error) FallbackResult {
	return FallbackResult{
		Review: ReviewOutput{
			Decision: DecisionRequestChanges,
			Summary:  summarize(text),
			Comments: []ReviewComment{{Path: FallbackPath, Comment: text}},
		},
		Raw:    text,
		Reason: reason,
	}
}

func summarize(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) <= maxSummaryRunes {
			return line
		}
		runes := []rune(line)
		return string(runes[:maxSummaryRunes-3]) + "..."
	}
	return ""
}

// Normalizer turns an agent reply into a structured review, falling back to
// a deterministic review when that is not possible.
type Normalizer struct {
	provider providers.Reviewer
	timeout  time.Duration
	logger   *zap.Logger
}

// NewNormalizer returns a normalizer that structures text replies through p.
// A nil provider sends every text reply straight to the fallback.
func NewNormalizer(p providers.Reviewer, timeout time.Duration, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{provider: p, timeout: timeout, logger: logger}
}

// Normalize never fails: structuring errors are logged and recovered with
// Fallback.
func (n *Normalizer) Normalize(ctx context.Context, reply AgentReply) Result {
	if reply.Output != nil {
		return StructuredResult{Review: *reply.Output}
	}

	out, err := n.structure(ctx, reply.Text)
	if err != nil {
		n.logger.Warn("structuring failed, using fallback review", zap.Error(err))
		return Fallback(reply.Text, err)
	}
	n.logger.Debug("structured text review",
		zap.String("decision", string(out.Decision)),
		zap.Int("comments", len(out.Comments)),
	)
	return StructuredResult{Review: out}
}

func (n *Normalizer) structure(ctx context.Context, text string) (ReviewOutput, error) {
	if n.provider == nil {
		return ReviewOutput{}, errors.New("no structuring provider configured")
	}
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	resp, err := n.provider.Review(ctx, providers.ReviewRequest{
		SystemPrompt: StructuringSystemPrompt(),
		UserPrompt:   BuildStructuringPrompt(text),
		MaxTokens:    defaultMaxTokens,
		Schema:       OutputSchema(),
	})
	if err != nil {
		return ReviewOutput{}, fmt.Errorf("structuring call: %w", err)
	}
	out, err := parseOutput(resp.Content)
	if err != nil {
		return ReviewOutput{}, fmt.Errorf("structuring reply: %w", err)
	}
	return out, nil
}
