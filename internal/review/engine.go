package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/revbot/internal/gitctx"
	"github.com/dshills/revbot/internal/redact"
)

const noChangesSummary = "No reviewable changes found."

// Report is the outcome of one review run.
type Report struct {
	PR gitctx.PRInfo
	// Text is the agent's review as written, or the rendered structured
	// review when the agent answered in JSON.
	Text       string
	Result     Result
	Redactions int
	Timing     Timing
}

// Output is shorthand for r.Result.Output().
func (r Report) Output() ReviewOutput { return r.Result.Output() }

// Timing records how long each stage took.
type Timing struct {
	AgentMs     int64 `json:"agentMs"`
	NormalizeMs int64 `json:"normalizeMs"`
	TotalMs     int64 `json:"totalMs"`
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	RedactSecrets bool
	RedactPaths   []string
	ModelTimeout  time.Duration
}

// Engine runs the agent and normalizer over a collected change set.
type Engine struct {
	agent      Agent
	normalizer *Normalizer
	opts       EngineOptions
	logger     *zap.Logger
}

// NewEngine wires an engine.
func NewEngine(agent Agent, normalizer *Normalizer, opts EngineOptions, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{agent: agent, normalizer: normalizer, opts: opts, logger: logger}
}

// Run reviews rc. Agent failures are returned; structuring failures are not.
func (e *Engine) Run(ctx context.Context, rc gitctx.ReviewContext) (*Report, error) {
	start := time.Now()
	report := &Report{PR: rc.PR}

	if e.opts.RedactSecrets {
		rc.Diff, report.Redactions = redact.Diff(rc.Diff, e.opts.RedactPaths)
		if report.Redactions > 0 {
			e.logger.Info("redacted secrets from diff", zap.Int("count", report.Redactions))
		}
	}

	if strings.TrimSpace(rc.Diff) == "" {
		e.logger.Info("diff is empty, skipping model call")
		out := ReviewOutput{Decision: DecisionApprove, Summary: noChangesSummary, Comments: []ReviewComment{}}
		report.Text = noChangesSummary
		report.Result = StructuredResult{Review: out}
		report.Timing.TotalMs = time.Since(start).Milliseconds()
		return report, nil
	}

	agentCtx := ctx
	if e.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		agentCtx, cancel = context.WithTimeout(ctx, e.opts.ModelTimeout)
		defer cancel()
	}

	agentStart := time.Now()
	reply, err := e.agent.Review(agentCtx, rc)
	if err != nil {
		return nil, fmt.Errorf("review agent: %w", err)
	}
	report.Timing.AgentMs = time.Since(agentStart).Milliseconds()

	normStart := time.Now()
	report.Result = e.normalizer.Normalize(ctx, reply)
	report.Timing.NormalizeMs = time.Since(normStart).Milliseconds()

	report.Text = reply.Text
	if reply.Output != nil {
		report.Text = RenderMarkdown(*reply.Output)
	}
	report.Timing.TotalMs = time.Since(start).Milliseconds()

	out := report.Output()
	e.logger.Info("review complete",
		zap.String("decision", string(out.Decision)),
		zap.Int("comments", len(out.Comments)),
		zap.Bool("fallback", isFallback(report.Result)),
		zap.Int64("total_ms", report.Timing.TotalMs),
	)
	return report, nil
}

func isFallback(r Result) bool {
	_, ok := r.(FallbackResult)
	return ok
}

// RenderMarkdown renders a structured review as the markdown document the
// agent would otherwise have written.
func RenderMarkdown(out ReviewOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Review: %s\n\n", out.Decision)
	if s := strings.TrimSpace(out.Summary); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	}
	if len(out.Comments) > 0 {
		b.WriteString("\n### Comments\n\n")
		for _, c := range out.Comments {
			if c.HasLine() {
				fmt.Fprintf(&b, "- `%s:L%d`: %s\n", c.Path, *c.Line, c.Comment)
			} else {
				fmt.Fprintf(&b, "- `%s`: %s\n", c.Path, c.Comment)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
