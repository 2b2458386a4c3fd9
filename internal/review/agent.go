package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/revbot/internal/gitctx"
	"github.com/dshills/revbot/internal/providers"
)

// ErrEmptyReview is returned when the agent produces no review content.
var ErrEmptyReview = errors.New("agent did not return any review content")

const defaultMaxTokens = 8192

// AgentReply is what the agent produced: a structured review when the model
// answered in the expected JSON shape, and always the raw text.
type AgentReply struct {
	Output *ReviewOutput
	Text   string
}

// Agent reviews a change set.
type Agent interface {
	Review(ctx context.Context, rc gitctx.ReviewContext) (AgentReply, error)
}

// ProviderAgent is an Agent backed by a single LLM provider.
type ProviderAgent struct {
	provider   providers.Reviewer
	structured bool
	maxTokens  int
	logger     *zap.Logger
}

// NewAgent returns an agent over p. When structured is true the model is
// asked for a JSON ReviewOutput; otherwise for a markdown review.
func NewAgent(p providers.Reviewer, structured bool, logger *zap.Logger) *ProviderAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderAgent{
		provider:   p,
		structured: structured,
		maxTokens:  defaultMaxTokens,
		logger:     logger,
	}
}

// Review runs the primary review call. Provider errors and empty replies are
// returned as errors and are never retried here.
func (a *ProviderAgent) Review(ctx context.Context, rc gitctx.ReviewContext) (AgentReply, error) {
	req := providers.ReviewRequest{
		SystemPrompt: ReviewSystemPrompt(a.structured),
		UserPrompt:   BuildUserPrompt(rc),
		MaxTokens:    a.maxTokens,
	}
	if a.structured {
		req.Schema = OutputSchema()
	}

	a.logger.Info("running review agent",
		zap.String("provider", a.provider.Name()),
		zap.String("pr", rc.PR.Number),
		zap.String("title", rc.PR.Title),
		zap.Int("files", len(rc.Files)),
		zap.Bool("structured", a.structured),
	)

	resp, err := a.provider.Review(ctx, req)
	if err != nil {
		return AgentReply{}, fmt.Errorf("provider review: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return AgentReply{}, ErrEmptyReview
	}
	a.logger.Debug("agent replied", zap.Int("tokens", resp.TokensUsed), zap.Int("bytes", len(text)))

	reply := AgentReply{Text: text}
	if !a.structured {
		return reply, nil
	}
	if out, err := parseOutput(text); err == nil {
		reply.Output = &out
	} else {
		a.logger.Info("agent reply is not a structured review, will normalize", zap.Error(err))
	}
	return reply, nil
}

func parseOutput(text string) (ReviewOutput, error) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return ReviewOutput{}, errors.New("no JSON object in reply")
	}
	return DecodeOutput([]byte(raw))
}
