package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/revbot/internal/config"
	"github.com/dshills/revbot/internal/gitctx"
	"github.com/dshills/revbot/internal/github"
	"github.com/dshills/revbot/internal/lifecycle"
	"github.com/dshills/revbot/internal/output"
	"github.com/dshills/revbot/internal/payload"
	"github.com/dshills/revbot/internal/providers"
	"github.com/dshills/revbot/internal/review"
)

// Shared flags
var (
	flagEventPath        string
	flagRepoDir          string
	flagOutputPath       string
	flagReviewPath       string
	flagPayloadPath      string
	flagProvider         string
	flagModel            string
	flagBaseURL          string
	flagStructuringModel string
	flagModelTimeout     string
	flagAllowApprovals   bool
	flagDeleteOld        bool
	flagNoPost           bool
	flagNoRedact         bool
	flagContextLines     int
	flagMaxDiffBytes     int
	flagExclude          string
	flagGitHubToken      string
)

// buildOverrides returns config overrides for the flags the user set on cmd.
func buildOverrides(cmd *cobra.Command) map[string]string {
	fs := cmd.Flags()
	m := make(map[string]string)
	set := func(flag, key, value string) {
		if fs.Changed(flag) {
			m[key] = value
		}
	}
	set("provider", "provider", flagProvider)
	set("model", "model", flagModel)
	set("base-url", "baseURL", flagBaseURL)
	set("structuring-model", "structuringModel", flagStructuringModel)
	set("model-timeout", "modelTimeout", flagModelTimeout)
	set("allow-approvals", "allowApprovals", strconv.FormatBool(flagAllowApprovals))
	set("delete-old-comments", "deleteOldComments", strconv.FormatBool(flagDeleteOld))
	set("context-lines", "contextLines", strconv.Itoa(flagContextLines))
	set("max-diff-bytes", "maxDiffBytes", strconv.Itoa(flagMaxDiffBytes))
	return m
}

// loadConfig loads the effective config for cmd and applies the config's
// log level unless one was given on the command line.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfigPath, buildOverrides(cmd))
	if err != nil {
		return config.Config{}, configErr(err)
	}
	if flagLogLevel == "" && !flagVerbose && cfg.LogLevel != "" {
		if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			logger.Warn("ignoring invalid log level", zap.String("level", cfg.LogLevel))
		}
	}
	if cmd.Flags().Changed("github-token") {
		cfg.Secrets.GitHubToken = flagGitHubToken
	}
	if cmd.Flags().Changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, splitComma(flagExclude)...)
	}
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		logger.Warn("secret redaction is disabled")
	}
	return cfg, nil
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func eventPath() string {
	return firstNonEmpty(flagEventPath, os.Getenv("GITHUB_EVENT_PATH"))
}

func markdownPath() string {
	return firstNonEmpty(flagOutputPath, os.Getenv("AGENT_OUTPUT_PATH"), output.DefaultMarkdownPath)
}

func payloadPath() string {
	return firstNonEmpty(flagPayloadPath, output.DefaultPayloadPath)
}

// resolvePR reads the pull request from the event file, or from the local
// repository when no event is available.
func resolvePR(ctx context.Context, collector gitctx.Collector) (gitctx.PRInfo, error) {
	path := eventPath()
	if path == "" {
		pr := collector.LoadLocal(ctx)
		logger.Info("no event file, reviewing local branch",
			zap.String("repo", pr.Repo), zap.String("branch", pr.HeadBranch))
		return pr, nil
	}
	pr, err := gitctx.LoadEvent(path, os.Getenv("GITHUB_REPOSITORY"))
	if err != nil {
		return gitctx.PRInfo{}, runtimeErr(fmt.Errorf("loading pull request context: %w", err))
	}
	return pr, nil
}

func newGitHubClient(cfg config.Config) (*github.Client, error) {
	return github.NewClient(github.Options{
		Token:   cfg.Secrets.GitHubToken,
		APIURL:  cfg.GitHub.APIURL,
		Timeout: cfg.GitHub.Timeout.AsDuration(),
		PerPage: cfg.GitHub.CommentsPerPage,
	}, logger)
}

// newReviewEngine wires providers, agent and normalizer from cfg.
func newReviewEngine(cfg config.Config) (*review.Engine, error) {
	reviewer, err := providers.New(cfg.ProviderOptions())
	if err != nil {
		return nil, configErr(fmt.Errorf("creating review provider: %w", err))
	}
	structurer := reviewer
	if cfg.StructuringModel != "" && cfg.StructuringModel != cfg.Model {
		structurer, err = providers.New(cfg.StructuringOptions())
		if err != nil {
			return nil, configErr(fmt.Errorf("creating structuring provider: %w", err))
		}
	}
	agent := review.NewAgent(reviewer, cfg.StructuredOutput, logger)
	normalizer := review.NewNormalizer(structurer, cfg.ModelTimeout.AsDuration(), logger)
	return review.NewEngine(agent, normalizer, review.EngineOptions{
		RedactSecrets: cfg.Privacy.RedactSecrets,
		RedactPaths:   cfg.Privacy.RedactPaths,
		ModelTimeout:  cfg.ModelTimeout.AsDuration(),
	}, logger), nil
}

// publish runs the comment lifecycle for pr. Failures are logged, never
// returned.
func publish(ctx context.Context, cfg config.Config, pr gitctx.PRInfo, body string) lifecycle.Outcome {
	var api lifecycle.CommentAPI
	if cfg.Secrets.GitHubToken != "" {
		if pr.IsLocal() {
			logger.Warn("cannot post without event, skipping comment")
			return lifecycle.Outcome{Skipped: true, SkipReason: "local review"}
		}
		client, err := newGitHubClient(cfg)
		if err != nil {
			logger.Warn("cannot create GitHub client, skipping comment", zap.Error(err))
			return lifecycle.Outcome{Skipped: true, SkipReason: err.Error()}
		}
		api = client
	}
	mgr := lifecycle.NewManager(api, cfg.DeleteOldComments, logger)
	out := mgr.Publish(ctx, lifecycle.Target{Repo: pr.Repo, Number: pr.Number}, body)
	if !out.Skipped && !out.Converged() {
		logger.Warn("review comment state not converged",
			zap.Int("found", out.Found),
			zap.Int("deleted", out.Deleted),
			zap.Int("delete_failures", out.DeleteFailures),
			zap.Bool("posted", out.Posted != nil),
		)
	}
	return out
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a pull request and publish the result",
	Long: "Collect the pull request diff, review it with the configured model, write the " +
		"markdown review, ReviewOutput JSON and payload JSON, then replace the previous " +
		"revbot comment on the pull request when a GitHub token is available.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return configErr(err)
		}
		return runReview(cmd.Context(), cmd, cfg)
	},
}

func runReview(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	collector := gitctx.Collector{Dir: flagRepoDir}
	pr, err := resolvePR(ctx, collector)
	if err != nil {
		return err
	}

	rc, err := collector.Collect(ctx, pr, gitctx.DiffOptions{
		ContextLines: cfg.ContextLines,
		MaxDiffBytes: cfg.MaxDiffBytes,
		Exclude:      cfg.Exclude,
	})
	if err != nil {
		return runtimeErr(fmt.Errorf("collecting diff: %w", err))
	}
	logger.Info("collected diff",
		zap.String("repo", pr.Repo),
		zap.String("pr", pr.Number),
		zap.Int("files", len(rc.Files)),
		zap.Int("bytes", len(rc.Diff)),
		zap.Bool("truncated", rc.Truncated),
	)

	engine, err := newReviewEngine(cfg)
	if err != nil {
		return err
	}
	report, err := engine.Run(ctx, rc)
	if err != nil {
		if providers.IsAuthError(err) {
			return configErr(err)
		}
		return runtimeErr(err)
	}

	p := payload.Build(report.Output(), cfg.AllowApprovals)
	if p.Downgraded() {
		logger.Info("approval downgraded to comment", zap.Bool("allow_approvals", cfg.AllowApprovals))
	}

	paths := output.Paths{
		Markdown: markdownPath(),
		Review:   firstNonEmpty(flagReviewPath, output.DefaultReviewPath),
		Payload:  payloadPath(),
	}
	if err := output.WriteArtifacts(report, p, paths); err != nil {
		return runtimeErr(err)
	}
	if err := output.WriteSummary(cmd.ErrOrStderr(), report, p, paths); err != nil {
		return runtimeErr(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), paths.Markdown)

	if flagNoPost {
		logger.Info("posting disabled, skipping comment")
		return nil
	}
	publish(ctx, cfg, pr, p.Body)
	return nil
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (openai, anthropic, gemini, ollama, lmstudio)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name, optionally prefixed with provider/")
	cmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Model API base URL")
}

func addGitHubFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagEventPath, "event-path", "", "Pull request event JSON (default: $GITHUB_EVENT_PATH)")
	cmd.Flags().StringVar(&flagGitHubToken, "github-token", "", "GitHub token (default: $GITHUB_TOKEN)")
}

func addDeleteOldFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagDeleteOld, "delete-old-comments", true, "Delete previous revbot comments before posting")
}

func init() {
	addModelFlags(reviewCmd)
	addGitHubFlags(reviewCmd)
	addDeleteOldFlag(reviewCmd)
	reviewCmd.Flags().StringVar(&flagRepoDir, "repo-dir", "", "Repository to diff (default: current directory)")
	reviewCmd.Flags().StringVar(&flagOutputPath, "output-path", "", "Markdown review path (default: $AGENT_OUTPUT_PATH or "+output.DefaultMarkdownPath+")")
	reviewCmd.Flags().StringVar(&flagReviewPath, "review-path", "", "ReviewOutput JSON path (default: "+output.DefaultReviewPath+")")
	reviewCmd.Flags().StringVar(&flagPayloadPath, "payload-path", "", "Review payload JSON path (default: "+output.DefaultPayloadPath+")")
	reviewCmd.Flags().StringVar(&flagStructuringModel, "structuring-model", "", "Model used to structure free-form reviews")
	reviewCmd.Flags().StringVar(&flagModelTimeout, "model-timeout", "", "Timeout per model call, e.g. 10m")
	reviewCmd.Flags().BoolVar(&flagAllowApprovals, "allow-approvals", false, "Submit APPROVE instead of downgrading to COMMENT")
	reviewCmd.Flags().BoolVar(&flagNoPost, "no-post", false, "Write artifacts only, do not comment on the pull request")
	reviewCmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	reviewCmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in diff")
	reviewCmd.Flags().IntVar(&flagMaxDiffBytes, "max-diff-bytes", 0, "Maximum diff size in bytes")
	reviewCmd.Flags().StringVar(&flagExclude, "exclude", "", "Extra exclude globs (comma-separated)")
}
