package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/revbot/internal/config"
	"github.com/dshills/revbot/internal/gitctx"
)

// loadPRTarget reads the event and requires a real pull request and token.
func loadPRTarget(cmd *cobra.Command) (config.Config, gitctx.PRInfo, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, gitctx.PRInfo{}, err
	}
	if cfg.Secrets.GitHubToken == "" {
		return config.Config{}, gitctx.PRInfo{}, configErr(fmt.Errorf("%w: GITHUB_TOKEN", config.ErrMissingCredential))
	}
	path := eventPath()
	if path == "" {
		return config.Config{}, gitctx.PRInfo{}, usageErr(errors.New("cannot post without event: set --event-path or GITHUB_EVENT_PATH"))
	}
	pr, err := gitctx.LoadEvent(path, os.Getenv("GITHUB_REPOSITORY"))
	if err != nil {
		return config.Config{}, gitctx.PRInfo{}, runtimeErr(fmt.Errorf("loading pull request context: %w", err))
	}
	return cfg, pr, nil
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Replace the revbot comment on a pull request",
	Long: "Post the payload body (or, with --markdown, the markdown review) as the single " +
		"revbot comment on the pull request, deleting earlier revbot comments first.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, pr, err := loadPRTarget(cmd)
		if err != nil {
			return err
		}
		body, err := commentBody()
		if err != nil {
			return runtimeErr(err)
		}
		out := publish(cmd.Context(), cfg, pr, body)
		if out.Posted != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "posted comment %d\n", out.Posted.ID)
		}
		return nil
	},
}

var flagPostMarkdown bool

// commentBody returns the payload body, or the markdown review when
// --markdown is set.
func commentBody() (string, error) {
	if !flagPostMarkdown {
		p, err := readPayload(payloadPath())
		if err != nil {
			return "", err
		}
		return p.Body, nil
	}
	path := markdownPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading markdown review: %w", err)
	}
	body := strings.TrimRight(string(data), "\n")
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("markdown review is empty: %s", path)
	}
	return body, nil
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a review payload as a pull request review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, pr, err := loadPRTarget(cmd)
		if err != nil {
			return err
		}
		number, ok := pr.PRNumber()
		if !ok {
			return usageErr(fmt.Errorf("event has no pull request number (%s)", pr.Number))
		}
		p, err := readPayload(payloadPath())
		if err != nil {
			return runtimeErr(err)
		}
		client, err := newGitHubClient(cfg)
		if err != nil {
			return configErr(err)
		}
		id, err := client.SubmitReview(cmd.Context(), pr.Repo, number, p)
		if err != nil {
			return runtimeErr(err)
		}
		logger.Info("submitted review",
			zap.String("repo", pr.Repo),
			zap.Int("pr", number),
			zap.String("event", string(p.Event)),
			zap.Int64("review_id", id),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "submitted review %d\n", id)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{postCmd, submitCmd} {
		addGitHubFlags(cmd)
		cmd.Flags().StringVar(&flagPayloadPath, "payload-path", "", "Review payload JSON path (default: review-payload.json)")
	}
	addDeleteOldFlag(postCmd)
	postCmd.Flags().BoolVar(&flagPostMarkdown, "markdown", false, "Post the markdown review instead of the payload body")
	postCmd.Flags().StringVar(&flagOutputPath, "output-path", "", "Markdown review path used with --markdown (default: $AGENT_OUTPUT_PATH or revbot-review.md)")
}
