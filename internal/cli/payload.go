package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/revbot/internal/output"
	"github.com/dshills/revbot/internal/payload"
	"github.com/dshills/revbot/internal/review"
)

// readAgentOutput loads a ReviewOutput file written by an earlier step.
func readAgentOutput(path string) (review.ReviewOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return review.ReviewOutput{}, fmt.Errorf("agent output file not found: %s", path)
		}
		return review.ReviewOutput{}, fmt.Errorf("reading agent output: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return review.ReviewOutput{}, fmt.Errorf("agent output file is empty: %s (check earlier workflow steps)", path)
	}
	out, err := review.DecodeOutput(data)
	if err != nil {
		return review.ReviewOutput{}, fmt.Errorf("agent output file %s does not contain valid JSON: %w", path, err)
	}
	return out, nil
}

// readPayload loads a payload file written by review or payload.
func readPayload(path string) (payload.ReviewPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return payload.ReviewPayload{}, fmt.Errorf("reading payload: %w", err)
	}
	return payload.Unmarshal(data)
}

var payloadCmd = &cobra.Command{
	Use:   "payload <agent_output.json> <payload.json>",
	Short: "Build a review payload from a ReviewOutput JSON file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := readAgentOutput(args[0])
		if err != nil {
			return runtimeErr(err)
		}
		p := payload.Build(out, cfg.AllowApprovals)
		if err := output.WriteFile(args[1], func(w io.Writer) error {
			return output.WritePayload(w, p)
		}); err != nil {
			return runtimeErr(err)
		}
		logger.Info("wrote review payload",
			zap.String("path", args[1]),
			zap.String("event", string(p.Event)),
			zap.Int("inline_comments", len(p.Comments)),
		)
		return nil
	},
}

func init() {
	payloadCmd.Flags().BoolVar(&flagAllowApprovals, "allow-approvals", false, "Submit APPROVE instead of downgrading to COMMENT")
}
