package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/revbot/internal/output"
)

var flagOutputsFile string

var outputsCmd = &cobra.Command{
	Use:   "outputs",
	Short: "Emit GitHub Actions step outputs for a review",
	Long: "Append agent-output-path, payload-path, review-event and review-body to the " +
		"GitHub Actions output file. Without an output file the outputs are printed.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pp := payloadPath()
		p, err := readPayload(pp)
		if err != nil {
			return runtimeErr(err)
		}
		o := output.ActionsOutputs{
			AgentOutputPath: markdownPath(),
			PayloadPath:     pp,
			Event:           string(p.Event),
			Body:            p.Body,
		}
		path := firstNonEmpty(flagOutputsFile, os.Getenv("GITHUB_OUTPUT"))
		if path == "" {
			if err := output.WriteActionsOutputs(cmd.OutOrStdout(), o); err != nil {
				return runtimeErr(err)
			}
			return nil
		}
		if err := output.AppendActionsOutputs(path, o); err != nil {
			return runtimeErr(err)
		}
		return nil
	},
}

func init() {
	outputsCmd.Flags().StringVar(&flagOutputPath, "agent-output-path", "", "Markdown review path (default: $AGENT_OUTPUT_PATH or "+output.DefaultMarkdownPath+")")
	outputsCmd.Flags().StringVar(&flagPayloadPath, "payload-path", "", "Review payload JSON path (default: "+output.DefaultPayloadPath+")")
	outputsCmd.Flags().StringVar(&flagOutputsFile, "outputs-file", "", "Output file (default: $GITHUB_OUTPUT)")
}
