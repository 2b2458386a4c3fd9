package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/revbot/internal/providers"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Provider and model management",
}

type modelInfo struct {
	Provider string
	KeyEnv   string
	Models   []string
}

var knownModels = []modelInfo{
	{
		Provider: "openai",
		KeyEnv:   "OPENAI_API_KEY",
		Models:   []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o3-mini"},
	},
	{
		Provider: "anthropic",
		KeyEnv:   "ANTHROPIC_API_KEY",
		Models:   []string{"claude-sonnet-4-20250514", "claude-3-5-haiku-latest"},
	},
	{
		Provider: "gemini",
		KeyEnv:   "GEMINI_API_KEY or GOOGLE_API_KEY",
		Models:   []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.0-flash"},
	},
	{
		Provider: "ollama",
		KeyEnv:   "REVBOT_OLLAMA_API_KEY (optional)",
		Models:   []string{"qwen2.5-coder", "llama3.3", "deepseek-coder-v2"},
	},
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known providers and models",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		for _, info := range knownModels {
			fmt.Fprintf(w, "%s (key: %s):\n", info.Provider, info.KeyEnv)
			for _, m := range info.Models {
				fmt.Fprintf(w, "  - %s\n", m)
			}
			fmt.Fprintln(w)
		}
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate provider credentials with a one-token request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return configErr(err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Checking %s (%s)...\n", cfg.Provider, cfg.Model)

		p, err := providers.New(cfg.ProviderOptions())
		if err != nil {
			return configErr(err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		_, err = p.Review(ctx, providers.ReviewRequest{
			SystemPrompt: "Respond with exactly: ok",
			UserPrompt:   "ping",
			MaxTokens:    10,
		})
		if err != nil {
			if providers.IsAuthError(err) {
				return configErr(err)
			}
			return runtimeErr(err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s is configured and responding\n", p.Name())
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	addModelFlags(modelsDoctorCmd)
}
