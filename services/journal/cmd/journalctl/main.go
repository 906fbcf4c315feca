package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"dropjournal/internal/util"
	"dropjournal/services/journal/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "journalctl",
	Short:         "Operate the dropjournal database",
	Long:          `Runs schema migrations, seeds default prompts and tags, and manages daily prompts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		return nil
	},
}

func loadConfig() (config.FileConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	util.InitLogger("journalctl", cfg.LogLevel)
	return cfg, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $JOURNAL_CONFIG or config.yaml)")
	rootCmd.AddCommand(migrateCmd, seedCmd, promptsCmd)
	promptsCmd.AddCommand(addPromptCmd, listPromptsCmd)

	addPromptCmd.Flags().String("date", "", "active date, YYYY-MM-DD (required)")
	addPromptCmd.Flags().String("text", "", "prompt text (required)")
	addPromptCmd.Flags().String("category", "", "optional category")
	_ = addPromptCmd.MarkFlagRequired("date")
	_ = addPromptCmd.MarkFlagRequired("text")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
