package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dropjournal/pkg/store"
	"dropjournal/services/journal/internal/app"
	"dropjournal/services/journal/internal/bootstrap"
	"dropjournal/services/journal/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.StoreDriver != config.StoreDriverPostgres {
			return fmt.Errorf("migrate requires storeDriver %q", config.StoreDriverPostgres)
		}
		st, closeStore, err := bootstrap.OpenStore(cfg, false)
		if err != nil {
			return err
		}
		defer closeStore()
		gs, ok := st.(*store.GormStore)
		if !ok {
			return fmt.Errorf("store does not support migrations")
		}
		if err := gs.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install a week of prompts around today and the system tags",
	Long:  `Seeds prompts for two days before through four days after today, plus the system tags. Existing dates and tags are skipped, so running it again is safe.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := a.Seed(cmd.Context())
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d prompts and %d tags\n", res.Prompts, res.Tags)
			return nil
		})
	},
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage daily prompts",
}

var addPromptCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule a prompt for a date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		text, _ := cmd.Flags().GetString("text")
		category, _ := cmd.Flags().GetString("category")
		return withApp(cmd.Context(), func(a *app.App) error {
			p, err := a.AddPrompt(cmd.Context(), date, text, category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added prompt %s for %s\n", p.ID, p.ActiveDate)
			return nil
		})
	},
}

var listPromptsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all prompts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			prompts, err := a.ListPrompts(cmd.Context())
			if err != nil {
				return err
			}
			if len(prompts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No prompts found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tACTIVE\tCATEGORY\tTEXT")
			for _, p := range prompts {
				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", p.ActiveDate, p.IsActive, p.Category, p.PromptText)
			}
			return tw.Flush()
		})
	},
}

func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()
	return fn(a)
}
