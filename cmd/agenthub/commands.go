package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agenthub/agent"
	"github.com/hupe1980/agenthub/providers"
)

func newAgentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the available agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.hub()
			if err != nil {
				return err
			}
			defer h.Close()

			for _, info := range h.Agents() {
				marker := " "
				if info.Key == h.DefaultAgent() {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s\n", marker, labelStyle.Render(info.Key), mutedStyle.Render(info.Description))
			}
			if h.Config().Tools.SQLitePath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("  ("+agent.SQL+" requires tools.sqlite_path or CHINOOK_PATH)"))
			}
			return nil
		},
	}
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models of the configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := providers.NewRegistry(a.cfg)
			if err != nil {
				return err
			}
			for _, id := range models.IDs() {
				marker := " "
				if id == models.Default() {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s\n", marker, labelStyle.Render(id), mutedStyle.Render(models.Describe(id)))
			}
			return nil
		},
	}
}

func newThreadsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "List stored conversation threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.hub()
			if err != nil {
				return err
			}
			defer h.Close()

			ids, err := h.Threads()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
