package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garrettyarmo/forge-sub000/internal/config"
)

var (
	initOrg    string
	initOutput string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter forge config document",
	Long: `Writes a forge.yaml config document seeded with defaults
(spec.md §6.2): a ".forge/graph.json" output path, the claude_cli
annotation collaborator, and an 8000-token map budget.

Edit the written file to point repos.github_org, repos.github_repos, or
repos.local_paths at the repositories you want to survey.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initOrg, "org", "", "GitHub organization to seed repos.github_org with")
	initCmd.Flags().StringVar(&initOutput, "output", "forge.yaml", "path to write the config document")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	if !initForce {
		if _, err := os.Stat(initOutput); err == nil {
			return withExit(exitConfigError, fmt.Errorf("%s already exists, pass --force to overwrite", initOutput))
		}
	}

	cfg := config.DefaultConfig()
	if initOrg != "" {
		cfg.Repos.GitHubOrg = initOrg
	}
	if err := cfg.Save(initOutput); err != nil {
		return withExit(exitConfigError, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", initOutput)
	return nil
}
