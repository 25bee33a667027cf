package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garrettyarmo/forge-sub000/internal/agent"
	"github.com/garrettyarmo/forge-sub000/internal/config"
	"github.com/garrettyarmo/forge-sub000/internal/logging"
	"github.com/garrettyarmo/forge-sub000/internal/parser"
	"github.com/garrettyarmo/forge-sub000/internal/repoprovider"
	"github.com/garrettyarmo/forge-sub000/internal/repoprovider/github"
	"github.com/garrettyarmo/forge-sub000/internal/repoprovider/local"
	"github.com/garrettyarmo/forge-sub000/internal/survey"
)

var (
	surveyConfigPath string
	surveyOutput     string
	surveyRepos      []string
	surveyExclude    []string
	surveyIncr       bool
	surveyBizCtx     bool
	surveyWatch      bool
)

var surveyCmd = &cobra.Command{
	Use:   "survey",
	Short: "Build or update the ecosystem knowledge graph",
	Long: `survey walks the configured repositories, parses each for service,
API, database, queue, and cloud-resource references, and writes the
resulting knowledge graph to disk (spec.md §4.9).

With --incremental, a repo whose HEAD commit hasn't moved since its last
survey is skipped entirely, and a repo that has moved is reparsed only for
its changed files rather than walked from scratch.`,
	RunE: runSurvey,
}

func init() {
	surveyCmd.Flags().StringVar(&surveyConfigPath, "config", "forge.yaml", "path to the config document")
	surveyCmd.Flags().StringVar(&surveyOutput, "output", "", "override config's output.graph_path")
	surveyCmd.Flags().StringSliceVar(&surveyRepos, "repos", nil, "survey only these repos (overrides config repo selection)")
	surveyCmd.Flags().StringSliceVar(&surveyExclude, "exclude-lang", nil, "languages to exclude, in addition to config's languages.exclude")
	surveyCmd.Flags().BoolVar(&surveyIncr, "incremental", false, "skip unchanged repos and reparse only the delta for changed ones")
	surveyCmd.Flags().BoolVar(&surveyBizCtx, "business-context", false, "interview the configured LLM collaborator for empty BusinessContext fields")
	surveyCmd.Flags().BoolVar(&surveyWatch, "watch", false, "after the initial survey, re-survey a changed repo's files as they settle (local_paths repos only)")
}

func runSurvey(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(surveyConfigPath)
	if err != nil {
		return withExit(exitConfigError, err)
	}
	if err := cfg.Validate(); err != nil {
		return withExit(exitConfigError, err)
	}

	graphPath := cfg.Output.GraphPath
	if surveyOutput != "" {
		graphPath = surveyOutput
	}
	statePath := stateCompanionPath(graphPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Survey("received interrupt, finishing current repo before exit")
		cancel()
	}()

	provider, repos, err := resolveRepos(ctx, cfg)
	if err != nil {
		return withExit(exitConfigError, err)
	}
	logger.Info("starting survey", zap.Int("repos", len(repos)), zap.Bool("incremental", surveyIncr))

	now := time.Now()
	surveyCfg := survey.Config{
		Registry:     parser.DefaultRegistry(),
		Provider:     provider,
		Repos:        repos,
		ExcludeLang:  append(append([]string{}, cfg.Languages.Exclude...), surveyExclude...),
		Environments: environmentRules(cfg.Environments),
		GraphPath:    graphPath,
		StatePath:    statePath,
		Incremental:  surveyIncr,
		Now:          now,
	}

	result, err := survey.Run(ctx, surveyCfg)
	if err != nil {
		logger.Error("survey aborted", zap.Error(err))
		return withExit(exitParseAbort, err)
	}
	logger.Info("survey complete", zap.Int("nodes", result.Graph.NodeCount()), zap.Int("edges", result.Graph.EdgeCount()))

	reportSurvey(cmd, result)

	if surveyBizCtx {
		interviewer, ierr := buildInterviewer(cfg)
		if ierr != nil {
			return withExit(exitCollaboratorErr, ierr)
		}
		n := survey.Annotate(ctx, result.Graph, interviewer, now)
		fmt.Fprintf(cmd.OutOrStdout(), "annotated %d service(s)\n", n)
		if err := result.Graph.Save(graphPath); err != nil {
			return withExit(exitConfigError, err)
		}
	}

	if surveyWatch {
		return withExit(exitConfigError, runWatch(ctx, cmd, surveyCfg, result))
	}
	return nil
}

// reportSurvey prints a one-line-per-repo summary, the teacher's
// status-reporting register (cmd_init_scan.go: print progress as it
// happens rather than only a final tally).
func reportSurvey(cmd *cobra.Command, result *survey.Result) {
	out := cmd.OutOrStdout()
	for _, r := range result.Repos {
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "  %s: error: %v\n", r.Repo, r.Err)
		case r.Skipped:
			fmt.Fprintf(out, "  %s: unchanged, skipped\n", r.Repo)
		case r.FullReparse:
			fmt.Fprintf(out, "  %s: full survey, %d discoveries\n", r.Repo, r.Discoveries)
		default:
			fmt.Fprintf(out, "  %s: incremental (+%d ~%d -%d files), %d discoveries\n",
				r.Repo, r.FilesAdded, r.FilesModified, r.FilesDeleted, r.Discoveries)
		}
		for _, pe := range r.ParseErrors {
			fmt.Fprintf(out, "    parse error: %s: %v\n", pe.Path, pe.Err)
		}
	}
	fmt.Fprintf(out, "graph: %d node(s), %d edge(s)\n", result.Graph.NodeCount(), result.Graph.EdgeCount())
}

// resolveRepos builds the Provider and RepoRef list a survey run needs,
// honoring --repos as an override of config's repo selection.
func resolveRepos(ctx context.Context, cfg *config.Config) (repoprovider.Provider, []repoprovider.RepoRef, error) {
	if len(cfg.Repos.LocalPaths) > 0 && cfg.Repos.GitHubOrg == "" && len(cfg.Repos.GitHubRepos) == 0 {
		p := local.New()
		var refs []repoprovider.RepoRef
		for _, path := range cfg.Repos.LocalPaths {
			if excluded(filepath.Base(path), cfg.Repos.Exclude) {
				continue
			}
			refs = append(refs, repoprovider.RepoRef{FullName: path, CloneURL: path})
		}
		return p, filterRepoNames(refs), nil
	}

	p := github.New(cfg.GitHubToken(), cfg.ResolveCachePath())
	var refs []repoprovider.RepoRef
	if cfg.Repos.GitHubOrg != "" {
		all, err := p.ListRepos(ctx, cfg.Repos.GitHubOrg)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range all {
			if !excluded(r.FullName, cfg.Repos.Exclude) {
				refs = append(refs, r)
			}
		}
	}
	for _, name := range cfg.Repos.GitHubRepos {
		if excluded(name, cfg.Repos.Exclude) {
			continue
		}
		refs = append(refs, repoprovider.RepoRef{
			FullName: name,
			CloneURL: fmt.Sprintf("https://github.com/%s.git", name),
		})
	}
	return p, filterRepoNames(refs), nil
}

func excluded(name string, patterns []string) bool {
	for _, p := range patterns {
		if p == name || strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// filterRepoNames applies the --repos override, matching on FullName
// verbatim or its final path segment so a user can pass either form.
func filterRepoNames(refs []repoprovider.RepoRef) []repoprovider.RepoRef {
	if len(surveyRepos) == 0 {
		return refs
	}
	want := make(map[string]bool, len(surveyRepos))
	for _, r := range surveyRepos {
		want[r] = true
	}
	var out []repoprovider.RepoRef
	for _, r := range refs {
		if want[r.FullName] || want[filepath.Base(r.FullName)] {
			out = append(out, r)
		}
	}
	return out
}

func environmentRules(mappings []config.EnvironmentMapping) []survey.EnvironmentRule {
	rules := make([]survey.EnvironmentRule, 0, len(mappings))
	for _, m := range mappings {
		rules = append(rules, survey.EnvironmentRule{
			Name:         m.Name,
			AWSAccountID: m.AWSAccountID,
			Pattern:      m.Repos,
		})
	}
	return rules
}

// buildInterviewer constructs the configured agent.Interviewer. An empty
// LLM.Provider disables the interview, matching --business-context without
// a configured collaborator (spec.md §6.4 degrades gracefully).
func buildInterviewer(cfg *config.Config) (agent.Interviewer, error) {
	switch cfg.LLM.Provider {
	case "", "none":
		return nil, nil
	case "anthropic":
		return agent.NewAnthropicClient(agent.AnthropicConfig{
			APIKey: cfg.LLM.APIKey,
			Model:  cfg.LLM.Model,
		})
	case "claude_cli":
		return agent.NewClaudeCLIClient(agent.ClaudeCLIConfig{
			Path:  cfg.LLM.CLIPath,
			Model: cfg.LLM.Model,
		}), nil
	default:
		return nil, fmt.Errorf("survey: unknown llm.provider %q", cfg.LLM.Provider)
	}
}

// runWatch re-surveys local_paths repos as their files settle, the
// supplemental `survey --watch` feature (SPEC_FULL.md §8). It blocks until
// ctx is cancelled.
func runWatch(ctx context.Context, cmd *cobra.Command, cfg survey.Config, initial *survey.Result) error {
	if _, ok := cfg.Provider.(*local.Provider); !ok {
		return fmt.Errorf("survey: --watch requires repos.local_paths, not a GitHub provider")
	}
	var watchers []*survey.Watcher
	for _, repo := range cfg.Repos {
		repoName := repo.FullName
		w, err := survey.NewWatcher(repo.CloneURL, func(path string) {
			logging.Survey("watch: %s changed, re-surveying %s", path, repoName)
			incr := cfg
			incr.Incremental = true
			incr.Repos = []repoprovider.RepoRef{repo}
			if _, err := survey.Run(ctx, incr); err != nil {
				logging.Survey("watch: re-survey of %s failed: %v", repoName, err)
			}
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		watchers = append(watchers, w)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "watching for changes, press Ctrl+C to stop")
	<-ctx.Done()
	for _, w := range watchers {
		w.Stop()
	}
	return nil
}

func stateCompanionPath(graphPath string) string {
	trimmed := strings.TrimSuffix(graphPath, ".json")
	return trimmed + ".state.json"
}
