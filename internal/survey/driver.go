package survey

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garrettyarmo/forge-sub000/internal/builder"
	"github.com/garrettyarmo/forge-sub000/internal/coupling"
	"github.com/garrettyarmo/forge-sub000/internal/discovery"
	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/logging"
	"github.com/garrettyarmo/forge-sub000/internal/parser"
	"github.com/garrettyarmo/forge-sub000/internal/repoprovider"
)

// pathDenylist mirrors parser.Registry's own walk denylist (spec.md §4.2);
// the survey driver needs its own copy for the file-hash walk it performs
// independently of a parse pass.
var pathDenylist = map[string]bool{
	".git": true, "node_modules": true, "__pycache__": true,
	".venv": true, "venv": true, ".terraform": true,
}

var recognizedExts = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true, ".ts": true, ".tsx": true,
	".py": true, ".pyw": true, ".tf": true, ".yaml": true, ".yml": true, ".json": true,
}

func recognizedExt(path string) bool {
	return recognizedExts[strings.ToLower(filepath.Ext(path))]
}

var languageForExt = map[string]string{
	".js": "javascript", ".jsx": "javascript", ".mjs": "javascript", ".cjs": "javascript",
	".ts": "javascript", ".tsx": "javascript",
	".py": "python", ".pyw": "python",
	".tf": "terraform",
	".yaml": "cloudformation", ".yml": "cloudformation", ".json": "cloudformation",
}

var languageForManifest = map[string]string{
	"package.json":     "javascript",
	"pyproject.toml":   "python",
	"setup.py":         "python",
	"requirements.txt": "python",
	"Pipfile":          "python",
}

// languageOfFile classifies file by manifest basename first (package.json is
// javascript despite its .json extension, which otherwise signals
// CloudFormation), falling back to languageForExt.
func languageOfFile(file string) (string, bool) {
	if lang, ok := languageForManifest[filepath.Base(file)]; ok {
		return lang, true
	}
	lang, ok := languageForExt[strings.ToLower(filepath.Ext(file))]
	return lang, ok
}

// EnvironmentRule assigns an environment/account to every node whose owning
// service's repo matches Pattern, first-match-wins across the ordered rule list
// (spec.md §6.2's `environments` config section). It is declared here rather
// than imported from internal/config so the driver stays decoupled from the
// configuration document's shape; cmd/forge translates config.EnvironmentMapping
// into this type.
type EnvironmentRule struct {
	Name         string
	AWSAccountID string
	Pattern      string
}

// Config drives one survey invocation, full or incremental (spec.md §4.9,
// the `survey` command of §6.1).
type Config struct {
	Registry     *parser.Registry
	Provider     repoprovider.Provider
	Repos        []repoprovider.RepoRef
	Ref          string
	ExcludeLang  []string
	Environments []EnvironmentRule
	GraphPath    string
	StatePath    string
	Incremental  bool
	Now          time.Time
}

// RepoOutcome reports one repository's contribution to a survey run.
type RepoOutcome struct {
	Repo          string
	RunID         string
	Skipped       bool
	FullReparse   bool
	FilesAdded    int
	FilesModified int
	FilesDeleted  int
	Discoveries   int
	ParseErrors   []parser.FileError
	Err           error
}

// Result is the outcome of a complete survey run.
type Result struct {
	Graph *graph.Graph
	State *State
	Repos []RepoOutcome
}

// Run executes a survey per cfg. It loads the prior graph and state (if
// present), processes every repository — a full walk, or a git-diff-scoped
// delta when cfg.Incremental and the repo's commit has prior state — folds
// the resulting discoveries into the graph via the builder (which preserves
// existing BusinessContext annotations through Graph.UpsertNode), runs the
// coupling analyzer once over the merged graph, and persists the graph and
// state atomically (spec.md §4.9, §4.6, §8.1 scenario 5).
func Run(ctx context.Context, cfg Config) (*Result, error) {
	now := cfg.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	g, err := loadOrNewGraph(cfg.GraphPath, now)
	if err != nil {
		return nil, fmt.Errorf("survey: load graph: %w", err)
	}
	state, err := LoadState(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("survey: load state: %w", err)
	}

	b := builder.FromGraph(g, now)
	result := &Result{Graph: g, State: state}

	for _, repo := range cfg.Repos {
		outcome := processRepo(ctx, cfg, b, state, repo, now)
		result.Repos = append(result.Repos, outcome)
		if outcome.Err != nil {
			logging.Survey("repo %s failed: %v", repo.FullName, outcome.Err)
			continue
		}
		if !outcome.Skipped {
			if err := persist(b.Build(), state, cfg); err != nil {
				return result, fmt.Errorf("survey: persist after %s: %w", repo.FullName, err)
			}
		}
	}

	g = b.Build()
	if len(cfg.Environments) > 0 {
		applyEnvironments(g, cfg.Environments, now)
	}

	cr := coupling.Analyze(g)
	if err := cr.ApplyToGraph(g, now); err != nil {
		return result, fmt.Errorf("survey: apply coupling: %w", err)
	}
	g.Touch(now)
	if !cfg.Incremental {
		state.LastFullSurvey = now
	}
	result.Graph = g
	result.State = state

	if err := persist(g, state, cfg); err != nil {
		return result, fmt.Errorf("survey: final persist: %w", err)
	}
	return result, nil
}

func processRepo(ctx context.Context, cfg Config, b *builder.Builder, state *State, repo repoprovider.RepoRef, now time.Time) RepoOutcome {
	outcome := RepoOutcome{Repo: repo.FullName, RunID: uuid.NewString()}

	localPath, err := cfg.Provider.EnsureRepo(ctx, repo, cfg.Ref)
	if err != nil {
		outcome.Err = fmt.Errorf("ensure repo: %w", err)
		return outcome
	}

	sha, shaErr := commitSHA(ctx, localPath)
	prior, hadPrior := state.Repos[repo.FullName]

	if cfg.Incremental && hadPrior && shaErr == nil && sha != "" && sha == prior.CommitSHA {
		outcome.Skipped = true
		logging.SurveyDebug("survey[%s]: commit %s unchanged, skipping", repo.FullName, sha)
		return outcome
	}

	allowed, err := allowedLanguages(localPath, cfg.ExcludeLang)
	if err != nil {
		outcome.Err = fmt.Errorf("detect languages: %w", err)
		return outcome
	}

	useDelta := cfg.Incremental && hadPrior && shaErr == nil && sha != ""
	var discs []discovery.Discovery
	var parseErrs []parser.FileError

	if useDelta {
		changes, diffErr := diffNameStatus(ctx, localPath, prior.CommitSHA, sha)
		if diffErr != nil {
			logging.Survey("survey[%s]: git diff failed (%v), falling back to full reparse", repo.FullName, diffErr)
			useDelta = false
		} else {
			var toParse []string
			for _, c := range changes {
				switch c.Kind {
				case ChangeAdded:
					outcome.FilesAdded++
					toParse = append(toParse, filepath.Join(localPath, c.Path))
				case ChangeModified:
					outcome.FilesModified++
					toParse = append(toParse, filepath.Join(localPath, c.Path))
				case ChangeDeleted:
					outcome.FilesDeleted++
					removeNodesForFile(b.Build(), filepath.Join(localPath, c.Path))
				}
			}
			var rawDiscs []discovery.Discovery
			rawDiscs, parseErrs = parseFilesConcurrently(ctx, cfg.Registry, toParse)
			discs = filterByLanguage(rawDiscs, allowed)
		}
	}

	if !useDelta {
		outcome.FullReparse = true
		wr, walkErr := cfg.Registry.ParseRepo(localPath)
		if walkErr != nil {
			outcome.Err = fmt.Errorf("parse repo: %w", walkErr)
			return outcome
		}
		discs = filterByLanguage(wr.Discoveries, allowed)
		parseErrs = wr.Errors
		outcome.FilesAdded = wr.FilesParsed
	}

	outcome.ParseErrors = parseErrs
	outcome.Discoveries = len(discs)

	repoName := repoDisplayName(repo)
	if err := builder.Assemble(b, repoName, discs); err != nil {
		outcome.Err = fmt.Errorf("assemble: %w", err)
		return outcome
	}

	hashes, hashErr := hashRecognizedFiles(localPath)
	if hashErr != nil {
		logging.Survey("survey[%s]: hashing files: %v", repo.FullName, hashErr)
	}
	state.Repos[repo.FullName] = RepoState{
		CommitSHA:      sha,
		LastSurveyed:   now,
		FileHashes:     hashes,
		DiscoveryCount: len(discs),
	}
	return outcome
}

func allowedLanguages(root string, exclude []string) (map[string]bool, error) {
	detected, err := parser.DetectLanguages(root)
	if err != nil {
		return nil, err
	}
	allowedList := parser.ExcludeLanguages(detected, exclude)
	allowed := make(map[string]bool, len(allowedList))
	for _, l := range allowedList {
		allowed[l] = true
	}
	return allowed, nil
}

func filterByLanguage(discs []discovery.Discovery, allowed map[string]bool) []discovery.Discovery {
	out := make([]discovery.Discovery, 0, len(discs))
	for _, d := range discs {
		lang, ok := languageOfFile(d.Location.File)
		if !ok || allowed[lang] {
			out = append(out, d)
		}
	}
	return out
}

func removeNodesForFile(g *graph.Graph, file string) {
	for _, n := range g.Nodes() {
		if n.Meta.SourceFile == file {
			g.RemoveNode(n.ID)
		}
	}
}

func repoDisplayName(repo repoprovider.RepoRef) string {
	name := strings.TrimSuffix(repo.FullName, "/")
	return filepath.Base(name)
}

func hashRecognizedFiles(root string) (map[string]string, error) {
	hashes := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if pathDenylist[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !recognizedExt(path) {
			return nil
		}
		h, hashErr := hashFile(path)
		if hashErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		hashes[filepath.ToSlash(rel)] = h
		return nil
	})
	return hashes, err
}

func loadOrNewGraph(path string, now time.Time) (*graph.Graph, error) {
	if path == "" {
		return graph.New("forge", now), nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return graph.New("forge", now), nil
		}
		return nil, err
	}
	return graph.Load(path)
}

func persist(g *graph.Graph, state *State, cfg Config) error {
	if cfg.GraphPath != "" {
		if err := g.Save(cfg.GraphPath); err != nil {
			return fmt.Errorf("save graph: %w", err)
		}
	}
	if cfg.StatePath != "" {
		if err := state.Save(cfg.StatePath); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	return nil
}

// applyEnvironments stamps every node's environment/aws_account_id attribute
// from the first rule matching its owning service's repo: a Service node's own
// repo, or for any other node the repo of the service with an Owns edge to it.
// Nodes with no owning service are left unstamped.
func applyEnvironments(g *graph.Graph, rules []EnvironmentRule, now time.Time) {
	for _, n := range g.Nodes() {
		repo := repoOfNodeID(n.ID)
		if n.Type != graph.NodeService {
			repo = ""
			for _, e := range g.IncomingEdges(n.ID) {
				if e.Type == graph.EdgeOwns {
					repo = repoOfNodeID(e.Source)
					break
				}
			}
		}
		for _, rule := range rules {
			if !matchesPattern(rule.Pattern, repo) {
				continue
			}
			changed := false
			if n.Attributes == nil {
				n.Attributes = graph.Attributes{}
			}
			if rule.Name != "" && n.Attributes.Environment() != rule.Name {
				n.Attributes["environment"] = rule.Name
				changed = true
			}
			if rule.AWSAccountID != "" && n.Attributes.AWSAccountID() != rule.AWSAccountID {
				n.Attributes["aws_account_id"] = rule.AWSAccountID
				changed = true
			}
			if changed {
				n.Meta.Touch(now)
			}
			break
		}
	}
}

func repoOfNodeID(id graph.NodeId) string {
	p, err := graph.ParseNodeId(id)
	if err != nil {
		return ""
	}
	return p.Namespace
}

func matchesPattern(pattern, name string) bool {
	if pattern == "" || name == "" {
		return false
	}
	if ok, err := filepath.Match(pattern, name); err == nil && ok {
		return true
	}
	return strings.Contains(name, pattern)
}
