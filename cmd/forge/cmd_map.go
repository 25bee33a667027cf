package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garrettyarmo/forge-sub000/internal/config"
	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/serialize"
	"github.com/garrettyarmo/forge-sub000/internal/subgraph"
)

var (
	mapConfigPath string
	mapInput      string
	mapFormat     string
	mapServices   []string
	mapEnv        string
	mapBudget     int
	mapOutput     string
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Render a slice of the knowledge graph",
	Long: `map extracts the neighbourhood of one or more seed services (or the
whole graph, given none) and renders it as a structured document, structured
data, or a flowchart diagram (spec.md §4.8), trimmed to a token budget.`,
	RunE: runMap,
}

func init() {
	mapCmd.Flags().StringVar(&mapConfigPath, "config", "forge.yaml", "path to the config document")
	mapCmd.Flags().StringVar(&mapInput, "input", "", "override config's output.graph_path")
	mapCmd.Flags().StringVar(&mapFormat, "format", "document", "one of document, data, diagram")
	mapCmd.Flags().StringSliceVar(&mapServices, "service", nil, "seed service names or node IDs; empty means every Service node")
	mapCmd.Flags().StringVar(&mapEnv, "env", "", "restrict seeds to services whose environment attribute matches")
	mapCmd.Flags().IntVar(&mapBudget, "budget", 0, "token budget override (default: config's token_budget)")
	mapCmd.Flags().StringVar(&mapOutput, "output", "", "write to this path instead of stdout")
}

func runMap(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(mapConfigPath)
	if err != nil {
		return withExit(exitConfigError, err)
	}

	graphPath := cfg.Output.GraphPath
	if mapInput != "" {
		graphPath = mapInput
	}
	g, err := graph.Load(graphPath)
	if err != nil {
		return withExit(exitGraphMissing, fmt.Errorf("map: load %s: %w", graphPath, err))
	}

	budget := cfg.TokenBudget
	if mapBudget > 0 {
		budget = mapBudget
	}

	seeds, err := resolveSeeds(g, mapServices, mapEnv)
	if err != nil {
		return withExit(exitConfigError, err)
	}
	logger.Debug("extracting subgraph", zap.Int("seeds", len(seeds)), zap.String("format", mapFormat), zap.Int("budget", budget))

	sub := subgraph.Extract(g, subgraph.Config{
		SeedNodes:                seeds,
		MaxDepth:                 3,
		IncludeImplicitCouplings: true,
		MinRelevance:             0.1,
	})

	counter := serialize.NewCounter()
	var rendered string
	switch mapFormat {
	case "document":
		rendered = serialize.Document(g, sub, counter, budget)
	case "data":
		doc := serialize.Data(sub, &serialize.DataQuery{Seeds: seeds, MaxDepth: 3}, time.Now())
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return withExit(exitConfigError, err)
		}
		rendered = string(b)
	case "diagram":
		rendered = serialize.Diagram(sub, serialize.DirectionLR, counter, budget)
	default:
		return withExit(exitConfigError, fmt.Errorf("map: unknown --format %q (want document, data, or diagram)", mapFormat))
	}

	if mapOutput == "" {
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	}
	if err := writeOutputFile(mapOutput, rendered); err != nil {
		return withExit(exitConfigError, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", mapOutput)
	return nil
}

// resolveSeeds matches --service values against node IDs first, then
// Service display names, then falls back to every Service node so `map` with
// no --service still renders the whole graph's services.
func resolveSeeds(g *graph.Graph, wanted []string, env string) ([]graph.NodeId, error) {
	services := g.NodesByType(graph.NodeService)
	if env != "" {
		filtered := services[:0:0]
		for _, n := range services {
			if n.Attributes.Environment() == env {
				filtered = append(filtered, n)
			}
		}
		services = filtered
	}
	if len(wanted) == 0 {
		ids := make([]graph.NodeId, 0, len(services))
		for _, n := range services {
			ids = append(ids, n.ID)
		}
		return ids, nil
	}

	var ids []graph.NodeId
	for _, w := range wanted {
		if n := g.Node(graph.NodeId(w)); n != nil {
			ids = append(ids, n.ID)
			continue
		}
		var match *graph.Node
		for _, n := range services {
			if n.DisplayName == w || strings.EqualFold(n.DisplayName, w) {
				match = n
				break
			}
		}
		if match == nil {
			return nil, fmt.Errorf("map: no service matches %q", w)
		}
		ids = append(ids, match.ID)
	}
	return ids, nil
}

func writeOutputFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
