package builder

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
	"github.com/garrettyarmo/forge-sub000/internal/graph"
)

// ownerCandidate pairs a service's NodeId with the directory its defining
// manifest/IaC file lives in, used to attribute non-service discoveries to
// the nearest enclosing service in a monorepo.
type ownerCandidate struct {
	dir string
	id  graph.NodeId
}

// Assemble is the glue between a repository-wide discovery stream (as
// produced by parser.Registry.ParseRepo) and the per-service AddService /
// ProcessDiscoveries calls spec.md §4.4 describes. It is not itself named in
// spec.md — repository layout (which files belong to which service) is left
// to the implementation — so it resolves ownership by the longest matching
// directory prefix between a discovery's file and a discovered service's
// defining file, falling back to a synthetic repo-level service when no
// manifest or IaC service definition was found at all.
func Assemble(b *Builder, repoName string, discs []discovery.Discovery) error {
	var services []discovery.Discovery
	var rest []discovery.Discovery
	for _, d := range discs {
		if d.Kind == discovery.KindService {
			services = append(services, d)
		} else {
			rest = append(rest, d)
		}
	}

	var candidates []ownerCandidate
	for _, d := range services {
		id, err := b.AddService(repoName, *d.Service, d.Location)
		if err != nil {
			return err
		}
		candidates = append(candidates, ownerCandidate{dir: cleanDir(d.Location.File), id: id})
	}
	if len(candidates) == 0 {
		id, err := b.AddService(repoName, discovery.ServiceDiscovery{Name: repoName}, discovery.Location{File: repoName})
		if err != nil {
			return err
		}
		candidates = append(candidates, ownerCandidate{dir: "", id: id})
	}
	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i].dir) > len(candidates[j].dir) })

	byOwner := make(map[graph.NodeId][]discovery.Discovery)
	var order []graph.NodeId
	for _, d := range rest {
		owner := resolveOwner(candidates, d.Location.File)
		if _, seen := byOwner[owner]; !seen {
			order = append(order, owner)
		}
		byOwner[owner] = append(byOwner[owner], d)
	}
	for _, owner := range order {
		if err := b.ProcessDiscoveries(repoName, owner, byOwner[owner]); err != nil {
			return err
		}
	}
	return nil
}

func cleanDir(file string) string {
	return filepath.ToSlash(filepath.Clean(filepath.Dir(file)))
}

// resolveOwner returns the candidate whose directory is the longest prefix
// of file's directory, defaulting to the shortest-directory (outermost)
// candidate when nothing matches.
func resolveOwner(candidates []ownerCandidate, file string) graph.NodeId {
	dir := cleanDir(file)
	for _, c := range candidates {
		if c.dir == "" || dir == c.dir || strings.HasPrefix(dir, c.dir+"/") {
			return c.id
		}
	}
	return candidates[len(candidates)-1].id
}
