package survey

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
	"github.com/garrettyarmo/forge-sub000/internal/parser"
)

// maxParseWorkers bounds concurrent file parsing (spec.md §5: "parsing is
// embarrassingly parallel across files; the graph builder is a
// single-threaded consumer of the resulting discovery stream").
const maxParseWorkers = 8

// parseFilesConcurrently dispatches every path in paths to reg in parallel,
// bounded by maxParseWorkers, returning the concatenated discovery stream
// (ordering within one file is preserved, ordering across files is not,
// matching parser.Registry.ParseRepo's own guarantee) plus any per-file
// parse errors, which are non-fatal to the run.
func parseFilesConcurrently(ctx context.Context, reg *parser.Registry, paths []string) ([]discovery.Discovery, []parser.FileError) {
	if len(paths) == 0 {
		return nil, nil
	}

	type outcome struct {
		discs []discovery.Discovery
		err   *parser.FileError
	}
	results := make([]outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxParseWorkers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
			defer func() { <-sem }()

			discs, err := reg.ParseOne(path)
			if err != nil {
				results[i] = outcome{err: &parser.FileError{Path: path, Err: err}}
				return nil
			}
			results[i] = outcome{discs: discs}
			return nil
		})
	}
	_ = g.Wait()

	var discoveries []discovery.Discovery
	var errs []parser.FileError
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, *r.err)
			continue
		}
		discoveries = append(discoveries, r.discs...)
	}
	return discoveries, errs
}
