package jsts

import (
	"encoding/json"
	"path/filepath"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
)

// packageJSON is the narrow slice of package.json this surveyor reads:
// service name, declared framework/test-framework dependencies, and entry
// point (spec.md §4.2).
type packageJSON struct {
	Name            string            `json:"name"`
	Main            string            `json:"main"`
	Module          string            `json:"module"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

var frameworkDeps = []string{"express", "@nestjs/core", "react", "next", "fastify", "koa"}
var testFrameworkDeps = []string{"jest", "mocha", "vitest"}

// ParseManifest extracts a ServiceDiscovery from a package.json file's
// contents. Returns no discoveries if the document doesn't parse as valid
// JSON, since a malformed manifest is a non-fatal per-file error.
func (p *Parser) ParseManifest(path string, content []byte) ([]discovery.Discovery, error) {
	var pkg packageJSON
	if err := json.Unmarshal(content, &pkg); err != nil {
		return nil, err
	}
	name := pkg.Name
	if name == "" {
		name = filepath.Base(filepath.Dir(path))
	}
	framework := firstMatch(pkg.Dependencies, frameworkDeps)
	testFramework := firstMatch(pkg.DevDependencies, testFrameworkDeps)
	if testFramework == "" {
		testFramework = firstMatch(pkg.Dependencies, testFrameworkDeps)
	}
	entry := pkg.Main
	if entry == "" {
		entry = pkg.Module
	}
	attrs := map[string]interface{}{}
	if testFramework != "" {
		attrs["test_framework"] = testFramework
	}
	loc := discovery.Location{File: path}
	return []discovery.Discovery{discovery.NewService(loc, discovery.ServiceDiscovery{
		Name:       name,
		Language:   "javascript",
		Framework:  framework,
		EntryPoint: entry,
		Attributes: attrs,
	})}, nil
}

func firstMatch(deps map[string]string, candidates []string) string {
	for _, c := range candidates {
		if _, ok := deps[c]; ok {
			return c
		}
	}
	return ""
}
