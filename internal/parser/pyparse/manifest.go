package pyparse

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
)

var pyFrameworkDeps = []string{"fastapi", "flask", "django", "chalice", "starlette"}

// pyprojectDoc is the narrow slice of pyproject.toml this surveyor reads:
// PEP 621 [project] plus the common Poetry [tool.poetry] shape.
type pyprojectDoc struct {
	Project struct {
		Name         string   `toml:"name"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name         string            `toml:"name"`
			Dependencies map[string]string `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// ParseManifest reads pyproject.toml, setup.py, requirements.txt, or Pipfile
// for the service name and declared web framework (spec.md §4.2).
func (p *Parser) ParseManifest(path string, content []byte) ([]discovery.Discovery, error) {
	base := filepath.Base(path)
	name := filepath.Base(filepath.Dir(path))
	framework := ""

	switch base {
	case "pyproject.toml":
		var doc pyprojectDoc
		if _, err := toml.Decode(string(content), &doc); err != nil {
			return nil, err
		}
		if doc.Project.Name != "" {
			name = doc.Project.Name
		} else if doc.Tool.Poetry.Name != "" {
			name = doc.Tool.Poetry.Name
		}
		framework = matchFramework(doc.Project.Dependencies)
		if framework == "" {
			for dep := range doc.Tool.Poetry.Dependencies {
				if isFramework(dep) {
					framework = dep
					break
				}
			}
		}
	case "requirements.txt", "Pipfile":
		framework = matchFrameworkLines(content)
	case "setup.py":
		framework = matchFrameworkLines(content)
	}

	return []discovery.Discovery{discovery.NewService(discovery.Location{File: path}, discovery.ServiceDiscovery{
		Name: name, Language: "python", Framework: framework,
	})}, nil
}

func matchFramework(deps []string) string {
	for _, d := range deps {
		name := strings.ToLower(strings.SplitN(strings.TrimSpace(d), "=", 2)[0])
		name = strings.SplitN(name, "<", 2)[0]
		name = strings.SplitN(name, ">", 2)[0]
		name = strings.TrimSpace(name)
		if isFramework(name) {
			return name
		}
	}
	return ""
}

func isFramework(name string) bool {
	name = strings.ToLower(name)
	for _, f := range pyFrameworkDeps {
		if name == f {
			return true
		}
	}
	return false
}

func matchFrameworkLines(content []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		for _, f := range pyFrameworkDeps {
			if strings.Contains(line, f) {
				return f
			}
		}
	}
	return ""
}
