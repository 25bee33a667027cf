// Package survey implements the incremental survey driver of spec.md §4.9:
// per-repository commit comparison, git-diff-scoped re-parsing, and the
// merge of fresh discoveries into a previously persisted graph without
// clobbering human annotations. cmd/forge/cmd_survey.go is its only caller.
package survey

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateVersion identifies the on-disk shape of State, bumped on breaking
// changes to the document so a future reader can detect staleness.
const StateVersion = 1

// RepoState records what the last survey run observed for one repository,
// matching spec.md §6.3's "survey state document" shape.
type RepoState struct {
	CommitSHA      string            `json:"commit_sha"`
	LastSurveyed   time.Time         `json:"last_surveyed"`
	FileHashes     map[string]string `json:"file_hashes"`
	DiscoveryCount int               `json:"discovery_count"`
}

// State is the full survey state document persisted alongside the graph.
type State struct {
	Version        int                  `json:"version"`
	LastFullSurvey time.Time            `json:"last_full_survey"`
	Repos          map[string]RepoState `json:"repos"`
}

// EmptyState returns a freshly initialized state with no repo history, the
// starting point for a repository's first survey.
func EmptyState() *State {
	return &State{Version: StateVersion, Repos: make(map[string]RepoState)}
}

// LoadState reads the state document at path, returning an EmptyState if it
// does not yet exist (a repo's first survey is always a full one).
func LoadState(path string) (*State, error) {
	if path == "" {
		return EmptyState(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return EmptyState(), nil
		}
		return nil, fmt.Errorf("survey: read state %s: %w", path, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("survey: parse state %s: %w", path, err)
	}
	if s.Repos == nil {
		s.Repos = make(map[string]RepoState)
	}
	return &s, nil
}

// Save persists s to path atomically (rename-over-temp, mirroring
// internal/graph's on-disk write discipline for the graph document itself).
func (s *State) Save(path string) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("survey: marshal state: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("survey: mkdir %s: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(dir, ".survey-state-*.tmp")
	if err != nil {
		return fmt.Errorf("survey: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("survey: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("survey: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("survey: rename temp file into place: %w", err)
	}
	return nil
}
