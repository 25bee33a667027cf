package graph

import "time"

// Metadata records provenance for a node: when it was first/last touched,
// which phase discovered it, and (when known) source location.
type Metadata struct {
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Source     DiscoverySource `json:"source"`
	CommitSHA  string          `json:"commit_sha,omitempty"`
	SourceFile string          `json:"source_file,omitempty"`
	SourceLine int             `json:"source_line,omitempty"`
}

// NewMetadata returns metadata stamped with now for both timestamps,
// satisfying invariant (c) created_at <= updated_at.
func NewMetadata(source DiscoverySource, now time.Time) Metadata {
	return Metadata{CreatedAt: now, UpdatedAt: now, Source: source}
}

// Touch advances UpdatedAt to now, enforcing invariant (d): UpdatedAt is
// monotonically non-decreasing across merges.
func (m *Metadata) Touch(now time.Time) {
	if now.After(m.UpdatedAt) {
		m.UpdatedAt = now
	}
}

// EdgeMetadata holds the optional descriptive fields an edge may carry.
type EdgeMetadata struct {
	Confidence   *float64  `json:"confidence,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Evidence     []string  `json:"evidence,omitempty"`
	HTTPMethod   string    `json:"http_method,omitempty"`
	EndpointPath string    `json:"endpoint_path,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
	Confirmed    bool      `json:"confirmed,omitempty"`

	// Extra holds unknown on-disk fields this version doesn't understand, so
	// Save never drops data a newer writer put there (spec.md §6.3).
	Extra map[string]interface{} `json:"-"`
}

// maxEvidence caps per-edge evidence (spec.md §9 design notes: "cap per-edge
// evidence at a configurable maximum, suggest 32, retaining the most recent").
const maxEvidence = 32

// AddEvidence appends ev, trimming the oldest entries beyond maxEvidence.
func (m *EdgeMetadata) AddEvidence(ev ...string) {
	for _, e := range ev {
		if e == "" {
			continue
		}
		m.Evidence = append(m.Evidence, e)
	}
	if len(m.Evidence) > maxEvidence {
		m.Evidence = m.Evidence[len(m.Evidence)-maxEvidence:]
	}
}

func floatPtr(f float64) *float64 { return &f }
