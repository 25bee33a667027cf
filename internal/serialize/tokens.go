// Package serialize projects a graph or subgraph into the three output
// shapes of spec.md §4.8 (structured document, structured data, diagram),
// subject to a token budget enforced by a BPE token counter.
package serialize

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates the token cost of a string under a fixed encoding.
type Counter interface {
	Count(text string) int
}

// cl100kCounter wraps the cl100k_base BPE encoding (spec.md §4.8: "a
// general-purpose multilingual/English BPE such as the cl100k family").
type cl100kCounter struct {
	enc *tiktoken.Tiktoken
}

var (
	defaultCounterOnce sync.Once
	defaultCounter     Counter
	defaultCounterErr  error
)

// NewCounter returns the shared cl100k_base counter, initializing it on
// first use. Initialization failure (e.g. no network access to fetch the
// encoder's merge ranks on a cold cache) falls back to approximateCounter so
// callers always get a usable estimate.
func NewCounter() Counter {
	defaultCounterOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			defaultCounterErr = err
			defaultCounter = approximateCounter{}
			return
		}
		defaultCounter = &cl100kCounter{enc: enc}
	})
	return defaultCounter
}

func (c *cl100kCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// approximateCounter estimates token count as roughly 4 bytes per token,
// the commonly cited ratio for English cl100k text, used only when the
// real encoder could not be loaded.
type approximateCounter struct{}

func (approximateCounter) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
