// Package agent implements the "Coding-agent subprocess" external
// collaborator of spec.md §6.4: an optional text-completion backend used to
// interview the user for BusinessContext annotations. The core tolerates its
// unavailability by skipping the interview with a warning.
package agent

import "context"

// Turn is one exchange in a prompt_with_history conversation.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Interviewer answers prompts for the annotation interview. Implementations
// must be safe to call IsAvailable on before any network or subprocess
// activity, so callers can skip the interview cheaply when it is absent.
type Interviewer interface {
	// Prompt sends a single system/user exchange and returns the reply text.
	Prompt(ctx context.Context, system, user string) (string, error)
	// PromptWithHistory continues a conversation, appending user as the
	// final turn.
	PromptWithHistory(ctx context.Context, system string, history []Turn, user string) (string, error)
	// IsAvailable reports whether the collaborator is reachable right now.
	IsAvailable(ctx context.Context) bool
}
