package survey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garrettyarmo/forge-sub000/internal/agent"
	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/logging"
)

// interviewSystemPrompt keeps the collaborator's reply machine-parseable so
// the interview can run unattended across every service node in one pass.
const interviewSystemPrompt = `You are helping an engineer document their organization's services for a knowledge graph. Given a service's name, language, and framework, respond ONLY with a JSON object of the shape {"purpose": "...", "owner": "..."}. Keep purpose to one sentence. Leave a field "" if you cannot infer it confidently.`

type annotateAnswer struct {
	Purpose string `json:"purpose"`
	Owner   string `json:"owner"`
}

// Annotate runs the optional business-context interview (spec.md §6.4,
// `survey --business-context`) over every Service node whose BusinessContext
// is still empty. It returns the number of nodes annotated. When interviewer
// is unavailable it skips the interview entirely with a warning rather than
// failing the survey (spec.md §7, external-collaborator unavailability
// degrades gracefully).
func Annotate(ctx context.Context, g *graph.Graph, interviewer agent.Interviewer, now time.Time) int {
	if interviewer == nil || !interviewer.IsAvailable(ctx) {
		logging.AgentWarn("business-context interview unavailable, skipping")
		return 0
	}
	annotated := 0
	for _, n := range g.NodesByType(graph.NodeService) {
		if n.Context != nil && !n.Context.IsEmpty() {
			continue
		}
		prompt := fmt.Sprintf("Service: %s\nLanguage: %s\nFramework: %s", n.DisplayName, n.Attributes.Language(), n.Attributes.Framework())
		reply, err := interviewer.Prompt(ctx, interviewSystemPrompt, prompt)
		if err != nil {
			logging.AgentWarn("interview failed for %s: %v", n.ID, err)
			continue
		}
		var ans annotateAnswer
		if err := json.Unmarshal([]byte(reply), &ans); err != nil {
			logging.AgentWarn("interview reply for %s was not valid JSON: %v", n.ID, err)
			continue
		}
		if ans.Purpose == "" && ans.Owner == "" {
			continue
		}
		ctxField := n.EnsureContext()
		if ctxField.Purpose == "" {
			ctxField.Purpose = ans.Purpose
		}
		if ctxField.Owner == "" {
			ctxField.Owner = ans.Owner
		}
		n.Meta.Source = graph.SourceAnnotation
		n.Meta.Touch(now)
		annotated++
	}
	return annotated
}
