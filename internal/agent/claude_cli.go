package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLIConfig configures ClaudeCLIClient.
type ClaudeCLIConfig struct {
	Path    string // defaults to "claude" on PATH
	Model   string // defaults to "sonnet"
	Timeout time.Duration
}

// ClaudeCLIClient implements Interviewer by shelling out to the Claude Code
// CLI: `claude -p --output-format json --model <model>`, parsing the
// result.content[].text field of its JSON response.
type ClaudeCLIClient struct {
	path    string
	model   string
	timeout time.Duration
}

// NewClaudeCLIClient returns a client with cfg's overrides applied over
// defaults (path "claude", model "sonnet", timeout 120s).
func NewClaudeCLIClient(cfg ClaudeCLIConfig) *ClaudeCLIClient {
	c := &ClaudeCLIClient{path: "claude", model: "sonnet", timeout: 120 * time.Second}
	if cfg.Path != "" {
		c.path = cfg.Path
	}
	if cfg.Model != "" {
		c.model = cfg.Model
	}
	if cfg.Timeout > 0 {
		c.timeout = cfg.Timeout
	}
	return c
}

type claudeCLIResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// IsAvailable reports whether the claude binary resolves on PATH.
func (c *ClaudeCLIClient) IsAvailable(_ context.Context) bool {
	_, err := exec.LookPath(c.path)
	return err == nil
}

// Prompt sends a single system/user exchange.
func (c *ClaudeCLIClient) Prompt(ctx context.Context, system, user string) (string, error) {
	return c.PromptWithHistory(ctx, system, nil, user)
}

// PromptWithHistory renders history and user as a single turn-delimited
// prompt; the CLI itself has no multi-turn message protocol over -p.
func (c *ClaudeCLIClient) PromptWithHistory(ctx context.Context, system string, history []Turn, user string) (string, error) {
	var sb strings.Builder
	for _, t := range history {
		fmt.Fprintf(&sb, "%s: %s\n\n", t.Role, t.Content)
	}
	sb.WriteString(user)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"-p", "--output-format", "json", "--model", c.model}
	if system != "" {
		args = append(args, "--system-prompt", system)
	}
	args = append(args, sb.String())

	cmd := exec.CommandContext(ctx, c.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("agent: claude CLI timed out after %v: %w", c.timeout, ctx.Err())
		}
		return "", fmt.Errorf("agent: claude CLI failed: %w (stderr: %s)", err, stderr.String())
	}

	var resp claudeCLIResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("agent: parse claude CLI response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("agent: claude CLI error: %s", resp.Error.Message)
	}
	var text strings.Builder
	for _, block := range resp.Result.Content {
		if block.Type == "text" || block.Type == "" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("agent: claude CLI returned no text content")
	}
	return text.String(), nil
}
