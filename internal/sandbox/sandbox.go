// Package sandbox implements the workspace and tool-access boundary every
// Container (C6) enforces: a per-container working directory and a
// wildcard-pattern allow/deny list for tool invocations, generalizing a
// bash-subcommand wildcard matcher (pattern syntax: "tool_name *",
// "tool_name", "*") into doublestar glob patterns over tool name and, for
// filesystem tools, the path argument.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Decision is the outcome of checking one tool invocation against a
// Sandbox's rule set.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	DecisionAsk   Decision = "ask" // tools.Execute reports the call as requiring approval
)

// Rule pairs a glob pattern over "toolName" or "toolName:pathGlob" with the
// Decision to apply when it matches. Rules are evaluated in order; the
// first match wins. A Sandbox with no matching rule falls back to Default.
type Rule struct {
	Pattern  string
	Decision Decision
}

// Sandbox scopes one Container's filesystem access and tool permissions.
type Sandbox struct {
	// WorkspaceRoot is the directory tools that touch the filesystem are
	// confined to; PathAllowed rejects any path that escapes it.
	WorkspaceRoot string

	Rules   []Rule
	Default Decision
}

// New constructs a Sandbox rooted at workspaceRoot, creating the directory
// if it does not already exist.
func New(workspaceRoot string, rules []Rule) (*Sandbox, error) {
	if err := os.MkdirAll(workspaceRoot, 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: create workspace %s: %w", workspaceRoot, err)
	}
	return &Sandbox{WorkspaceRoot: workspaceRoot, Rules: rules, Default: DecisionAsk}, nil
}

// Check evaluates whether toolName may run with the given path argument
// (path may be empty for tools that do not touch the filesystem).
func (s *Sandbox) Check(toolName, path string) Decision {
	subject := toolName
	if path != "" {
		subject = toolName + ":" + path
	}

	for _, r := range s.Rules {
		if matched, _ := doublestar.Match(r.Pattern, subject); matched {
			return r.Decision
		}
		if matched, _ := doublestar.Match(r.Pattern, toolName); matched {
			return r.Decision
		}
	}
	return s.Default
}

// PathAllowed reports whether path (relative or absolute) resolves to
// somewhere inside WorkspaceRoot, preventing tools from escaping the
// sandbox via "../" traversal or absolute paths outside it.
func (s *Sandbox) PathAllowed(path string) (string, bool) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.WorkspaceRoot, path)
	}
	resolved, err := filepath.Abs(abs)
	if err != nil {
		return "", false
	}
	root, err := filepath.Abs(s.WorkspaceRoot)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return "", false
	}
	if hasParentTraversal(rel) {
		return "", false
	}
	return resolved, true
}

func hasParentTraversal(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == ".." {
		return true
	}
	return len(rel) >= 3 && rel[:3] == "../"
}

// Destroy removes the workspace directory and everything under it. The
// Container (C6) calls this from DestroyAll; the workspace is shared by all
// of the container's sessions.
func (s *Sandbox) Destroy() error {
	return os.RemoveAll(s.WorkspaceRoot)
}
