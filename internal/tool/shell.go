package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// SafeNoOpCommand is substituted for unresolved command placeholders so a
// plan with a non-concrete shell step degrades to a harmless invocation.
const SafeNoOpCommand = "true"

// RunShellCommandTool executes a shell command with a bounded timeout.
// Dangerous command prefixes are rejected before execution.
type RunShellCommandTool struct {
	// WorkDir is the working directory for commands; empty means inherit.
	WorkDir string

	// Timeout bounds a single command execution. Zero means no tool-level
	// timeout beyond the caller's context.
	Timeout time.Duration
}

// deniedPrefixes are commands never executed regardless of plan content.
var deniedPrefixes = []string{
	"rm -rf /",
	"mkfs",
	"dd if=",
	"shutdown",
	"reboot",
}

// Name returns the tool's dispatch name.
func (t *RunShellCommandTool) Name() string { return NameShellCommand }

// Description returns the capability summary.
func (t *RunShellCommandTool) Description() string {
	return "Executes a shell command in the workspace and captures its output"
}

// Schema returns the parameter schema.
func (t *RunShellCommandTool) Schema() map[string]ParamSpec {
	return map[string]ParamSpec{
		"command": {Type: "string", Description: "Shell command to execute", Required: true},
		"simplified": {
			Type:        "boolean",
			Description: "Set on retry after a context-length failure; trims captured output",
			Required:    false,
			Default:     false,
		},
	}
}

// Run executes the command and returns {output, exitCode, command, durationMs}.
// A non-zero exit code is reported as an error so the engine's retry and
// criticality analysis see shell failures.
func (t *RunShellCommandTool) Run(ctx context.Context, params map[string]any) (any, error) {
	command, err := stringParam(params, "command")
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(command)
	for _, prefix := range deniedPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return nil, fmt.Errorf("command rejected by safety policy: %q", trimmed)
		}
	}

	runCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if t.WorkDir != "" {
		cmd.Dir = t.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("command timed out after %s: %q", t.Timeout, command)
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += stderr.String()
	}

	// A simplified retry keeps only the tail of the output to stay within
	// the model's context window.
	if simplified, _ := params["simplified"].(bool); simplified && len(output) > 2000 {
		output = "...(truncated)...\n" + output[len(output)-2000:]
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("run command %q: %w", command, runErr)
		}
	}

	result := map[string]any{
		"output":     output,
		"exitCode":   exitCode,
		"command":    command,
		"durationMs": duration.Milliseconds(),
	}
	if exitCode != 0 {
		return result, fmt.Errorf("command %q exited with code %d: %s", command, exitCode, firstLine(output))
	}
	return result, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
