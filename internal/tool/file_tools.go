package tool

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Canonical tool names used by planner prompts and continuation heuristics.
const (
	NameReadFile     = "ReadFileTool"
	NameWriteFile    = "WriteFileTool"
	NameFindFile     = "FindFileTool"
	NameShellCommand = "RunShellCommandTool"
	NameAnalyzeCode  = "AnalyzeCodeTool"
	NameFixError     = "FixErrorTool"
	NameGenerateTest = "GenerateTestTool"
	NameExplainCode  = "ExplainCodeTool"
)

// ReadFileTool reads the content of a file inside the workspace.
type ReadFileTool struct {
	// Root constrains all paths; empty means current working directory.
	Root string
}

// Name returns the tool's dispatch name.
func (t *ReadFileTool) Name() string { return NameReadFile }

// Description returns the capability summary.
func (t *ReadFileTool) Description() string {
	return "Reads the content of a file and returns it together with the file path"
}

// Schema returns the parameter schema.
func (t *ReadFileTool) Schema() map[string]ParamSpec {
	return map[string]ParamSpec{
		"filePath": {Type: "string", Description: "Path of the file to read", Required: true},
	}
}

// Run reads the file and returns {content, filePath}.
func (t *ReadFileTool) Run(ctx context.Context, params map[string]any) (any, error) {
	path, err := stringParam(params, "filePath")
	if err != nil {
		return nil, err
	}

	resolved, err := resolvePath(t.Root, path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return map[string]any{
		"content":  string(data),
		"filePath": path,
	}, nil
}

// WriteFileTool writes content to a file, creating parent directories.
type WriteFileTool struct {
	Root string
}

// Name returns the tool's dispatch name.
func (t *WriteFileTool) Name() string { return NameWriteFile }

// Description returns the capability summary.
func (t *WriteFileTool) Description() string {
	return "Writes content to a file, creating parent directories as needed"
}

// Schema returns the parameter schema.
func (t *WriteFileTool) Schema() map[string]ParamSpec {
	return map[string]ParamSpec{
		"filePath": {Type: "string", Description: "Path of the file to write", Required: true},
		"content":  {Type: "string", Description: "Content to write", Required: true},
	}
}

// Run writes the file and returns {filePath, bytesWritten}.
func (t *WriteFileTool) Run(ctx context.Context, params map[string]any) (any, error) {
	path, err := stringParam(params, "filePath")
	if err != nil {
		return nil, err
	}
	content, err := stringParam(params, "content")
	if err != nil {
		return nil, err
	}

	resolved, err := resolvePath(t.Root, path)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(resolved); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	return map[string]any{
		"filePath":     path,
		"bytesWritten": len(content),
	}, nil
}

// FindFileTool searches the workspace for files matching a glob pattern.
// Patterns with "**" are matched recursively against every directory level.
type FindFileTool struct {
	Root string
}

// Name returns the tool's dispatch name.
func (t *FindFileTool) Name() string { return NameFindFile }

// Description returns the capability summary.
func (t *FindFileTool) Description() string {
	return "Finds files matching a glob pattern (supports recursive ** patterns)"
}

// Schema returns the parameter schema.
func (t *FindFileTool) Schema() map[string]ParamSpec {
	return map[string]ParamSpec{
		"pattern": {Type: "string", Description: "Glob pattern, e.g. **/*.go", Required: true},
	}
}

// Run returns {matches, pattern} where matches is a list of relative paths.
func (t *FindFileTool) Run(ctx context.Context, params map[string]any) (any, error) {
	pattern, err := stringParam(params, "pattern")
	if err != nil {
		return nil, err
	}

	root := t.Root
	if root == "" {
		root = "."
	}

	// filepath.Glob has no ** support, so recursive patterns walk the tree
	// and match against the basename-level suffix of the pattern. The walk
	// is anchored at the literal directory prefix before the first "**",
	// so "src/**/*.go" never matches files outside src/.
	var matches []any
	if strings.Contains(pattern, "**") {
		suffix := pattern[strings.LastIndex(pattern, "**")+2:]
		suffix = strings.TrimPrefix(suffix, "/")

		walkRoot := root
		prefix := pattern[:strings.Index(pattern, "**")]
		if idx := strings.LastIndex(prefix, "/"); idx >= 0 {
			walkRoot = filepath.Join(root, prefix[:idx])
		}

		err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil // skip unreadable entries
			}
			if d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			ok, _ := filepath.Match(suffix, filepath.Base(rel))
			if ok {
				matches = append(matches, rel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	} else {
		found, globErr := filepath.Glob(filepath.Join(root, pattern))
		if globErr != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, globErr)
		}
		for _, path := range found {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			matches = append(matches, rel)
		}
	}

	return map[string]any{
		"matches": matches,
		"pattern": pattern,
	}, nil
}

// stringParam extracts a required string parameter.
func stringParam(params map[string]any, name string) (string, error) {
	raw, ok := params[name]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T", name, raw)
	}
	return s, nil
}

// resolvePath joins path under root and rejects escapes above it.
func resolvePath(root, path string) (string, error) {
	if root == "" {
		return path, nil
	}
	joined := filepath.Join(root, path)
	rel, err := filepath.Rel(root, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes workspace root", path)
	}
	return joined, nil
}
