package engine

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/pmorten/stagehand/internal/editor"
	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/tool"
)

// Reference patterns recognized in string parameter leaves.
var (
	previousStepRef = regexp.MustCompile(`^\$PREVIOUS_STEP\.([A-Za-z_][A-Za-z0-9_]*)$`)
	indexedStepRef  = regexp.MustCompile(`^\$STEP\[(\d+)\]\.([A-Za-z_][A-Za-z0-9_]*)(?:\[(\d+)\])?$`)
)

// alternativeProps maps a referenced property to the result properties tried
// when the named one is absent, in order.
var alternativeProps = map[string][]string{
	"paths":   {"matches", "files", "results", "found"},
	"path":    {"filePath", "sourcePath", "file", "matches", "output"},
	"content": {"text", "data", "source", "output"},
}

// fuzzyProps are the property words recognized in natural-language
// previous-step references such as "content from previous step".
var fuzzyProps = []string{"content", "output", "result", "text", "path"}

// sentinels maps editor-context reference strings to the context field they
// resolve to. Matching is exact after trimming and lowercasing.
var sentinels = map[string]string{
	"$current_file_content":             "content",
	"$current_file_path":                "path",
	"$current_selection":                "selection",
	"content of the currently open file": "content",
	"currently open file content":        "content",
	"current file content":               "content",
	"path of the currently open file":    "path",
	"currently open file path":           "path",
	"current file path":                  "path",
	"currently selected text":            "selection",
	"current selection":                  "selection",
	"selected text":                      "selection",
}

// commandPlaceholders are literal template values the planner sometimes emits
// instead of a concrete shell command. They are replaced with a safe no-op.
var commandPlaceholders = map[string]bool{
	"<command>":           true,
	"{command}":           true,
	"[command]":           true,
	"command_placeholder": true,
	"your command here":   true,
	"command to execute":  true,
}

// Resolver rewrites step parameters by substituting references to prior step
// results and editor context. Resolution is deliberately lenient: a reference
// that cannot be resolved leaves the original string in place so one bad
// reference does not abort the whole run.
type Resolver struct {
	editor editor.Accessor
	logger Logger
}

// NewResolver creates a Resolver. Both collaborators may be nil; without an
// editor accessor, sentinel references degrade to their literal strings.
func NewResolver(editorAccessor editor.Accessor, logger Logger) *Resolver {
	if editorAccessor == nil {
		editorAccessor = editor.NoEditor
	}
	return &Resolver{editor: editorAccessor, logger: logger}
}

// Resolve returns a copy of params with all recognized references replaced.
// Inputs are never mutated. Non-string leaves pass through unchanged, and
// resolving an already-concrete parameter map is a no-op.
func (r *Resolver) Resolve(params map[string]any, prior []models.StepResult) map[string]any {
	if params == nil {
		return nil
	}

	resolved := make(map[string]any, len(params))
	for key, value := range params {
		resolved[key] = r.resolveValue(value, prior)
	}
	return resolved
}

// resolveValue recurses through nested maps and arrays.
func (r *Resolver) resolveValue(value any, prior []models.StepResult) any {
	switch v := value.(type) {
	case string:
		return r.resolveString(v, prior)
	case map[string]any:
		nested := make(map[string]any, len(v))
		for key, inner := range v {
			nested[key] = r.resolveValue(inner, prior)
		}
		return nested
	case []any:
		nested := make([]any, len(v))
		for i, inner := range v {
			nested[i] = r.resolveValue(inner, prior)
		}
		return nested
	default:
		return value
	}
}

// resolveString applies the reference grammar in priority order:
// editor sentinels, previous-step references, indexed step references,
// command placeholders. Anything else is a literal.
func (r *Resolver) resolveString(s string, prior []models.StepResult) any {
	if resolved, ok := r.resolveSentinel(s); ok {
		return resolved
	}
	if resolved, ok := r.resolvePreviousStep(s, prior); ok {
		return resolved
	}
	if resolved, ok := r.resolveIndexedStep(s, prior); ok {
		return resolved
	}
	if commandPlaceholders[strings.ToLower(strings.TrimSpace(s))] {
		r.debugf("replacing command placeholder %q with safe no-op", s)
		return tool.SafeNoOpCommand
	}
	return s
}

// resolveSentinel resolves editor-context references. An unresolved sentinel
// (no editor attached, or the field is empty) degrades to the literal string.
func (r *Resolver) resolveSentinel(s string) (any, bool) {
	field, isSentinel := sentinels[strings.ToLower(strings.TrimSpace(s))]
	if !isSentinel {
		return nil, false
	}

	ctx, ok := r.editor.Current()
	if !ok {
		r.debugf("sentinel %q left unresolved: no editor context", s)
		return s, true
	}

	switch field {
	case "content":
		if ctx.Content != "" {
			return ctx.Content, true
		}
	case "path":
		if ctx.FilePath != "" {
			return ctx.FilePath, true
		}
	case "selection":
		if ctx.Selection != "" {
			return ctx.Selection, true
		}
	}

	r.debugf("sentinel %q left unresolved: editor field empty", s)
	return s, true
}

// resolvePreviousStep resolves $PREVIOUS_STEP.prop and fuzzy equivalents
// like "content from previous step" against the last prior result.
func (r *Resolver) resolvePreviousStep(s string, prior []models.StepResult) (any, bool) {
	prop := ""
	if m := previousStepRef.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
		prop = m[1]
	} else {
		lower := strings.ToLower(s)
		if !strings.Contains(lower, "previous step") {
			return nil, false
		}
		for _, candidate := range fuzzyProps {
			if strings.Contains(lower, candidate) {
				prop = candidate
				break
			}
		}
		if prop == "" {
			return nil, false
		}
	}

	if len(prior) == 0 {
		r.debugf("reference %q left unresolved: no prior results", s)
		return s, true
	}
	value, ok := lookupProperty(prior[len(prior)-1], prop)
	if !ok {
		r.debugf("reference %q left unresolved: property %q not found", s, prop)
		return s, true
	}
	return unwrapArray(value, -1, s, r), true
}

// resolveIndexedStep resolves $STEP[n].prop and $STEP[n].prop[idx].
func (r *Resolver) resolveIndexedStep(s string, prior []models.StepResult) (any, bool) {
	m := indexedStepRef.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, false
	}

	stepIndex, _ := strconv.Atoi(m[1])
	prop := m[2]
	arrayIndex := -1
	if m[3] != "" {
		arrayIndex, _ = strconv.Atoi(m[3])
	}

	if stepIndex < 0 || stepIndex >= len(prior) {
		r.debugf("reference %q left unresolved: step index %d out of range", s, stepIndex)
		return s, true
	}

	value, ok := lookupProperty(prior[stepIndex], prop)
	if !ok {
		r.debugf("reference %q left unresolved: property %q not found", s, prop)
		return s, true
	}
	return unwrapArray(value, arrayIndex, s, r), true
}

// lookupProperty finds prop on a result object, trying the alternative
// property map and, as a last resort, the sole key of a single-key object.
func lookupProperty(result models.StepResult, prop string) (any, bool) {
	obj, ok := result.ResultObject()
	if !ok {
		// A bare (non-object) result satisfies generic property names.
		if prop == "result" || prop == "output" {
			return result.Result, result.Result != nil
		}
		return nil, false
	}

	if value, ok := obj[prop]; ok {
		return value, true
	}
	for _, alternative := range alternativeProps[prop] {
		if value, ok := obj[alternative]; ok {
			return value, true
		}
	}
	if len(obj) == 1 {
		for _, value := range obj {
			return value, true
		}
	}
	return nil, false
}

// unwrapArray applies array indexing rules: an explicit index selects an
// element (out of range degrades to the original string), no index unwraps
// single-element arrays and passes multi-element arrays through as-is.
func unwrapArray(value any, index int, original string, r *Resolver) any {
	arr, isArray := value.([]any)
	if !isArray {
		if index >= 0 {
			// Index on a non-array is an unresolvable reference.
			r.debugf("reference %q left unresolved: value is not an array", original)
			return original
		}
		return value
	}

	if index >= 0 {
		if index >= len(arr) {
			r.debugf("reference %q left unresolved: index %d out of range (len %d)", original, index, len(arr))
			return original
		}
		return arr[index]
	}
	if len(arr) == 1 {
		return arr[0]
	}
	return arr
}

// pathShapedFields are checked in order when copying provenance paths.
var pathShapedFields = []string{"filePath", "sourcePath", "path"}

// EnrichWithFileInfo copies file-path provenance onto steps that carry
// content without a source. It searches prior results backward for the
// result that produced an identical content value and copies its path-shaped
// field into both sourcePath and filePath. When no provenance match exists
// and the step looks like a code-analysis step, the active editor's file
// path is used instead. Params are never mutated; a copy is returned.
func (r *Resolver) EnrichWithFileInfo(params map[string]any, prior []models.StepResult) map[string]any {
	if params == nil {
		return nil
	}

	content, hasContent := params["content"]
	_, hasSource := params["sourcePath"]
	_, hasFile := params["filePath"]
	if !hasContent || hasSource || hasFile {
		return params
	}

	enriched := make(map[string]any, len(params)+2)
	for key, value := range params {
		enriched[key] = value
	}

	if path, ok := findContentProvenance(content, prior); ok {
		enriched["sourcePath"] = path
		enriched["filePath"] = path
		return enriched
	}

	// Code-analysis steps fall back to the active editor file.
	_, hasFocus := params["focus"]
	_, hasLanguage := params["language"]
	_, hasQuery := params["query"]
	if hasFocus || hasLanguage || hasQuery {
		if ctx, ok := r.editor.Current(); ok && ctx.FilePath != "" {
			enriched["sourcePath"] = ctx.FilePath
			enriched["filePath"] = ctx.FilePath
			return enriched
		}
	}

	return params
}

// findContentProvenance searches backward for the prior result whose content
// equals the given value and returns its path-shaped field, checking the
// result object first and the originating step's params second.
func findContentProvenance(content any, prior []models.StepResult) (string, bool) {
	for i := len(prior) - 1; i >= 0; i-- {
		obj, ok := prior[i].ResultObject()
		if !ok {
			continue
		}
		produced, ok := obj["content"]
		if !ok || !reflect.DeepEqual(produced, content) {
			continue
		}

		for _, field := range pathShapedFields {
			if path, ok := obj[field].(string); ok && path != "" {
				return path, true
			}
		}
		for _, field := range pathShapedFields {
			if path, ok := prior[i].Step.Params[field].(string); ok && path != "" {
				return path, true
			}
		}
	}
	return "", false
}

func (r *Resolver) debugf(format string, args ...any) {
	if r.logger != nil {
		r.logger.LogDebug(fmt.Sprintf(format, args...))
	}
}
