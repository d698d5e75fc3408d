// Package editor exposes the editor/session state the variable resolver
// consults for sentinel references. The orchestrator core treats the editor
// as an external collaborator; embedders provide their own accessor.
package editor

// Context is a snapshot of the editor state at resolution time.
type Context struct {
	FilePath  string // Path of the currently open file, if any
	Content   string // Content of the currently open file, if any
	Selection string // Currently selected text, if any
}

// Accessor provides the current editor context.
// Implementations returning (nil, false) signal that no editor is attached,
// in which case sentinel references degrade to their literal strings.
type Accessor interface {
	Current() (*Context, bool)
}

// StaticAccessor returns a fixed context. Used by the CLI (which has no live
// editor) and by tests.
type StaticAccessor struct {
	Ctx *Context
}

// Current returns the configured context.
func (s *StaticAccessor) Current() (*Context, bool) {
	if s == nil || s.Ctx == nil {
		return nil, false
	}
	return s.Ctx, true
}

// NoEditor is an Accessor with no attached editor.
var NoEditor Accessor = &StaticAccessor{}
