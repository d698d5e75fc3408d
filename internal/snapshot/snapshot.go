// Package snapshot captures before/after views of workspace files around
// shell command execution so results can carry a change audit.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FileState records the content hash and size of one file.
type FileState struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Snapshot is the state of the watched tree at one point in time.
type Snapshot struct {
	Files map[string]FileState `json:"files"`
}

// Diff summarizes the changes between two snapshots.
type Diff struct {
	Created  []string `json:"created,omitempty"`
	Modified []string `json:"modified,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
}

// Empty reports whether the diff contains no changes.
func (d Diff) Empty() bool {
	return len(d.Created) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}

// Manager takes snapshots of a workspace directory. Only regular files are
// tracked; directories named in Ignore (plus their subtrees) are skipped.
type Manager struct {
	Root   string
	Ignore []string
}

// NewManager creates a snapshot manager for the given root.
// The .git and .stagehand directories are ignored by default.
func NewManager(root string) *Manager {
	return &Manager{
		Root:   root,
		Ignore: []string{".git", ".stagehand", "node_modules"},
	}
}

// Take walks the root and records a hash per file.
func (m *Manager) Take() (*Snapshot, error) {
	snap := &Snapshot{Files: make(map[string]FileState)}
	if m.Root == "" {
		return snap, nil
	}

	err := filepath.WalkDir(m.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are not part of the audit
		}
		rel, relErr := filepath.Rel(m.Root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			for _, ignored := range m.Ignore {
				if d.Name() == ignored {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		sum := sha256.Sum256(data)
		snap.Files[rel] = FileState{
			Path: rel,
			Hash: hex.EncodeToString(sum[:]),
			Size: int64(len(data)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Compare computes the change set from before to after.
func Compare(before, after *Snapshot) Diff {
	var diff Diff
	if before == nil || after == nil {
		return diff
	}

	for path, state := range after.Files {
		prev, existed := before.Files[path]
		switch {
		case !existed:
			diff.Created = append(diff.Created, path)
		case prev.Hash != state.Hash:
			diff.Modified = append(diff.Modified, path)
		}
	}
	for path := range before.Files {
		if _, exists := after.Files[path]; !exists {
			diff.Deleted = append(diff.Deleted, path)
		}
	}

	sort.Strings(diff.Created)
	sort.Strings(diff.Modified)
	sort.Strings(diff.Deleted)
	return diff
}
