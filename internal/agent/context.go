package agent

import (
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ProjectContext is the read-only view of the project shared by all workers
// in a run. Workers must not mutate it.
type ProjectContext struct {
	// Root is the project directory on disk. Informational when FS is set.
	Root string
	// FS is the file system workers read from. Defaults to os.DirFS(Root).
	FS fs.FS
	// Metadata holds free-form project facts (language, framework, ...).
	Metadata map[string]string
}

// NewProjectContext builds a context rooted at dir.
func NewProjectContext(dir string) ProjectContext {
	return ProjectContext{
		Root:     dir,
		FS:       os.DirFS(dir),
		Metadata: make(map[string]string),
	}
}

// FileSystem returns FS, falling back to the root directory.
func (pc ProjectContext) FileSystem() fs.FS {
	if pc.FS != nil {
		return pc.FS
	}
	root := pc.Root
	if root == "" {
		root = "."
	}
	return os.DirFS(root)
}

// ResolveFiles expands the target's file patterns against the project file
// system. Plain paths are kept when they exist; doublestar patterns such as
// "**/*.go" are globbed. The result is sorted and free of duplicates. An empty
// target resolves to nothing.
func (pc ProjectContext) ResolveFiles(t Target) ([]string, error) {
	fsys := pc.FileSystem()
	seen := make(map[string]struct{})
	var files []string

	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, pattern := range t.Files {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid file pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			add(m)
		}
	}

	sort.Strings(files)
	return files, nil
}
