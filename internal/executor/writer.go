package executor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cexll/firstfix/internal/agent"
	"github.com/cexll/firstfix/internal/repocontext"
)

// writeChanges writes every change below workdir. Paths are re-checked
// against the safety filter and may not escape workdir through symlinks.
func writeChanges(workdir string, changes []agent.FileChange) error {
	root, err := filepath.EvalSymlinks(workdir)
	if err != nil {
		return fmt.Errorf("resolve workdir: %w", err)
	}

	for _, change := range changes {
		rel := repocontext.NormalizePath(change.Path)
		if rel != change.Path || !repocontext.IsSafePath(rel) {
			return fmt.Errorf("refusing to write unsafe path %q", change.Path)
		}

		target := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", rel, err)
		}
		if err := ensureWithin(root, target); err != nil {
			return err
		}

		mode := os.FileMode(0o644)
		if info, err := os.Lstat(target); err == nil {
			if info.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("refusing to write through symlink %s", rel)
			}
			mode = info.Mode().Perm()
		}

		if err := os.WriteFile(target, []byte(change.Content), mode); err != nil {
			return fmt.Errorf("failed to write file %s: %w", rel, err)
		}
		log.Printf("[Pipeline] Applied changes to %s", rel)
	}
	return nil
}

// ensureWithin checks that the resolved parent directory of target lies
// inside root.
func ensureWithin(root, target string) error {
	parent, err := filepath.EvalSymlinks(filepath.Dir(target))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", target, err)
	}
	rel, err := filepath.Rel(root, parent)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to write outside the repository: %s", target)
	}
	return nil
}
