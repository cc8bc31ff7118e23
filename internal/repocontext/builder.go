// Package repocontext turns a cloned repository into prompt context.
package repocontext

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultExtensions are the text files read into context.
var DefaultExtensions = []string{
	".py", ".js", ".jsx", ".ts", ".tsx", ".md", ".rst", ".txt", ".html", ".css", ".scss",
	".go", ".rb", ".java", ".kt", ".rs", ".c", ".h", ".cpp", ".hpp", ".cs", ".php",
	".sh", ".json", ".yaml", ".yml", ".toml", ".cfg", ".ini", ".sql", ".vue", ".svelte",
}

// Options control how much of the repository is captured.
type Options struct {
	MaxTotalChars int
	MaxFileBytes  int64
	Extensions    []string
}

// File is one entry of the file tree.
type File struct {
	Path string
	Size int64
	// Truncated marks files listed in the tree whose content did not fit the budget.
	Truncated bool
}

// RepoContext maps relative paths to file content for a single run.
type RepoContext struct {
	Root     string
	Files    []File
	Contents map[string]string
	Chars    int
}

// Build walks root and collects text files allowed by IsSafePath.
func Build(root string, opts Options) (*RepoContext, error) {
	if opts.MaxTotalChars <= 0 {
		opts.MaxTotalChars = 300000
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 100000
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	rc := &RepoContext{
		Root:     root,
		Contents: make(map[string]string),
	}

	var candidates []File
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			log.Printf("[Context] Skipping %s: %v", p, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root && isDeniedDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, ok := allowed[strings.ToLower(filepath.Ext(rel))]; !ok {
			return nil
		}
		if !IsSafePath(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > opts.MaxFileBytes {
			return nil
		}
		candidates = append(candidates, File{Path: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	// Shallow files first: top-level sources and docs usually matter most.
	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := strings.Count(candidates[i].Path, "/"), strings.Count(candidates[j].Path, "/")
		if di != dj {
			return di < dj
		}
		return candidates[i].Path < candidates[j].Path
	})

	for _, f := range candidates {
		if rc.Chars >= opts.MaxTotalChars {
			f.Truncated = true
			rc.Files = append(rc.Files, f)
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil || !utf8.Valid(data) {
			continue
		}
		content := string(data)
		if rc.Chars+len(content) > opts.MaxTotalChars {
			f.Truncated = true
			rc.Files = append(rc.Files, f)
			continue
		}
		rc.Contents[f.Path] = content
		rc.Chars += len(content)
		rc.Files = append(rc.Files, f)
	}

	sort.Slice(rc.Files, func(i, j int) bool { return rc.Files[i].Path < rc.Files[j].Path })
	log.Printf("[Context] Collected %d files (%d with content, %d chars)", len(rc.Files), len(rc.Contents), rc.Chars)
	return rc, nil
}

// Has reports whether path is part of the file tree.
func (rc *RepoContext) Has(path string) bool {
	for _, f := range rc.Files {
		if f.Path == path {
			return true
		}
	}
	return false
}

// Content returns the content of path, reading it from disk when the budget
// excluded it from the initial walk.
func (rc *RepoContext) Content(path string) (string, bool) {
	if content, ok := rc.Contents[path]; ok {
		return content, true
	}
	if !rc.Has(path) || rc.Root == "" {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(rc.Root, filepath.FromSlash(path)))
	if err != nil || !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

// Tree renders the file list, one path per line.
func (rc *RepoContext) Tree() string {
	var b strings.Builder
	for _, f := range rc.Files {
		b.WriteString(f.Path)
		b.WriteByte('\n')
	}
	return b.String()
}

// Render renders the named files as prompt sections. Unknown paths are skipped.
func (rc *RepoContext) Render(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		content, ok := rc.Content(p)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n--- FILE: %s ---\n%s\n", p, content)
	}
	return b.String()
}
