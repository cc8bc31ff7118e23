package repocontext

import (
	"path"
	"strings"
)

var (
	// Directories never read into context and never written to.
	deniedDirs = map[string]struct{}{
		".git":         {},
		".hg":          {},
		".svn":         {},
		"node_modules": {},
		"vendor":       {},
		"__pycache__":  {},
		".venv":        {},
		"venv":         {},
		".tox":         {},
		".mypy_cache":  {},
		"dist":         {},
		"build":        {},
		".idea":        {},
		".vscode":      {},
		".ssh":         {},
		".aws":         {},
		".gnupg":       {},
	}

	sensitiveExtensions = map[string]struct{}{
		".env":      {},
		".pem":      {},
		".key":      {},
		".p12":      {},
		".pfx":      {},
		".crt":      {},
		".cer":      {},
		".keystore": {},
		".jks":      {},
		".secret":   {},
		".gpg":      {},
		".asc":      {},
	}

	sensitiveNames = map[string]struct{}{
		"id_rsa":           {},
		"id_dsa":           {},
		"id_ecdsa":         {},
		"id_ed25519":       {},
		"credentials":      {},
		"credentials.json": {},
		".npmrc":           {},
		".pypirc":          {},
		".netrc":           {},
		".htpasswd":        {},
		"secrets.yml":      {},
		"secrets.yaml":     {},
	}
)

// NormalizePath converts a model- or filesystem-supplied path into a clean
// POSIX relative path. It returns "" when nothing usable remains.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, "`\"'")
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

// IsSafePath reports whether rel may be read into a prompt or written by the
// bot. rel must already be relative to the repository root.
func IsSafePath(rel string) bool {
	if rel == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, "\\") {
		return false
	}
	clean := path.Clean(rel)
	if clean != rel || clean == "." {
		return false
	}

	segments := strings.Split(clean, "/")
	for _, seg := range segments {
		if seg == ".." {
			return false
		}
		if _, denied := deniedDirs[seg]; denied {
			return false
		}
	}

	// CI definitions run with repository secrets.
	if strings.HasPrefix(clean, ".github/workflows/") {
		return false
	}

	base := strings.ToLower(segments[len(segments)-1])
	if _, denied := sensitiveNames[base]; denied {
		return false
	}
	if base == ".env" || strings.HasPrefix(base, ".env.") {
		return false
	}
	if _, denied := sensitiveExtensions[strings.ToLower(path.Ext(base))]; denied {
		return false
	}
	return true
}

// isDeniedDir reports whether a directory name is skipped during the walk.
func isDeniedDir(name string) bool {
	_, denied := deniedDirs[name]
	return denied
}
