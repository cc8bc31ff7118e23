package branch

import (
	"fmt"
	"regexp"
	"strings"
)

// Prefix is the namespace for every branch the bot pushes.
const Prefix = "firstfix/"

var (
	reNonSlug   = regexp.MustCompile(`[^a-z0-9-]+`)
	reDashes    = regexp.MustCompile(`-+`)
	reValidName = regexp.MustCompile(`^firstfix/issue-[0-9]+(-[a-z0-9-]+)?$`)
)

// GenerateBranchName builds firstfix/issue-{number}-{slug}, at most 48 characters.
func GenerateBranchName(issueNumber int, issueTitle string) string {
	slug := slugify(issueTitle)

	prefix := fmt.Sprintf("%sissue-%d", Prefix, issueNumber)
	maxSlugLen := 48 - len(prefix) - 1
	if maxSlugLen < 0 {
		maxSlugLen = 0
	}
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	slug = strings.TrimRight(slug, "-")

	if slug == "" {
		return prefix
	}
	return prefix + "-" + slug
}

// slugify: "Fix login bug!" -> "fix-login-bug"
func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = reNonSlug.ReplaceAllString(s, "")
	s = reDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ValidateBranchName reports whether name is a branch this bot could have generated.
func ValidateBranchName(name string) bool {
	if len(name) > 100 {
		return false
	}
	return reValidName.MatchString(name)
}
