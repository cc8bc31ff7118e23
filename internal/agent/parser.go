package agent

import (
	"fmt"
	"log"
	"regexp"
	"strings"
)

// FileChange is a complete new file content proposed by the implementer.
type FileChange struct {
	Path    string
	Content string
	// Original is the content before the change; empty for new files.
	Original string
	New      bool
}

// ParseResult is the structured form of an implementer response.
type ParseResult struct {
	Files   []FileChange
	Summary string
}

var (
	reXMLFile       = regexp.MustCompile(`(?s)<file\s+path=["']([^"']+)["']\s*>\s*<content>\n?(.*?)</content>\s*</file>`)
	reFencedPath    = regexp.MustCompile("```(\\w+)[ \\t]+([^\\s]*[./][^\\s]*)[ \\t]*\\n([\\s\\S]*?)\\n```")
	reHeaderedFence = regexp.MustCompile(`(?s)\*\*([^*\n]+)\*\*:?[ \t]*\n` + "`{3}" + `[\w+-]*[ \t]*\n(.*?)\n` + "`{3}")
	reSummaryTag    = regexp.MustCompile(`(?s)<summary>\s*(.*?)\s*</summary>`)
	reSummaryHeader = regexp.MustCompile(`(?s)#+\s*Summary\s*\n(.*?)(?:\n#+|$)`)

	placeholderPaths = map[string]struct{}{
		"path/to/file":             {},
		"path/to/file.ext":         {},
		"relative/path/to/file.go": {},
	}

	placeholderContentSnippets = []string{
		"... complete file content ...",
		"... full file content here ...",
		"entire updated file content here",
	}
)

// ParseResponse extracts file blocks and a summary from an implementer
// response. XML blocks are preferred; fenced markdown blocks labelled with a
// path are the fallback.
func ParseResponse(response string) (*ParseResult, error) {
	text := strings.TrimSpace(response)
	if text == "" {
		return nil, fmt.Errorf("no content found in response")
	}

	files := extractXMLFileBlocks(text)
	if len(files) == 0 {
		files = extractMarkdownFileBlocks(text)
	}
	files = filterPlaceholderFiles(files)

	summary := extractSummary(text)
	if len(files) == 0 {
		return nil, fmt.Errorf("no file changes found in response")
	}
	if summary == "" || strings.Contains(summary, "One paragraph describing the change") {
		summary = "Code changes applied"
	}

	return &ParseResult{Files: files, Summary: summary}, nil
}

func extractXMLFileBlocks(response string) []FileChange {
	var files []FileChange
	for _, match := range reXMLFile.FindAllStringSubmatch(response, -1) {
		path := strings.TrimSpace(match[1])
		if path == "" {
			continue
		}
		files = append(files, FileChange{Path: path, Content: match[2]})
	}
	return files
}

func extractMarkdownFileBlocks(response string) []FileChange {
	var files []FileChange

	for _, match := range reFencedPath.FindAllStringSubmatch(response, -1) {
		path := strings.TrimSpace(match[2])
		if path != "" {
			files = append(files, FileChange{Path: path, Content: match[3] + "\n"})
		}
	}

	for _, match := range reHeaderedFence.FindAllStringSubmatch(response, -1) {
		path := strings.TrimSuffix(strings.TrimSpace(match[1]), ":")
		path = strings.Trim(path, "`")
		if path != "" && (strings.Contains(path, ".") || strings.Contains(path, "/")) {
			files = append(files, FileChange{Path: path, Content: match[2] + "\n"})
		}
	}

	return files
}

func isPlaceholderPath(path string) bool {
	_, ok := placeholderPaths[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

func isPlaceholderContent(content string) bool {
	for _, snippet := range placeholderContentSnippets {
		if strings.Contains(content, snippet) {
			return true
		}
	}
	return false
}

func filterPlaceholderFiles(files []FileChange) []FileChange {
	var filtered []FileChange
	for _, file := range files {
		if isPlaceholderPath(file.Path) {
			log.Printf("[Agent] Ignoring placeholder file path entry: %s", file.Path)
			continue
		}
		if isPlaceholderContent(file.Content) {
			log.Printf("[Agent] Ignoring placeholder file content for path: %s", file.Path)
			continue
		}
		filtered = append(filtered, file)
	}
	return filtered
}

func extractSummary(response string) string {
	if m := reSummaryTag.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := reSummaryHeader.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
