package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	reWholeFence = regexp.MustCompile("(?s)^```[a-zA-Z0-9_+-]*[ \t]*\n?(.*?)\n?```$")
	reJSONFence  = regexp.MustCompile("(?s)```(?:json|JSON)[ \t]*\n(.*?)\n?```")
)

// StripCodeFence removes a markdown fence wrapping the whole text.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if m := reWholeFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// maxCandidates bounds how many bracket positions are tried in a reply.
const maxCandidates = 32

// jsonCandidates returns the substrings of text that may hold its JSON value,
// most likely first. whole reports whether the reply is JSON from its first
// byte (a json fence or a bare value), which is the only case worth repairing.
func jsonCandidates(text string) (candidates []string, whole bool) {
	text = StripCodeFence(text)
	if m := reJSONFence.FindStringSubmatch(text); m != nil {
		return []string{strings.TrimSpace(m[1])}, true
	}

	for i := 0; i < len(text) && len(candidates) < maxCandidates; i++ {
		closer := byte('}')
		switch text[i] {
		case '{':
		case '[':
			closer = ']'
		default:
			continue
		}
		end := strings.LastIndexByte(text, closer)
		if end < i {
			// Truncated output; jsonrepair can close it.
			candidates = append(candidates, text[i:])
		} else {
			candidates = append(candidates, text[i:end+1])
		}
	}
	return candidates, len(candidates) > 0 && (text[0] == '{' || text[0] == '[')
}

// ExtractJSON returns the most likely JSON value embedded in a model reply.
func ExtractJSON(text string) string {
	candidates, _ := jsonCandidates(text)
	if len(candidates) == 0 {
		return StripCodeFence(text)
	}
	return candidates[0]
}

// DecodeJSON decodes the first valid JSON value in text into out. When none
// is valid and the reply is JSON from its first byte, common model mistakes
// (trailing commas, single quotes, truncation) are repaired. Bracketed prose
// is never repaired.
func DecodeJSON(text string, out any) error {
	candidates, whole := jsonCandidates(text)
	if len(candidates) == 0 {
		return fmt.Errorf("no JSON found in response")
	}

	for _, candidate := range candidates {
		if json.Valid([]byte(candidate)) {
			if err := json.Unmarshal([]byte(candidate), out); err != nil {
				return fmt.Errorf("invalid JSON in response: %w", err)
			}
			return nil
		}
	}
	if !whole {
		return fmt.Errorf("invalid JSON in response")
	}

	repaired, err := jsonrepair.JSONRepair(candidates[0])
	if err != nil {
		return fmt.Errorf("invalid JSON in response: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("invalid JSON in response after repair: %w", err)
	}
	return nil
}
