package voice

import (
	"strings"
	"unicode/utf8"
)

// Response extraction limits.
const (
	maxResponseLines = 3
	maxResponseRunes = 200
	minLineRunes     = 6

	// FallbackResponse is spoken when the output has nothing speakable.
	FallbackResponse = "Done."
)

// ExtractResponse picks a short speakable summary out of CLI output. Fenced
// code blocks, file paths, shell prompts and "created <path>" lines are
// skipped; the first three remaining lines longer than five characters are
// joined and capped at 200 characters.
func ExtractResponse(output string) string {
	var (
		kept    []string
		inFence bool
	)
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if inFence || !speakable(line) {
			continue
		}

		kept = append(kept, line)
		if len(kept) == maxResponseLines {
			break
		}
	}

	if len(kept) == 0 {
		return FallbackResponse
	}
	resp := strings.Join(kept, " ")
	if utf8.RuneCountInString(resp) > maxResponseRunes {
		resp = string([]rune(resp)[:maxResponseRunes-3]) + "..."
	}
	return resp
}

func speakable(line string) bool {
	switch {
	case strings.HasPrefix(line, "/"), strings.HasPrefix(line, "./"):
		return false
	case strings.HasPrefix(line, "$"), strings.HasPrefix(line, ">"):
		return false
	case strings.Contains(strings.ToLower(line), "created") && strings.Contains(line, "/"):
		return false
	}
	return utf8.RuneCountInString(line) >= minLineRunes
}
