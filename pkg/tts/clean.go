package tts

import (
	"regexp"
	"strings"
)

var (
	stageDirection = regexp.MustCompile(`\s*\[[^\]]+\]\s*`)
	emote          = regexp.MustCompile(`\*[^*]+\*`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// CleanForSpeech removes bracketed stage directions like "[nods]" and
// asterisk emotes like "*smiles*", then collapses whitespace.
func CleanForSpeech(text string) string {
	text = stageDirection.ReplaceAllString(text, " ")
	text = emote.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
