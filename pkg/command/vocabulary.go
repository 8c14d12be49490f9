package command

import "strings"

// Vocabulary holds the phrase lists and thresholds the parser matches against.
type Vocabulary struct {
	// WakePhrases are tried in order; the first match wins.
	WakePhrases []string `yaml:"wake_phrases"`

	// EndPhrases signal that the speaker has finished a command.
	EndPhrases []string `yaml:"end_phrases"`

	// IntentKeywords route a command to the automation tool when any of them
	// occurs as a substring of the cleaned command.
	IntentKeywords []string `yaml:"intent_keywords"`

	// MinCommandWords is the token count at which a final transcript is
	// treated as a complete command even without an end phrase.
	MinCommandWords int `yaml:"min_command_words"`

	// Confidence assigned to automation and chat classifications.
	ClaudeConfidence float64 `yaml:"claude_confidence"`
	ChatConfidence   float64 `yaml:"chat_confidence"`
}

// DefaultVocabulary returns the stock phrase lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		WakePhrases: []string{
			"hey claude",
			"hey claude code",
			"claude code",
			"claude",
		},
		EndPhrases: []string{
			"that's it",
			"that's all",
			"end command",
			"done",
			"thank you",
			"thanks",
		},
		IntentKeywords: []string{
			"create", "write", "make", "build", "generate", "add",
			"file", "script", "code", "function", "class", "component",
			"fix", "debug", "refactor", "update", "modify", "change",
			"delete", "remove", "install", "run", "execute", "test",
			"git", "commit", "push", "pull", "branch",
			"deploy", "configure", "setup", "initialize",
		},
		MinCommandWords:  3,
		ClaudeConfidence: 0.9,
		ChatConfidence:   0.7,
	}
}

// normalized lower-cases every phrase, drops blanks and fills zero thresholds
// from the defaults.
func (v Vocabulary) normalized() Vocabulary {
	def := DefaultVocabulary()
	out := Vocabulary{
		WakePhrases:      lowerAll(v.WakePhrases),
		EndPhrases:       lowerAll(v.EndPhrases),
		IntentKeywords:   lowerAll(v.IntentKeywords),
		MinCommandWords:  v.MinCommandWords,
		ClaudeConfidence: v.ClaudeConfidence,
		ChatConfidence:   v.ChatConfidence,
	}
	if len(out.WakePhrases) == 0 {
		out.WakePhrases = def.WakePhrases
	}
	if out.MinCommandWords <= 0 {
		out.MinCommandWords = def.MinCommandWords
	}
	if out.ClaudeConfidence == 0 {
		out.ClaudeConfidence = def.ClaudeConfidence
	}
	if out.ChatConfidence == 0 {
		out.ChatConfidence = def.ChatConfidence
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
