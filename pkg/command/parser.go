// Package command segments a continuous speech-to-text stream into discrete
// spoken commands.
//
// A Parser starts IDLE and waits for a wake phrase. Once one is heard it
// moves to LISTENING and buffers the words that follow until the utterance
// looks complete: a final transcript that contains an end phrase or has
// enough words. The finished command is cleaned, classified as an
// automation request or a chat request, and handed back to the caller while
// the parser sits in PROCESSING. The caller returns it to IDLE with
// CommandCompleted once the command has been handled.
package command

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/teslashibe/reachy-voice/internal/callback"
)

// Mode is the parser's segmentation state.
type Mode string

// Parser modes.
const (
	ModeIdle       Mode = "idle"
	ModeListening  Mode = "listening"
	ModeProcessing Mode = "processing"
)

// Parsed is a finalized utterance.
type Parsed struct {
	RawText      string  `json:"raw_text"`
	Command      string  `json:"command"`
	IsClaudeCode bool    `json:"is_claude_code"`
	Confidence   float64 `json:"confidence"`
}

// Status is a snapshot of parser state.
type Status struct {
	Mode              Mode   `json:"mode"`
	CurrentTranscript string `json:"current_transcript"`
	CallbackCount     int    `json:"callback_count"`
}

var (
	leadingPunct  = regexp.MustCompile(`^[,.\s]+`)
	trailingPunct = regexp.MustCompile(`[,.\s]+$`)
)

// Parser is the wake-phrase state machine. It is safe for concurrent use.
type Parser struct {
	mu             sync.Mutex
	vocab          Vocabulary
	mode           Mode
	buffer         string
	listeningSince time.Time

	commandFns callback.List[func(Parsed)]
	modeFns    callback.List[func(Mode)]
	logger     *slog.Logger
}

// NewParser creates an idle parser for the given vocabulary.
func NewParser(vocab Vocabulary, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		vocab:  vocab.normalized(),
		mode:   ModeIdle,
		logger: logger.With("component", "command"),
	}
}

// SetVocabulary swaps the phrase lists. The current mode and buffer are kept.
func (p *Parser) SetVocabulary(vocab Vocabulary) {
	p.mu.Lock()
	p.vocab = vocab.normalized()
	p.mu.Unlock()
}

// Vocabulary returns the active phrase lists.
func (p *Parser) Vocabulary() Vocabulary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vocab
}

// Mode returns the current mode.
func (p *Parser) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// OnCommand registers fn to run synchronously whenever a command is
// finalized. The returned function removes it.
func (p *Parser) OnCommand(fn func(Parsed)) (remove func()) {
	return p.commandFns.Add(fn)
}

// OnModeChange registers fn to run on every mode transition.
func (p *Parser) OnModeChange(fn func(Mode)) (remove func()) {
	return p.modeFns.Add(fn)
}

// Process feeds one transcript into the state machine. It returns the
// finalized command when this transcript completes one.
func (p *Parser) Process(text string, isFinal bool) (*Parsed, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	p.mu.Lock()
	var (
		cmd     *Parsed
		changes []Mode
	)
	switch p.mode {
	case ModeIdle:
		remainder, ok := p.detectWake(text)
		if !ok {
			break
		}
		changes = append(changes, p.setMode(ModeListening)...)
		p.buffer = remainder
		if isFinal && remainder != "" && p.complete(remainder) {
			var c []Mode
			cmd, c = p.finalize(remainder)
			changes = append(changes, c...)
		}

	case ModeListening:
		// Interim results restate the whole utterance so far, so the buffer
		// is replaced rather than appended.
		remainder, _ := p.detectWake(text)
		p.buffer = remainder
		if isFinal && p.complete(remainder) {
			cmd, changes = p.finalize(remainder)
		}

	case ModeProcessing:
	}
	cmdFns, modeFns := p.callbacks()
	p.mu.Unlock()

	p.notify(changes, modeFns, cmd, cmdFns)
	if cmd == nil {
		return nil, false
	}
	return cmd, true
}

// ForceComplete finalizes whatever has been buffered while LISTENING.
func (p *Parser) ForceComplete() (*Parsed, bool) {
	p.mu.Lock()
	if p.mode != ModeListening || strings.TrimSpace(p.buffer) == "" {
		p.mu.Unlock()
		return nil, false
	}
	cmd, changes := p.finalize(p.buffer)
	cmdFns, modeFns := p.callbacks()
	p.mu.Unlock()

	p.notify(changes, modeFns, cmd, cmdFns)
	return cmd, true
}

// ListeningFor reports how long the parser has been LISTENING, or zero in
// any other mode.
func (p *Parser) ListeningFor() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != ModeListening {
		return 0
	}
	return time.Since(p.listeningSince)
}

// Reset clears the buffer and returns to IDLE.
func (p *Parser) Reset() {
	p.toIdle()
}

// CommandCompleted marks the current command as handled and returns to IDLE.
func (p *Parser) CommandCompleted() {
	p.toIdle()
}

// Status returns a snapshot of the parser.
func (p *Parser) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Mode:              p.mode,
		CurrentTranscript: p.buffer,
		CallbackCount:     p.commandFns.Len(),
	}
}

// Clean strips wake phrases, end phrases and stray punctuation from text.
// Cleaning an already clean command returns it unchanged.
func (p *Parser) Clean(text string) string {
	p.mu.Lock()
	v := p.vocab
	p.mu.Unlock()
	return clean(v, text)
}

// Classify reports whether command is an automation request and the
// confidence assigned to that decision.
func (p *Parser) Classify(command string) (bool, float64) {
	p.mu.Lock()
	v := p.vocab
	p.mu.Unlock()
	return classify(v, command)
}

func (p *Parser) toIdle() {
	p.mu.Lock()
	p.buffer = ""
	changes := p.setMode(ModeIdle)
	_, modeFns := p.callbacks()
	p.mu.Unlock()
	p.notify(changes, modeFns, nil, nil)
}

// setMode must be called with mu held. It returns the new mode when it
// changed so the caller can notify after unlocking.
func (p *Parser) setMode(m Mode) []Mode {
	if p.mode == m {
		return nil
	}
	p.logger.Debug("mode change", "from", p.mode, "to", m)
	p.mode = m
	if m == ModeListening {
		p.listeningSince = time.Now()
	}
	return []Mode{m}
}

func (p *Parser) finalize(text string) (*Parsed, []Mode) {
	changes := p.setMode(ModeProcessing)
	command := clean(p.vocab, text)
	isClaude, conf := classify(p.vocab, command)
	return &Parsed{
		RawText:      text,
		Command:      command,
		IsClaudeCode: isClaude,
		Confidence:   conf,
	}, changes
}

// callbacks snapshots the listeners in registration order.
func (p *Parser) callbacks() ([]func(Parsed), []func(Mode)) {
	return p.commandFns.Snapshot(), p.modeFns.Snapshot()
}

func (p *Parser) notify(changes []Mode, modeFns []func(Mode), cmd *Parsed, cmdFns []func(Parsed)) {
	for _, m := range changes {
		for _, fn := range modeFns {
			p.safely("mode", func() { fn(m) })
		}
	}
	if cmd == nil {
		return
	}
	p.logger.Info("command detected", "command", cmd.Command, "claude_code", cmd.IsClaudeCode)
	for _, fn := range cmdFns {
		p.safely("command", func() { fn(*cmd) })
	}
}

func (p *Parser) safely(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("callback panicked", "kind", kind, "panic", r)
		}
	}()
	fn()
}

// detectWake looks for a wake phrase and returns the text after it. When no
// phrase is present the whole text is returned.
func (p *Parser) detectWake(text string) (string, bool) {
	lower, text := foldPair(text)
	for _, wake := range p.vocab.WakePhrases {
		idx := strings.Index(lower, wake)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(text[idx+len(wake):])
		return leadingPunct.ReplaceAllString(rest, ""), true
	}
	return text, false
}

func (p *Parser) complete(remainder string) bool {
	return hasEndPhrase(p.vocab, remainder) || len(strings.Fields(remainder)) >= p.vocab.MinCommandWords
}

func hasEndPhrase(v Vocabulary, text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range v.EndPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func clean(v Vocabulary, text string) string {
	for {
		before := text
		text = strings.TrimSpace(text)
		text = leadingPunct.ReplaceAllString(text, "")
		text = trailingPunct.ReplaceAllString(text, "")

		lower, orig := foldPair(text)
		for _, wake := range v.WakePhrases {
			if strings.HasPrefix(lower, wake) {
				orig = strings.TrimSpace(orig[len(wake):])
				lower, orig = foldPair(orig)
			}
		}
		for _, end := range v.EndPhrases {
			if strings.HasSuffix(lower, end) {
				orig = strings.TrimSpace(orig[:len(orig)-len(end)])
				lower, orig = foldPair(orig)
			}
		}
		text = leadingPunct.ReplaceAllString(orig, "")
		text = strings.TrimSpace(trailingPunct.ReplaceAllString(text, ""))
		if text == before {
			return text
		}
	}
}

func classify(v Vocabulary, command string) (bool, float64) {
	lower := strings.ToLower(command)
	for _, kw := range v.IntentKeywords {
		if strings.Contains(lower, kw) {
			return true, v.ClaudeConfidence
		}
	}
	return false, v.ChatConfidence
}

// foldPair returns a lower-cased copy of s whose byte offsets line up with
// the returned original. When lower-casing changes the width of any rune
// the lowered form is used for both.
func foldPair(s string) (lower, orig string) {
	lower = strings.ToLower(s)
	if len(lower) != len(s) {
		return lower, lower
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if utf8.RuneLen(unicode.ToLower(r)) != size {
			return lower, lower
		}
		i += size
	}
	return lower, s
}
