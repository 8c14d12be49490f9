package voice

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestExtractResponse(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"empty", "", FallbackResponse},
		{"whitespace", "  \n\t\n", FallbackResponse},
		{"single line", "I fixed the login bug.", "I fixed the login bug."},
		{
			"first three lines",
			"Line one here\nLine two here\nLine three here\nLine four here",
			"Line one here Line two here Line three here",
		},
		{"short lines skipped", "ok\nyes\nAll tests pass.", "All tests pass."},
		{
			"code fence skipped",
			"Here is the script:\n```python\nprint('hello world')\n```\nRun it with python.",
			"Here is the script: Run it with python.",
		},
		{"paths skipped", "/usr/local/bin/tool\n./build.sh\nBuild finished.", "Build finished."},
		{"prompts skipped", "$ go test ./...\n> running\nEverything passed.", "Everything passed."},
		{"created path skipped", "Created src/main.go\nThe server is ready.", "The server is ready."},
		{"created without path kept", "Created the database schema.", "Created the database schema."},
		{"only code", "```\nfmt.Println(1)\n```", FallbackResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractResponse(tt.output))
		})
	}
}

func TestExtractResponse_Truncates(t *testing.T) {
	long := strings.Repeat("word ", 60)
	got := ExtractResponse(long)
	assert.Equal(t, maxResponseRunes, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestExtractResponse_Bounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOf(rapid.String()).Draw(t, "lines")
		got := ExtractResponse(strings.Join(lines, "\n"))
		if got == "" {
			t.Fatalf("empty response")
		}
		if n := utf8.RuneCountInString(got); n > maxResponseRunes {
			t.Fatalf("response has %d runes", n)
		}
	})
}
