package formatting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/epion-news/epion/internal/sources"
)

func TestMarkdownWithSources(t *testing.T) {
	published := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	list := []sources.Source{
		{Position: 2, URL: "https://example.com/b", Title: "Second", Domain: "example.com"},
		{Position: 1, URL: "https://city.gov/a", Title: "First", Domain: "city.gov", PublishedAt: &published},
		{Position: 3, URL: "https://example.org/c"},
	}

	got := MarkdownWithSources("Passed[1]. Contested[3].\n\n## Sources\n[1] stale", list)

	want := "Passed[1]. Contested[3].\n\n" +
		"## Sources\n" +
		"[1] First (https://city.gov/a) - city.gov, 2024-05-02 - Used inline\n" +
		"[2] Second (https://example.com/b) - example.com - Additional source\n" +
		"[3] https://example.org/c (https://example.org/c) - Used inline"
	assert.Equal(t, want, got)
}

func TestMarkdownWithSourcesNoSources(t *testing.T) {
	assert.Equal(t, "Just text[1].", MarkdownWithSources("  Just text[1].  ", nil))
	assert.Equal(t, "", MarkdownWithSources("", nil))
}

func TestMarkdownWithSourcesKeepsEarlierHeadingMention(t *testing.T) {
	text := "See ## Sources below[1].\n## Sources\nold"
	got := MarkdownWithSources(text, []sources.Source{{Position: 1, URL: "https://a.com", Title: "A"}})
	assert.Equal(t, "See ## Sources below[1].\n\n## Sources\n[1] A (https://a.com) - Used inline", got)
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Fact[2][10] more", "Fact more"},
		{"[abc] stays[ 1]", "[abc] stays[ 1]"},
		{"[5]", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.in), tt.in)
	}
}
