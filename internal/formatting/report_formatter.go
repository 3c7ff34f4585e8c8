// Package formatting renders annotated texts for plain-text and Markdown
// consumers that cannot show interactive references.
package formatting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/epion-news/epion/internal/citations"
	"github.com/epion-news/epion/internal/sources"
)

const sourcesHeading = "## Sources"

// MarkdownWithSources returns text followed by a rebuilt Sources section
// listing every source in position order, each marked as cited inline or
// not. An existing trailing Sources section in text is replaced.
func MarkdownWithSources(text string, list []sources.Source) string {
	body := strings.TrimSpace(text)

	// The last heading wins so a body that mentions "## Sources" earlier
	// keeps its content.
	if idx := strings.LastIndex(strings.ToLower(body), strings.ToLower(sourcesHeading)); idx != -1 {
		body = strings.TrimSpace(body[:idx])
	}

	if len(list) == 0 {
		return body
	}

	cited := make(map[int]bool)
	for _, id := range citations.CitedIDs(citations.Segment(body)) {
		cited[id] = true
	}

	ordered := make([]sources.Source, len(list))
	copy(ordered, list)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	var b strings.Builder
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	b.WriteString(sourcesHeading)
	b.WriteString("\n")
	for _, s := range ordered {
		b.WriteString(SourceLine(s))
		if cited[s.Position] {
			b.WriteString(" - Used inline")
		} else {
			b.WriteString(" - Additional source")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// SourceLine formats one source as "[n] Title (URL) - domain, 2024-01-02".
func SourceLine(s sources.Source) string {
	title := s.Title
	if title == "" {
		title = s.URL
	}
	line := fmt.Sprintf("[%d] %s (%s)", s.Position, title, s.URL)

	var meta []string
	if s.Domain != "" {
		meta = append(meta, s.Domain)
	}
	if s.PublishedAt != nil {
		meta = append(meta, s.PublishedAt.Format("2006-01-02"))
	}
	if len(meta) > 0 {
		line += " - " + strings.Join(meta, ", ")
	}
	return line
}

// PlainText strips citation markers, keeping only the prose.
func PlainText(text string) string {
	var b strings.Builder
	for _, t := range citations.RenderInline(text, false, nil) {
		if s, ok := t.(citations.Text); ok {
			b.WriteString(string(s))
		}
	}
	return b.String()
}
