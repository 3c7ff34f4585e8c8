package annotate

import (
	"strings"
	"sync"

	"github.com/epion-news/epion/internal/citations"
)

// Buffer accumulates a streamed reply. Segment holds no scan state between
// calls, so every Append re-parses the complete text received so far; a
// marker split across two chunks ("[1" + "2]") is therefore seen whole once
// its closing bracket arrives.
type Buffer struct {
	mu   sync.Mutex
	text strings.Builder
}

// Append adds chunk and returns the segments of the full text.
func (b *Buffer) Append(chunk string) []citations.TextSegment {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.WriteString(chunk)
	return citations.Segment(b.text.String())
}

// Text returns everything appended since the last Reset.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text.String()
}

// Reset discards the accumulated text.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.Reset()
}
