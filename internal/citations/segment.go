package citations

import (
	"strconv"
	"strings"
)

// TextSegment is one run of prose followed by the cluster of citation
// markers that terminates it. The final segment of an input that does not
// end on a cluster has no citation ids.
type TextSegment struct {
	Text        string `json:"text"`
	CitationIDs []int  `json:"citationIds"`
	// Cluster is the literal marker run as it appeared in the input,
	// e.g. "[2][010]". Empty for trailing text.
	Cluster string `json:"cluster,omitempty"`
}

// Segment splits text into segments, grouping back-to-back markers into a
// single cluster attached to the text before it. An empty input yields an
// empty slice. Malformed brackets are kept as text, and so is a bracketed
// digit run too large for an int, such as "[99999999999999999999]".
func Segment(text string) []TextSegment {
	segments := []TextSegment{}
	if text == "" {
		return segments
	}

	start, pos := 0, 0
	for {
		p, id, end, ok := nextMarker(text, pos)
		if !ok {
			break
		}
		ids := []int{id}
		for {
			next, e, more := scanMarker(text, end)
			if !more {
				break
			}
			ids = append(ids, next)
			end = e
		}
		segments = append(segments, TextSegment{
			Text:        text[start:p],
			CitationIDs: ids,
			Cluster:     text[p:end],
		})
		start, pos = end, end
	}

	if start < len(text) {
		segments = append(segments, TextSegment{Text: text[start:], CitationIDs: []int{}})
	}
	return segments
}

// Reassemble rebuilds the input Segment was called with.
func Reassemble(segments []TextSegment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
		b.WriteString(s.Cluster)
	}
	return b.String()
}

// FormatCluster renders ids in canonical marker form: [1][2][3].
func FormatCluster(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(id))
		b.WriteByte(']')
	}
	return b.String()
}

// CitedIDs returns every id referenced by segments, in first-seen order and
// without duplicates.
func CitedIDs(segments []TextSegment) []int {
	seen := make(map[int]bool)
	ids := []int{}
	for _, s := range segments {
		for _, id := range s.CitationIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
