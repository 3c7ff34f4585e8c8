// Package citations turns AI-generated prose carrying numbered source
// markers such as "[1]" or "[2][10]" into structured data.
//
// A marker is an opening bracket, one or more ASCII digits and a closing
// bracket. Anything that does not match that shape is ordinary text. Both
// Segment and RenderInline are pure and safe for concurrent use.
package citations

import (
	"strconv"
	"strings"
)

// scanMarker reports whether s[i:] starts with a citation marker. On success
// it returns the parsed id and the index just past the closing bracket.
// Digit runs that overflow an int are not markers.
func scanMarker(s string, i int) (id int, end int, ok bool) {
	if i >= len(s) || s[i] != '[' {
		return 0, i, false
	}
	j := i + 1
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i+1 || j >= len(s) || s[j] != ']' {
		return 0, i, false
	}
	n, err := strconv.Atoi(s[i+1 : j])
	if err != nil {
		return 0, i, false
	}
	return n, j + 1, true
}

// nextMarker finds the first marker at or after from. It returns the marker
// start, its id and its end, or ok=false when the rest of s holds none.
func nextMarker(s string, from int) (start, id, end int, ok bool) {
	for from < len(s) {
		idx := strings.IndexByte(s[from:], '[')
		if idx < 0 {
			return 0, 0, 0, false
		}
		p := from + idx
		if n, e, found := scanMarker(s, p); found {
			return p, n, e, true
		}
		from = p + 1
	}
	return 0, 0, 0, false
}
