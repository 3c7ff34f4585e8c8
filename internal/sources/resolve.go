package sources

import "github.com/epion-news/epion/internal/citations"

// ResolvedSegment is a segment together with the sources its ids point at.
type ResolvedSegment struct {
	citations.TextSegment
	Sources []Source `json:"sources"`
}

// Resolution maps segment citation ids onto a source list.
type Resolution struct {
	Segments []ResolvedSegment `json:"segments"`
	// Unresolved lists ids with no matching source, in first-seen order.
	Unresolved []int `json:"unresolved"`
}

// Resolve looks up every citation id of segments by source Position. Ids
// without a source are reported in Unresolved rather than failing; the
// segment keeps the id but gets no source for it.
func Resolve(segments []citations.TextSegment, list []Source) Resolution {
	byPosition := make(map[int]Source, len(list))
	for _, s := range list {
		if _, dup := byPosition[s.Position]; !dup {
			byPosition[s.Position] = s
		}
	}

	res := Resolution{
		Segments:   make([]ResolvedSegment, 0, len(segments)),
		Unresolved: []int{},
	}
	missing := make(map[int]bool)

	for _, seg := range segments {
		rs := ResolvedSegment{TextSegment: seg, Sources: []Source{}}
		for _, id := range seg.CitationIDs {
			src, ok := byPosition[id]
			if !ok {
				if !missing[id] {
					missing[id] = true
					res.Unresolved = append(res.Unresolved, id)
				}
				continue
			}
			rs.Sources = append(rs.Sources, src)
		}
		res.Segments = append(res.Segments, rs)
	}
	return res
}

// Lookup returns the source with the given position.
func Lookup(list []Source, position int) (Source, bool) {
	for _, s := range list {
		if s.Position == position {
			return s, true
		}
	}
	return Source{}, false
}
