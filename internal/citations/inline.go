package citations

import (
	"encoding/json"
	"strconv"
)

// Token is one display unit produced by RenderInline: either Text or a
// Reference.
type Token interface {
	// Label is what a consumer displays for the token.
	Label() string
	isToken()
}

// Text is a plain run of prose.
type Text string

func (t Text) Label() string { return string(t) }
func (Text) isToken() {}

// MarshalJSON encodes the token as {"type":"text","text":...}.
func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"text", string(t)})
}

// Reference is a single citation marker.
type Reference struct {
	// Source is the cited source number.
	Source int
	// Literal is the marker exactly as written, e.g. "[007]".
	Literal string
	// Interactive is set in highlight mode.
	Interactive bool

	onActivate func(int)
}

// Label is the decimal source number for interactive references and the
// original bracketed literal for static ones.
func (r Reference) Label() string {
	if r.Interactive {
		return strconv.Itoa(r.Source)
	}
	return r.Literal
}

func (Reference) isToken() {}

// Activate invokes the click callback bound at render time with the source
// number. It reports whether a callback ran; static references never call
// back.
func (r Reference) Activate() bool {
	if !r.Interactive || r.onActivate == nil {
		return false
	}
	r.onActivate(r.Source)
	return true
}

// MarshalJSON encodes the reference without its callback.
func (r Reference) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		Source      int    `json:"source"`
		Label       string `json:"label"`
		Literal     string `json:"literal"`
		Interactive bool   `json:"interactive"`
	}{"reference", r.Source, r.Label(), r.Literal, r.Interactive})
}

// RenderInline tokenizes text for sequential display. Unlike Segment, every
// marker becomes its own Reference even inside a run like "[1][2]", and
// empty text runs between markers are skipped. Digit runs too large for an
// int stay text, as in Segment.
//
// With highlight set, references are interactive and carry onSourceClick;
// otherwise they are static and display their literal. onSourceClick is never
// called during rendering.
func RenderInline(text string, highlight bool, onSourceClick func(sourceIndex int)) []Token {
	tokens := []Token{}
	if text == "" {
		return tokens
	}

	start := 0
	for {
		p, id, end, ok := nextMarker(text, start)
		if !ok {
			break
		}
		if p > start {
			tokens = append(tokens, Text(text[start:p]))
		}
		ref := Reference{Source: id, Literal: text[p:end], Interactive: highlight}
		if highlight {
			ref.onActivate = onSourceClick
		}
		tokens = append(tokens, ref)
		start = end
	}

	if start < len(text) {
		tokens = append(tokens, Text(text[start:]))
	}
	return tokens
}

// References returns the Reference tokens in order.
func References(tokens []Token) []Reference {
	var refs []Reference
	for _, t := range tokens {
		if r, ok := t.(Reference); ok {
			refs = append(refs, r)
		}
	}
	return refs
}
