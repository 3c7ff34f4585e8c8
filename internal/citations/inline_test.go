package citations

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenView flattens a token for comparison; Reference holds a func and
// cannot be compared with reflect.DeepEqual.
type tokenView struct {
	Text        string
	Source      int
	Literal     string
	Interactive bool
	IsRef       bool
}

func view(tokens []Token) []tokenView {
	out := make([]tokenView, 0, len(tokens))
	for _, tok := range tokens {
		switch v := tok.(type) {
		case Text:
			out = append(out, tokenView{Text: string(v)})
		case Reference:
			out = append(out, tokenView{Source: v.Source, Literal: v.Literal, Interactive: v.Interactive, IsRef: true})
		}
	}
	return out
}

func TestRenderInline(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		highlight bool
		expected  []tokenView
	}{
		{
			name:     "empty input",
			input:    "",
			expected: []tokenView{},
		},
		{
			name:     "plain text",
			input:    "no sources here",
			expected: []tokenView{{Text: "no sources here"}},
		},
		{
			name:  "static mode keeps literal",
			input: "See[3].",
			expected: []tokenView{
				{Text: "See"},
				{Source: 3, Literal: "[3]", IsRef: true},
				{Text: "."},
			},
		},
		{
			name:      "adjacent markers emit no empty text",
			input:     "[1][2]",
			highlight: true,
			expected: []tokenView{
				{Source: 1, Literal: "[1]", Interactive: true, IsRef: true},
				{Source: 2, Literal: "[2]", Interactive: true, IsRef: true},
			},
		},
		{
			name:      "malformed markers stay text",
			input:     "a[b]c[04]",
			highlight: true,
			expected: []tokenView{
				{Text: "a[b]c"},
				{Source: 4, Literal: "[04]", Interactive: true, IsRef: true},
			},
		},
		{
			name:  "spaced markers keep the space",
			input: "x[1] [2]",
			expected: []tokenView{
				{Text: "x"},
				{Source: 1, Literal: "[1]", IsRef: true},
				{Text: " "},
				{Source: 2, Literal: "[2]", IsRef: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderInline(tt.input, tt.highlight, func(int) {})
			require.NotNil(t, got)
			assert.Equal(t, tt.expected, view(got))
		})
	}
}

func TestRenderInlineLabels(t *testing.T) {
	static := RenderInline("See[03].", false, nil)
	require.Len(t, static, 3)
	assert.Equal(t, "See", static[0].Label())
	assert.Equal(t, "[03]", static[1].Label())
	assert.Equal(t, ".", static[2].Label())

	live := RenderInline("See[03].", true, nil)
	assert.Equal(t, "3", live[1].Label())
}

func TestRenderInlineNeverCallsBackWhileRendering(t *testing.T) {
	calls := 0
	RenderInline("a[1][2][3]", true, func(int) { calls++ })
	assert.Zero(t, calls)
}

func TestReferenceActivate(t *testing.T) {
	var got []int
	tokens := RenderInline("Turnout fell[3].", true, func(source int) { got = append(got, source) })
	before := view(tokens)

	refs := References(tokens)
	require.Len(t, refs, 1)
	assert.True(t, refs[0].Activate())
	assert.Equal(t, []int{3}, got)

	// Activation leaves the token sequence untouched.
	assert.Equal(t, before, view(tokens))

	assert.True(t, refs[0].Activate())
	assert.Equal(t, []int{3, 3}, got)
}

func TestReferenceActivateStatic(t *testing.T) {
	calls := 0
	refs := References(RenderInline("x[1]", false, func(int) { calls++ }))
	require.Len(t, refs, 1)
	assert.False(t, refs[0].Activate())
	assert.Zero(t, calls)
}

func TestReferenceActivateWithoutCallback(t *testing.T) {
	refs := References(RenderInline("x[1]", true, nil))
	require.Len(t, refs, 1)
	assert.False(t, refs[0].Activate())
}

func TestTokenJSON(t *testing.T) {
	data, err := json.Marshal(RenderInline("See[3].", false, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"text","text":"See"},
		{"type":"reference","source":3,"label":"[3]","literal":"[3]","interactive":false},
		{"type":"text","text":"."}
	]`, string(data))

	data, err = json.Marshal(RenderInline("[12]", true, func(int) {}))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"reference","source":12,"label":"12","literal":"[12]","interactive":true}]`, string(data))
}

// Segment clusters adjacent markers while RenderInline keeps them apart.
func TestClusteringDiffersFromInline(t *testing.T) {
	segments := Segment("[1][2]")
	require.Len(t, segments, 1)
	assert.Equal(t, []int{1, 2}, segments[0].CitationIDs)

	refs := References(RenderInline("[1][2]", true, nil))
	require.Len(t, refs, 2)
}
