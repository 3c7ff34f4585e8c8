package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/epion-news/epion/internal/annotate"
)

func newCitationMux(t *testing.T) *http.ServeMux {
	logger := zaptest.NewLogger(t)
	h := NewCitationHandler(annotate.NewService(nil, nil, nil, logger), logger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/citations/segments", h.Segments)
	mux.HandleFunc("POST /api/v1/citations/inline", h.Inline)
	mux.HandleFunc("POST /api/v1/citations/annotate", h.Annotate)
	return mux
}

func post(mux http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestSegmentsEndpoint(t *testing.T) {
	mux := newCitationMux(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "cluster",
			body: `{"text":"Fact[2][10] more"}`,
			want: `{"segments":[{"text":"Fact","citationIds":[2,10],"cluster":"[2][10]"},{"text":" more","citationIds":[]}]}`,
		},
		{
			name: "trailing marker",
			body: `{"text":"Claim[1]."}`,
			want: `{"segments":[{"text":"Claim","citationIds":[1],"cluster":"[1]"},{"text":".","citationIds":[]}]}`,
		},
		{
			name: "null text",
			body: `{"text":null}`,
			want: `{"segments":[]}`,
		},
		{
			name: "missing text",
			body: `{}`,
			want: `{"segments":[]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(mux, "/api/v1/citations/segments", tt.body)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.JSONEq(t, tt.want, rr.Body.String())
		})
	}
}

func TestSegmentsEndpointBadBody(t *testing.T) {
	rr := post(newCitationMux(t), "/api/v1/citations/segments", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, rr.Body.String())
}

func TestInlineEndpoint(t *testing.T) {
	mux := newCitationMux(t)

	rr := post(mux, "/api/v1/citations/inline", `{"text":"See[3].","highlight":false}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"tokens":[
		{"type":"text","text":"See"},
		{"type":"reference","source":3,"label":"[3]","literal":"[3]","interactive":false},
		{"type":"text","text":"."}
	]}`, rr.Body.String())

	rr = post(mux, "/api/v1/citations/inline", `{"text":"[1][2]","highlight":true}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"tokens":[
		{"type":"reference","source":1,"label":"1","literal":"[1]","interactive":true},
		{"type":"reference","source":2,"label":"2","literal":"[2]","interactive":true}
	]}`, rr.Body.String())

	rr = post(mux, "/api/v1/citations/inline", `{"text":""}`)
	assert.JSONEq(t, `{"tokens":[]}`, rr.Body.String())
}

func TestAnnotateEndpoint(t *testing.T) {
	mux := newCitationMux(t)

	rr := post(mux, "/api/v1/citations/annotate", `{
		"text": "Claim[1][3].",
		"sources": [{"url": "https://www.example.edu/paper?utm_source=x", "title": "Paper"}]
	}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `"unresolved":[3]`)
	assert.Contains(t, body, `"url":"https://example.edu/paper"`)
	assert.Contains(t, body, `"domain":"example.edu"`)
	assert.Contains(t, body, `"credibility":0.85`)
	assert.Contains(t, body, `"source_diversity":1`)
}

func TestAnnotateEndpointRejectsSourceWithoutURL(t *testing.T) {
	rr := post(newCitationMux(t), "/api/v1/citations/annotate", `{"text":"a[1]","sources":[{"title":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
