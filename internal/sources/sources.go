// Package sources manages the numbered source lists that citation markers
// point into.
package sources

import (
	"net/url"
	"strings"
	"time"
)

// Source is one entry of a numbered source list. A marker "[n]" in an
// annotated text points at the source whose Position is n.
type Source struct {
	Position    int        `json:"position"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Domain      string     `json:"domain"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Credibility float64    `json:"credibility"`
}

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid", "msclkid",
	"ref", "source",
}

// NormalizeURL cleans a URL for deduplication: lowercase scheme and host,
// no "www." prefix, no fragment, no tracking parameters, no trailing slash.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	parsed.Fragment = ""

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for _, param := range trackingParams {
			q.Del(param)
		}
		parsed.RawQuery = q.Encode()
	}

	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// ExtractDomain returns the lowercase host of a URL without port or a
// leading "www.". Other subdomains are kept.
func ExtractDomain(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www."), nil
}

// Prepare fills in derived fields of a source list in place order: missing
// positions become 1-based indexes, URLs are normalized and domains and
// credibility scores are computed. Entries with unparsable URLs keep their
// URL as given and get the default score.
func Prepare(list []Source, scorer *Scorer) []Source {
	out := make([]Source, len(list))
	for i, s := range list {
		if s.Position <= 0 {
			s.Position = i + 1
		}
		if normalized, err := NormalizeURL(s.URL); err == nil && normalized != "" {
			s.URL = normalized
		}
		if s.Domain == "" {
			if domain, err := ExtractDomain(s.URL); err == nil {
				s.Domain = domain
			}
		}
		if scorer != nil {
			s.Credibility = scorer.Score(s.Domain)
		}
		out[i] = s
	}
	return out
}

// Diversity is unique domains divided by the number of sources.
func Diversity(list []Source) float64 {
	if len(list) == 0 {
		return 0
	}
	domains := make(map[string]bool)
	for _, s := range list {
		domains[s.Domain] = true
	}
	return float64(len(domains)) / float64(len(list))
}
