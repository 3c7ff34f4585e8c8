package sources

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultCredibility is used when no rule matches a domain.
const DefaultCredibility = 0.60

// TLDPattern scores every domain ending in Suffix.
type TLDPattern struct {
	Suffix      string  `yaml:"suffix"`
	Score       float64 `yaml:"score"`
	Description string  `yaml:"description"`
}

// DomainGroup scores a list of known domains and their subdomains.
type DomainGroup struct {
	Category    string   `yaml:"category"`
	Score       float64  `yaml:"score"`
	Description string   `yaml:"description"`
	Domains     []string `yaml:"domains"`
}

// CredibilityRules holds domain credibility scoring rules as stored in
// citation_credibility.yaml.
type CredibilityRules struct {
	TLDPatterns  []TLDPattern  `yaml:"tld_patterns"`
	DomainGroups []DomainGroup `yaml:"domain_groups"`
	DefaultScore float64       `yaml:"default_score"`
}

type credibilityFile struct {
	Rules CredibilityRules `yaml:"credibility_rules"`
}

// ParseRules decodes a credibility rules document.
func ParseRules(data []byte) (*CredibilityRules, error) {
	var f credibilityFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse credibility rules: %w", err)
	}
	for _, p := range f.Rules.TLDPatterns {
		if p.Score < 0 || p.Score > 1 {
			return nil, fmt.Errorf("tld pattern %q: score %v out of range [0,1]", p.Suffix, p.Score)
		}
	}
	for _, g := range f.Rules.DomainGroups {
		if g.Score < 0 || g.Score > 1 {
			return nil, fmt.Errorf("domain group %q: score %v out of range [0,1]", g.Category, g.Score)
		}
	}
	return &f.Rules, nil
}

// DefaultRules returns the fallback rules used when no file is available.
func DefaultRules() *CredibilityRules {
	return &CredibilityRules{
		TLDPatterns: []TLDPattern{
			{Suffix: ".edu", Score: 0.85, Description: "Educational"},
			{Suffix: ".gov", Score: 0.80, Description: "Government"},
		},
		DefaultScore: DefaultCredibility,
	}
}

// Scorer rates source domains. Rules can be swapped at runtime with Reload.
type Scorer struct {
	mu     sync.RWMutex
	rules  *CredibilityRules
	logger *zap.Logger
}

// NewScorer creates a scorer with the given rules, or DefaultRules if nil.
func NewScorer(rules *CredibilityRules, logger *zap.Logger) *Scorer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Scorer{rules: rules, logger: logger}
}

// LoadScorer reads rules from path. A missing or invalid file falls back to
// DefaultRules with a warning.
func LoadScorer(path string, logger *zap.Logger) *Scorer {
	s := NewScorer(nil, logger)
	if path == "" {
		return s
	}
	if err := s.Reload(path); err != nil {
		logger.Warn("Using default credibility rules", zap.String("path", path), zap.Error(err))
	}
	return s
}

// Reload replaces the rules with the contents of path. On error the current
// rules stay in place.
func (s *Scorer) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read credibility rules: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()

	s.logger.Info("Loaded credibility rules",
		zap.String("path", path),
		zap.Int("tld_patterns", len(rules.TLDPatterns)),
		zap.Int("domain_groups", len(rules.DomainGroups)),
	)
	return nil
}

// Score returns the credibility of domain. TLD patterns win over domain
// groups; subdomains match their parent (docs.example.org -> example.org).
func (s *Scorer) Score(domain string) float64 {
	s.mu.RLock()
	rules := s.rules
	s.mu.RUnlock()

	domain = strings.ToLower(domain)

	for _, p := range rules.TLDPatterns {
		if strings.HasSuffix(domain, p.Suffix) {
			return p.Score
		}
	}

	for _, group := range rules.DomainGroups {
		for _, known := range group.Domains {
			known = strings.ToLower(known)
			if domain == known || strings.HasSuffix(domain, "."+known) {
				return group.Score
			}
		}
	}

	if rules.DefaultScore > 0 {
		return rules.DefaultScore
	}
	return DefaultCredibility
}
