// Package classifier assigns a category and priority to grievance text and
// screens it for unsafe content.
package classifier

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/grievance-api/internal/models"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// Lexicon holds the keyword lists driving the baseline classifier.
type Lexicon struct {
	Categories map[models.GrievanceCategory][]string `yaml:"categories"`
	Urgency    []string                              `yaml:"urgency"`
	Negative   []string                              `yaml:"negative"`
	Mild       []string                              `yaml:"mild"`
	Blocked    []string                              `yaml:"blocked"`
	// HighRatio and MediumRatio are thresholds on negative words per word of text.
	HighRatio   float64 `yaml:"high_ratio"`
	MediumRatio float64 `yaml:"medium_ratio"`
}

// DefaultLexicon returns the built-in lexicon.
func DefaultLexicon() (*Lexicon, error) {
	return ParseLexicon(defaultLexiconYAML)
}

// LoadLexicon reads a lexicon file. An empty path yields the default lexicon.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	return ParseLexicon(raw)
}

// ParseLexicon decodes and normalises a YAML lexicon.
func ParseLexicon(raw []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(raw, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	for category := range lex.Categories {
		if !category.Valid() {
			return nil, fmt.Errorf("parse lexicon: unknown category %q", category)
		}
		lex.Categories[category] = normalizeTerms(lex.Categories[category])
	}
	lex.Urgency = normalizeTerms(lex.Urgency)
	lex.Negative = normalizeTerms(lex.Negative)
	lex.Mild = normalizeTerms(lex.Mild)
	lex.Blocked = normalizeTerms(lex.Blocked)
	if lex.HighRatio <= 0 {
		lex.HighRatio = 0.15
	}
	if lex.MediumRatio <= 0 || lex.MediumRatio > lex.HighRatio {
		lex.MediumRatio = lex.HighRatio / 3
	}
	return &lex, nil
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		norm := strings.Join(tokenize(t), " ")
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}
