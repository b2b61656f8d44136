package classifier

import (
	"strings"
	"unicode"

	"github.com/noah-isme/grievance-api/internal/models"
)

// KeywordClassifier is the deterministic lexicon-based baseline. It never fails.
type KeywordClassifier struct {
	lex *Lexicon
}

// NewKeywordClassifier builds a classifier over lex.
func NewKeywordClassifier(lex *Lexicon) *KeywordClassifier {
	return &KeywordClassifier{lex: lex}
}

// Classify derives category and priority from title and description.
func (k *KeywordClassifier) Classify(title, description string) models.Classification {
	doc := newDocument(title + " " + description)
	return models.Classification{
		Category: k.category(doc),
		Priority: k.priority(doc),
		Source:   models.ClassifiedByKeyword,
	}
}

// CheckSafety rejects text containing a blocked phrase.
func (k *KeywordClassifier) CheckSafety(text string) models.SafetyVerdict {
	doc := newDocument(text)
	for _, term := range k.lex.Blocked {
		if doc.count(term) > 0 {
			return models.SafetyVerdict{Safe: false, Reason: "contains prohibited language"}
		}
	}
	return models.SafetyVerdict{Safe: true}
}

func (k *KeywordClassifier) category(doc document) models.GrievanceCategory {
	best := models.CategoryOther
	bestScore := 0
	for _, category := range models.GrievanceCategories {
		score := doc.countAll(k.lex.Categories[category])
		if score > bestScore {
			best, bestScore = category, score
		}
	}
	return best
}

func (k *KeywordClassifier) priority(doc document) models.GrievancePriority {
	if doc.countAll(k.lex.Urgency) > 0 {
		return models.PriorityUrgent
	}
	if len(doc.tokens) == 0 {
		return models.PriorityMedium
	}
	negative := doc.countAll(k.lex.Negative)
	ratio := float64(negative) / float64(len(doc.tokens))
	switch {
	case ratio >= k.lex.HighRatio:
		return models.PriorityHigh
	case ratio >= k.lex.MediumRatio:
		return models.PriorityMedium
	case negative == 0 && doc.countAll(k.lex.Mild) > 0:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

type document struct {
	tokens []string
	freq   map[string]int
	padded string
}

func newDocument(text string) document {
	tokens := tokenize(text)
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return document{tokens: tokens, freq: freq, padded: " " + strings.Join(tokens, " ") + " "}
}

func (d document) count(term string) int {
	if !strings.Contains(term, " ") {
		return d.freq[term]
	}
	return strings.Count(d.padded, " "+term+" ")
}

func (d document) countAll(terms []string) int {
	total := 0
	for _, t := range terms {
		total += d.count(t)
	}
	return total
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
