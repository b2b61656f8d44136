// Package trackingid mints and validates public grievance references of the
// form GRV-YYYY-NNNNNN.
package trackingid

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	Prefix    = "GRV"
	maxSerial = 1_000_000
)

var (
	exact    = regexp.MustCompile(`^GRV-\d{4}-\d{6}$`)
	embedded = regexp.MustCompile(`\bGRV-\d{4}-\d{6}\b`)

	// ErrMalformed reports a value that does not have the GRV-YYYY-NNNNNN shape.
	ErrMalformed = errors.New("malformed tracking id")
)

// Generator produces tracking ids. Collisions are possible and must be
// handled by the caller via the storage uniqueness constraint.
type Generator interface {
	Generate(at time.Time) string
}

// RandomGenerator draws the serial from crypto/rand.
type RandomGenerator struct{}

// NewGenerator returns the default random generator.
func NewGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// Generate returns a tracking id for the year of at.
func (RandomGenerator) Generate(at time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(maxSerial))
	serial := int64(at.UnixNano() % maxSerial)
	if err == nil {
		serial = n.Int64()
	}
	return Format(at.Year(), int(serial))
}

// Format renders a tracking id from its parts.
func Format(year, serial int) string {
	return fmt.Sprintf("%s-%04d-%06d", Prefix, year, serial)
}

// Valid reports whether s has exactly the tracking id shape.
func Valid(s string) bool {
	return exact.MatchString(s)
}

// Parse splits a tracking id into year and serial.
func Parse(s string) (year int, serial int, err error) {
	if !Valid(s) {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	year, _ = strconv.Atoi(s[4:8])
	serial, _ = strconv.Atoi(s[9:])
	return year, serial, nil
}

// Normalize trims and upper-cases s and returns it when the result is valid.
func Normalize(s string) (string, error) {
	candidate := strings.ToUpper(strings.TrimSpace(s))
	if !Valid(candidate) {
		return "", fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return candidate, nil
}

// FindAll returns every distinct tracking id mentioned in free text, in order
// of first appearance. Matching is case-insensitive.
func FindAll(text string) []string {
	matches := embedded.FindAllString(strings.ToUpper(text), -1)
	seen := make(map[string]struct{}, len(matches))
	result := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		result = append(result, m)
	}
	return result
}
