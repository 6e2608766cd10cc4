// Package shortcode generates and validates short codes.
package shortcode

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vadimbarashkov/shortlink/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the base62 alphabet used for generated codes.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	DefaultLength = 7
	MinLength     = 4
	MaxLength     = 32
)

var customCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reserved holds path segments served by the application itself.
var reserved = map[string]struct{}{
	"api":       {},
	"admin":     {},
	"login":     {},
	"logout":    {},
	"register":  {},
	"dashboard": {},
	"static":    {},
	"swagger":   {},
	"docs":      {},
	"health":    {},
}

// Generator produces random base62 short codes of a fixed length.
// Codes are collision resistant, uniqueness is enforced by the store.
type Generator struct {
	length int
}

// NewGenerator creates a generator. Lengths outside [MinLength, MaxLength]
// fall back to DefaultLength.
func NewGenerator(length int) *Generator {
	if length < MinLength || length > MaxLength {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// Length returns the length of generated codes.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a new random short code.
func (g *Generator) Generate() (string, error) {
	const op = "shortcode.Generator.Generate"

	code, err := gonanoid.Generate(Alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}

// Validate checks a user supplied short code.
func Validate(code string) error {
	const op = "shortcode.Validate"

	if len(code) < MinLength || len(code) > MaxLength || !customCodeRe.MatchString(code) {
		return fmt.Errorf("%s: %w", op, entity.ErrInvalidShortCode)
	}

	if IsReserved(code) {
		return fmt.Errorf("%s: %w", op, entity.ErrReservedShortCode)
	}

	return nil
}

// IsReserved reports whether code collides with a reserved path segment.
func IsReserved(code string) bool {
	_, ok := reserved[strings.ToLower(code)]
	return ok
}
