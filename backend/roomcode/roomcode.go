// Package roomcode generates short human-shareable room codes.
package roomcode

import (
	"math/rand/v2"
	"strings"
)

// Alphabet excludes 0/O and 1/I so codes survive being read aloud or
// retyped from a screenshot.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultLength = 6

// Generate returns a code of exactly length characters drawn from Alphabet.
// It cannot fail; uniqueness is the registry's concern, not ours.
func Generate(length int) string {
	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteByte(Alphabet[rand.IntN(len(Alphabet))])
	}
	return b.String()
}

// Normalize folds client input to the canonical code form.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
