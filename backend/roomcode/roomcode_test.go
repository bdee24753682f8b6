package roomcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLength(t *testing.T) {
	for _, length := range []int{1, 4, 6, 9, 12} {
		code := Generate(length)
		assert.Len(t, code, length)
	}
}

func TestGenerateAlphabet(t *testing.T) {
	for range 100 {
		code := Generate(DefaultLength)
		for _, c := range code {
			require.Contains(t, Alphabet, string(c))
		}
	}
}

func TestGenerateSpread(t *testing.T) {
	// Not a uniqueness guarantee, but 32^6 codes should not collide
	// noticeably over a few thousand draws.
	seen := make(map[string]struct{})
	const draws = 5000
	for range draws {
		seen[Generate(DefaultLength)] = struct{}{}
	}
	assert.Greater(t, len(seen), draws*99/100)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABC234", Normalize("  abc234 "))
	assert.Equal(t, "XYZXYZ", Normalize("xYzXyZ"))
	assert.Equal(t, "", Normalize("   "))
}

func TestNormalizeRoundTrip(t *testing.T) {
	code := Generate(DefaultLength)
	assert.Equal(t, code, Normalize(strings.ToLower(code)))
}
