package closure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeHints(t *testing.T) {
	tokens := TokenizeHints([]string{"Auth Flow v2", "jwt-token handling"})

	assert.True(t, tokens["auth"])
	assert.True(t, tokens["flow"])
	assert.True(t, tokens["jwt"])
	assert.True(t, tokens["token"])
	// Too short.
	assert.False(t, tokens["v2"])
}

func TestPrioritize(t *testing.T) {
	files := []string{
		"/p/src/utils/helpers.ts",
		"/p/src/auth/login.ts",
		"/p/src/auth/token.ts",
	}

	scored := Prioritize("/p", files, []string{"auth token handling"})

	// token.ts matches both "auth" and "token"; login.ts matches "auth".
	assert.Equal(t, "/p/src/auth/token.ts", scored[0].Path)
	assert.Equal(t, 2, scored[0].Score)
	assert.Equal(t, "/p/src/auth/login.ts", scored[1].Path)
	assert.Equal(t, 1, scored[1].Score)
	assert.Equal(t, 0, scored[2].Score)
}

func TestPrioritizeDeterministicTies(t *testing.T) {
	files := []string{"/p/b.ts", "/p/a.ts", "/p/c.ts"}

	first := Prioritize("/p", files, nil)
	second := Prioritize("/p", files, nil)

	assert.Equal(t, first, second)
	// Lexicographic on equal scores.
	assert.Equal(t, "/p/a.ts", first[0].Path)
	assert.Equal(t, "/p/b.ts", first[1].Path)
	assert.Equal(t, "/p/c.ts", first[2].Path)
}

func TestPrioritizeIgnoresVendoredTrees(t *testing.T) {
	files := []string{
		"/p/src/feature.ts",
		"/p/node_modules/dep/index.js",
		"/p/dist/bundle.min.js",
	}

	scored := Prioritize("/p", files, nil)
	assert.Len(t, scored, 1)
	assert.Equal(t, "/p/src/feature.ts", scored[0].Path)
}
