package closure

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ScoredFile is a candidate file with its hint-match score.
type ScoredFile struct {
	Path  string
	Score int
}

// Hint tokens are lowercase alphanumeric runs of bounded length; very
// short runs ("a", "of") carry no signal, very long ones are usually
// hashes.
const (
	minTokenLen = 3
	maxTokenLen = 32
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// ignoreGlobs filter generated and vendored trees from prioritization.
var ignoreGlobs = []string{
	"**/node_modules/**",
	"**/dist/**",
	"**/build/**",
	"**/.git/**",
	"**/coverage/**",
	"**/*.min.js",
}

// TokenizeHints lowercases free-text hints and splits them into the
// deduplicated token set used for scoring.
func TokenizeHints(hints []string) map[string]bool {
	tokens := make(map[string]bool)
	for _, hint := range hints {
		for _, tok := range tokenPattern.FindAllString(strings.ToLower(hint), -1) {
			if len(tok) >= minTokenLen && len(tok) <= maxTokenLen {
				tokens[tok] = true
			}
		}
	}
	return tokens
}

// Prioritize orders candidate files for prompt inclusion: score by how
// many path-segment tokens appear in the hint set, then stable-sort
// descending by score with lexicographic tie-break so snippet selection
// is reproducible. Without hints the order is purely lexicographic.
func Prioritize(root string, files []string, hints []string) []ScoredFile {
	tokens := TokenizeHints(hints)

	scored := make([]ScoredFile, 0, len(files))
	for _, f := range files {
		rel := f
		if r, err := filepath.Rel(root, f); err == nil {
			rel = r
		}
		if ignored(rel) {
			continue
		}
		scored = append(scored, ScoredFile{Path: f, Score: scorePath(rel, tokens)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Path < scored[j].Path
	})
	return scored
}

// scorePath counts path-segment tokens present in the hint set.
func scorePath(rel string, tokens map[string]bool) int {
	if len(tokens) == 0 {
		return 0
	}
	score := 0
	normalized := strings.ToLower(rel)
	for _, segment := range strings.FieldsFunc(normalized, func(r rune) bool {
		return r == '/' || r == '\\' || r == '.' || r == '-' || r == '_'
	}) {
		if tokens[segment] {
			score++
		}
	}
	return score
}

func ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, glob := range ignoreGlobs {
		if ok, err := doublestar.Match(glob, rel); err == nil && ok {
			return true
		}
	}
	return false
}
