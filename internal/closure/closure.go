// Package closure expands a seed file set to the transitive set of
// same-project files it references, so extraction sees a complete-enough
// picture of a feature instead of a single file.
//
// Reference discovery is textual: relative specifiers in import/require
// syntax. That deliberately over-approximates (a commented-out import
// still counts) and under-approximates (computed paths are invisible);
// both are acceptable because the closure only selects context, it never
// decides semantics.
package closure

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"plgn/internal/logging"
)

// DefaultMaxFiles caps closure expansion when the caller does not.
const DefaultMaxFiles = 200

// projectMarkers identify a project root when walking up from a seed.
var projectMarkers = []string{
	"package.json",
	"tsconfig.json",
	"go.mod",
	"pyproject.toml",
	"Cargo.toml",
	".git",
}

// parseableExtensions mark files whose text is scanned for references.
var parseableExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".mjs": true, ".cjs": true, ".mts": true, ".cts": true,
	".vue": true, ".svelte": true,
}

// candidateExtensions are tried, in order, when a specifier names no
// existing file directly.
var candidateExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// Relative module-reference patterns: static import/export-from,
// require(), dynamic import().
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)\bimport\s+(?:[\w{},*\s$]+\s+from\s+)?['"](\.\.?/[^'"]+)['"]`),
	regexp.MustCompile(`(?m)\bexport\s+[\w{},*\s$]+\s+from\s+['"](\.\.?/[^'"]+)['"]`),
	regexp.MustCompile(`(?m)\brequire\s*\(\s*['"](\.\.?/[^'"]+)['"]\s*\)`),
	regexp.MustCompile(`(?m)\bimport\s*\(\s*['"](\.\.?/[^'"]+)['"]\s*\)`),
}

// FindProjectRoot walks upward from seed looking for a project marker.
// Falls back to the seed's own directory when no marker is found.
func FindProjectRoot(seed string) string {
	abs, err := filepath.Abs(seed)
	if err != nil {
		return seed
	}

	start := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		start = filepath.Dir(abs)
	} else if err != nil {
		start = filepath.Dir(abs)
	}

	dir := start
	for {
		for _, marker := range projectMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// Expand computes the bounded transitive closure of relative references
// from the seed files. All paths in and out are absolute; files outside
// root are excluded even when textually referenced.
func Expand(root string, seeds []string, maxFiles int) []string {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	log := logging.Named("closure")

	seen := make(map[string]bool)
	var result []string
	var queue []string

	enqueue := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			return
		}
		if !strings.HasPrefix(abs, root+string(filepath.Separator)) && abs != root {
			return
		}
		if info, err := os.Stat(abs); err != nil || info.IsDir() {
			return
		}
		seen[abs] = true
		result = append(result, abs)
		queue = append(queue, abs)
	}

	for _, seed := range seeds {
		if len(result) >= maxFiles {
			break
		}
		enqueue(seed)
	}

	for len(queue) > 0 && len(result) < maxFiles {
		current := queue[0]
		queue = queue[1:]

		if !parseableExtensions[filepath.Ext(current)] {
			continue
		}

		data, err := os.ReadFile(current)
		if err != nil {
			continue
		}

		for _, spec := range extractSpecifiers(string(data)) {
			if len(result) >= maxFiles {
				break
			}
			if resolved := resolveSpecifier(filepath.Dir(current), spec); resolved != "" {
				enqueue(resolved)
			}
		}
	}

	log.Debugw("closure expanded", "seeds", len(seeds), "files", len(result))
	return result
}

// extractSpecifiers returns every relative module specifier in the text.
func extractSpecifiers(text string) []string {
	var specs []string
	for _, pattern := range referencePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if len(match) > 1 {
				specs = append(specs, match[1])
			}
		}
	}
	return specs
}

// resolveSpecifier maps a relative specifier to an existing file: the
// literal path first, then each candidate extension, then index files
// inside a directory. Returns "" when nothing exists.
func resolveSpecifier(fromDir, spec string) string {
	base := filepath.Join(fromDir, spec)

	if info, err := os.Stat(base); err == nil && !info.IsDir() {
		return base
	}

	for _, ext := range candidateExtensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}

	if info, err := os.Stat(base); err == nil && info.IsDir() {
		for _, ext := range candidateExtensions {
			candidate := filepath.Join(base, "index"+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}

	return ""
}

// languageByExtension maps file extensions to language tags.
var languageByExtension = map[string]string{
	".ts": "typescript", ".tsx": "typescript", ".mts": "typescript", ".cts": "typescript",
	".js": "javascript", ".jsx": "javascript", ".mjs": "javascript", ".cjs": "javascript",
	".py": "python", ".go": "go", ".rs": "rust", ".rb": "ruby",
	".java": "java", ".kt": "kotlin", ".swift": "swift",
	".vue": "vue", ".svelte": "svelte", ".css": "css", ".scss": "scss",
	".html": "html", ".json": "json", ".yaml": "yaml", ".yml": "yaml",
}

// DetectLanguages returns the distinct languages of the file set, in
// descending frequency order (ties broken lexicographically).
func DetectLanguages(files []string) []string {
	counts := make(map[string]int)
	for _, f := range files {
		if lang, ok := languageByExtension[strings.ToLower(filepath.Ext(f))]; ok {
			counts[lang]++
		}
	}

	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}

// Language returns the language tag for a single path, or "" if unknown.
func Language(path string) string {
	return languageByExtension[strings.ToLower(filepath.Ext(path))]
}
