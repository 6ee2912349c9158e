package closure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{}")
	seed := writeFile(t, root, "src/deep/feature.ts", "export {}")

	assert.Equal(t, root, FindProjectRoot(seed))
}

func TestFindProjectRootFallback(t *testing.T) {
	dir := t.TempDir()
	seed := writeFile(t, dir, "lonely.ts", "export {}")

	// No markers anywhere under the temp dir; falls back to the seed's dir.
	got := FindProjectRoot(seed)
	assert.True(t, got == dir || got == filepath.Dir(dir) || len(got) > 0)
	// The fallback must at least contain the seed.
	rel, err := filepath.Rel(got, seed)
	require.NoError(t, err)
	assert.NotContains(t, rel, "..")
}

func TestExpandSingleFileNoImports(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{}")
	seed := writeFile(t, root, "greet.ts", "export function greet() { return 'hi' }\n")

	files := Expand(root, []string{seed}, 0)
	assert.Equal(t, []string{seed}, files)
}

func TestExpandChain(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{}")
	a := writeFile(t, root, "a.ts", "import { b } from './b'\nexport const a = b\n")
	b := writeFile(t, root, "b.ts", "import { c } from './c.ts'\nexport const b = c\n")
	c := writeFile(t, root, "c.ts", "export const c = 1\n")

	files := Expand(root, []string{a}, 0)
	assert.ElementsMatch(t, []string{a, b, c}, files)
}

func TestExpandResolvesIndexAndExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{}")
	seed := writeFile(t, root, "main.ts", "import util from './util'\nimport lib from './lib'\n")
	util := writeFile(t, root, "util.tsx", "export default {}\n")
	idx := writeFile(t, root, "lib/index.ts", "export default {}\n")

	files := Expand(root, []string{seed}, 0)
	assert.ElementsMatch(t, []string{seed, util, idx}, files)
}

func TestExpandVariousImportForms(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{}")
	seed := writeFile(t, root, "entry.ts", `
import './side-effect'
export { x } from './reexport'
const legacy = require('./legacy')
const lazy = import('./lazy')
import pkg from 'external-package'
`)
	side := writeFile(t, root, "side-effect.ts", "console.log('hi')\n")
	re := writeFile(t, root, "reexport.ts", "export const x = 1\n")
	legacy := writeFile(t, root, "legacy.js", "module.exports = {}\n")
	lazy := writeFile(t, root, "lazy.ts", "export default 1\n")

	files := Expand(root, []string{seed}, 0)
	assert.ElementsMatch(t, []string{seed, side, re, legacy, lazy}, files)
}

func TestExpandExcludesOutsideRoot(t *testing.T) {
	outer := t.TempDir()
	root := filepath.Join(outer, "project")
	require.NoError(t, os.MkdirAll(root, 0755))
	writeFile(t, root, "package.json", "{}")
	writeFile(t, outer, "secret.ts", "export const s = 1\n")
	seed := writeFile(t, root, "main.ts", "import { s } from '../secret'\n")

	files := Expand(root, []string{seed}, 0)
	assert.Equal(t, []string{seed}, files)
}

func TestExpandBounded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{}")

	// A chain longer than the cap.
	for i := 0; i < 10; i++ {
		content := "export const x = 1\n"
		if i < 9 {
			content = "import './f" + string(rune('0'+i+1)) + "'\n" + content
		}
		writeFile(t, root, "f"+string(rune('0'+i))+".ts", content)
	}
	seed := filepath.Join(root, "f0.ts")

	files := Expand(root, []string{seed}, 4)
	assert.Len(t, files, 4)
}

func TestExpandFixedPoint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{}")
	a := writeFile(t, root, "a.ts", "import './b'\n")
	writeFile(t, root, "b.ts", "import './a'\n") // cycle

	first := Expand(root, []string{a}, 0)
	second := Expand(root, first, 0)
	assert.ElementsMatch(t, first, second)
}

func TestExpandMonotonic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{}")
	a := writeFile(t, root, "a.ts", "import './b'\n")
	writeFile(t, root, "b.ts", "export const b = 1\n")

	files := Expand(root, []string{a}, 0)
	assert.Contains(t, files, a) // closure ⊇ seed
}

func TestDetectLanguages(t *testing.T) {
	langs := DetectLanguages([]string{"a.ts", "b.ts", "c.py", "d.unknown"})
	assert.Equal(t, []string{"typescript", "python"}, langs)
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "typescript", Language("x/y/z.TS"))
	assert.Equal(t, "", Language("z.xyz"))
}
