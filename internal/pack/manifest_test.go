package pack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRoundTrip(t *testing.T) {
	m := &Manifest{
		Name:        "auth-flow",
		Version:     "1.2.0",
		Description: "JWT auth flow",
		Source:      Source{Original: "github.com/acme/app", OptOutTraining: true},
		Requirements: Requirements{
			Languages:   []string{"typescript"},
			Frameworks:  []string{"express"},
			MinVersions: map[string]string{"node": "18"},
		},
		Provides: map[string]string{"auth": "JWT login and refresh"},
		Examples: &Examples{Entries: []ExampleEntry{{Path: "examples/login.ts", Language: "typescript"}}},
		Adaptation: Adaptation{
			Strategy:      "agentic",
			AgentModel:    "gpt-4o",
			Preserve:      []string{"token format"},
			Adaptable:     []string{"storage backend"},
			MinConfidence: 0.7,
		},
		Security: &Security{Scanner: "heuristic", FindingsCount: 2, CriticalCount: 0},
	}

	path := filepath.Join(t.TempDir(), ManifestFileName)
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeDefaults(t *testing.T) {
	m := &Manifest{Name: "thing"}
	m.Normalize()

	assert.Equal(t, "0.1.0", m.Version)
	assert.Equal(t, "unknown", m.Source.Original)
	assert.Equal(t, "agentic", m.Adaptation.Strategy)
	assert.Equal(t, 0.0, m.Adaptation.MinConfidence)
}

func TestNormalizeClampsMinConfidence(t *testing.T) {
	m := &Manifest{Adaptation: Adaptation{MinConfidence: 1.4}}
	m.Normalize()
	assert.Equal(t, 1.0, m.Adaptation.MinConfidence)

	m = &Manifest{Adaptation: Adaptation{MinConfidence: -0.2}}
	m.Normalize()
	assert.Equal(t, 0.0, m.Adaptation.MinConfidence)
}

func TestNormalizeFrameworkNames(t *testing.T) {
	m := &Manifest{Requirements: Requirements{
		Frameworks: []string{"Next.js", "Vue JS", "react-js", "svelte"},
	}}
	m.Normalize()

	assert.Equal(t, []string{"next", "vue", "react", "svelte"}, m.Requirements.Frameworks)
}

func TestNormalizeExamplePaths(t *testing.T) {
	m := &Manifest{Examples: &Examples{Entries: []ExampleEntry{
		{Path: "./demo.ts"},
		{Path: "src/deep/usage.ts"},
		{Path: "examples/already.ts"},
	}}}
	m.Normalize()

	assert.Equal(t, "examples/demo.ts", m.Examples.Entries[0].Path)
	assert.Equal(t, "examples/usage.ts", m.Examples.Entries[1].Path)
	assert.Equal(t, "examples/already.ts", m.Examples.Entries[2].Path)
}

func TestOpenCollectsFiles(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{Name: "greet", Version: "0.1.0"}
	require.NoError(t, m.Save(filepath.Join(dir, ManifestFileName)))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "greet.ts"), []byte("export {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# greet"), 0o644))

	p, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, "greet", p.Manifest.Name)
	assert.Equal(t, []string{"README.md", "src/greet.ts"}, p.Files)

	contents, err := p.ReadFile("src/greet.ts")
	require.NoError(t, err)
	assert.Equal(t, "export {}", contents)
}
