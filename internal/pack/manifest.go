// Package pack defines the portable feature bundle produced by extraction:
// a manifest describing the feature plus the source files that implement it.
package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ManifestFileName is the manifest's canonical location inside a pack root.
const ManifestFileName = "plgn.json"

// Source credits where the feature came from.
type Source struct {
	Original       string `json:"original"`
	OptOutTraining bool   `json:"optOutTraining"`
}

// Requirements lists what a consuming project needs for the feature to work.
type Requirements struct {
	Languages   []string          `json:"languages"`
	Frameworks  []string          `json:"frameworks,omitempty"`
	MinVersions map[string]string `json:"minVersions,omitempty"`
}

// ExampleEntry points at a usage example inside the pack.
type ExampleEntry struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
}

// Examples groups the pack's usage examples.
type Examples struct {
	Entries []ExampleEntry `json:"entries"`
}

// Adaptation is the policy the integration loop follows when fitting the
// feature into a target project.
type Adaptation struct {
	Strategy      string   `json:"strategy"`
	AgentModel    string   `json:"agentModel,omitempty"`
	Preserve      []string `json:"preserve,omitempty"`
	Adaptable     []string `json:"adaptable,omitempty"`
	MinConfidence float64  `json:"minConfidence"`
}

// Security summarizes an external vulnerability scan of the pack contents.
type Security struct {
	Scanner       string `json:"scanner"`
	FindingsCount int    `json:"findingsCount"`
	CriticalCount int    `json:"criticalCount"`
}

// Manifest is the fixed-shape JSON document at the root of every pack.
type Manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description"`
	Source       Source            `json:"source"`
	Requirements Requirements      `json:"requirements"`
	Provides     map[string]string `json:"provides,omitempty"`
	Examples     *Examples         `json:"examples,omitempty"`
	Adaptation   Adaptation        `json:"adaptation"`
	Security     *Security         `json:"security,omitempty"`
}

// Load reads and decodes a manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Normalize fills defaults for absent fields and canonicalizes the parts
// language models tend to get loose with: example paths and framework names.
func (m *Manifest) Normalize() {
	if m.Version == "" {
		m.Version = "0.1.0"
	}
	if m.Source.Original == "" {
		m.Source.Original = "unknown"
	}
	if m.Adaptation.Strategy == "" {
		m.Adaptation.Strategy = "agentic"
	}
	if m.Adaptation.MinConfidence < 0 {
		m.Adaptation.MinConfidence = 0
	}
	if m.Adaptation.MinConfidence > 1 {
		m.Adaptation.MinConfidence = 1
	}

	for i, fw := range m.Requirements.Frameworks {
		m.Requirements.Frameworks[i] = normalizeFramework(fw)
	}

	if m.Examples != nil {
		for i, e := range m.Examples.Entries {
			m.Examples.Entries[i].Path = canonicalExamplePath(e.Path)
		}
	}
}

// normalizeFramework lowercases a framework name and strips the common
// ".js"-style suffix noise ("Next.js", "next js", "next-js" → "next").
func normalizeFramework(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range []string{".js", " js", "-js"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return strings.TrimSpace(name)
}

// canonicalExamplePath rewrites an example path to live under examples/.
func canonicalExamplePath(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	p = strings.TrimPrefix(p, "./")
	if p == "" {
		return p
	}
	if !strings.HasPrefix(p, "examples/") {
		p = "examples/" + path.Base(p)
	}
	return p
}
