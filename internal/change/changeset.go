// Package change defines the proposed-file-change model shared by the
// integration loop, the preview engine, and the apply engine.
package change

// Action is the kind of change proposed for a path.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Item is one proposed change: full proposed contents for creates and
// updates, empty contents for deletes. Paths are project-relative.
type Item struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
	Language string `json:"language,omitempty"`
	Action   Action `json:"action"`
}

// ChangeSet is the final, deduplicated set of proposed changes. At most
// one item per path.
type ChangeSet struct {
	Items      []Item  `json:"items"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// FileDiff describes the preview of a single item against the live project.
type FileDiff struct {
	Path        string `json:"path"`
	Action      Action `json:"action"`
	Language    string `json:"language,omitempty"`
	Diff        string `json:"diff"`
	Additions   int    `json:"additions"`
	Deletions   int    `json:"deletions"`
	PreviewPath string `json:"previewPath,omitempty"`
}

// ClampConfidence forces c into [0,1] and raises it to floor when a
// positive floor applies. Callers raise rather than reject results whose
// confidence falls below a pack's declared minimum.
func ClampConfidence(c, floor float64) float64 {
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	if floor > 0 && c < floor {
		c = floor
	}
	if c > 1 {
		c = 1
	}
	return c
}
