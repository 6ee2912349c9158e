// Package diff computes line diffs between current and proposed file
// contents using the sergi/go-diff engine, and renders them as unified
// diff text for previews.
package diff

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType represents the type of diff line.
type LineType int

const (
	LineContext LineType = iota // Unchanged context line
	LineAdded                   // Added line
	LineRemoved                 // Removed line
)

// Line represents a single line in the diff.
type Line struct {
	Content string
	Type    LineType
}

// Hunk represents a group of changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Patch represents the full line diff between two versions of a file.
type Patch struct {
	OldPath  string
	NewPath  string
	Hunks    []Hunk
	IsNew    bool
	IsDelete bool
}

// contextLines is the fixed context window around changes.
const contextLines = 3

// Engine provides diff computation with caching for repeated pairs.
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map
}

type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine creates a new diff engine.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // favor accuracy over speed for code diffs
	return &Engine{dmp: dmp}
}

// Compute creates a Patch from old and new content strings.
func (e *Engine) Compute(oldPath, newPath, oldContent, newContent string) *Patch {
	patch := &Patch{
		OldPath:  oldPath,
		NewPath:  newPath,
		IsNew:    oldContent == "",
		IsDelete: newContent == "",
	}

	key := cacheKey{hash(oldContent), hash(newContent)}
	if cached, ok := e.cache.Load(key); ok {
		if p, ok := cached.(*Patch); ok {
			result := *p
			result.OldPath = oldPath
			result.NewPath = newPath
			return &result
		}
	}

	// Line-level reduction avoids newline boundary artifacts when
	// converting character diffs back to line operations.
	a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	patch.Hunks = groupIntoHunks(diffsToOperations(diffs))

	e.cache.Store(key, patch)
	return patch
}

// Counts returns the number of added and removed lines across all hunks.
func (p *Patch) Counts() (additions, deletions int) {
	for _, hunk := range p.Hunks {
		for _, line := range hunk.Lines {
			switch line.Type {
			case LineAdded:
				additions++
			case LineRemoved:
				deletions++
			}
		}
	}
	return additions, deletions
}

// Unified renders the patch as unified diff text with ---/+++ headers
// and @@ hunk markers.
func (p *Patch) Unified() string {
	if len(p.Hunks) == 0 {
		return ""
	}

	var sb strings.Builder
	oldPath, newPath := p.OldPath, p.NewPath
	if p.IsNew {
		oldPath = "/dev/null"
	}
	if p.IsDelete {
		newPath = "/dev/null"
	}
	fmt.Fprintf(&sb, "--- %s\n", oldPath)
	fmt.Fprintf(&sb, "+++ %s\n", newPath)

	for _, hunk := range p.Hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount)
		for _, line := range hunk.Lines {
			switch line.Type {
			case LineAdded:
				sb.WriteString("+")
			case LineRemoved:
				sb.WriteString("-")
			default:
				sb.WriteString(" ")
			}
			sb.WriteString(line.Content)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// operation is a single line op with positions in both versions.
type operation struct {
	typ     LineType
	oldLine int
	newLine int
	content string
}

func diffsToOperations(diffs []diffmatchpatch.Diff) []operation {
	operations := make([]operation, 0)
	oldLine := 0
	newLine := 0

	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				operations = append(operations, operation{LineContext, oldLine, newLine, line})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				operations = append(operations, operation{LineRemoved, oldLine, -1, line})
				oldLine++
			case diffmatchpatch.DiffInsert:
				operations = append(operations, operation{LineAdded, -1, newLine, line})
				newLine++
			}
		}
	}
	return operations
}

func groupIntoHunks(ops []operation) []Hunk {
	if len(ops) == 0 {
		return nil
	}

	hunks := make([]Hunk, 0)
	var current *Hunk
	lastChangeIdx := -1

	for i, op := range ops {
		isChange := op.typ != LineContext

		if isChange {
			if current == nil {
				current = &Hunk{Lines: make([]Line, 0)}

				start := i - contextLines
				if start < 0 {
					start = 0
				}
				for j := start; j < i; j++ {
					if ops[j].typ == LineContext {
						current.Lines = append(current.Lines, Line{ops[j].content, LineContext})
					}
				}

				current.OldStart = ops[start].oldLine + 1
				current.NewStart = ops[start].newLine + 1
				if ops[start].oldLine < 0 {
					current.OldStart = 0
				}
				if ops[start].newLine < 0 {
					current.NewStart = 0
				}
			}
			lastChangeIdx = i
		}

		if current != nil {
			current.Lines = append(current.Lines, Line{op.content, op.typ})

			if op.typ == LineContext && i-lastChangeIdx > contextLines {
				trimTo := len(current.Lines) - (i - lastChangeIdx - contextLines)
				if trimTo > 0 && trimTo < len(current.Lines) {
					current.Lines = current.Lines[:trimTo]
				}
				current.computeCounts()
				hunks = append(hunks, *current)
				current = nil
			}
		}
	}

	if current != nil && len(current.Lines) > 0 {
		current.computeCounts()
		hunks = append(hunks, *current)
	}
	return hunks
}

func (h *Hunk) computeCounts() {
	for _, line := range h.Lines {
		if line.Type == LineRemoved || line.Type == LineContext {
			h.OldCount++
		}
		if line.Type == LineAdded || line.Type == LineContext {
			h.NewCount++
		}
	}
}

// hash computes FNV-1a for cache keys.
func hash(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
