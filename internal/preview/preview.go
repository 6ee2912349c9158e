// Package preview renders a ChangeSet against the live project: unified
// diffs for review plus a scratch-dir materialization of the proposed
// files, without touching the project itself.
package preview

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"plgn/internal/change"
	"plgn/internal/diff"
	"plgn/internal/logging"
)

// Result is everything a caller needs to present the proposed changes.
type Result struct {
	// Diffs has one entry per effective change, in ChangeSet order.
	Diffs []change.FileDiff `json:"diffs"`
	// ScratchDir holds the materialized proposed files plus
	// change-set.json and diff-summary.json. Empty when every item was
	// a no-op: no directory is created for an empty preview.
	ScratchDir string `json:"scratchDir,omitempty"`
	// Summary and Confidence are carried over from the ChangeSet.
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// Engine previews ChangeSets against one project root.
type Engine struct {
	projectRoot string
	diffs       *diff.Engine
	log         *zap.SugaredLogger
}

// New creates a preview engine for the project at root.
func New(root string) *Engine {
	return &Engine{
		projectRoot: root,
		diffs:       diff.NewEngine(),
		log:         logging.Named("preview"),
	}
}

// Preview computes diffs for the effective items of cs. Exact no-ops
// (updates matching current contents, deletions of absent files) are
// dropped. The remaining proposed files are materialized under a fresh
// scratch directory alongside machine-readable change-set and
// diff-summary JSON files.
func (e *Engine) Preview(cs *change.ChangeSet) (*Result, error) {
	result := &Result{Summary: cs.Summary, Confidence: cs.Confidence}
	var effective []change.Item

	for _, item := range cs.Items {
		current, exists := e.currentContents(item.Path)

		if item.Action == change.ActionDelete {
			if !exists {
				e.log.Debugw("skipping no-op delete", "path", item.Path)
				continue
			}
		} else if exists && current == item.Contents {
			e.log.Debugw("skipping no-op write", "path", item.Path)
			continue
		}

		proposed := item.Contents
		if item.Action == change.ActionDelete {
			proposed = ""
		}
		patch := e.diffs.Compute(item.Path, item.Path, current, proposed)
		additions, deletions := patch.Counts()

		effective = append(effective, item)
		result.Diffs = append(result.Diffs, change.FileDiff{
			Path:      item.Path,
			Action:    item.Action,
			Language:  item.Language,
			Diff:      patch.Unified(),
			Additions: additions,
			Deletions: deletions,
		})
	}

	if len(effective) == 0 {
		return result, nil
	}

	scratch := filepath.Join(os.TempDir(), "plgn-preview-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	result.ScratchDir = scratch

	for i, item := range effective {
		if item.Action == change.ActionDelete {
			continue
		}
		previewPath := filepath.Join(scratch, "files", filepath.FromSlash(item.Path))
		if err := os.MkdirAll(filepath.Dir(previewPath), 0o755); err != nil {
			return nil, fmt.Errorf("materializing %s: %w", item.Path, err)
		}
		if err := os.WriteFile(previewPath, []byte(item.Contents), 0o644); err != nil {
			return nil, fmt.Errorf("materializing %s: %w", item.Path, err)
		}
		result.Diffs[i].PreviewPath = previewPath
	}

	effectiveSet := &change.ChangeSet{Items: effective, Summary: cs.Summary, Confidence: cs.Confidence}
	if err := writeJSON(filepath.Join(scratch, "change-set.json"), effectiveSet); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(scratch, "diff-summary.json"), result.Diffs); err != nil {
		return nil, err
	}

	e.log.Infow("preview ready", "changes", len(effective), "scratch", scratch)
	return result, nil
}

// currentContents reads the project file for a change item. A path that
// escapes the root is previewed as a create against empty contents; the
// apply engine refuses it later.
func (e *Engine) currentContents(rel string) (string, bool) {
	p := filepath.Join(e.projectRoot, filepath.FromSlash(rel))
	data, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
