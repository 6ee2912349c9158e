// Package apply writes an approved ChangeSet into the project. Failures
// are per-item: a change that cannot be applied is recorded as skipped
// with its reason, and the remaining items still apply.
package apply

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"plgn/internal/change"
	"plgn/internal/logging"
	"plgn/internal/sandbox"
)

// Skip reasons use fixed wording so callers and scripts can match them.
const (
	ReasonOutsideRoot = "Refused to write outside project root"
	ReasonAbsent      = "File already absent"
)

// Skipped records one change that was not applied.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result reports the outcome of an apply run. Partial application is an
// accepted outcome, not an error.
type Result struct {
	Applied []string  `json:"applied"`
	Skipped []Skipped `json:"skipped"`
}

// Engine applies ChangeSets to one project root.
type Engine struct {
	sb  *sandbox.Sandbox
	log *zap.SugaredLogger
}

// New creates an apply engine for the project at root.
func New(root string) (*Engine, error) {
	sb, err := sandbox.New(root)
	if err != nil {
		return nil, err
	}
	return &Engine{sb: sb, log: logging.Named("apply")}, nil
}

// Apply writes every item of cs that can be written. Paths resolving
// outside the project root are skipped, never written. Re-applying the
// same ChangeSet is safe: writes overwrite identical contents and
// completed deletions skip as already absent.
func (e *Engine) Apply(cs *change.ChangeSet) *Result {
	result := &Result{Applied: []string{}, Skipped: []Skipped{}}

	for _, item := range cs.Items {
		abs, err := e.sb.Resolve(item.Path)
		if err != nil {
			if errors.Is(err, sandbox.ErrPathTraversal) {
				e.log.Warnw("refusing out-of-root write", "path", item.Path)
				result.Skipped = append(result.Skipped, Skipped{Path: item.Path, Reason: ReasonOutsideRoot})
			} else {
				result.Skipped = append(result.Skipped, Skipped{Path: item.Path, Reason: err.Error()})
			}
			continue
		}

		if item.Action == change.ActionDelete {
			e.applyDelete(result, item.Path, abs)
			continue
		}
		e.applyWrite(result, item, abs)
	}

	e.log.Infow("apply finished", "applied", len(result.Applied), "skipped", len(result.Skipped))
	return result
}

func (e *Engine) applyDelete(result *Result, rel, abs string) {
	if _, err := os.Stat(abs); err != nil {
		result.Skipped = append(result.Skipped, Skipped{Path: rel, Reason: ReasonAbsent})
		return
	}
	if err := os.Remove(abs); err != nil {
		result.Skipped = append(result.Skipped, Skipped{Path: rel, Reason: fmt.Sprintf("delete failed: %v", err)})
		return
	}
	result.Applied = append(result.Applied, rel)
}

func (e *Engine) applyWrite(result *Result, item change.Item, abs string) {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		result.Skipped = append(result.Skipped, Skipped{Path: item.Path, Reason: fmt.Sprintf("create directories failed: %v", err)})
		return
	}
	if err := os.WriteFile(abs, []byte(item.Contents), 0o644); err != nil {
		result.Skipped = append(result.Skipped, Skipped{Path: item.Path, Reason: fmt.Sprintf("write failed: %v", err)})
		return
	}
	result.Applied = append(result.Applied, item.Path)
}
