// Package integrate runs the integration loop: given an extracted pack
// and a target project, the planner explores the project read-only and
// stages proposed file changes, which are returned as a ChangeSet without
// touching disk.
package integrate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"plgn/internal/change"
	"plgn/internal/config"
	"plgn/internal/llm"
	"plgn/internal/logging"
	"plgn/internal/loop"
	"plgn/internal/pack"
	"plgn/internal/sandbox"
	"plgn/internal/tools"
)

// Request describes one integration.
type Request struct {
	Pack        *pack.Pack
	ProjectRoot string
	// Instructions are optional extra directions from the user.
	Instructions string
}

// Integrator drives integration loops.
type Integrator struct {
	client llm.Client
	cfg    *config.Config
	log    *zap.SugaredLogger
}

// New creates an integrator.
func New(client llm.Client, cfg *config.Config) *Integrator {
	return &Integrator{
		client: client,
		cfg:    cfg,
		log:    logging.Named("integrate"),
	}
}

// Integrate runs the loop and returns the proposed ChangeSet. Nothing is
// written to the project; callers preview and apply separately.
//
// finalize_changes is the primary completion signal, but planners often
// trail off into prose instead of calling it. When changes are staged and
// the idle-turn threshold is reached the loop auto-finalizes; when even
// that never happens, the final text is parsed as a last-ditch source of
// changes.
func (ig *Integrator) Integrate(ctx context.Context, req *Request) (*change.ChangeSet, error) {
	projectSB, err := sandbox.New(req.ProjectRoot)
	if err != nil {
		return nil, err
	}

	staging := change.NewStaging()
	var final *change.ChangeSet

	registry := tools.NewRegistry()
	registry.MustRegister(tools.ReadFileTool(projectSB))
	registry.MustRegister(tools.ListFilesTool(projectSB))
	registry.MustRegister(tools.SearchFilesTool(projectSB))
	registry.MustRegister(writeChangeTool(staging, projectSB))
	registry.MustRegister(deleteChangeTool(staging))
	registry.MustRegister(finalizeChangesTool(staging, &final))

	engine := loop.New(ig.client, registry, loop.Options{
		Model:             ig.cfg.LLM.Model,
		Temperature:       ig.cfg.LLM.Temperature,
		MaxIterations:     ig.cfg.Limits.MaxIterations,
		CompletionTimeout: ig.cfg.Limits.CompletionTimeout,
		ToolTimeout:       ig.cfg.Limits.ToolTimeout,
		OverallTimeout:    ig.cfg.Limits.OverallTimeout,
		IdleTurnThreshold: ig.cfg.Limits.IdleTurnThreshold,
	})

	initial, err := ig.initialMessages(req)
	if err != nil {
		return nil, err
	}

	idleThreshold := ig.cfg.Limits.IdleTurnThreshold
	if idleThreshold <= 0 {
		idleThreshold = 2
	}
	done := func(s loop.Snapshot) bool {
		if final != nil {
			return true
		}
		return staging.Len() > 0 && s.IdleTurns >= idleThreshold
	}

	result, err := engine.Run(ctx, initial, done)
	if err != nil {
		return nil, err
	}

	cs := ig.resolve(result, staging, final)
	if cs == nil {
		return nil, fmt.Errorf("integration produced no changes (reason: %s)", result.Reason)
	}

	floor := 0.0
	if req.Pack != nil && req.Pack.Manifest != nil {
		floor = req.Pack.Manifest.Adaptation.MinConfidence
	}
	cs.Confidence = change.ClampConfidence(cs.Confidence, floor)
	ig.log.Infow("integration finished",
		"reason", result.Reason,
		"items", len(cs.Items),
		"confidence", cs.Confidence)
	return cs, nil
}

// resolve picks the ChangeSet out of however the loop ended: explicit
// finalize_changes, idle auto-finalization over the staged map, or a
// last-ditch parse of the trailing text.
func (ig *Integrator) resolve(result *loop.RunResult, staging *change.Staging, final *change.ChangeSet) *change.ChangeSet {
	if final != nil {
		return final
	}

	if staging.Len() > 0 {
		ig.log.Warnw("auto-finalizing staged changes", "reason", result.Reason, "staged", staging.Len())
		return staging.ToChangeSet(
			summaryFromText(result.LastText),
			autoConfidence(staging.Len()),
		)
	}

	if result.Reason == loop.ReasonBudget || result.Reason == loop.ReasonText || result.Reason == loop.ReasonIdle {
		if cs := parseTrailingChanges(result.LastText); cs != nil {
			ig.log.Warnw("recovered changes from trailing text", "items", len(cs.Items))
			return cs
		}
	}
	return nil
}

// autoConfidence favors more evidence of work but caps below certainty.
func autoConfidence(staged int) float64 {
	c := 0.5 + 0.05*float64(staged)
	if c > 0.85 {
		c = 0.85
	}
	return c
}
