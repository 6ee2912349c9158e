package integrate

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"plgn/internal/change"
	"plgn/internal/llm"
	"plgn/internal/sandbox"
	"plgn/internal/tools"
)

// writeChangeTool stages a create/update without writing to disk. Staging
// the same path twice keeps the later contents. The action is derived
// from whether the file currently exists in the project.
func writeChangeTool(staging *change.Staging, sb *sandbox.Sandbox) *tools.Tool {
	return &tools.Tool{
		Name:        "write_change",
		Description: "Propose creating or updating a project file. The change is staged, not written; the user reviews a diff before anything is applied.",
		Schema: llm.Schema{
			Type:     "object",
			Required: []string{"path", "contents"},
			Properties: map[string]llm.Property{
				"path":     {Type: "string", Description: "Project-relative path of the file"},
				"contents": {Type: "string", Description: "Full proposed file contents"},
				"language": {Type: "string", Description: "Language of the file, if known"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := tools.StringArg(args, "path")
			if path == "" {
				return tools.ErrorResult("path is required"), nil
			}
			contents, _ := tools.StringArg(args, "contents")
			language, _ := tools.StringArg(args, "language")

			action := change.ActionCreate
			if abs, err := sb.Resolve(path); err == nil {
				if _, statErr := os.Stat(abs); statErr == nil {
					action = change.ActionUpdate
				}
			}
			staging.Stage(change.Item{
				Path:     path,
				Contents: contents,
				Language: language,
				Action:   action,
			})
			return tools.OKResult(map[string]any{"staged": path}), nil
		},
	}
}

// deleteChangeTool stages a deletion.
func deleteChangeTool(staging *change.Staging) *tools.Tool {
	return &tools.Tool{
		Name:        "delete_change",
		Description: "Propose deleting a project file. The deletion is staged, not performed.",
		Schema: llm.Schema{
			Type:     "object",
			Required: []string{"path"},
			Properties: map[string]llm.Property{
				"path": {Type: "string", Description: "Project-relative path of the file"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := tools.StringArg(args, "path")
			if path == "" {
				return tools.ErrorResult("path is required"), nil
			}
			staging.Stage(change.Item{Path: path, Action: change.ActionDelete})
			return tools.OKResult(map[string]any{"staged": path}), nil
		},
	}
}

// finalizeChangesTool snapshots the staged map with the planner's summary
// and confidence. Primary completion signal.
func finalizeChangesTool(staging *change.Staging, final **change.ChangeSet) *tools.Tool {
	return &tools.Tool{
		Name:        "finalize_changes",
		Description: "Finish integration with a one-line summary and a confidence in [0,1]. Call once, after all changes are staged.",
		Schema: llm.Schema{
			Type:     "object",
			Required: []string{"summary", "confidence"},
			Properties: map[string]llm.Property{
				"summary":    {Type: "string", Description: "One-line summary of the proposed changes"},
				"confidence": {Type: "number", Description: "Confidence the changes integrate cleanly, 0 to 1"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			summary, _ := tools.StringArg(args, "summary")
			confidence := tools.FloatArg(args, "confidence", 0.5)
			*final = staging.ToChangeSet(summary, confidence)
			return tools.OKResult(map[string]any{"items": len((*final).Items)}), nil
		},
	}
}

// summaryFromText derives a change summary from the planner's last text:
// the first line that is not empty, a code fence, or a heading marker,
// truncated to 200 characters.
func summaryFromText(text string) string {
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if inFence || line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(line) > 200 {
			line = line[:200]
		}
		return line
	}
	return "Integration changes"
}

// trailingPayload is the duck-typed shape tried as a last resort when the
// loop ran out of budget without finalizing.
type trailingPayload struct {
	Files []struct {
		Path     string `json:"path"`
		Contents string `json:"contents"`
		Language string `json:"language"`
		Action   string `json:"action"`
	} `json:"files"`
}

// parseTrailingChanges attempts to read the final text message as a JSON
// object with a files list. Parse failure is tolerated: it returns nil.
func parseTrailingChanges(text string) *change.ChangeSet {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "{"); i > 0 {
		text = text[i:]
	}
	if j := strings.LastIndex(text, "}"); j >= 0 {
		text = text[:j+1]
	}

	var payload trailingPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil || len(payload.Files) == 0 {
		return nil
	}

	staging := change.NewStaging()
	for _, f := range payload.Files {
		if f.Path == "" {
			continue
		}
		action := change.Action(f.Action)
		switch action {
		case change.ActionCreate, change.ActionUpdate, change.ActionDelete:
		default:
			action = change.ActionUpdate
		}
		staging.Stage(change.Item{
			Path:     f.Path,
			Contents: f.Contents,
			Language: f.Language,
			Action:   action,
		})
	}
	if staging.Len() == 0 {
		return nil
	}
	return staging.ToChangeSet("Recovered from unfinalized response", 0.3)
}
