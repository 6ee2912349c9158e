package integrate

import (
	"fmt"
	"strings"

	"plgn/internal/llm"
)

const systemPrompt = `You are a feature integration agent. Your job is to adapt a portable feature pack into an existing project.

You have these tools:
- read_file, list_files, search_files: explore the target project (read-only).
- write_change: stage the full proposed contents of a created or updated file.
- delete_change: stage a file deletion.
- finalize_changes: finish with a summary and a confidence in [0,1]. Call it once, after all changes are staged.

Rules:
- Never describe changes in prose instead of staging them; every proposed file goes through write_change.
- Adapt the pack to the project's conventions (naming, imports, framework wiring). Honor the pack's adaptation policy: preserve what it marks preserved, adapt what it marks adaptable.
- Stage complete file contents, not fragments or diffs.`

// packCharBudget bounds how much pack source is inlined into the prompt.
const packCharBudget = 24_000

func (ig *Integrator) initialMessages(req *Request) ([]llm.Message, error) {
	var b strings.Builder
	m := req.Pack.Manifest
	fmt.Fprintf(&b, "Integrate the pack %q (%s) into the project at %s.\n", m.Name, m.Description, req.ProjectRoot)
	if len(m.Requirements.Languages) > 0 {
		fmt.Fprintf(&b, "Pack languages: %s\n", strings.Join(m.Requirements.Languages, ", "))
	}
	if len(m.Adaptation.Preserve) > 0 {
		fmt.Fprintf(&b, "Preserve: %s\n", strings.Join(m.Adaptation.Preserve, "; "))
	}
	if len(m.Adaptation.Adaptable) > 0 {
		fmt.Fprintf(&b, "Adaptable: %s\n", strings.Join(m.Adaptation.Adaptable, "; "))
	}
	if req.Instructions != "" {
		fmt.Fprintf(&b, "User instructions: %s\n", req.Instructions)
	}

	b.WriteString("\nPack contents:\n")
	budget := packCharBudget
	for _, rel := range req.Pack.Files {
		contents, err := req.Pack.ReadFile(rel)
		if err != nil {
			return nil, fmt.Errorf("reading pack file %s: %w", rel, err)
		}
		if len(contents) > budget {
			fmt.Fprintf(&b, "\n--- %s --- (omitted, %d chars)\n", rel, len(contents))
			continue
		}
		budget -= len(contents)
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", rel, contents)
	}

	b.WriteString("\nExplore the project, stage the changes, then call finalize_changes.")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}, nil
}
