package extract

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a feature extraction agent. Your job is to lift one feature out of an existing codebase into a portable, self-contained pack.

You have these tools:
- read_file, list_files, search_files: explore the source project (read-only).
- write_file: write files into the pack workspace.
- finalize: finish the pack. Call it exactly once, when everything is written.

Assemble the pack like this:
1. Copy or adapt the feature's source files under src/, keeping only what the feature needs.
2. Add at least one usage example under examples/.
3. Write a plgn.json manifest at the workspace root with name, version, description, source, requirements (languages, frameworks), provides, examples, and an adaptation policy (strategy, preserve, adaptable, minConfidence).
4. Call finalize.

Keep files self-contained: inline or include relative dependencies rather than referencing the original project.`

// userPrompt renders the extraction request and the selected source
// snippets into the opening user message.
func (e *Extractor) userPrompt(req *Request, root string, languages []string, snippets []snippet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract the feature %q from the project at %s.\n", req.Name, root)
	if req.Description != "" {
		fmt.Fprintf(&b, "Feature description: %s\n", req.Description)
	}
	if len(req.Hints) > 0 {
		fmt.Fprintf(&b, "Related hints: %s\n", strings.Join(req.Hints, "; "))
	}
	if len(languages) > 0 {
		fmt.Fprintf(&b, "Detected languages: %s\n", strings.Join(languages, ", "))
	}

	if len(snippets) > 0 {
		b.WriteString("\nMost relevant source files:\n")
		for _, s := range snippets {
			fmt.Fprintf(&b, "\n--- %s ---\n%s\n", s.path, s.contents)
		}
	}

	b.WriteString("\nExplore further with the read-only tools if needed, write the pack into the workspace, then call finalize.")
	return b.String()
}
