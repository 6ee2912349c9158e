package integrate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plgn/internal/change"
	"plgn/internal/config"
	"plgn/internal/llm"
	"plgn/internal/pack"
)

type scriptedClient struct {
	turns []llm.Message
	calls int
}

func (c *scriptedClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Message, error) {
	if c.calls >= len(c.turns) {
		return &llm.Message{Role: llm.RoleAssistant, Content: "all done"}, nil
	}
	turn := c.turns[c.calls]
	c.calls++
	return &turn, nil
}

func writeChangeCall(id, path, contents string) llm.ToolCall {
	args, _ := json.Marshal(map[string]string{"path": path, "contents": contents, "language": "typescript"})
	return llm.ToolCall{ID: id, Name: "write_change", Arguments: string(args)}
}

func finalizeCall(id, summary string, confidence float64) llm.ToolCall {
	args, _ := json.Marshal(map[string]any{"summary": summary, "confidence": confidence})
	return llm.ToolCall{ID: id, Name: "finalize_changes", Arguments: string(args)}
}

func testPack(t *testing.T, minConfidence float64) *pack.Pack {
	t.Helper()
	dir := t.TempDir()
	m := &pack.Manifest{
		Name:        "greet",
		Version:     "1.0.0",
		Description: "Greeting helper",
		Requirements: pack.Requirements{
			Languages: []string{"typescript"},
		},
		Adaptation: pack.Adaptation{Strategy: "agentic", MinConfidence: minConfidence},
	}
	require.NoError(t, m.Save(filepath.Join(dir, pack.ManifestFileName)))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "src", "greet.ts"),
		[]byte("export const greet = (n: string) => `hi ${n}`;\n"), 0o644))

	p, err := pack.Open(dir)
	require.NoError(t, err)
	return p
}

func TestIntegrateExplicitFinalize(t *testing.T) {
	project := t.TempDir()
	client := &scriptedClient{turns: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			writeChangeCall("c1", "src/lib/greet.ts", "export const greet = () => 'hi';\n"),
		}},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			finalizeCall("c2", "Add greeting helper", 0.9),
		}},
	}}

	ig := New(client, config.Default())
	cs, err := ig.Integrate(context.Background(), &Request{
		Pack:        testPack(t, 0),
		ProjectRoot: project,
	})
	require.NoError(t, err)

	assert.Equal(t, "Add greeting helper", cs.Summary)
	assert.Equal(t, 0.9, cs.Confidence)
	require.Len(t, cs.Items, 1)
	assert.Equal(t, "src/lib/greet.ts", cs.Items[0].Path)
	// The file does not exist in the project, so this is a create.
	assert.Equal(t, change.ActionCreate, cs.Items[0].Action)
}

func TestIntegrateUpdateActionForExistingFile(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "src", "app.ts"), []byte("old"), 0o644))

	client := &scriptedClient{turns: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			writeChangeCall("c1", "src/app.ts", "new contents\n"),
		}},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			finalizeCall("c2", "Rewrite app entry", 0.8),
		}},
	}}

	ig := New(client, config.Default())
	cs, err := ig.Integrate(context.Background(), &Request{Pack: testPack(t, 0), ProjectRoot: project})
	require.NoError(t, err)
	require.Len(t, cs.Items, 1)
	assert.Equal(t, change.ActionUpdate, cs.Items[0].Action)
}

func TestIntegrateIdleAutoFinalize(t *testing.T) {
	project := t.TempDir()
	client := &scriptedClient{turns: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			writeChangeCall("c1", "src/a.ts", "a\n"),
			writeChangeCall("c2", "src/b.ts", "b\n"),
		}},
		{Role: llm.RoleAssistant, Content: "# Plan\n\nI have staged both files for the greeting feature."},
		{Role: llm.RoleAssistant, Content: "```\ndone\n```\nEverything is in place now."},
	}}

	ig := New(client, config.Default())
	cs, err := ig.Integrate(context.Background(), &Request{Pack: testPack(t, 0), ProjectRoot: project})
	require.NoError(t, err)

	// Two staged items, never finalized: auto-finalization kicks in after
	// two consecutive text-only turns.
	assert.Len(t, cs.Items, 2)
	assert.InDelta(t, 0.6, cs.Confidence, 1e-9)
	// Summary comes from the first non-fence, non-heading line.
	assert.Equal(t, "Everything is in place now.", cs.Summary)
	assert.GreaterOrEqual(t, cs.Confidence, 0.0)
	assert.LessOrEqual(t, cs.Confidence, 1.0)
}

func TestIntegrateConfidenceFlooredByPack(t *testing.T) {
	project := t.TempDir()
	client := &scriptedClient{turns: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			writeChangeCall("c1", "src/a.ts", "a\n"),
		}},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			finalizeCall("c2", "Low confidence change", 0.2),
		}},
	}}

	ig := New(client, config.Default())
	cs, err := ig.Integrate(context.Background(), &Request{Pack: testPack(t, 0.7), ProjectRoot: project})
	require.NoError(t, err)
	// Raised to the pack's minimum, not rejected.
	assert.Equal(t, 0.7, cs.Confidence)
}

func TestIntegrateConfidenceClamped(t *testing.T) {
	project := t.TempDir()
	client := &scriptedClient{turns: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			writeChangeCall("c1", "src/a.ts", "a\n"),
		}},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			finalizeCall("c2", "Overconfident", 1.7),
		}},
	}}

	ig := New(client, config.Default())
	cs, err := ig.Integrate(context.Background(), &Request{Pack: testPack(t, 0), ProjectRoot: project})
	require.NoError(t, err)
	assert.Equal(t, 1.0, cs.Confidence)
}

func TestIntegrateLastWritePerPathWins(t *testing.T) {
	project := t.TempDir()
	client := &scriptedClient{turns: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			writeChangeCall("c1", "src/a.ts", "first draft\n"),
			writeChangeCall("c2", "src/b.ts", "b\n"),
			writeChangeCall("c3", "src/a.ts", "second draft\n"),
		}},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			finalizeCall("c4", "Two files", 0.8),
		}},
	}}

	ig := New(client, config.Default())
	cs, err := ig.Integrate(context.Background(), &Request{Pack: testPack(t, 0), ProjectRoot: project})
	require.NoError(t, err)

	require.Len(t, cs.Items, 2)
	// First-staged order, latest contents.
	assert.Equal(t, "src/a.ts", cs.Items[0].Path)
	assert.Equal(t, "second draft\n", cs.Items[0].Contents)
	assert.Equal(t, "src/b.ts", cs.Items[1].Path)
}

func TestIntegrateDeleteChange(t *testing.T) {
	project := t.TempDir()
	args, _ := json.Marshal(map[string]string{"path": "src/old.ts"})
	client := &scriptedClient{turns: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "delete_change", Arguments: string(args)},
		}},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			finalizeCall("c2", "Remove legacy file", 0.75),
		}},
	}}

	ig := New(client, config.Default())
	cs, err := ig.Integrate(context.Background(), &Request{Pack: testPack(t, 0), ProjectRoot: project})
	require.NoError(t, err)
	require.Len(t, cs.Items, 1)
	assert.Equal(t, change.ActionDelete, cs.Items[0].Action)
}

func TestIntegrateLastDitchParse(t *testing.T) {
	project := t.TempDir()
	payload := `Here is what I would change:
{"files":[{"path":"src/a.ts","contents":"a\n","language":"typescript","action":"create"}]}`
	client := &scriptedClient{turns: []llm.Message{
		{Role: llm.RoleAssistant, Content: payload},
	}}

	cfg := config.Default()
	cfg.Limits.MaxIterations = 1
	ig := New(client, cfg)
	cs, err := ig.Integrate(context.Background(), &Request{Pack: testPack(t, 0), ProjectRoot: project})
	require.NoError(t, err)
	require.Len(t, cs.Items, 1)
	assert.Equal(t, "src/a.ts", cs.Items[0].Path)
	assert.Equal(t, change.ActionCreate, cs.Items[0].Action)
}

func TestIntegrateNothingProduced(t *testing.T) {
	project := t.TempDir()
	client := &scriptedClient{} // text turns with no staged changes

	cfg := config.Default()
	cfg.Limits.MaxIterations = 2
	ig := New(client, cfg)
	_, err := ig.Integrate(context.Background(), &Request{Pack: testPack(t, 0), ProjectRoot: project})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no changes")
}

func TestSummaryFromText(t *testing.T) {
	assert.Equal(t, "Integration changes", summaryFromText(""))
	assert.Equal(t, "Integration changes", summaryFromText("```\ncode\n```"))
	assert.Equal(t, "The real summary.", summaryFromText("# Heading\n\nThe real summary.\nMore detail."))

	long := summaryFromText("x" + strings.Repeat("y", 300))
	assert.Len(t, long, 200)
}
