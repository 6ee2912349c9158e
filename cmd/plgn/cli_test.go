package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"plgn/internal/apply"
	"plgn/internal/change"
	"plgn/internal/preview"
)

func TestConfirm(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"\n", false},
		{"maybe\n", false},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		got := confirm(strings.NewReader(tc.input), &out)
		assert.Equal(t, tc.want, got, "input %q", tc.input)
		assert.Contains(t, out.String(), "[y/N]")
	}
}

func TestConfirmEOFDeclines(t *testing.T) {
	var out bytes.Buffer
	assert.False(t, confirm(strings.NewReader(""), &out))
}

func TestRenderDiffLine(t *testing.T) {
	// Styles may be stripped in non-TTY environments; the content must
	// survive either way.
	assert.Contains(t, renderDiffLine("+added"), "+added")
	assert.Contains(t, renderDiffLine("-removed"), "-removed")
	assert.Contains(t, renderDiffLine("@@ -1,2 +1,2 @@"), "@@")
	assert.Contains(t, renderDiffLine(" context"), "context")
}

func TestRenderPreview(t *testing.T) {
	var out bytes.Buffer
	renderPreview(&out, &preview.Result{
		Summary:    "Add greeting",
		Confidence: 0.8,
		Diffs: []change.FileDiff{{
			Path:      "src/a.ts",
			Action:    change.ActionCreate,
			Diff:      "--- /dev/null\n+++ src/a.ts\n@@ -0,0 +1,1 @@\n+hi\n",
			Additions: 1,
		}},
	})

	s := out.String()
	assert.Contains(t, s, "Add greeting")
	assert.Contains(t, s, "src/a.ts")
	assert.Contains(t, s, "+1 -0")
}

func TestRenderApplyResult(t *testing.T) {
	var out bytes.Buffer
	renderApplyResult(&out, &apply.Result{
		Applied: []string{"src/a.ts"},
		Skipped: []apply.Skipped{{Path: "../x", Reason: "Refused to write outside project root"}},
	})

	s := out.String()
	assert.Contains(t, s, "applied")
	assert.Contains(t, s, "src/a.ts")
	assert.Contains(t, s, "Refused to write outside project root")
	assert.Contains(t, s, "1 applied, 1 skipped")
}
