// Package scan runs lightweight pattern heuristics over extracted source
// files and folds the findings into a manifest security summary.
package scan

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"plgn/internal/pack"
)

// Severity grades a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Finding is a single flagged pattern occurrence.
type Finding struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Remediation string   `json:"remediation,omitempty"`
}

// Result is the scan output, shaped to match external scanner reports so
// downstream consumers treat both the same way.
type Result struct {
	Scanner  string    `json:"scanner"`
	Findings []Finding `json:"findings"`
}

type rule struct {
	id          string
	title       string
	severity    Severity
	pattern     *regexp.Regexp
	remediation string
}

var rules = []rule{
	{
		id:          "dyn-eval",
		title:       "Dynamic code evaluation",
		severity:    SeverityHigh,
		pattern:     regexp.MustCompile(`\beval\s*\(|\bnew\s+Function\s*\(`),
		remediation: "Replace eval with explicit logic or a safe parser.",
	},
	{
		id:          "shell-exec",
		title:       "Shell command execution",
		severity:    SeverityHigh,
		pattern:     regexp.MustCompile(`child_process|\bexecSync\s*\(|\bexec\s*\(`),
		remediation: "Validate and escape any input reaching the shell.",
	},
	{
		id:          "hardcoded-secret",
		title:       "Possible hardcoded secret",
		severity:    SeverityCritical,
		pattern:     regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*['"][^'"]{8,}['"]`),
		remediation: "Move secrets to environment variables or a secret store.",
	},
	{
		id:          "insecure-url",
		title:       "Insecure http:// URL",
		severity:    SeverityMedium,
		pattern:     regexp.MustCompile(`['"]http://[^'"]+['"]`),
		remediation: "Use https:// endpoints.",
	},
}

// Scanner applies the heuristic rule set.
type Scanner struct{}

// ScanFiles scans at most maxFiles of the given paths. Unreadable files are
// skipped; one finding is reported per rule per file.
func (s *Scanner) ScanFiles(paths []string, maxFiles int) *Result {
	result := &Result{Scanner: "plgn-heuristic", Findings: []Finding{}}
	if maxFiles > 0 && len(paths) > maxFiles {
		paths = paths[:maxFiles]
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		content := string(data)
		for _, r := range rules {
			if loc := r.pattern.FindStringIndex(content); loc != nil {
				result.Findings = append(result.Findings, Finding{
					ID:          r.id,
					Title:       r.title,
					Severity:    r.severity,
					Description: fmt.Sprintf("%s in %s (near %q)", r.title, p, snippet(content, loc[0])),
					Remediation: r.remediation,
				})
			}
		}
	}
	return result
}

// Summarize folds a scan result into the manifest security block.
func Summarize(r *Result) *pack.Security {
	sec := &pack.Security{Scanner: r.Scanner, FindingsCount: len(r.Findings)}
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			sec.CriticalCount++
		}
	}
	return sec
}

func snippet(content string, at int) string {
	end := at + 40
	if end > len(content) {
		end = len(content)
	}
	s := content[at:end]
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
