// Package extract runs the extraction loop: starting from a seed source
// file, it expands the dependency closure, shows the planner the most
// relevant snippets, and lets it assemble a portable feature pack in a
// sandboxed workspace.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"plgn/internal/cache"
	"plgn/internal/closure"
	"plgn/internal/config"
	"plgn/internal/llm"
	"plgn/internal/logging"
	"plgn/internal/loop"
	"plgn/internal/pack"
	"plgn/internal/sandbox"
	"plgn/internal/scan"
	"plgn/internal/tools"
)

// Request describes one extraction.
type Request struct {
	// SourcePath is the seed file of the feature to extract.
	SourcePath string
	// Name and Description label the resulting pack.
	Name        string
	Description string
	// Hints are free-text strings steering snippet selection.
	Hints []string
	// Fast trades context size for speed.
	Fast bool
	// Workspace is where the pack is assembled.
	Workspace string
}

// Extractor drives extraction loops.
type Extractor struct {
	client llm.Client
	cfg    *config.Config
	cache  *cache.Cache
	log    *zap.SugaredLogger
}

// New creates an extractor. The cache may be nil to disable closure
// caching.
func New(client llm.Client, cfg *config.Config, c *cache.Cache) *Extractor {
	return &Extractor{
		client: client,
		cfg:    cfg,
		cache:  c,
		log:    logging.Named("extract"),
	}
}

// Extract runs the extraction loop and returns the assembled pack. A
// missing seed file is fatal; a planner that never calls finalize is not:
// whatever manifest and source tree exist in the workspace become the
// result.
func (e *Extractor) Extract(ctx context.Context, req *Request) (*pack.Pack, error) {
	source, err := filepath.Abs(req.SourcePath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("source file not found: %s", req.SourcePath)
	}

	root := closure.FindProjectRoot(source)
	files := e.expandClosure(root, source)
	languages := closure.DetectLanguages(files)
	e.log.Infow("closure expanded", "root", root, "files", len(files), "languages", languages)

	snippets, err := e.readSnippets(ctx, root, files, req)
	if err != nil {
		return nil, fmt.Errorf("reading context files: %w", err)
	}

	if err := os.MkdirAll(req.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	projectSB, err := sandbox.New(root)
	if err != nil {
		return nil, err
	}
	workspaceSB, err := sandbox.New(req.Workspace)
	if err != nil {
		return nil, err
	}

	var finalized bool
	registry := tools.NewRegistry()
	registry.MustRegister(tools.ReadFileTool(projectSB))
	registry.MustRegister(tools.ListFilesTool(projectSB))
	registry.MustRegister(tools.SearchFilesTool(projectSB))
	registry.MustRegister(tools.WriteFileTool(workspaceSB))
	registry.MustRegister(e.finalizeTool(req, languages, &finalized))

	engine := loop.New(e.client, registry, loop.Options{
		Model:             e.cfg.LLM.Model,
		Temperature:       e.cfg.LLM.Temperature,
		MaxIterations:     e.cfg.Limits.MaxIterations,
		CompletionTimeout: e.cfg.Limits.CompletionTimeout,
		ToolTimeout:       e.cfg.Limits.ToolTimeout,
		OverallTimeout:    e.cfg.Limits.OverallTimeout,
		IdleTurnThreshold: e.cfg.Limits.IdleTurnThreshold,
	})

	initial := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: e.userPrompt(req, root, languages, snippets)},
	}
	// finalize is authoritative; a text-only turn ends the loop with
	// whatever is on disk.
	done := func(s loop.Snapshot) bool {
		return finalized || (s.LastMessage != nil && !s.LastMessage.HasToolCalls())
	}

	result, err := engine.Run(ctx, initial, done)
	if err != nil {
		return nil, err
	}
	if result.Reason != loop.ReasonFinalized {
		e.log.Warnw("extraction loop ended without finalize; using disk state", "reason", result.Reason)
	}

	return e.collect(req, languages, finalized)
}

// expandClosure computes (or recalls) the dependency closure of source.
func (e *Extractor) expandClosure(root, source string) []string {
	key := "closure:" + root + ":" + source
	var files []string
	if e.cache != nil && e.cache.Get(key, &files) {
		e.log.Debugw("closure cache hit", "files", len(files))
		return files
	}
	files = closure.Expand(root, []string{source}, e.cfg.Limits.MaxClosureFiles)
	if e.cache != nil {
		if err := e.cache.Put(key, files, e.cfg.Cache.TTL); err != nil {
			e.log.Debugw("closure cache write failed", "error", err)
		}
	}
	return files
}

// snippet is one prompt context file.
type snippet struct {
	path     string
	contents string
}

// readSnippets loads the top-scoring closure files concurrently, truncated
// to the per-mode character budget.
func (e *Extractor) readSnippets(ctx context.Context, root string, files []string, req *Request) ([]snippet, error) {
	maxFiles := e.cfg.Limits.MaxContextFiles
	budget := e.cfg.Limits.FileCharBudget
	if req.Fast {
		maxFiles = e.cfg.Limits.FastContextFiles
		budget = e.cfg.Limits.FastFileCharBudget
	}

	scored := closure.Prioritize(root, files, req.Hints)
	if len(scored) > maxFiles {
		scored = scored[:maxFiles]
	}

	snippets := make([]snippet, len(scored))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sf := range scored {
		g.Go(func() error {
			data, err := os.ReadFile(sf.Path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", sf.Path, err)
			}
			contents := string(data)
			if len(contents) > budget {
				contents = contents[:budget] + "\n... (truncated)"
			}
			rel, _ := filepath.Rel(root, sf.Path)
			snippets[i] = snippet{path: filepath.ToSlash(rel), contents: contents}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snippets, nil
}

// finalizeTool normalizes the workspace manifest, runs the vulnerability
// scan over a bounded sample of pack files, and writes the security
// summary back. Calling it is the authoritative completion signal.
func (e *Extractor) finalizeTool(req *Request, languages []string, finalized *bool) *tools.Tool {
	return &tools.Tool{
		Name:        "finalize",
		Description: "Finish extraction: normalize the manifest, verify the pack layout, and record the security scan. Call exactly once, after all files are written.",
		Schema: llm.Schema{
			Type:       "object",
			Properties: map[string]llm.Property{},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if err := e.finalizeWorkspace(req, languages); err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			*finalized = true
			return tools.OKResult(map[string]string{"status": "finalized"}), nil
		},
	}
}

// finalizeWorkspace is also the fallback path when the planner never
// called finalize: it makes whatever is on disk into a well-formed pack.
func (e *Extractor) finalizeWorkspace(req *Request, languages []string) error {
	manifestPath := filepath.Join(req.Workspace, pack.ManifestFileName)

	m, err := pack.Load(manifestPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.log.Warnw("manifest unreadable, rebuilding", "error", err)
		}
		m = &pack.Manifest{}
	}
	if m.Name == "" {
		m.Name = req.Name
	}
	if m.Description == "" {
		m.Description = req.Description
	}
	if len(m.Requirements.Languages) == 0 {
		m.Requirements.Languages = languages
	}
	m.Normalize()

	for _, sub := range []string{"src", "examples"} {
		if err := os.MkdirAll(filepath.Join(req.Workspace, sub), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", sub, err)
		}
	}

	var sample []string
	_ = filepath.Walk(filepath.Join(req.Workspace, "src"), func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		sample = append(sample, p)
		return nil
	})
	var scanner scan.Scanner
	m.Security = scan.Summarize(scanner.ScanFiles(sample, e.cfg.Limits.MaxScanFiles))

	return m.Save(manifestPath)
}

// collect turns the workspace into the returned pack, finalizing first if
// the planner never did.
func (e *Extractor) collect(req *Request, languages []string, finalized bool) (*pack.Pack, error) {
	if !finalized {
		if err := e.finalizeWorkspace(req, languages); err != nil {
			return nil, fmt.Errorf("recovering workspace state: %w", err)
		}
	}
	return pack.Open(req.Workspace)
}
