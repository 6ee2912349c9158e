package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"plgn/internal/cache"
	"plgn/internal/extract"
	"plgn/internal/llm"
)

var (
	extractName    string
	extractDesc    string
	extractHint    []string
	extractFast    bool
	extractOut     string
	extractNoCache bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [source-file]",
	Short: "Extract a feature into a portable pack",
	Long: `Runs the extraction agent starting from a seed source file. The agent
expands the file's dependency closure, reads the most relevant sources,
and assembles a pack (src/, examples/, plgn.json) in the output
directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractName, "name", "n", "", "pack name (default: seed file base name)")
	extractCmd.Flags().StringVarP(&extractDesc, "desc", "d", "", "one-line feature description")
	extractCmd.Flags().StringArrayVar(&extractHint, "hint", nil, "free-text hint steering file selection (repeatable)")
	extractCmd.Flags().BoolVar(&extractFast, "fast", false, "smaller context for a faster, rougher pack")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "pack output directory (default: ./<name>-pack)")
	extractCmd.Flags().BoolVar(&extractNoCache, "no-cache", false, "skip the dependency closure cache")
}

func runExtract(cmd *cobra.Command, args []string) error {
	source := args[0]
	name := extractName
	if name == "" {
		base := filepath.Base(source)
		name = base[:len(base)-len(filepath.Ext(base))]
	}
	out := extractOut
	if out == "" {
		out = name + "-pack"
	}

	client, err := llm.NewClient(cmd.Context(), cfg.LLM)
	if err != nil {
		return err
	}
	var c *cache.Cache
	if !extractNoCache {
		if c, err = cache.New(cfg.Cache.Dir); err != nil {
			return err
		}
	}

	ex := extract.New(client, cfg, c)
	p, err := ex.Extract(cmd.Context(), &extract.Request{
		SourcePath:  source,
		Name:        name,
		Description: extractDesc,
		Hints:       extractHint,
		Fast:        extractFast,
		Workspace:   out,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Extracted pack %q (%d files) into %s\n", p.Manifest.Name, len(p.Files), p.Root)
	if sec := p.Manifest.Security; sec != nil && sec.FindingsCount > 0 {
		fmt.Printf("Security scan: %d findings (%d critical)\n", sec.FindingsCount, sec.CriticalCount)
	}
	return nil
}
