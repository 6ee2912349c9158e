package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"plgn/internal/apply"
	"plgn/internal/integrate"
	"plgn/internal/llm"
	"plgn/internal/pack"
	"plgn/internal/preview"
)

var (
	integrateProject      string
	integrateInstructions string
	integrateYes          bool
	integrateDryRun       bool
)

var integrateCmd = &cobra.Command{
	Use:   "integrate [pack-dir]",
	Short: "Integrate a pack into a project",
	Long: `Runs the integration agent over a target project. The agent stages
proposed file changes without touching disk; you review the diffs and
nothing is written until you confirm.`,
	Args: cobra.ExactArgs(1),
	RunE: runIntegrate,
}

func init() {
	integrateCmd.Flags().StringVarP(&integrateProject, "project", "p", ".", "target project root")
	integrateCmd.Flags().StringVarP(&integrateInstructions, "instructions", "i", "", "extra directions for the agent")
	integrateCmd.Flags().BoolVarP(&integrateYes, "yes", "y", false, "apply without asking")
	integrateCmd.Flags().BoolVar(&integrateDryRun, "dry-run", false, "preview only, never apply")
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	p, err := pack.Open(args[0])
	if err != nil {
		return err
	}
	client, err := llm.NewClient(cmd.Context(), cfg.LLM)
	if err != nil {
		return err
	}

	ig := integrate.New(client, cfg)
	cs, err := ig.Integrate(cmd.Context(), &integrate.Request{
		Pack:         p,
		ProjectRoot:  integrateProject,
		Instructions: integrateInstructions,
	})
	if err != nil {
		return err
	}

	result, err := preview.New(integrateProject).Preview(cs)
	if err != nil {
		return err
	}
	if len(result.Diffs) == 0 {
		fmt.Println("No effective changes: the project already matches the proposal.")
		return nil
	}

	renderPreview(os.Stdout, result)

	if integrateDryRun {
		fmt.Printf("\nDry run: change set written to %s\n", result.ScratchDir)
		return nil
	}
	if !integrateYes && !confirm(os.Stdin, os.Stdout) {
		fmt.Printf("Not applied. Change set kept at %s\n", result.ScratchDir)
		return nil
	}

	engine, err := apply.New(integrateProject)
	if err != nil {
		return err
	}
	renderApplyResult(os.Stdout, engine.Apply(cs))
	return nil
}

// confirm asks for an explicit yes; anything else declines.
func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "\nApply these changes? [y/N] ")
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
