package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"plgn/internal/apply"
	"plgn/internal/change"
)

var applyProject string

var applyCmd = &cobra.Command{
	Use:   "apply [change-set.json]",
	Short: "Apply a previously previewed change set",
	Long: `Applies a change-set.json produced by a preview. Changes that cannot
be applied (paths outside the project, already-deleted files) are
reported and skipped; the rest still apply.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyProject, "project", "p", ".", "target project root")
}

func runApply(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var cs change.ChangeSet
	if err := json.Unmarshal(data, &cs); err != nil {
		return fmt.Errorf("parsing change set: %w", err)
	}

	engine, err := apply.New(applyProject)
	if err != nil {
		return err
	}
	renderApplyResult(os.Stdout, engine.Apply(&cs))
	return nil
}
