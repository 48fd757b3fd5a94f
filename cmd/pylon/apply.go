package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile a project against its persisted state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, project, err := loadProject()
		if err != nil {
			return err
		}

		ctx := context.Background()
		orch, err := newOrchestrator(ctx, cfg)
		if err != nil {
			return err
		}
		defer orch.History.Close()

		result, err := orch.Apply(ctx, project)
		if err != nil {
			return fmt.Errorf("apply: %w", err)
		}

		printResult(result)
		return nil
	},
}
