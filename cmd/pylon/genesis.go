package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Provision infrastructure from scratch and schedule every service",
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

		result, err := orch.Genesis(ctx, project)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}

		printResult(result)
		return nil
	},
}
