package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Stop every service and deprovision infrastructure",
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

		result, err := orch.Destroy(ctx, project)
		if err != nil {
			return fmt.Errorf("destroy: %w", err)
		}

		var destroyed int
		for _, o := range result.InfraOutcome {
			if o.Err == nil {
				destroyed++
			}
		}
		fmt.Printf("destroyed %d resources\n", destroyed)
		return nil
	},
}
