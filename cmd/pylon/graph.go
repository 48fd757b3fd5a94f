package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect the persisted resource graph",
}

var graphExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the persisted infra state as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadProject()
		if err != nil {
			return err
		}

		ctx := context.Background()
		orch, err := newOrchestrator(ctx, cfg)
		if err != nil {
			return err
		}
		defer orch.History.Close()

		records, present, err := orch.InfraStore.Load(ctx)
		if err != nil {
			return fmt.Errorf("graph export: load infra state: %w", err)
		}
		if !present {
			fmt.Println("# no infra state recorded")
			return nil
		}

		out, err := yaml.Marshal(records)
		if err != nil {
			return fmt.Errorf("graph export: marshal: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	graphCmd.AddCommand(graphExportCmd)
}
