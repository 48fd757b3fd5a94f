package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted infra and placement state for a project",
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
			return fmt.Errorf("status: load infra state: %w", err)
		}
		if !present {
			fmt.Println("no infra state recorded — run genesis")
			return nil
		}

		t := table.NewWriter()
		t.AppendHeader(table.Row{"Name", "Kind", "Dependencies"})
		for _, rec := range records {
			t.AppendRow(table.Row{rec.Name, rec.Kind, rec.Dependencies})
		}
		t.Render()

		placementState, present, err := orch.PlacementStore.Load(ctx)
		if err != nil {
			return fmt.Errorf("status: load placement state: %w", err)
		}
		if !present {
			fmt.Println("no services placed yet")
			return nil
		}

		pt := table.NewWriter()
		pt.AppendHeader(table.Row{"Instance", "Service", "Cpus", "Memory"})
		for _, ip := range placementState.SortedIPs() {
			inst := placementState.Instances[ip]
			if len(inst.Services) == 0 {
				pt.AppendRow(table.Row{ip, "-", "-", "-"})
				continue
			}
			for name, svc := range inst.Services {
				pt.AppendRow(table.Row{ip, name, svc.Cpus, svc.Memory})
			}
		}
		pt.Render()

		return nil
	},
}
