package main

import (
	"fmt"

	"github.com/cuemby/pylon/pkg/orchestrator"
	"github.com/jedib0t/go-pretty/v6/table"
)

func printResult(result *orchestrator.Result) {
	fmt.Printf("workflow: %s\n", result.Workflow)
	if result.RegistryURI != "" {
		fmt.Printf("registry: %s\n", result.RegistryURI)
	}

	if len(result.Vms) > 0 {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"VM ID", "Public IP", "Public DNS"})
		for _, vm := range result.Vms {
			t.AppendRow(table.Row{vm.VmID, vm.PublicIP, vm.PublicDNS})
		}
		t.Render()
	}

	if len(result.Placed) > 0 || len(result.Unplaced) > 0 || len(result.Stopped) > 0 {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Service", "Status"})
		for _, name := range result.Placed {
			t.AppendRow(table.Row{name, "placed"})
		}
		for _, name := range result.Unplaced {
			t.AppendRow(table.Row{name, "unplaced"})
		}
		for _, name := range result.Stopped {
			t.AppendRow(table.Row{name, "stopped"})
		}
		t.Render()
	}

	var failed int
	for _, o := range result.InfraOutcome {
		if o.Err != nil {
			failed++
			fmt.Printf("resource %s (%s) failed: %v\n", o.Name, o.Kind, o.Err)
		}
	}
	if failed > 0 {
		fmt.Printf("%d resource(s) failed to provision\n", failed)
	}
}
