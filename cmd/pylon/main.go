package main

import (
	"fmt"
	"os"

	"github.com/cuemby/pylon/pkg/log"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var (
	configPath string
	cloudName  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pylon",
	Short:   "pylon - declarative infrastructure orchestrator",
	Version: Version,
	Long: `pylon provisions a virtual network, compute instances, a container
registry, and DNS records for a fleet of VMs, then schedules containerized
services onto them through a per-VM agent.`,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("pylon version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pylon.toml", "Path to the project TOML file")
	rootCmd.PersistentFlags().StringVar(&cloudName, "cloud", "", "OpenStack cloud name from clouds.yaml")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(genesisCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(graphCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}
