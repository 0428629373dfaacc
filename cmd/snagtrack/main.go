package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "snagtrack",
	Short: "Snagtrack — visual bug tracking for websites",
	Long:  "Snagtrack is the backend for a visual QA tool: annotated screenshot reports pinned to live sites, organised by team, with plan-based limits and a billing bridge to Stripe.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/snagtrack.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
