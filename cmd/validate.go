package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parasim/costsim/clustercfg"
	"github.com/parasim/costsim/strategy"
)

var (
	validateClusterPath  string
	validateStrategyPath string
)

// validateCmd checks that a cluster config and strategy file parse and
// are internally consistent, without running a simulation — useful for
// an outer search to fail fast on a malformed candidate before paying
// for a full SimulateRuntime call.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a cluster config and/or strategy file without simulating",
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateClusterPath == "" && validateStrategyPath == "" {
			return fmt.Errorf("at least one of --cluster or --strategy must be given")
		}
		if validateClusterPath != "" {
			cfg, err := clustercfg.Load(validateClusterPath)
			if err != nil {
				return fmt.Errorf("cluster config: %w", err)
			}
			fmt.Printf("cluster config OK: %d compute devices, %d total slots\n", len(cfg.Compute), cfg.TotalSlots)
		}
		if validateStrategyPath != "" {
			ops, placement, err := strategy.Load(validateStrategyPath)
			if err != nil {
				return fmt.Errorf("strategy: %w", err)
			}
			unplaced := 0
			for _, op := range ops {
				if _, ok := placement[op.Identity()]; !ok {
					unplaced++
				}
			}
			fmt.Printf("strategy OK: %d operators, %d placements, %d unplaced\n", len(ops), len(placement), unplaced)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateClusterPath, "cluster", "", "path to cluster-model YAML file")
	validateCmd.Flags().StringVar(&validateStrategyPath, "strategy", "", "path to strategy JSON file")
}
