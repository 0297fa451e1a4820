package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/parasim/costsim"
	"github.com/parasim/costsim/clustercfg"
	"github.com/parasim/costsim/contract"
	"github.com/parasim/costsim/strategy"
)

var (
	simClusterPath  string
	simStrategyPath string
	simCompMode     string
	simSyncMode     string
	simExportPath   string
)

var compModeByName = map[string]contract.CompMode{
	"training":  contract.Training,
	"inference": contract.Inference,
}

var syncModeByName = map[string]contract.SyncMode{
	"overlapped":          contract.SyncOverlapped,
	"bsp":                 contract.SyncBSP,
	"blocking-collective": contract.SyncBlockingCollective,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Estimate the runtime of a strategy on a cluster model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, err := clustercfg.Load(simClusterPath)
		if err != nil {
			return fmt.Errorf("loading cluster config: %w", err)
		}
		ops, placement, err := strategy.Load(simStrategyPath)
		if err != nil {
			return fmt.Errorf("loading strategy: %w", err)
		}
		compMode, ok := compModeByName[simCompMode]
		if !ok {
			return fmt.Errorf("unknown comp mode %q (want training or inference)", simCompMode)
		}
		syncMode, ok := syncModeByName[simSyncMode]
		if !ok {
			return fmt.Errorf("unknown sync mode %q (want overlapped, bsp, or blocking-collective)", simSyncMode)
		}

		model := cluster.Build()
		sim := costsim.New(model)

		var cost float64
		if simExportPath != "" {
			cost, err = sim.SimulateRuntimeWithExport(ops, placement, compMode, syncMode, simExportPath)
			if err != nil {
				return fmt.Errorf("exporting task graph: %w", err)
			}
		} else {
			cost = sim.SimulateRuntime(ops, placement, compMode, syncMode)
		}

		logrus.Infof("simulate: %d operators, mode=%s sync=%s", len(ops), compMode, syncMode)
		fmt.Printf("estimated runtime: %.6g seconds\n", cost)
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simClusterPath, "cluster", "", "path to cluster-model YAML file")
	simulateCmd.Flags().StringVar(&simStrategyPath, "strategy", "", "path to strategy JSON file")
	simulateCmd.Flags().StringVar(&simCompMode, "mode", "training", "computation mode (training, inference)")
	simulateCmd.Flags().StringVar(&simSyncMode, "sync", "overlapped", "weight-sync mode (overlapped, bsp, blocking-collective)")
	simulateCmd.Flags().StringVar(&simExportPath, "export", "", "optional path to write a Graphviz DOT task-graph export")
	simulateCmd.MarkFlagRequired("cluster")
	simulateCmd.MarkFlagRequired("strategy")
}
