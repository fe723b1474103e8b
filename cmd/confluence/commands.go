package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"confluence-engine/config"
)

var (
	configPath string
	paperMode  bool

	rootCmd = &cobra.Command{
		Use:   "confluence",
		Short: "Multi-timeframe signal confidence and capital-aware position sizing",
		Long: `confluence scores closed bars across several timeframes, aggregates
them into a confluence signal and sizes accepted trades against the
Capital Guard's view of margin in play.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the evaluation loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, paperMode)
		},
	}

	checkConfigCmd = &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d symbols, %d timeframes, cycle every %s\n",
				len(cfg.Symbols), len(cfg.Timeframes), cfg.CycleInterval)
			fmt.Fprintf(cmd.OutOrStdout(), "guard: reduce %.0f%% warn %.0f%% block %.0f%% emergency %.0f%%\n",
				cfg.Guard.ReducePct, cfg.Guard.WarnPct, cfg.Guard.MaxPct, cfg.Guard.EmergencyPct)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults + env when empty)")
	runCmd.Flags().BoolVar(&paperMode, "paper", false, "trade against a simulated account instead of the live snapshot")
	rootCmd.AddCommand(runCmd, checkConfigCmd)
}
