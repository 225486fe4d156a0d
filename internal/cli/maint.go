package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepIteration uint64

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a maintenance sweep",
}

// --- sweep expired ---

var sweepMaxAge uint64

var sweepExpiredCmd = &cobra.Command{
	Use:   "expired",
	Short: "Remove unimportant entries not accessed for --max-age iterations",
	Args:  cobra.NoArgs,
	RunE:  runSweepExpired,
}

func runSweepExpired(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	removed, err := eng.SweepExpired(iterationOr(eng, sweepIteration), sweepMaxAge)
	if err != nil {
		return err
	}
	for _, k := range removed {
		fmt.Printf("  expired %s\n", k)
	}
	fmt.Printf("Removed %d expired entries.\n", len(removed))
	return nil
}

// --- sweep duplicates ---

var sweepSimilarity float64

var sweepDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Remove near-identical entries, keeping the more important one",
	Args:  cobra.NoArgs,
	RunE:  runSweepDuplicates,
}

func runSweepDuplicates(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	dups, err := eng.SweepDuplicates(sweepSimilarity)
	if err != nil {
		return err
	}
	if len(dups) == 0 {
		fmt.Println("No duplicates found.")
		return nil
	}
	for _, d := range dups {
		fmt.Printf("  %s (kept %s)\n", d.Removed, d.Kept)
	}
	fmt.Printf("Removed %d duplicates.\n", len(dups))
	return nil
}

// --- optimize command ---

var (
	optimizeAggressive bool
	optimizeIteration  uint64
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Rebalance tiers by importance and age, then sweep",
	Args:  cobra.NoArgs,
	RunE:  runOptimize,
}

func runOptimize(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	r, err := eng.Optimize(iterationOr(eng, optimizeIteration), optimizeAggressive)
	if err != nil {
		return err
	}
	if !r.Changed() {
		fmt.Println("Nothing to optimize.")
		return nil
	}
	printKeys("Promoted to working", r.Promoted)
	printKeys("Demoted to disk", r.Demoted)
	printKeys("Archived", r.Archived)
	printKeys("Expired", r.Expired)
	if len(r.Duplicates) > 0 {
		fmt.Printf("Duplicates (%d):\n", len(r.Duplicates))
		for _, d := range r.Duplicates {
			fmt.Printf("  %s (kept %s)\n", d.Removed, d.Kept)
		}
	}
	return nil
}

func printKeys(title string, keys []string) {
	if len(keys) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", title, len(keys))
	for _, k := range keys {
		fmt.Printf("  %s\n", k)
	}
}

// --- analyze command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report tier usage and recommendations",
	Args:  cobra.NoArgs,
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	r := eng.Analyze()
	renderTierStats(cmd.OutOrStdout(), r.Tiers)
	fmt.Println()
	fmt.Printf("Entries: %d  average importance: %.1f  low importance: %d\n",
		r.Total, r.AverageImportance, r.LowImportance)
	if len(r.Recommendations) > 0 {
		fmt.Println()
		fmt.Println("Recommendations:")
		for _, rec := range r.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
	return nil
}

func init() {
	sweepCmd.PersistentFlags().Uint64VarP(&sweepIteration, "iteration", "i", 0, "current iteration (default: latest)")
	sweepExpiredCmd.Flags().Uint64Var(&sweepMaxAge, "max-age", 0, "iterations since last access (default from config)")
	sweepDuplicatesCmd.Flags().Float64Var(&sweepSimilarity, "similarity", 0, "similarity threshold in (0,1] (default from config)")
	sweepCmd.AddCommand(sweepExpiredCmd)
	sweepCmd.AddCommand(sweepDuplicatesCmd)

	optimizeCmd.Flags().BoolVar(&optimizeAggressive, "aggressive", false, "shorter expiry and looser duplicate matching")
	optimizeCmd.Flags().Uint64VarP(&optimizeIteration, "iteration", "i", 0, "current iteration (default: latest)")
}
