package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/memory"
	"github.com/lazypower/strata/internal/store"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// --- stats command ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-tier sizes and engine state",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	st := eng.Stats()
	renderTierStats(cmd.OutOrStdout(), st.Tiers)
	fmt.Println()
	fmt.Printf("Iteration: %d  phase: %s\n", st.Iteration, st.Phase)
	if st.PagingEnabled {
		fmt.Printf("Paging: %s, threshold %d bytes\n", st.PagingState, st.Threshold)
	} else {
		fmt.Println("Paging: disabled")
	}

	for _, kind := range []string{store.SweepExpired, store.SweepDuplicates, store.SweepOptimize} {
		last, err := eng.DB.LastSweep(kind)
		if err != nil {
			return err
		}
		if last != nil {
			fmt.Printf("Last %s sweep: iteration %d, removed %d\n", kind, last.Iteration, last.Removed)
		}
	}
	return nil
}

func renderTierStats(w io.Writer, stats []memory.TierStats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Tier", "Entries", "Bytes", "Tokens"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	var entries int
	var bytes, tokens uint64
	for _, s := range stats {
		table.Append([]string{s.Name, strconv.Itoa(s.Entries), fmtUint(s.Bytes), fmtUint(s.Tokens)})
		entries += s.Entries
		bytes += s.Bytes
		tokens += s.Tokens
	}
	table.SetFooter([]string{"total", strconv.Itoa(entries), fmtUint(bytes), fmtUint(tokens)})
	table.Render()
}

// --- list command ---

var (
	listTier   string
	listRanked bool
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the entries of a tier",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	tier, err := memory.ParseTier(listTier)
	if err != nil {
		return err
	}

	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	var ranked []engine.RankedEntry
	if listRanked {
		ranked = eng.Rank(engine.RankOpts{Tier: tier, Limit: listLimit})
	} else {
		for _, e := range eng.Entries(tier) {
			ranked = append(ranked, engine.RankedEntry{Entry: e, Score: -1})
		}
	}
	if len(ranked) == 0 {
		fmt.Printf("No entries in %s.\n", tier)
		return nil
	}
	renderEntries(cmd.OutOrStdout(), ranked)
	return nil
}

// renderEntries prints entries as a table. A negative score leaves the score
// column out.
func renderEntries(w io.Writer, entries []engine.RankedEntry) {
	scored := len(entries) > 0 && entries[0].Score >= 0

	table := tablewriter.NewWriter(w)
	header := []string{"Key", "Importance", "Accessed", "Size", "Value"}
	if scored {
		header = append([]string{"Score"}, header...)
	}
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	for _, r := range entries {
		e := r.Entry
		row := []string{
			e.Key,
			strconv.Itoa(e.Importance),
			fmtUint(e.LastAccessed),
			strconv.Itoa(e.Size()),
			preview(string(e.Value), 48),
		}
		if scored {
			row = append([]string{strconv.Itoa(r.Score)}, row...)
		}
		table.Append(row)
	}
	table.Render()
}

func fmtUint(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func init() {
	listCmd.Flags().StringVarP(&listTier, "tier", "t", "working", "tier to list")
	listCmd.Flags().BoolVar(&listRanked, "ranked", false, "order by priority score")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 10, "maximum entries with --ranked")
}
