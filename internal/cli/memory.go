package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/memory"
	"github.com/spf13/cobra"
)

// --- write command ---

var (
	writeTier       string
	writeIteration  uint64
	writeImportance int
)

var writeCmd = &cobra.Command{
	Use:   "write <tags> [value]",
	Short: "Store a value under tags",
	Long:  "Store a value under a comma separated tag list. With no value argument the value is read from stdin.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runWrite,
}

func runWrite(cmd *cobra.Command, args []string) error {
	tier, err := memory.ParseTier(writeTier)
	if err != nil {
		return err
	}

	var value []byte
	if len(args) == 2 {
		value = []byte(args[1])
	} else {
		value, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	op := engine.WriteOp{Tier: tier, Tags: args[0], Value: string(value)}
	if cmd.Flags().Changed("importance") {
		op.Importance = &writeImportance
	}
	ent, err := eng.Put(op, iterationOr(eng, writeIteration))
	if err != nil {
		return err
	}
	fmt.Println(ent.Key)
	return nil
}

// --- read command ---

var readIteration uint64

var readCmd = &cobra.Command{
	Use:   "read <key|tags>",
	Short: "Print the value stored under a key or tag prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	ent, ok, err := eng.Read(args[0], readIteration)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", args[0], memory.ErrNotFound)
	}
	fmt.Printf("%s\n", ent.Value)
	return nil
}

// --- remove command ---

var removeTier string

var removeCmd = &cobra.Command{
	Use:   "remove <tags>",
	Short: "Remove entries whose tags start with the given tags",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	tier, err := memory.ParseTier(removeTier)
	if err != nil {
		return err
	}

	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	n, err := eng.Remove(tier, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d entries from %s.\n", n, tier)
	return nil
}

// --- move command ---

var moveCmd = &cobra.Command{
	Use:   "move <key> <tier>",
	Short: "Move an entry to another tier",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

func runMove(cmd *cobra.Command, args []string) error {
	tier, err := memory.ParseTier(args[1])
	if err != nil {
		return err
	}

	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	ok, err := eng.Move(args[0], tier)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", args[0], memory.ErrNotFound)
	}
	fmt.Printf("Moved %s to %s.\n", args[0], tier)
	return nil
}

// --- search command ---

var (
	searchValue     string
	searchTiers     []string
	searchIteration uint64
)

var searchCmd = &cobra.Command{
	Use:   "search [tags]",
	Short: "Search stored memory and pull matches into working memory",
	Long: `Search scans disk and the archive (or --tier) for entries carrying all of
the given tags and, with --value, containing the text. Every match is copied
into working memory and a summary entry is written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	q := memory.Query{Value: searchValue}
	if len(args) > 0 {
		q.Tags = args[0]
	}
	for _, name := range searchTiers {
		t, err := memory.ParseTier(name)
		if err != nil {
			return err
		}
		q.Tiers = append(q.Tiers, t)
	}

	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	q.Iteration = iterationOr(eng, searchIteration)
	out, err := eng.Search(q)
	if err != nil {
		return err
	}

	for i, m := range out.Matches {
		fmt.Printf("%d. [%s] %s\n", i+1, m.Tier, m.Key)
		fmt.Printf("   %s\n", preview(string(m.Value), 200))
	}
	if len(out.Matches) > 0 {
		fmt.Println()
	}
	fmt.Println(string(out.Summary.Value))
	return nil
}

// --- load command ---

var loadIteration uint64

var loadCmd = &cobra.Command{
	Use:   "load <tags>",
	Short: "Copy stored entries carrying the tags into working memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	n, err := eng.Load(args[0], iterationOr(eng, loadIteration))
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d entries.\n", n)
	return nil
}

// --- page command ---

var (
	pageThreshold uint64
	pageIteration uint64
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Run the paging check on working memory",
	Args:  cobra.NoArgs,
	RunE:  runPage,
}

func runPage(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	out, err := eng.Page(pageThreshold, iterationOr(eng, pageIteration))
	switch {
	case out.Skipped:
		fmt.Println("Paging is disabled.")
	case out.Migrated == 0 && out.StartSize <= out.Threshold:
		fmt.Printf("Working memory at %d of %d bytes, nothing to page.\n", out.StartSize, out.Threshold)
	default:
		fmt.Printf("Paged %d entries to disk: %d -> %d bytes (target %d).\n",
			out.Migrated, out.StartSize, out.EndSize, out.Target)
		for _, k := range out.Keys {
			fmt.Printf("  %s\n", k)
		}
		if !out.ReachedTarget {
			fmt.Println("Target not reached: no candidates left.")
		}
	}
	return err
}

// preview flattens s onto one line and cuts it at n bytes on a rune boundary.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func init() {
	writeCmd.Flags().StringVarP(&writeTier, "tier", "t", "working", "tier to write to")
	writeCmd.Flags().Uint64VarP(&writeIteration, "iteration", "i", 0, "iteration (default: latest)")
	writeCmd.Flags().IntVar(&writeImportance, "importance", memory.DefaultImportance, "importance 0-100")

	readCmd.Flags().Uint64VarP(&readIteration, "iteration", "i", 0, "mark the entry accessed at this iteration")

	removeCmd.Flags().StringVarP(&removeTier, "tier", "t", "working", "tier to remove from")

	searchCmd.Flags().StringVar(&searchValue, "value", "", "case-insensitive substring the value must contain")
	searchCmd.Flags().StringSliceVarP(&searchTiers, "tier", "t", nil, "tiers to scan (default from config)")
	searchCmd.Flags().Uint64VarP(&searchIteration, "iteration", "i", 0, "iteration (default: latest)")

	loadCmd.Flags().Uint64VarP(&loadIteration, "iteration", "i", 0, "iteration (default: latest)")

	pageCmd.Flags().Uint64Var(&pageThreshold, "threshold", 0, "working memory threshold in bytes (default from config)")
	pageCmd.Flags().Uint64VarP(&pageIteration, "iteration", "i", 0, "iteration (default: latest)")
}
