package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/lazypower/strata/internal/directive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var applyStrict bool

var applyCmd = &cobra.Command{
	Use:   "apply [file]",
	Short: "Apply a batch of memory directives",
	Long: `Read one JSON directive batch from file (or stdin), apply its actions in
order, run the paging check, and print the outcome as JSON:

  {"iteration": 4, "actions": [
    {"type": "working_memory_add", "tags": "thinking_notes", "value": "..."},
    {"type": "storage_search", "tags": "project"}
  ]}`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	out, err := directive.Handle(eng, in, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if n := out.Failed(); n > 0 {
		logger.Warn("directives failed", zap.Int("failed", n), zap.Int("total", len(out.Results)))
		if applyStrict {
			return fmt.Errorf("%d of %d directives failed", n, len(out.Results))
		}
	}
	return nil
}

func init() {
	applyCmd.Flags().BoolVar(&applyStrict, "strict", false, "exit non-zero when any directive fails")
}
