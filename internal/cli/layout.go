package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// layoutPath picks the argument, falling back to memory.layout_path.
func layoutPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Memory.LayoutPath != "" {
		return cfg.Memory.LayoutPath, nil
	}
	return "", errors.New("no layout path: pass one or set memory.layout_path")
}

// --- export command ---

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Write working memory and disk to a JSON layout file",
	Long:  "Write working memory and disk to a JSON layout file. The previous file, if any, is kept as path.bak.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	path, err := layoutPath(args)
	if err != nil {
		return err
	}

	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	if err := eng.ExportLayout(path); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Printf("Exported to %s.\n", path)
	return nil
}

// --- import command ---

var importIteration uint64

var importCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Replace working memory and disk with a JSON layout file",
	Long: `Replace working memory and disk with the contents of a JSON layout file.
Archived entries are kept. Entries whose keys carry no iteration are stamped
with --iteration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	path, err := layoutPath(args)
	if err != nil {
		return err
	}

	eng, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	n, err := eng.ImportLayout(path, importIteration)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Printf("Imported %d entries from %s.\n", n, path)
	return nil
}

func init() {
	importCmd.Flags().Uint64VarP(&importIteration, "iteration", "i", 0, "access iteration for imported entries")
}
