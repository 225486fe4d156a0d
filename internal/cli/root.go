package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lazypower/strata/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	verbose    bool

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Tiered working memory for iterative agents",
	Long: `Strata keeps an agent's memory in three tiers: a bounded working tier,
disk, and an archive. When working memory outgrows its threshold the least
valuable entries are paged out to disk.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		path := configPath
		if path == "" {
			path = defaultConfigPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if lvl, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// defaultConfigPath honors STRATA_CONFIG, falling back to ~/.strata/config.yaml.
func defaultConfigPath() string {
	if p := os.Getenv("STRATA_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".strata", "config.yaml")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $STRATA_CONFIG or ~/.strata/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(pageCmd)

	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(analyzeCmd)

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(backupCmd)
}
