// mizan is the CLI for the wellbeing world model: a signed causal graph over
// a wellbeing framework, with feedback-loop mining, intervention planning and
// what-if simulation, all grounded in cited evidence spans.
package main

import (
	"fmt"
	"os"

	"mizan/internal/config"
	"mizan/internal/framework"
	"mizan/internal/logging"
	"mizan/internal/store"
	"mizan/internal/worldmodel"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mizan",
	Short: "mizan - wellbeing world model engine",
	Long: `mizan maintains a causal mechanism graph anchored to a wellbeing
framework (pillars, core values, sub-values) and answers structural
questions over it: which feedback loops exist, which interventions lead
to a goal, and how a change would propagate.

Every edge in the graph is grounded in evidence spans mined from the
source corpus; edges without evidence never participate in loops or
citations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// engine bundles the wired collaborators behind one Close.
type engine struct {
	store   *store.Store
	index   *framework.Index
	service *worldmodel.Service
	cfg     *config.Config
}

// bootEngine loads config, opens the store, builds the framework index and
// wires the world model service. Overrides run after load, before validation,
// so command flags can tighten the configured caps.
func bootEngine(overrides ...func(*config.Config)) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := store.NewStore(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	index, err := st.LoadFrameworkIndex()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load framework index: %w", err)
	}

	cache := worldmodel.NewLoopCache(
		cfg.GetLoopCacheTTL(),
		cfg.GetStatsCacheTTL(),
		cfg.GetQueryCacheTTL(),
	)
	service := worldmodel.NewService(st, index, cache, cfg)

	return &engine{store: st, index: index, service: service, cfg: cfg}, nil
}

func (e *engine) Close() {
	if err := e.store.Close(); err != nil {
		logger.Warn("store close failed", zap.Error(err))
	}
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace directory")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mizan.yaml", "Config file path")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(mineLoopsCmd)
	rootCmd.AddCommand(loopsCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(statsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
