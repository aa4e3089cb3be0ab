// Package main implements the diffctx CLI: a thin cobra surface over
// internal/driver.BuildDiffContext, plus a fsnotify-backed watch subcommand for
// iterative review while editing.
//
// zap is initialized here purely for human-facing stderr output; the
// pipeline itself logs through the injected internal/logging.Sink
// interface and never imports zap.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/codenerd-labs/diffctx/internal/config"
	"github.com/codenerd-labs/diffctx/internal/driver"
	"github.com/codenerd-labs/diffctx/internal/logging"
	"github.com/codenerd-labs/diffctx/internal/serialize"
)

// Distinct non-zero exit codes per error class, so scripts can tell a bad
// flag from a failing git invocation.
const (
	exitOK           = 0
	exitAdapterError = 1
	exitPrecondition = 2
)

var (
	verbose      bool
	workspace    string
	budget       int
	alpha        float64
	tau          float64
	full         bool
	noContent    bool
	output       string
	format       string
	hubThreshold int

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "diffctx <diff-range>",
	Short: "Select the code fragments a reviewer needs to understand a diff",
	Long: `diffctx answers a single question for a developer reviewing a change
set: given this diff, which parts of the surrounding codebase must a reader
see to understand it, subject to a hard token budget?

It emits a compact, ordered list of code fragments covering the changed
regions and their most relevant neighbors -- callers, callees, shared
identifiers, adjacent configuration -- without exceeding the budget.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	}
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), args[0])
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "root", "r", "", "repository root (default: current directory)")
	rootCmd.PersistentFlags().IntVar(&budget, "budget", 0, "token budget (default: .diffctx.yaml value or 50000)")
	rootCmd.PersistentFlags().Float64Var(&alpha, "alpha", 0, "PPR restart parameter (default: .diffctx.yaml value or 0.55)")
	rootCmd.PersistentFlags().Float64Var(&tau, "tau", 0, "early-stop threshold (0 disables)")
	rootCmd.PersistentFlags().BoolVar(&full, "full", false, "ignore the budget, include every changed-file fragment")
	rootCmd.PersistentFlags().BoolVar(&noContent, "no-content", false, "omit fragment content from the output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "output file path (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "json", "output format: json, yaml, or text")
	rootCmd.PersistentFlags().IntVar(&hubThreshold, "hub-threshold", 0, "identifier hub document-frequency cutoff (default: 6)")

	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "diffctx:", err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(exitOK)
}

func exitCodeFor(err error) int {
	var precond *driver.PreconditionError
	if asPrecondition(err, &precond) {
		return exitPrecondition
	}
	return exitAdapterError
}

func asPrecondition(err error, target **driver.PreconditionError) bool {
	for err != nil {
		if p, ok := err.(*driver.PreconditionError); ok {
			*target = p
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func resolvedWorkspace() (string, error) {
	if workspace == "" {
		return os.Getwd()
	}
	return filepath.Abs(workspace)
}

func resolvedConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, err
	}
	if budget != 0 {
		cfg.Budget = budget
	}
	if alpha != 0 {
		cfg.Alpha = alpha
	}
	if cmdFlagChanged("tau") {
		cfg.Tau = tau
	}
	if cmdFlagChanged("full") {
		cfg.Full = full
	}
	if cmdFlagChanged("no-content") {
		cfg.NoContent = noContent
	}
	if hubThreshold != 0 {
		cfg.HubThreshold = hubThreshold
	}
	if cmdFlagChanged("format") {
		cfg.Output = format
	}
	// Precondition validation (alpha/tau/budget) is left to
	// driver.BuildDiffContext so a bad value surfaces as the same typed
	// driver.PreconditionError regardless of whether it came from a flag
	// or .diffctx.yaml, and the CLI's exit-code mapping stays uniform.
	return cfg, nil
}

// cmdFlagChanged reports whether name was explicitly set on the command
// line, so a config-file value isn't silently overridden by a flag's zero
// default.
func cmdFlagChanged(name string) bool {
	fl := rootCmd.PersistentFlags().Lookup(name)
	return fl != nil && fl.Changed
}

func runOnce(ctx context.Context, diffRange string) error {
	root, err := resolvedWorkspace()
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	cfg, err := resolvedConfig(root)
	if err != nil {
		return err
	}

	var sink logging.Sink = logging.NoopSink{}
	if verbose {
		fileSink := logging.NewFileSink(root)
		defer fileSink.Close()
		sink = fileSink
	}

	driverCfg := driver.Config{
		RootDir:      root,
		DiffRange:    diffRange,
		BudgetTokens: cfg.Budget,
		Alpha:        cfg.Alpha,
		Tau:          cfg.Tau,
		Full:         cfg.Full,
		NoContent:    cfg.NoContent,
		HubThreshold: cfg.HubThreshold,
		Sink:         sink,
	}

	if logger != nil {
		logger.Info("building diff context", zap.String("diff_range", diffRange), zap.Int("budget", cfg.Budget))
	}

	tree, err := driver.BuildDiffContext(ctx, driverCfg)
	if err != nil {
		if logger != nil {
			logger.Error("build failed", zap.Error(err))
		}
		return err
	}

	rendered, err := serialize.Format(*tree, cfg.Output)
	if err != nil {
		return err
	}

	if output == "" {
		fmt.Println(rendered)
		return nil
	}
	if err := os.WriteFile(output, []byte(rendered+"\n"), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if logger != nil {
		logger.Info("wrote output", zap.String("path", output), zap.Int("fragments", tree.FragmentCount))
	}
	return nil
}
