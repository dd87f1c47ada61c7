package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	dbPath        string
	noHistory     bool
	logLevel      string
	logFormat     string
	poolSize      int
	tolerance     float64
	maxIterations int
	verify        bool
}

var (
	flags globalFlags
	cli   *app
)

var rootCmd = &cobra.Command{
	Use:   "rootfinder",
	Short: "Numerical root finding: bisection, Newton-Raphson and secant",
	Long: "rootfinder solves f(x) = 0 for a function of one variable x with\n" +
		"bisection, Newton-Raphson and secant, compares the methods side by\n" +
		"side and keeps a queryable history of every run.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.dbPath, "db", "", "History database path (default ~/.rootfinder/rootfinder.db)")
	pf.BoolVar(&flags.noHistory, "no-history", false, "Do not open or write the history database")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json")
	pf.IntVar(&flags.poolSize, "pool-size", 4, "Maximum method runs executing at once")
	pf.Float64Var(&flags.tolerance, "tolerance", 0, "Convergence tolerance (default 1e-6)")
	pf.IntVar(&flags.maxIterations, "max-iterations", 0, "Iteration budget (default 100)")
	pf.BoolVar(&flags.verify, "verify", false, "Re-evaluate converged roots with an independent evaluator")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(functionsCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

// setup resolves the configuration and builds the shared app.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(rootfinderDir(), os.Getenv)
	if err != nil {
		return err
	}
	applyFlags(&cfg, &flags, cmd.Flags().Changed)
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cli, err = newApp(cfg, cmd.ErrOrStderr())
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if cli != nil {
		if closeErr := cli.close(); closeErr != nil {
			fmt.Fprintln(os.Stderr, closeErr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
