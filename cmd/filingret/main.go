// filingret measures how stock prices move after SEC 10-Q/10-K filings and
// how well filing-derived signals call the direction of that move.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/config"
	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/internal/providers"
	"github.com/seenimoa/filingret/internal/report"
	"github.com/seenimoa/filingret/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root command before any subcommand.
var (
	cfg *config.Config
	log *zap.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if log != nil {
		_ = log.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "filingret",
	Short: "Event-window returns around SEC filings",
	Long: `filingret collects 10-Q and 10-K filings from SEC EDGAR, computes the
stock's return over the following trading days, attaches filing features
(XBRL surprises, text signals, volume, market backdrop, macro rates) and
scores direction predictors against the realized moves.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		log = logging.Must(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	statusCmd.Flags().Bool("ping", false, "check each provider's connectivity")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(returnsCmd)
}

// newRegistry builds a provider registry with every configured provider.
func newRegistry() (*provider.Registry, error) {
	reg := provider.NewRegistry()
	if err := providers.RegisterAllTo(reg, cfg); err != nil {
		return nil, fmt.Errorf("register providers: %w", err)
	}
	return reg, nil
}

// reportConfig reads the shared --format and --min-segment flags.
func reportConfig(cmd *cobra.Command) (report.Config, error) {
	rc := report.DefaultConfig()
	format, _ := cmd.Flags().GetString("format")
	f, err := report.ParseFormat(format)
	if err != nil {
		return rc, err
	}
	rc.Format = f
	if cmd.Flags().Lookup("min-segment") != nil {
		rc.MinSegmentSize, _ = cmd.Flags().GetInt("min-segment")
	}
	return rc, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("filingret %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and provider coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry()
		if err != nil {
			return err
		}

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  filingret: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus())
		fmt.Printf("  Time (ET):     %s\n", utils.NowET().Format("2006-01-02 15:04 MST"))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Tickers:       %d (%d with a known CIK)\n", len(cfg.Collection.Tickers), len(cfg.Reference.Tickers()))
		fmt.Printf("    Since:         %s\n", cfg.Collection.Since)
		fmt.Printf("    Horizons:      %v trading days\n", cfg.Collection.Horizons)
		fmt.Printf("    Extractors:    %v\n", cfg.Collection.Extractors)
		fmt.Printf("    Predictor:     %s at %dd\n", cfg.Evaluation.Predictor, cfg.Evaluation.Horizon)
		fmt.Println()

		ping, _ := cmd.Flags().GetBool("ping")
		fmt.Println("  Providers:")
		for _, info := range reg.List() {
			line := fmt.Sprintf("    %-16s %d models", info.Name, len(info.Models))
			if ping {
				p, _ := reg.Get(info.Name)
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				if err := p.Ping(ctx); err != nil {
					line += "  ✗ " + err.Error()
				} else {
					line += "  ✓ reachable"
				}
				cancel()
			}
			fmt.Println(line)
		}
		fmt.Println()

		fmt.Println("  Models (fallback order):")
		served := map[provider.ModelType]bool{}
		for _, c := range reg.Coverage() {
			served[c.Model] = true
			fmt.Printf("    %-10s %-28s %s\n", provider.ModelCategory(c.Model), c.Model, strings.Join(c.Providers, " → "))
		}
		for _, m := range provider.AllModels() {
			if !served[m] {
				fmt.Printf("    %-10s %-28s (no provider; check credentials)\n", provider.ModelCategory(m), m)
			}
		}
		fmt.Println()

		fmt.Println("  Credentials:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			if k.Problem != "" {
				status += "  ⚠ " + k.Problem
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
