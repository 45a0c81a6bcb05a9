package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"mint-sniper/agent/internal/events"
	"mint-sniper/agent/internal/filters"
	"mint-sniper/agent/internal/models"
	"mint-sniper/agent/internal/services"
	"mint-sniper/shared/config"
	"mint-sniper/shared/env"
	"mint-sniper/shared/logger"

	"github.com/spf13/cobra"
)

var (
	probeMode    string
	probeRPC     string
	probeTimeout time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load config.yaml and print the effective filter modes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(resolveConfigPath())
		if err != nil {
			return err
		}
		return writeValidation(cmd.OutOrStdout(), cfg)
	},
}

// probeCmd runs one mint through the aggregator and the filter without
// touching the watchlist or Telegram.
var probeCmd = &cobra.Command{
	Use:   "probe <mint>",
	Short: "Fetch market data for a mint and show the filter verdict",
	Long: `Fetch market data for a mint through the same providers the agent uses
and print the merged record with the eligibility verdict.

Example usage:
  mint-sniper probe DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263
  mint-sniper probe <mint> --mode balanced --rpc https://my-rpc`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(validateCmd, probeCmd)

	probeCmd.Flags().StringVar(&probeMode, "mode", "", "Filter mode (default: filters.mode from config)")
	probeCmd.Flags().StringVar(&probeRPC, "rpc", "", "Solana RPC endpoint for the holder check (default: RPC_ENDPOINT)")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 30*time.Second, "Overall probe timeout")
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "agent/config.yaml"
}

func writeValidation(w io.Writer, cfg *config.Config) error {
	f := filters.New(filterConfig(cfg), nil, nil)
	if !f.HasMode(filters.ParseMode(cfg.Filters.Mode)) {
		return fmt.Errorf("filters.mode %q has no thresholds configured", cfg.Filters.Mode)
	}

	names := make([]string, 0, len(cfg.Filters.Modes))
	for name := range cfg.Filters.Modes {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "active mode: %s\n", cfg.Filters.Mode)
	for _, name := range names {
		m := cfg.Filters.Modes[name]
		fmt.Fprintf(w, "  %-13s cap (%.0f, %.0f) ratio<=%.1f liq>=%.0f vol5m>=%.0f\n",
			name, m.MinMarketCap, m.MaxMarketCap, m.MaxCapToLiquidity, m.MinLiquidity, m.MinVolume5m)
	}
	th := supervisorConfig(cfg).Thresholds
	for _, s := range th.Steps {
		fmt.Fprintf(w, "  trigger <=%s: x%.2f\n", s.UpTo, s.MinRatio)
	}
	fmt.Fprintf(w, "  trigger after: x%.2f\n", th.After)
	return nil
}

type probeReport struct {
	Mint    string                         `json:"mint"`
	Mode    string                         `json:"mode"`
	Record  *models.NormalizedMarketRecord `json:"record"`
	Passed  bool                           `json:"passed"`
	Reason  string                         `json:"reason,omitempty"`
	TookSec float64                        `json:"tookSeconds"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	mint, ok := events.ValidateMint(args[0])
	if !ok {
		return fmt.Errorf("%q is not a valid mint", args[0])
	}

	cfg, err := config.LoadConfig(resolveConfigPath())
	if err != nil {
		return err
	}
	mode := cfg.Filters.Mode
	if probeMode != "" {
		mode = probeMode
	}

	rpcEndpoint := probeRPC
	if rpcEndpoint == "" {
		rpcEndpoint = os.Getenv("RPC_ENDPOINT")
	}
	if rpcEndpoint == "" {
		rpcEndpoint = env.DefaultRPCEndpoint
	}

	appLogger, err := logger.NewLogger(logger.Config{Level: "warn", Environment: "probe"})
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	aggregator := services.NewAggregator(aggregatorConfig(cfg), appLogger, nil,
		services.NewDexScreenerClient(dexScreenerConfig(cfg), appLogger),
		services.NewJupiterClient(jupiterConfig(cfg), appLogger),
	)
	var checker filters.ConcentrationChecker
	if cfg.RugCheck.Enabled {
		checker = services.NewHolderChecker(holderCheckConfig(cfg, &env.Vars{RPCEndpoint: rpcEndpoint}), appLogger)
	}
	filter := filters.New(filterConfig(cfg), checker, appLogger)

	ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
	defer cancel()

	start := time.Now()
	report := probeReport{Mint: mint, Mode: mode}
	res := aggregator.Fetch(ctx, mint)
	report.Record = res.Record
	if res.Usable() {
		v := filter.Passes(ctx, res.Record, filters.ParseMode(mode))
		report.Passed, report.Reason = v.Passed, v.Reason
	} else {
		report.Reason = "no market data"
	}
	report.TookSec = time.Since(start).Seconds()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
