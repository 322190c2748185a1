package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quarrylabs/harvester/pkg/collector/registry"
	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/engine"
	"github.com/quarrylabs/harvester/pkg/logger"
	"github.com/quarrylabs/harvester/pkg/models"
	"github.com/quarrylabs/harvester/pkg/observability"

	// Import collector adapters to register them
	_ "github.com/quarrylabs/harvester/pkg/collector/sources/httpapi"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "harvester",
		Short: "Harvester - adaptive multi-source acquisition engine",
		Long: `Harvester orchestrates job-posting acquisition across heterogeneous
backends, selecting an execution strategy from tracked performance and
fusing per-source results into one deduplicated record set.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Harvester v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sources",
		Short: "List registered collector sources",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Registered sources:")
			for _, id := range registry.List() {
				fmt.Printf("  - %s\n", id)
			}
		},
	})

	var configFile, location, strategy string
	var maxRecords int
	var timeout time.Duration
	var highQuality, largeVolume, crossValidation bool

	runCmd := &cobra.Command{
		Use:   "run <search term>",
		Short: "Run one acquisition and print the fused result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &models.AcquisitionRequest{
				SearchTerm:          args[0],
				Location:            location,
				MaxRecords:          maxRecords,
				HighQualityRequired: highQuality,
				LargeVolumeRequired: largeVolume,
				Timeout:             timeout,
				CrossValidation:     crossValidation,
				Strategy:            models.StrategyKind(strategy),
			}
			return runAcquisition(configFile, req)
		},
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (optional)")
	runCmd.Flags().StringVarP(&location, "location", "l", "", "Location filter")
	runCmd.Flags().IntVarP(&maxRecords, "max-records", "n", 25, "Maximum records to return")
	runCmd.Flags().StringVar(&strategy, "strategy", "", "Force a strategy (hybrid, browser_first, api_first, browser_only, api_only)")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Run timeout; zero uses the configured default")
	runCmd.Flags().BoolVar(&highQuality, "high-quality", false, "Bias selection toward record completeness")
	runCmd.Flags().BoolVar(&largeVolume, "large-volume", false, "Bias selection toward throughput")
	runCmd.Flags().BoolVar(&crossValidation, "cross-validation", false, "Require cross-source verification where possible")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func runAcquisition(configFile string, req *models.AcquisitionRequest) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := observability.Init(cfg); err != nil {
		return fmt.Errorf("observability init: %w", err)
	}
	ctx := context.Background()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.Shutdown(shutdownCtx)
	}()

	log := logger.Get()

	opts := []engine.Option{}
	for _, id := range registry.List() {
		col, err := registry.Create(id, cfg)
		if err != nil {
			return fmt.Errorf("create collector %s: %w", id, err)
		}
		if err := col.Initialize(ctx, cfg); err != nil {
			log.Warn("collector unavailable, skipping",
				zap.String("source", id), zap.Error(err))
			continue
		}
		defer func() { _ = col.Close(ctx) }()
		opts = append(opts, engine.WithCollector(col))
	}
	if !cfg.Observability.EnableMetrics {
		opts = append(opts, engine.WithObserver(engine.NewLogObserver()))
	}

	orch := engine.New(cfg, opts...)
	result := orch.Run(ctx, req)

	out, err := gojson.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))

	if !result.Success {
		return fmt.Errorf("acquisition failed: %s", result.Error)
	}
	return nil
}
