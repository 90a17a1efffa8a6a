package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vihansingh1735-lab/cobalstonee/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Load and validate the configuration file, then print the effective settings.`,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		red := color.New(color.FgRed, color.Bold)
		red.Print("❌ Configuration invalid: ")
		fmt.Println(err)
		return fmt.Errorf("validation failed")
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Println("✅ Configuration valid")
	fmt.Println()

	bold := color.New(color.Bold)

	bold.Println("Storage")
	fmt.Printf("  type:               %s\n", cfg.Storage.Type)
	switch cfg.Storage.Type {
	case "redis":
		fmt.Printf("  redis:              %s:%d (db %d)\n", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, cfg.Storage.Redis.DB)
	default:
		fmt.Printf("  path:               %s\n", cfg.Storage.Path)
	}

	bold.Println("Tracking")
	fmt.Printf("  poll_tick:          %s\n", cfg.Tracking.PollTick)
	fmt.Printf("  lookup_concurrency: %d\n", cfg.Tracking.LookupConcurrency)
	fmt.Printf("  point_interval:     %s\n", cfg.Tracking.PointInterval)
	fmt.Printf("  daily_cap:          %d\n", cfg.Tracking.DailyCap)
	fmt.Printf("  scheduler_tick:     %s\n", cfg.Tracking.SchedulerTick)

	interval := parseDuration(cfg.Tracking.PointInterval, 10*time.Minute)
	maxPlay := time.Duration(cfg.Tracking.DailyCap) * interval
	fmt.Printf("  (cap reached after %s of daily presence)\n", maxPlay)

	bold.Println("Metrics")
	fmt.Printf("  bind:               %s:%d\n", cfg.Metrics.BindAddress, cfg.Metrics.Port)

	bold.Println("Logging")
	fmt.Printf("  level:              %s\n", cfg.Logging.Level)
	fmt.Printf("  format:             %s\n", cfg.Logging.Format)

	return nil
}
