package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vihansingh1735-lab/cobalstonee/internal/config"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

var (
	reportGroup    string
	reportTime     string
	reportTimezone string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Manage daily report schedules",
	Long: `Configure the daily report delivered for each group.

A group's report fires once per local calendar day, at or after the scheduled
time, and is delivered to the configured webhook URL.`,
}

var reportSetCmd = &cobra.Command{
	Use:   "set WEBHOOK_URL",
	Short: "Set a group's report schedule",
	Example: `  cobalstonee report set --group 1337 --time 09:00 --timezone America/New_York https://discord.com/api/webhooks/...`,
	Args:  cobra.ExactArgs(1),
	RunE:  runReportSet,
}

var reportClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove a group's report schedule",
	Args:  cobra.NoArgs,
	RunE:  runReportClear,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured report schedules",
	Args:  cobra.NoArgs,
	RunE:  runReportList,
}

func init() {
	reportSetCmd.Flags().StringVar(&reportGroup, "group", "", "Group ID (required)")
	reportSetCmd.Flags().StringVar(&reportTime, "time", "09:00", "Scheduled local time (HH:MM)")
	reportSetCmd.Flags().StringVar(&reportTimezone, "timezone", "UTC", "IANA timezone name")
	_ = reportSetCmd.MarkFlagRequired("group")

	reportClearCmd.Flags().StringVar(&reportGroup, "group", "", "Group ID (required)")
	_ = reportClearCmd.MarkFlagRequired("group")

	reportCmd.AddCommand(reportSetCmd)
	reportCmd.AddCommand(reportClearCmd)
	reportCmd.AddCommand(reportListCmd)
	rootCmd.AddCommand(reportCmd)
}

func runReportSet(cmd *cobra.Command, args []string) error {
	webhookURL := args[0]

	if _, err := time.Parse("15:04", reportTime); err != nil {
		return fmt.Errorf("invalid --time %q: expected HH:MM", reportTime)
	}
	if _, err := time.LoadLocation(reportTimezone); err != nil {
		return fmt.Errorf("invalid --timezone %q: %w", reportTimezone, err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	group := storage.GroupReportConfig{
		GroupID:       reportGroup,
		WebhookURL:    webhookURL,
		ScheduledTime: reportTime,
		Timezone:      reportTimezone,
	}

	// Updating a schedule must not re-fire a report already sent today.
	existing, err := store.Groups().Get(ctx, reportGroup)
	if err == nil {
		group.LastSentDay = existing.LastSentDay
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read existing schedule: %w", err)
	}

	if err := store.Groups().Upsert(ctx, group); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Print("✅ Schedule saved")
	fmt.Printf(" for group %s: daily at %s %s\n", reportGroup, reportTime, reportTimezone)

	return nil
}

func runReportClear(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := store.Groups().Delete(ctx, reportGroup); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("group %s has no report schedule", reportGroup)
		}
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	red := color.New(color.FgRed, color.Bold)
	red.Print("❌ Schedule removed")
	fmt.Printf(" for group %s\n", reportGroup)

	return nil
}

func runReportList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	groups, err := store.Groups().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schedules: %w", err)
	}

	if len(groups) == 0 {
		fmt.Println("(no report schedules configured)")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Printf("%-12s %-7s %-24s %-12s %s\n", "GROUP", "TIME", "TIMEZONE", "LAST SENT", "WEBHOOK")

	for _, group := range groups {
		lastSent := group.LastSentDay
		if lastSent == "" {
			lastSent = "-"
		}
		fmt.Printf("%-12s %-7s %-24s %-12s %s\n",
			group.GroupID, group.ScheduledTime, group.Timezone, lastSent, truncateURL(group.WebhookURL))
	}

	return nil
}

func truncateURL(url string) string {
	if len(url) > 48 {
		return url[:45] + "..."
	}
	return url
}
