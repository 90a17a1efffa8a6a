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

var statsGroup string

var statsCmd = &cobra.Command{
	Use:   "stats [MEMBER_ID]",
	Short: "Show accrual statistics",
	Long: `Show accrual statistics for a group, or for a single member when a
member ID is given.`,
	Example: `  cobalstonee stats --group 1337
  cobalstonee stats --group 1337 42`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsGroup, "group", "", "Group ID (required)")
	_ = statsCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	if len(args) == 1 {
		record, err := store.Accruals().Get(ctx, statsGroup, args[0])
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("member %s in group %s is not tracked", args[0], statsGroup)
			}
			return fmt.Errorf("failed to read record: %w", err)
		}
		printMemberStats(record)
		return nil
	}

	records, err := store.Accruals().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)

	bold.Printf("Group %s\n", statsGroup)
	cyan.Printf("%-12s %-20s %-12s %10s %8s %8s %8s\n",
		"MEMBER", "DISPLAY NAME", "STATE", "PLAYED", "TODAY", "TOTAL", "CARRY")

	var totalToday, totalAll int64
	count := 0
	for _, record := range records {
		if record.GroupID != statsGroup {
			continue
		}
		count++
		totalToday += record.PointsToday
		totalAll += record.PointsTotal
		fmt.Printf("%-12s %-20s %-12s %10s %8d %8d %7ds\n",
			record.MemberID, record.DisplayName, record.SessionState,
			formatSeconds(record.PlayedToday), record.PointsToday, record.PointsTotal,
			record.CarrySeconds)
	}

	if count == 0 {
		fmt.Println("(no tracked identities in this group)")
		return nil
	}

	fmt.Println()
	fmt.Printf("%d tracked, %d points today, %d points all time\n", count, totalToday, totalAll)

	return nil
}

func printMemberStats(record *storage.AccrualRecord) {
	bold := color.New(color.Bold)

	bold.Printf("%s", record.DisplayName)
	fmt.Printf(" (member %s, remote %s)\n\n", record.MemberID, record.RemoteID)

	state := color.New(color.FgYellow)
	if record.SessionState == storage.SessionActive {
		state = color.New(color.FgGreen, color.Bold)
	}
	fmt.Print("  State:         ")
	state.Println(string(record.SessionState))
	if record.SessionState == storage.SessionActive && record.SessionStartedAt != nil {
		fmt.Printf("  In session:    %s\n", formatSeconds(int64(time.Since(*record.SessionStartedAt).Seconds())))
	}

	fmt.Printf("  Played today:  %s\n", formatSeconds(record.PlayedToday))
	fmt.Printf("  Points today:  %d\n", record.PointsToday)
	fmt.Printf("  Points total:  %d\n", record.PointsTotal)
	fmt.Printf("  Carry-over:    %ds\n", record.CarrySeconds)
	fmt.Printf("  Tracked since: %s\n", record.TrackedAt.Format("2006-01-02"))
}

func formatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
