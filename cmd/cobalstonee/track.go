package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/vihansingh1735-lab/cobalstonee/internal/accrual"
	"github.com/vihansingh1735-lab/cobalstonee/internal/config"
	"github.com/vihansingh1735-lab/cobalstonee/internal/presence"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

var (
	trackGroup  string
	trackMember string
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Manage tracked identities",
	Long: `Add, remove, and list the remote accounts tracked for a group.

These commands write directly to the persistent store; a running server picks
the changes up at its next start.`,
}

var trackAddCmd = &cobra.Command{
	Use:   "add USERNAME",
	Short: "Track a Roblox account for a group member",
	Example: `  cobalstonee track add --group 1337 --member 42 builderman`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTrackAdd,
}

var trackRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Stop tracking a group member",
	Args:  cobra.NoArgs,
	RunE:  runTrackRemove,
}

var trackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked identities",
	Args:  cobra.NoArgs,
	RunE:  runTrackList,
}

func init() {
	trackAddCmd.Flags().StringVar(&trackGroup, "group", "", "Group ID (required)")
	trackAddCmd.Flags().StringVar(&trackMember, "member", "", "Member ID (required)")
	_ = trackAddCmd.MarkFlagRequired("group")
	_ = trackAddCmd.MarkFlagRequired("member")

	trackRemoveCmd.Flags().StringVar(&trackGroup, "group", "", "Group ID (required)")
	trackRemoveCmd.Flags().StringVar(&trackMember, "member", "", "Member ID (required)")
	_ = trackRemoveCmd.MarkFlagRequired("group")
	_ = trackRemoveCmd.MarkFlagRequired("member")

	trackListCmd.Flags().StringVar(&trackGroup, "group", "", "Only list this group")

	trackCmd.AddCommand(trackAddCmd)
	trackCmd.AddCommand(trackRemoveCmd)
	trackCmd.AddCommand(trackListCmd)
	rootCmd.AddCommand(trackCmd)
}

func runTrackAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	client, err := presence.NewRobloxClient(presence.RobloxConfig{
		UsersURL:      cfg.Presence.UsersURL,
		PresenceURL:   cfg.Presence.PresenceURL,
		ThumbnailsURL: cfg.Presence.ThumbnailsURL,
		Timeout:       parseDuration(cfg.Presence.Timeout, presence.DefaultTimeout),
		CacheSize:     cfg.Presence.CacheSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize presence client: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	resolved, err := client.ResolveUsername(ctx, username)
	if err != nil {
		return err
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	now := time.Now()
	record := storage.AccrualRecord{
		GroupID:      trackGroup,
		MemberID:     trackMember,
		RemoteID:     strconv.FormatInt(resolved.ID, 10),
		DisplayName:  resolved.DisplayName,
		SessionState: storage.SessionOffline,
		LastResetDay: accrual.DayKey(now, time.UTC),
		TrackedAt:    now,
	}

	if err := store.Accruals().Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Printf("✅ Tracking %s", resolved.Name)
	fmt.Printf(" (id %d) for member %s in group %s\n", resolved.ID, trackMember, trackGroup)

	return nil
}

func runTrackRemove(cmd *cobra.Command, args []string) error {
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

	if err := store.Accruals().Delete(ctx, trackGroup, trackMember); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("member %s in group %s is not tracked", trackMember, trackGroup)
		}
		return fmt.Errorf("failed to delete record: %w", err)
	}

	red := color.New(color.FgRed, color.Bold)
	red.Print("❌ Untracked")
	fmt.Printf(" member %s in group %s\n", trackMember, trackGroup)

	return nil
}

func runTrackList(cmd *cobra.Command, args []string) error {
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

	records, err := store.Accruals().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Printf("%-12s %-12s %-12s %-20s %-12s %8s %8s\n",
		"GROUP", "MEMBER", "REMOTE ID", "DISPLAY NAME", "STATE", "TODAY", "TOTAL")

	count := 0
	for _, record := range records {
		if trackGroup != "" && record.GroupID != trackGroup {
			continue
		}
		count++
		fmt.Printf("%-12s %-12s %-12s %-20s %-12s %8d %8d\n",
			record.GroupID, record.MemberID, record.RemoteID, record.DisplayName,
			record.SessionState, record.PointsToday, record.PointsTotal)
	}

	if count == 0 {
		fmt.Println("(no tracked identities)")
	}

	return nil
}
