package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/vihansingh1735-lab/cobalstonee/internal/config"
	"github.com/vihansingh1735-lab/cobalstonee/internal/presence"
)

var checkCmd = &cobra.Command{
	Use:   "check USERNAME",
	Short: "Check a Roblox account's profile and current presence",
	Long:  `Resolve a Roblox username and show its profile together with the presence status the poller would observe right now.`,
	Example: `  cobalstonee check builderman
  cobalstonee -c config.yaml check builderman`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	username := args[0]

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
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

	remoteID := strconv.FormatInt(resolved.ID, 10)

	info, err := client.UserInfo(ctx, remoteID)
	if err != nil {
		return err
	}

	avatarURL, err := client.AvatarURL(ctx, remoteID)
	if err != nil {
		// The profile is the interesting part; a missing avatar is not fatal.
		avatarURL = "(unavailable)"
	}

	result, err := client.Lookup(ctx, remoteID)
	if err != nil {
		result = presence.Result{Status: presence.StatusUnknown}
	}

	printCheckResult(info, avatarURL, result)

	return nil
}

// printCheckResult prints the account check result with colors
func printCheckResult(info *presence.UserInfo, avatarURL string, result presence.Result) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("ROBLOX ACCOUNT CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Username:     %s\n", info.Name)
	fmt.Printf("Display name: %s\n", info.DisplayName)
	fmt.Printf("User ID:      %d\n", info.ID)
	if !info.Created.IsZero() {
		age := int(time.Since(info.Created).Hours() / 24)
		fmt.Printf("Created:      %s (%d days ago)\n", info.Created.Format("2006-01-02"), age)
	}
	fmt.Printf("Avatar:       %s\n", avatarURL)
	fmt.Println()

	cyan.Print("Presence:     ")
	switch result.Status {
	case presence.StatusActive:
		green.Println("IN SESSION")
		if result.Location != "" {
			fmt.Printf("              → %s\n", result.Location)
		}
		fmt.Println("              → Tracked time is accruing")
	case presence.StatusInactive:
		yellow.Println("INACTIVE")
		fmt.Println("              → Not in a game right now")
	default:
		red.Println("UNKNOWN")
		fmt.Println("              → Presence could not be determined")
		fmt.Println("              → The poller would leave the record untouched")
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}
