package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ArionMiles/cashsync/pkg/client"
	"github.com/ArionMiles/cashsync/pkg/config"
)

// runSetup handles the OAuth setup flow.
func runSetup(args []string, logger *slog.Logger) error {
	fs, configPath := newFlagSet("setup")
	force := fs.Bool("force", false, "re-authenticate even if a token exists")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	secretsPath, tokenPath := cfg.SecretsFilePath, cfg.TokenFilePath

	fmt.Println("=== cashsync Setup ===")
	fmt.Println()

	if _, err := os.Stat(secretsPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", secretsPath, secretsPath)
	}

	if !*force {
		if _, err := os.Stat(tokenPath); err == nil {
			fmt.Printf("Already authenticated! Token file exists: %s\n", tokenPath)
			fmt.Println()
			fmt.Println("To re-authenticate, run: cashsync setup -force")
			return nil
		}
	} else {
		if err := os.Remove(tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove existing token", "error", err)
		}
		fmt.Println("Forcing re-authentication...")
		fmt.Println()
	}

	fmt.Println("Required permissions:")
	fmt.Println("  - Gmail: read notifications, mark them read and move them between labels")
	fmt.Println()

	if _, err := client.New(context.Background(), client.Options{
		SecretsFile: secretsPath,
		TokenFile:   tokenPath,
		Interactive: true,
	}); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Setup Complete ===")
	fmt.Println()
	fmt.Printf("Token saved to: %s\n", tokenPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Fill in config.json or CASHSYNC_* environment variables")
	fmt.Println("  2. Run 'cashsync status' to verify, then 'cashsync run'")
	fmt.Println()

	return nil
}
