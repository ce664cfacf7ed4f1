package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"golang.org/x/oauth2"

	"github.com/ArionMiles/cashsync/pkg/client"
	"github.com/ArionMiles/cashsync/pkg/config"
	gmailreader "github.com/ArionMiles/cashsync/pkg/reader/gmail"
)

// runStatus checks the configuration and authentication status.
func runStatus(args []string) error {
	fs, configPath := newFlagSet("status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("=== cashsync Status ===")
	fmt.Println()

	allGood := true

	cfg := checkConfig(*configPath, &allGood)
	if cfg == nil {
		printFinalStatus(false)
		return nil
	}

	checkFile("Credentials file", cfg.SecretsFilePath, &allGood)
	token := checkTokenStatus(cfg.TokenFilePath, &allGood)
	if token != nil {
		checkGmail(cfg, &allGood)
	}

	printFinalStatus(allGood)
	return nil
}

func checkConfig(configPath string, allGood *bool) *config.Config {
	fmt.Printf("Config file (%s): ", configPath)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		fmt.Println("- Not found (using environment only)")
	} else {
		fmt.Println("✓ Found")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Settings: ✗ %v\n", err)
		*allGood = false
		return nil
	}

	fmt.Print("Settings: ")
	if err := cfg.Validate(); err != nil {
		fmt.Println("✗ Incomplete")
		for _, line := range splitErrors(err) {
			fmt.Printf("  - %s\n", line)
		}
		*allGood = false
	} else {
		fmt.Println("✓ Complete")
	}

	fmt.Print("Amazon rule: ")
	if cfg.AmazonEnabled {
		fmt.Println("enabled")
	} else {
		fmt.Println("disabled")
	}
	return cfg
}

func splitErrors(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var lines []string
		for _, e := range joined.Unwrap() {
			lines = append(lines, e.Error())
		}
		return lines
	}
	return []string{err.Error()}
}

func checkFile(name, path string, allGood *bool) {
	fmt.Printf("%s (%s): ", name, path)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Println("✗ Not found")
		*allGood = false
	} else {
		fmt.Println("✓ Found")
	}
}

func checkTokenStatus(path string, allGood *bool) *oauth2.Token {
	fmt.Printf("OAuth token (%s): ", path)
	token, err := client.LoadToken(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("✗ Not found (run 'cashsync setup')")
		} else {
			fmt.Printf("✗ %v\n", err)
		}
		*allGood = false
		return nil
	}

	if token.Expiry.Before(time.Now()) {
		fmt.Println("⚠ Expired (will refresh on next run)")
	} else {
		fmt.Printf("✓ Valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}
	return token
}

// checkGmail verifies API access and that both labels exist.
func checkGmail(cfg *config.Config, allGood *bool) {
	fmt.Println()
	fmt.Println("Gmail:")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	httpClient, err := client.New(ctx, client.Options{
		SecretsFile: cfg.SecretsFilePath,
		TokenFile:   cfg.TokenFilePath,
	})
	if err != nil {
		fmt.Printf("  OAuth client: ✗ %v\n", err)
		*allGood = false
		return
	}

	reader, err := gmailreader.New(ctx, httpClient, gmailreader.Config{}, nil)
	if err != nil {
		fmt.Printf("  API: ✗ %v\n", err)
		*allGood = false
		return
	}

	names, err := reader.LabelNames(ctx)
	if err != nil {
		fmt.Printf("  API: ✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Println("  API: ✓ Connected")

	for _, label := range []string{cfg.InboxLabel, cfg.ProcessedLabel} {
		if label == "" {
			continue
		}
		fmt.Printf("  Label %q: ", label)
		if slices.Contains(names, label) {
			fmt.Println("✓ Exists")
		} else {
			fmt.Println("✗ Not found")
			*allGood = false
		}
	}
}

func printFinalStatus(allGood bool) {
	fmt.Println()
	if allGood {
		fmt.Println("Status: ✓ Ready to run")
		fmt.Println()
		fmt.Println("Run 'cashsync run' to process notifications.")
	} else {
		fmt.Println("Status: ✗ Configuration issues detected")
		fmt.Println()
		fmt.Println("Fix the issues above, then run 'cashsync status' again.")
	}
}
