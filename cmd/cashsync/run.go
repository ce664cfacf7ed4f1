package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArionMiles/cashsync/pkg/classifier"
	"github.com/ArionMiles/cashsync/pkg/client"
	"github.com/ArionMiles/cashsync/pkg/config"
	"github.com/ArionMiles/cashsync/pkg/ledger"
	"github.com/ArionMiles/cashsync/pkg/orchestrator"
	gmailreader "github.com/ArionMiles/cashsync/pkg/reader/gmail"
)

// runProcess makes one pass over the inbox label.
func runProcess(args []string, logger *slog.Logger) error {
	fs, configPath := newFlagSet("run")
	dryRun := fs.Bool("dry-run", false, "classify and log without submitting or relabeling")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("configuration loaded",
		"inbox_label", cfg.InboxLabel,
		"processed_label", cfg.ProcessedLabel,
		"amazon_enabled", cfg.AmazonEnabled,
		"payee_categories", len(cfg.PayeeCategories),
	)

	// Setup context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	httpClient, err := client.New(ctx, client.Options{
		SecretsFile: cfg.SecretsFilePath,
		TokenFile:   cfg.TokenFilePath,
	})
	if err != nil {
		return fmt.Errorf("creating http client: %w", err)
	}

	reader, err := gmailreader.New(ctx, httpClient, gmailreader.Config{}, logger.With("component", "gmail_reader"))
	if err != nil {
		return fmt.Errorf("creating gmail reader: %w", err)
	}

	submitter, err := ledger.New(ledger.Config{
		BaseURL:  cfg.APIBaseURL,
		BudgetID: cfg.BudgetID,
		APIToken: cfg.APIToken,
		Timeout:  cfg.RequestTimeout,
	}, logger.With("component", "ledger"))
	if err != nil {
		return fmt.Errorf("creating ledger client: %w", err)
	}

	processor, err := orchestrator.New(reader, newClassifier(cfg), submitter, orchestrator.Config{
		InboxLabel:     cfg.InboxLabel,
		ProcessedLabel: cfg.ProcessedLabel,
		DryRun:         *dryRun,
	}, logger.With("component", "processor"))
	if err != nil {
		return fmt.Errorf("creating processor: %w", err)
	}

	if _, err := processor.ProcessOnce(ctx); err != nil {
		return fmt.Errorf("processing inbox: %w", err)
	}
	return nil
}

func newClassifier(cfg *config.Config) *classifier.Classifier {
	return classifier.New(classifier.Config{
		AmazonEnabled: cfg.AmazonEnabled,
		Accounts: classifier.Accounts{
			Checking:   cfg.CheckingAccountID,
			SquareCash: cfg.SquareCashAccountID,
			AmazonVisa: cfg.AmazonVisaAccountID,
		},
		DefaultCategoryID: cfg.CategoryID,
		PayeeCategories:   cfg.PayeeCategories,
	})
}
