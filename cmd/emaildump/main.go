// Command emaildump saves the subject and first message body of every
// thread under the inbox label, for building classifier fixtures.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ArionMiles/cashsync/pkg/api"
	"github.com/ArionMiles/cashsync/pkg/classifier"
	"github.com/ArionMiles/cashsync/pkg/client"
	"github.com/ArionMiles/cashsync/pkg/config"
	"github.com/ArionMiles/cashsync/pkg/logging"
	gmailreader "github.com/ArionMiles/cashsync/pkg/reader/gmail"
)

const defaultDumpDir = "tests/data/notifications"

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	underscores = regexp.MustCompile(`_+`)
)

func main() {
	logger := logging.Setup(logging.FromEnv())

	configPath := flag.String("config", config.DefaultConfigFile, "path to a JSON or YAML config file")
	dumpDir := flag.String("out", defaultDumpDir, "directory to write fixtures to")
	label := flag.String("label", "", "label to dump (defaults to inbox_label)")
	flag.Parse()

	if err := run(*configPath, *dumpDir, *label, logger); err != nil {
		logger.Error("email dump failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, dumpDir, label string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if label == "" {
		label = cfg.InboxLabel
	}
	if label == "" {
		return errors.New("no label given and inbox_label is not set")
	}

	ctx := context.Background()

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

	threads, err := reader.Threads(ctx, label)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		return fmt.Errorf("creating dump directory: %w", err)
	}

	c := classifier.New(classifier.Config{
		AmazonEnabled: true,
		Accounts: classifier.Accounts{
			Checking:   cfg.CheckingAccountID,
			SquareCash: cfg.SquareCashAccountID,
			AmazonVisa: cfg.AmazonVisaAccountID,
		},
	})

	dumped := 0
	for _, thread := range threads {
		if err := dumpThread(ctx, thread, c, dumpDir, logger); err != nil {
			logger.Warn("failed to dump thread", "thread_id", thread.ID(), "error", err)
			continue
		}
		dumped++
	}

	logger.Info("email dump complete", "total_dumped", dumped, "directory", dumpDir)
	return nil
}

func dumpThread(ctx context.Context, thread api.Thread, c *classifier.Classifier, dumpDir string, logger *slog.Logger) error {
	body, err := thread.FirstMessageBody(ctx)
	if err != nil {
		return err
	}

	filename := sanitizeFilename(fmt.Sprintf("%s_%s", thread.ID(), thread.Subject())) + ".txt"
	filePath := filepath.Join(dumpDir, filename)

	if _, err := os.Stat(filePath); err == nil {
		logger.Debug("file already exists, skipping", "file", filename)
		return nil
	}

	content := "Subject: " + thread.Subject() + "\n\n" + body
	if err := os.WriteFile(filePath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	attrs := []any{"file", filename, "subject", thread.Subject()}
	txn, err := c.Classify(ctx, thread.Subject(), thread.FirstMessageBody)
	if err != nil {
		attrs = append(attrs, "classification", err.Error())
	} else {
		attrs = append(attrs, "rule", txn.Rule, "payee", txn.Payee, "amount", txn.Amount.String())
	}
	logger.Info("dumped notification", attrs...)

	return nil
}

func sanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.ReplaceAll(name, " ", "_")
	name = underscores.ReplaceAllString(name, "_")

	name = strings.Trim(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}
