package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ArionMiles/cashsync/pkg/classifier"
	"github.com/ArionMiles/cashsync/pkg/config"
	"github.com/ArionMiles/cashsync/pkg/milliunit"
)

// runClassify classifies a subject without touching Gmail or the ledger.
func runClassify(args []string, out io.Writer) error {
	fs, configPath := newFlagSet("classify")
	bodyPath := fs.String("body", "", "file holding the message body, for body-reading rules")
	if err := fs.Parse(args); err != nil {
		return err
	}

	subject := strings.Join(fs.Args(), " ")
	if subject == "" {
		return errors.New("usage: cashsync classify [-config path] [-body file] <subject>")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	body := func(context.Context) (string, error) {
		if *bodyPath == "" {
			return "", nil
		}
		b, err := os.ReadFile(*bodyPath)
		if err != nil {
			return "", fmt.Errorf("reading body file: %w", err)
		}
		return string(b), nil
	}

	txn, err := newClassifier(cfg).Classify(context.Background(), subject, body)
	if errors.Is(err, classifier.ErrNoMatch) {
		fmt.Fprintf(out, "no match: %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "rule:      %s\n", txn.Rule)
	fmt.Fprintf(out, "payee:     %s\n", txn.Payee)
	fmt.Fprintf(out, "memo:      %s\n", txn.Memo)
	fmt.Fprintf(out, "account:   %s\n", txn.AccountID)
	fmt.Fprintf(out, "category:  %s\n", txn.CategoryID)
	fmt.Fprintf(out, "amount:    %s (%s milliunits)\n", txn.Amount.StringFixed(2), milliunit.Encode(txn.Amount))
	return nil
}
