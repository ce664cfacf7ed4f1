// Package orchestrator drives one pass over the unprocessed notifications:
// classify, submit, then move each notification to the processed label.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ArionMiles/cashsync/pkg/api"
	"github.com/ArionMiles/cashsync/pkg/classifier"
)

// Classifier turns a notification subject into a transaction.
type Classifier interface {
	Classify(ctx context.Context, subject string, body classifier.BodyFunc) (api.ParsedTransaction, error)
}

// Config holds configuration for the processor.
type Config struct {
	InboxLabel     string
	ProcessedLabel string
	// DryRun classifies without submitting or relabeling.
	DryRun bool
}

// Summary counts the outcome of a pass.
type Summary struct {
	Seen      int
	Processed int
	Skipped   int
}

// Processor runs passes over an inbox.
type Processor struct {
	inbox      api.Inbox
	classifier Classifier
	submitter  api.Submitter
	cfg        Config
	logger     *slog.Logger
}

// New creates a new processor.
func New(inbox api.Inbox, c Classifier, submitter api.Submitter, cfg Config, logger *slog.Logger) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InboxLabel == "" || cfg.ProcessedLabel == "" {
		return nil, fmt.Errorf("inbox and processed labels are required")
	}
	if cfg.InboxLabel == cfg.ProcessedLabel {
		return nil, fmt.Errorf("inbox and processed labels must differ, both are %q", cfg.InboxLabel)
	}

	return &Processor{
		inbox:      inbox,
		classifier: c,
		submitter:  submitter,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// ProcessOnce makes a single sequential pass over the inbox label.
// Classification misses are logged and left in place. The first submission
// or mailbox error ends the pass; notifications already handled stay
// processed.
func (p *Processor) ProcessOnce(ctx context.Context) (Summary, error) {
	logger := p.logger.With("run_id", uuid.NewString())
	var summary Summary

	threads, err := p.inbox.Threads(ctx, p.cfg.InboxLabel)
	if err != nil {
		return summary, fmt.Errorf("listing unprocessed threads: %w", err)
	}

	logger.Info("starting pass", "label", p.cfg.InboxLabel, "count", len(threads), "dry_run", p.cfg.DryRun)

	for _, thread := range threads {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Seen++

		handled, err := p.processThread(ctx, logger.With("thread_id", thread.ID()), thread)
		if err != nil {
			return summary, fmt.Errorf("thread %s: %w", thread.ID(), err)
		}
		if handled {
			summary.Processed++
		} else {
			summary.Skipped++
		}
	}

	logger.Info("pass complete",
		"seen", summary.Seen,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// processThread reports whether the thread was submitted.
func (p *Processor) processThread(ctx context.Context, logger *slog.Logger, thread api.Thread) (bool, error) {
	subject := thread.Subject()

	txn, err := p.classifier.Classify(ctx, subject, thread.FirstMessageBody)
	if errors.Is(err, classifier.ErrNoMatch) {
		logger.Info("unable to classify notification", "subject", subject, "reason", err)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("classifying: %w", err)
	}

	logger = logger.With("rule", txn.Rule, "payee", txn.Payee, "amount", txn.Amount.String())

	if p.cfg.DryRun {
		logger.Info("dry run, not submitting", "memo", txn.Memo, "account_id", txn.AccountID)
		return false, nil
	}

	if err := p.submitter.Submit(ctx, txn); err != nil {
		return false, fmt.Errorf("submitting transaction: %w", err)
	}

	if err := p.markProcessed(ctx, thread); err != nil {
		return false, err
	}

	logger.Info("processed notification")
	return true, nil
}

func (p *Processor) markProcessed(ctx context.Context, thread api.Thread) error {
	if err := p.inbox.RemoveLabel(ctx, thread, p.cfg.InboxLabel); err != nil {
		return fmt.Errorf("removing inbox label: %w", err)
	}
	if err := p.inbox.MarkRead(ctx, thread); err != nil {
		return fmt.Errorf("marking read: %w", err)
	}
	if err := p.inbox.AddLabel(ctx, thread, p.cfg.ProcessedLabel); err != nil {
		return fmt.Errorf("adding processed label: %w", err)
	}
	return nil
}
