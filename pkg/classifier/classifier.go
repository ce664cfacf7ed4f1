// Package classifier turns payment notification subjects into ledger
// transactions using an ordered list of rules.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/cashsync/pkg/api"
)

// ErrNoMatch is returned when no rule matched, or a rule matched but one of
// the transaction fields could not be resolved.
var ErrNoMatch = errors.New("no matching rule")

// BodyFunc returns the plain-text body of a notification's first message.
type BodyFunc func(ctx context.Context) (string, error)

// Accounts holds the ledger account ids rules route transactions to.
type Accounts struct {
	Checking   string
	SquareCash string
	AmazonVisa string
}

func (a Accounts) lookup(acct Account) string {
	switch acct {
	case AccountChecking:
		return a.Checking
	case AccountSquareCash:
		return a.SquareCash
	case AccountAmazonVisa:
		return a.AmazonVisa
	default:
		return ""
	}
}

// Config holds configuration for the classifier.
type Config struct {
	// Rules are evaluated in order. Defaults to DefaultRules(AmazonEnabled).
	Rules         []Rule
	AmazonEnabled bool
	Accounts      Accounts
	// DefaultCategoryID is used for payees missing from PayeeCategories.
	DefaultCategoryID string
	PayeeCategories   api.Categories
}

// Classifier applies rules to notifications. It holds no mutable state.
type Classifier struct {
	rules           []Rule
	accounts        Accounts
	defaultCategory string
	categories      api.Categories
}

// New creates a new classifier.
func New(cfg Config) *Classifier {
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultRules(cfg.AmazonEnabled)
	}

	return &Classifier{
		rules:           rules,
		accounts:        cfg.Accounts,
		defaultCategory: cfg.DefaultCategoryID,
		categories:      cfg.PayeeCategories,
	}
}

// Rules returns the names of the active rules in priority order.
func (c *Classifier) Rules() []string {
	names := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		names = append(names, r.Name())
	}
	return names
}

// Classify returns the transaction described by the first rule matching
// subject. Misses wrap ErrNoMatch; any other error comes from body.
func (c *Classifier) Classify(ctx context.Context, subject string, body BodyFunc) (api.ParsedTransaction, error) {
	for _, rule := range c.rules {
		fields, ok, err := rule.Match(ctx, subject, body)
		if err != nil {
			return api.ParsedTransaction{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		if !ok {
			continue
		}
		return c.resolve(rule.Name(), fields)
	}
	return api.ParsedTransaction{}, ErrNoMatch
}

// resolve applies defaults and account routing, and rejects incomplete
// transactions.
func (c *Classifier) resolve(rule string, f Fields) (api.ParsedTransaction, error) {
	amountStr, ok := f.Amount.Value()
	if !ok {
		return api.ParsedTransaction{}, missing(rule, "amount")
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return api.ParsedTransaction{}, fmt.Errorf("%w: rule %s: parsing amount %q: %v", ErrNoMatch, rule, amountStr, err)
	}
	if f.Outgoing {
		amount = amount.Neg()
	}

	payee := f.Payee.Or("")
	if payee == "" {
		return api.ParsedTransaction{}, missing(rule, "payee")
	}

	memo := f.Memo.Or(f.MemoDefault)
	if memo == "" {
		return api.ParsedTransaction{}, missing(rule, "memo")
	}

	accountID := c.accounts.lookup(f.Account)
	if accountID == "" {
		return api.ParsedTransaction{}, missing(rule, f.Account.String())
	}

	category := c.categories.CategoryLookup(payee)
	if category == "" {
		category = c.defaultCategory
	}

	return api.ParsedTransaction{
		Amount:     amount,
		Payee:      payee,
		Memo:       memo,
		AccountID:  accountID,
		CategoryID: category,
		Rule:       rule,
	}, nil
}

func missing(rule, field string) error {
	return fmt.Errorf("%w: rule %s matched but %s is empty", ErrNoMatch, rule, field)
}
