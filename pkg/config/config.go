// Package config loads cashsync settings from an optional file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kJson "github.com/knadh/koanf/parsers/json"
	kYAML "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ArionMiles/cashsync/pkg/api"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	// CASHSYNC_BUDGET_ID sets budget_id.
	EnvPrefix = "CASHSYNC_"

	// DefaultConfigFile is read when present and no other path is given.
	DefaultConfigFile = "config.json"
	// ClientSecretFile is the default path to the Google OAuth credentials JSON file.
	ClientSecretFile = "data/client_secret.json"
	// TokenFile is the default path to the cached Gmail OAuth token.
	TokenFile = "data/token.json"
	// DefaultAPIBaseURL is the ledger API root.
	DefaultAPIBaseURL = "https://api.youneedabudget.com/v1"
)

// Config holds the process-wide settings. It is built once at startup and
// passed to the components that need it.
type Config struct {
	// BudgetID is the ledger budget transactions are created in.
	BudgetID string `koanf:"budget_id"`
	// CategoryID is the default category; empty sends null.
	CategoryID string `koanf:"category_id"`
	APIToken   string `koanf:"api_token"`
	APIBaseURL string `koanf:"api_base_url"`

	// InboxLabel holds unprocessed notifications.
	InboxLabel string `koanf:"inbox_label"`
	// ProcessedLabel receives notifications after a successful submission.
	ProcessedLabel string `koanf:"processed_label"`

	CheckingAccountID   string `koanf:"checking_account_id"`
	SquareCashAccountID string `koanf:"square_cash_account_id"`
	AmazonVisaAccountID string `koanf:"amazon_visa_account_id"`
	// AmazonEnabled turns on the Amazon order rule.
	AmazonEnabled bool `koanf:"amazon_enabled"`

	// PayeeCategories overrides CategoryID for specific payees.
	PayeeCategories api.Categories `koanf:"payee_categories"`

	SecretsFilePath string        `koanf:"secrets_file"`
	TokenFilePath   string        `koanf:"token_file"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
}

// Load reads path (JSON or YAML by extension) when it exists, then applies
// CASHSYNC_* environment variables on top. An empty path means
// DefaultConfigFile. A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return kJson.Parser(), nil
	case ".yaml", ".yml":
		return kYAML.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
}

func (c *Config) applyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.SecretsFilePath == "" {
		c.SecretsFilePath = ClientSecretFile
	}
	if c.TokenFilePath == "" {
		c.TokenFilePath = TokenFile
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// Validate reports every missing required setting.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"budget_id", c.BudgetID},
		{"api_token", c.APIToken},
		{"inbox_label", c.InboxLabel},
		{"processed_label", c.ProcessedLabel},
		{"checking_account_id", c.CheckingAccountID},
		{"square_cash_account_id", c.SquareCashAccountID},
	}
	if c.AmazonEnabled {
		required = append(required, struct {
			key   string
			value string
		}{"amazon_visa_account_id", c.AmazonVisaAccountID})
	}

	var errs []error
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required (env %s%s)", r.key, EnvPrefix, strings.ToUpper(r.key)))
		}
	}
	if c.InboxLabel != "" && c.InboxLabel == c.ProcessedLabel {
		errs = append(errs, fmt.Errorf("inbox_label and processed_label must differ"))
	}
	return errors.Join(errs...)
}
