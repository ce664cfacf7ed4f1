package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ArionMiles/cashsync/pkg/api"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"budget_id": "budget-1",
		"api_token": "token",
		"inbox_label": "Cash/Inbox",
		"processed_label": "Cash/Processed",
		"checking_account_id": "checking-123",
		"square_cash_account_id": "square-456",
		"request_timeout": "45s",
		"payee_categories": {"Landlord": "cat-rent"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := &Config{
		BudgetID:            "budget-1",
		APIToken:            "token",
		APIBaseURL:          DefaultAPIBaseURL,
		InboxLabel:          "Cash/Inbox",
		ProcessedLabel:      "Cash/Processed",
		CheckingAccountID:   "checking-123",
		SquareCashAccountID: "square-456",
		PayeeCategories:     api.Categories{"Landlord": "cat-rent"},
		SecretsFilePath:     ClientSecretFile,
		TokenFilePath:       TokenFile,
		RequestTimeout:      45 * time.Second,
	}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "budget_id: budget-yaml\namazon_enabled: true\namazon_visa_account_id: visa-1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BudgetID != "budget-yaml" || !cfg.AmazonEnabled || cfg.AmazonVisaAccountID != "visa-1" {
		t.Errorf("yaml values not loaded: %+v", cfg)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.json", `{"budget_id": "from-file", "inbox_label": "Cash/Inbox"}`)
	t.Setenv("CASHSYNC_BUDGET_ID", "from-env")
	t.Setenv("CASHSYNC_AMAZON_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BudgetID != "from-env" {
		t.Errorf("budget_id: got %q, want env value", cfg.BudgetID)
	}
	if cfg.InboxLabel != "Cash/Inbox" {
		t.Errorf("inbox_label: got %q, want file value", cfg.InboxLabel)
	}
	if !cfg.AmazonEnabled {
		t.Errorf("amazon_enabled: got false, want true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CASHSYNC_API_TOKEN", "env-token")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIToken != "env-token" {
		t.Errorf("api_token: got %q", cfg.APIToken)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("request_timeout default: got %v", cfg.RequestTimeout)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "config.toml", `budget_id = "x"`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for unsupported extension, got nil")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		BudgetID:            "b",
		APIToken:            "t",
		InboxLabel:          "in",
		ProcessedLabel:      "done",
		CheckingAccountID:   "c",
		SquareCashAccountID: "s",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing token and checking",
			mutate:  func(c *Config) { c.APIToken = ""; c.CheckingAccountID = "" },
			wantErr: []string{"api_token", "checking_account_id"},
		},
		{
			name:    "amazon enabled without account",
			mutate:  func(c *Config) { c.AmazonEnabled = true },
			wantErr: []string{"amazon_visa_account_id"},
		},
		{
			name:    "same labels",
			mutate:  func(c *Config) { c.ProcessedLabel = c.InboxLabel },
			wantErr: []string{"must differ"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()

			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Errorf("Validate: unexpected error %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate: expected error mentioning %v", tc.wantErr)
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}
