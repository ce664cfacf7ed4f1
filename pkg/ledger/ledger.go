// Package ledger submits parsed transactions to the YNAB transactions API.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ArionMiles/cashsync/pkg/api"
	"github.com/ArionMiles/cashsync/pkg/milliunit"
)

// DefaultBaseURL is the YNAB API root.
const DefaultBaseURL = "https://api.youneedabudget.com/v1"

// dateLayout matches JavaScript's Date.toISOString.
const dateLayout = "2006-01-02T15:04:05.000Z"

const (
	clearedStatus = "uncleared"
	flagColor     = "green"
)

// Config holds configuration for the ledger client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL  string
	BudgetID string
	APIToken string
	// Timeout bounds a single request. Defaults to 30 seconds.
	Timeout time.Duration
	// HTTPClient overrides the transport. Its Transport is wrapped to add
	// the bearer token.
	HTTPClient *http.Client
	// Now defaults to time.Now.
	Now func() time.Time
}

// Client posts transactions to a single budget.
type Client struct {
	httpClient *http.Client
	endpoint   string
	now        func() time.Time
	logger     *slog.Logger
}

// Transaction is the wire shape of a transaction.
type Transaction struct {
	AccountID  string  `json:"account_id"`
	Date       string  `json:"date"`
	Amount     string  `json:"amount"`
	PayeeName  string  `json:"payee_name"`
	Memo       string  `json:"memo"`
	CategoryID *string `json:"category_id"`
	Cleared    string  `json:"cleared"`
	FlagColor  string  `json:"flag_color"`
}

// TransactionRequest is the request body for creating a transaction.
type TransactionRequest struct {
	Transaction Transaction `json:"transaction"`
}

// errorResponse is the error body returned by the API.
type errorResponse struct {
	Error struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	ID         string
	Name       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("ledger api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("ledger api: status %d: %s (%s): %s", e.StatusCode, e.Name, e.ID, e.Detail)
}

// New creates a new ledger client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BudgetID == "" {
		return nil, fmt.Errorf("budget id is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("api token is required")
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	var baseTransport http.RoundTripper
	if cfg.HTTPClient != nil {
		baseTransport = cfg.HTTPClient.Transport
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIToken, TokenType: "Bearer"}),
			Base:   baseTransport,
		},
	}

	endpoint := strings.TrimSuffix(base, "/") + "/budgets/" + url.PathEscape(cfg.BudgetID) + "/transactions"

	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		now:        now,
		logger:     logger,
	}, nil
}

// NewRequestBody builds the wire body for txn dated at the given instant.
func NewRequestBody(txn api.ParsedTransaction, at time.Time) TransactionRequest {
	var category *string
	if txn.CategoryID != "" {
		id := txn.CategoryID
		category = &id
	}

	return TransactionRequest{
		Transaction: Transaction{
			AccountID:  txn.AccountID,
			Date:       at.UTC().Format(dateLayout),
			Amount:     milliunit.Encode(txn.Amount),
			PayeeName:  txn.Payee,
			Memo:       txn.Memo,
			CategoryID: category,
			Cleared:    clearedStatus,
			FlagColor:  flagColor,
		},
	}
}

// Submit posts txn to the budget. The success body is discarded.
func (c *Client) Submit(ctx context.Context, txn api.ParsedTransaction) error {
	body, err := json.Marshal(NewRequestBody(txn, c.now()))
	if err != nil {
		return fmt.Errorf("marshaling transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting transaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("submitted transaction",
		"account_id", txn.AccountID,
		"payee", txn.Payee,
		"amount", txn.Amount.String(),
		"status", resp.StatusCode,
	)
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.ID = body.Error.ID
		apiErr.Name = body.Error.Name
		apiErr.Detail = body.Error.Detail
	}
	return apiErr
}
