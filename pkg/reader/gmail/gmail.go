// Package gmail implements api.Inbox on top of Gmail threads and labels.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ArionMiles/cashsync/pkg/api"
)

const (
	user        = "me"
	unreadLabel = "UNREAD"
)

// Reader exposes labeled Gmail threads as notifications.
// It is not safe for concurrent use.
type Reader struct {
	client *gmail.Service
	logger *slog.Logger

	attempts uint
	delay    time.Duration

	// labelIDs caches label name to id lookups.
	labelIDs map[string]string
}

// Config holds configuration for the Gmail reader.
type Config struct {
	// Endpoint overrides the Gmail API endpoint. Used by tests.
	Endpoint string
	// RateLimitAttempts is how many times a rate-limited label change is
	// attempted. Defaults to 3.
	RateLimitAttempts uint
	// RateLimitDelay is the wait between rate-limited attempts. Defaults to
	// 2 seconds.
	RateLimitDelay time.Duration
}

// New creates a new Gmail reader.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	attempts := cfg.RateLimitAttempts
	if attempts == 0 {
		attempts = 3
	}
	delay := cfg.RateLimitDelay
	if delay == 0 {
		delay = 2 * time.Second
	}

	return &Reader{
		client:   client,
		logger:   logger,
		attempts: attempts,
		delay:    delay,
	}, nil
}

// Thread is a Gmail thread. The first message body is fetched once, on
// first use.
type Thread struct {
	reader  *Reader
	id      string
	subject string

	fetched bool
	body    string
}

// ID returns the Gmail thread id.
func (t *Thread) ID() string { return t.id }

// Subject returns the subject of the thread's first message.
func (t *Thread) Subject() string { return t.subject }

// FirstMessageBody returns the plain-text body of the first message.
func (t *Thread) FirstMessageBody(ctx context.Context) (string, error) {
	if t.fetched {
		return t.body, nil
	}

	thread, err := t.reader.client.Users.Threads.Get(user, t.id).Format("full").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("getting thread %s: %w", t.id, err)
	}
	if len(thread.Messages) > 0 {
		t.body = extractBody(thread.Messages[0])
	}
	t.fetched = true
	return t.body, nil
}

// Threads returns every thread carrying the named label.
func (r *Reader) Threads(ctx context.Context, label string) ([]api.Thread, error) {
	labelID, err := r.labelID(ctx, label)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = r.client.Users.Threads.List(user).LabelIds(labelID).Pages(ctx, func(resp *gmail.ListThreadsResponse) error {
		for _, t := range resp.Threads {
			ids = append(ids, t.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing threads for label %q: %w", label, err)
	}

	r.logger.Info("found threads", "label", label, "count", len(ids))

	threads := make([]api.Thread, 0, len(ids))
	for _, id := range ids {
		t, err := r.client.Users.Threads.Get(user, id).
			Format("metadata").
			MetadataHeaders("Subject").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("getting thread %s: %w", id, err)
		}

		var subject string
		if len(t.Messages) > 0 {
			subject = headerValue(t.Messages[0], "Subject")
		}
		threads = append(threads, &Thread{reader: r, id: id, subject: subject})
	}

	return threads, nil
}

// RemoveLabel removes the named label from the thread.
func (r *Reader) RemoveLabel(ctx context.Context, t api.Thread, label string) error {
	labelID, err := r.labelID(ctx, label)
	if err != nil {
		return err
	}
	return r.modify(ctx, t.ID(), &gmail.ModifyThreadRequest{RemoveLabelIds: []string{labelID}})
}

// MarkRead marks every message in the thread as read.
func (r *Reader) MarkRead(ctx context.Context, t api.Thread) error {
	return r.modify(ctx, t.ID(), &gmail.ModifyThreadRequest{RemoveLabelIds: []string{unreadLabel}})
}

// AddLabel adds the named label to the thread.
func (r *Reader) AddLabel(ctx context.Context, t api.Thread, label string) error {
	labelID, err := r.labelID(ctx, label)
	if err != nil {
		return err
	}
	return r.modify(ctx, t.ID(), &gmail.ModifyThreadRequest{AddLabelIds: []string{labelID}})
}

// modify applies a label change, retrying while Gmail answers 429.
func (r *Reader) modify(ctx context.Context, threadID string, req *gmail.ModifyThreadRequest) error {
	err := retry.Do(
		func() error {
			_, err := r.client.Users.Threads.Modify(user, threadID, req).Context(ctx).Do()
			return err
		},
		retry.RetryIf(isRateLimited),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn("gmail rate limited, retrying", "thread_id", threadID, "attempt", n+1, "error", err)
		}),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("modifying thread %s: %w", threadID, err)
	}
	return nil
}

func isRateLimited(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests
	}
	return false
}

// labelID resolves a user-visible label name to its Gmail id.
func (r *Reader) labelID(ctx context.Context, name string) (string, error) {
	if id, ok := r.labelIDs[name]; ok {
		return id, nil
	}

	resp, err := r.client.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("listing labels: %w", err)
	}

	ids := make(map[string]string, len(resp.Labels))
	for _, l := range resp.Labels {
		ids[l.Name] = l.Id
	}
	r.labelIDs = ids

	id, ok := ids[name]
	if !ok {
		return "", fmt.Errorf("label %q not found", name)
	}
	return id, nil
}

// LabelNames returns the names of all labels in the mailbox.
func (r *Reader) LabelNames(ctx context.Context) ([]string, error) {
	resp, err := r.client.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	names := make([]string, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		names = append(names, l.Name)
	}
	return names, nil
}

func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, header := range msg.Payload.Headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// extractBody prefers a text/plain part, falls back to text/html, then to
// the top-level body.
func extractBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	if body := findPart(msg.Payload, "text/plain"); body != "" {
		return body
	}
	if body := findPart(msg.Payload, "text/html"); body != "" {
		return body
	}
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		return decodeData(msg.Payload.Body.Data)
	}
	return ""
}

// findPart walks nested multipart payloads depth first.
func findPart(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		return decodeData(part.Body.Data)
	}
	for _, child := range part.Parts {
		if body := findPart(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}

func decodeData(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail sometimes omits padding.
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}
