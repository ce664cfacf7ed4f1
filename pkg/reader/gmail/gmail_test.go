package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/gmail/v1"
)

// fakeGmail serves the subset of the Gmail API the reader uses.
type fakeGmail struct {
	mu           sync.Mutex
	subjects     map[string]string
	bodies       map[string]string
	modifies     []modifyCall
	rateLimited  int
	fullFetches  int
	listLabelIDs []string
}

type modifyCall struct {
	ThreadID string
	Add      []string
	Remove   []string
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case path == "labels":
		writeJSON(w, map[string]any{
			"labels": []map[string]string{
				{"id": "INBOX", "name": "INBOX"},
				{"id": "Label_1", "name": "Cash/Inbox"},
				{"id": "Label_2", "name": "Cash/Processed"},
			},
		})

	case path == "threads":
		f.listLabelIDs = r.URL.Query()["labelIds"]
		threads := []map[string]string{}
		for _, id := range []string{"t1", "t2"} {
			threads = append(threads, map[string]string{"id": id})
		}
		writeJSON(w, map[string]any{"threads": threads})

	case strings.HasSuffix(path, "/modify"):
		if f.rateLimited > 0 {
			f.rateLimited--
			w.WriteHeader(http.StatusTooManyRequests)
			writeJSON(w, map[string]any{"error": map[string]any{"code": 429, "message": "slow down"}})
			return
		}
		id := strings.TrimSuffix(strings.TrimPrefix(path, "threads/"), "/modify")
		var req gmail.ModifyThreadRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.modifies = append(f.modifies, modifyCall{ThreadID: id, Add: req.AddLabelIds, Remove: req.RemoveLabelIds})
		writeJSON(w, map[string]any{"id": id})

	case strings.HasPrefix(path, "threads/"):
		id := strings.TrimPrefix(path, "threads/")
		msg := map[string]any{
			"id": id + "-m1",
			"payload": map[string]any{
				"headers": []map[string]string{{"name": "Subject", "value": f.subjects[id]}},
			},
		}
		if r.URL.Query().Get("format") == "full" {
			f.fullFetches++
			msg["payload"] = map[string]any{
				"mimeType": "multipart/alternative",
				"parts": []map[string]any{
					{"mimeType": "text/html", "body": map[string]string{"data": encode("<p>html</p>")}},
					{"mimeType": "text/plain", "body": map[string]string{"data": encode(f.bodies[id])}},
				},
			}
		}
		writeJSON(w, map[string]any{"id": id, "messages": []any{msg}})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func newTestReader(t *testing.T, fake *fakeGmail) *Reader {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	r, err := New(context.Background(), srv.Client(), Config{
		Endpoint:       srv.URL + "/",
		RateLimitDelay: time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestReader_Threads(t *testing.T) {
	fake := &fakeGmail{
		subjects: map[string]string{
			"t1": "You sent $45.00 to Bob for rent",
			"t2": "Carol sent you $10",
		},
		bodies: map[string]string{"t1": "Order Total: $1.00"},
	}
	r := newTestReader(t, fake)
	ctx := context.Background()

	threads, err := r.Threads(ctx, "Cash/Inbox")
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}

	fake.mu.Lock()
	listed := fake.listLabelIDs
	fake.mu.Unlock()
	if diff := cmp.Diff([]string{"Label_1"}, listed); diff != "" {
		t.Errorf("label ids mismatch (-want +got):\n%s", diff)
	}
	if len(threads) != 2 {
		t.Fatalf("got %d threads, want 2", len(threads))
	}
	if threads[0].ID() != "t1" || threads[0].Subject() != "You sent $45.00 to Bob for rent" {
		t.Errorf("thread 0: got (%q, %q)", threads[0].ID(), threads[0].Subject())
	}
	if threads[1].Subject() != "Carol sent you $10" {
		t.Errorf("thread 1 subject: got %q", threads[1].Subject())
	}

	for i := 0; i < 2; i++ {
		body, err := threads[0].FirstMessageBody(ctx)
		if err != nil {
			t.Fatalf("FirstMessageBody: %v", err)
		}
		if body != "Order Total: $1.00" {
			t.Errorf("body: got %q, want plain text part", body)
		}
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.fullFetches != 1 {
		t.Errorf("full fetches: got %d, want 1", fake.fullFetches)
	}
}

func TestReader_UnknownLabel(t *testing.T) {
	r := newTestReader(t, &fakeGmail{})

	if _, err := r.Threads(context.Background(), "Nope"); err == nil {
		t.Error("expected error for unknown label, got nil")
	}
}

func TestReader_Transition(t *testing.T) {
	fake := &fakeGmail{rateLimited: 1}
	r := newTestReader(t, fake)
	ctx := context.Background()
	thread := &Thread{reader: r, id: "t1"}

	if err := r.RemoveLabel(ctx, thread, "Cash/Inbox"); err != nil {
		t.Fatalf("RemoveLabel: %v", err)
	}
	if err := r.MarkRead(ctx, thread); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := r.AddLabel(ctx, thread, "Cash/Processed"); err != nil {
		t.Fatalf("AddLabel: %v", err)
	}

	want := []modifyCall{
		{ThreadID: "t1", Remove: []string{"Label_1"}},
		{ThreadID: "t1", Remove: []string{"UNREAD"}},
		{ThreadID: "t1", Add: []string{"Label_2"}},
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if diff := cmp.Diff(want, fake.modifies); diff != "" {
		t.Errorf("modify calls mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_RateLimitExhausted(t *testing.T) {
	fake := &fakeGmail{rateLimited: 10}
	r := newTestReader(t, fake)

	err := r.MarkRead(context.Background(), &Thread{reader: r, id: "t1"})
	if err == nil {
		t.Fatal("expected error after exhausting attempts, got nil")
	}
	if !isRateLimited(err) {
		t.Errorf("got %v, want rate limit error", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.rateLimited != 7 {
		t.Errorf("attempts: got %d, want 3", 10-fake.rateLimited)
	}
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *gmail.Message
		want string
	}{
		{
			name: "nil payload",
			msg:  &gmail.Message{},
			want: "",
		},
		{
			name: "plain text preferred over html",
			msg: &gmail.Message{Payload: &gmail.MessagePart{
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<b>hi</b>")}},
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("hi")}},
				},
			}},
			want: "hi",
		},
		{
			name: "html fallback",
			msg: &gmail.Message{Payload: &gmail.MessagePart{
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<b>hi</b>")}},
				},
			}},
			want: "<b>hi</b>",
		},
		{
			name: "nested multipart",
			msg: &gmail.Message{Payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{MimeType: "multipart/alternative", Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("Order Total: $9.99")}},
					}},
				},
			}},
			want: "Order Total: $9.99",
		},
		{
			name: "top level body without padding",
			msg: &gmail.Message{Payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("ab"))},
			}},
			want: "ab",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractBody(tc.msg); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
