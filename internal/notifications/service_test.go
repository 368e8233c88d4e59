package notifications_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sift/internal/config"
	"sift/internal/notifications"
)

type ntfyCapture struct {
	mu       sync.Mutex
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T) (*httptest.Server, *ntfyCapture) {
	t.Helper()
	captured := &ntfyCapture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		captured.mu.Lock()
		captured.calls++
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		captured.body = string(body)
		captured.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "run completed",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"root":     "/home/u/Downloads",
				"scanned":  120,
				"executed": 14,
				"review":   5,
				"skipped":  101,
				"failed":   0,
				"bytes":    int64(2_500_000),
				"duration": 3200 * time.Millisecond,
			},
			expectTitle:   "sift - Run Complete",
			expectMessage: "🗂️ 120 files scanned in /home/u/Downloads\n14 executed, 5 for review, 101 skipped, 0 failed\n2.5 MB reclaimed\nTook 3s",
			expectTags:    "sift,run,completed",
		},
		{
			name:  "dry run with failures",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"scanned": 3,
				"failed":  1,
				"dryRun":  true,
			},
			expectTitle:    "sift - Dry Run Complete (with errors)",
			expectMessage:  "🗂️ 3 files scanned\n0 executed, 0 for review, 0 skipped, 1 failed",
			expectTags:     "sift,run,completed,dry-run",
			expectPriority: "high",
		},
		{
			name:          "undo",
			event:         notifications.EventUndoCompleted,
			payload:       notifications.Payload{"undone": 2, "failed": 1},
			expectTitle:   "sift - Undo Complete",
			expectMessage: "↩️ Undid 2 action(s), 1 failed",
			expectTags:    "sift,undo",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "scheduled run", "error": "scan root missing"},
			expectTitle:    "sift - Error",
			expectMessage:  "❌ Error during scheduled run: scan root missing",
			expectTags:     "sift,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, captured := newNtfyServer(t)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestSuppressedEvents(t *testing.T) {
	server, captured := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RunSummary = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	_ = svc.Publish(ctx, notifications.EventRunCompleted, notifications.Payload{"scanned": 4})
	_ = svc.Publish(ctx, notifications.EventError, notifications.Payload{"error": "boom"})
	_ = svc.Publish(ctx, notifications.Event("unknown"), nil)
	if captured.calls != 0 {
		t.Fatalf("expected no calls, got %d", captured.calls)
	}

	cfg.Notifications.RunSummary = true
	svc = notifications.NewService(&cfg)
	_ = svc.Publish(ctx, notifications.EventRunCompleted, notifications.Payload{"scanned": 0})
	if captured.calls != 0 {
		t.Fatal("empty runs should not notify")
	}
}

func TestSlackWebhook(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.SlackWebhookURL = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	text, _ := received["text"].(string)
	if !strings.Contains(text, "sift - Test") {
		t.Fatalf("unexpected fallback text %q", text)
	}
	blocks, _ := received["blocks"].([]any)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
}

func TestTransportErrorsAreReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}
