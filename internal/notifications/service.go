package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"sift/internal/config"
)

const userAgent = "sift/0.1.0"

// Event names a notification type.
type Event string

const (
	EventRunCompleted  Event = "run_completed"
	EventUndoCompleted Event = "undo_completed"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries event fields. Missing keys format as zero values.
type Payload map[string]any

func (p Payload) str(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) int(key string) int64 {
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (p Payload) bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// message is the transport-neutral rendering of an event.
type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type sender interface {
	send(ctx context.Context, msg message) error
}

// NewService builds a service for every configured transport. Event classes
// disabled in config are dropped before formatting.
func NewService(cfg *config.Config) Service {
	n := cfg.Notifications
	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	var senders []sender
	if topic := strings.TrimSpace(n.NtfyTopic); topic != "" {
		senders = append(senders, &ntfySender{endpoint: topic, client: client})
	}
	if hook := strings.TrimSpace(n.SlackWebhookURL); hook != "" {
		senders = append(senders, &slackSender{webhook: hook, client: client})
	}
	if len(senders) == 0 {
		return noopService{}
	}
	return &service{senders: senders, runSummary: n.RunSummary, errors: n.Errors}
}

type service struct {
	senders    []sender
	runSummary bool
	errors     bool
}

func (s *service) Publish(ctx context.Context, event Event, payload Payload) error {
	if s.suppressed(event, payload) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	var errs []error
	for _, snd := range s.senders {
		if err := snd.send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *service) suppressed(event Event, payload Payload) bool {
	switch event {
	case EventRunCompleted:
		return !s.runSummary || payload.int("scanned") == 0
	case EventError:
		return !s.errors
	}
	return false
}

func format(event Event, p Payload) (message, bool) {
	switch event {
	case EventRunCompleted:
		return formatRun(p), true
	case EventUndoCompleted:
		undone, failed := p.int("undone"), p.int("failed")
		msg := message{
			title: "sift - Undo Complete",
			body:  fmt.Sprintf("↩️ Undid %d action(s)", undone),
			tags:  []string{"sift", "undo"},
		}
		if failed > 0 {
			msg.body += fmt.Sprintf(", %d failed", failed)
		}
		return msg, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := p.str("context"); label != "" {
			b.WriteString(" during ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if text := p.str("error"); text != "" {
			b.WriteString(text)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "sift - Error",
			body:     b.String(),
			tags:     []string{"sift", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "sift - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"sift", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func formatRun(p Payload) message {
	title := "sift - Run Complete"
	tags := []string{"sift", "run", "completed"}
	if p.bool("dryRun") {
		title = "sift - Dry Run Complete"
		tags = append(tags, "dry-run")
	}
	failed := p.int("failed")
	if failed > 0 {
		title += " (with errors)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗂️ %d files scanned", p.int("scanned"))
	if root := p.str("root"); root != "" {
		fmt.Fprintf(&b, " in %s", root)
	}
	fmt.Fprintf(&b, "\n%d executed, %d for review, %d skipped, %d failed",
		p.int("executed"), p.int("review"), p.int("skipped"), failed)
	if bytes := p.int("bytes"); bytes > 0 {
		fmt.Fprintf(&b, "\n%s reclaimed", humanize.Bytes(uint64(bytes)))
	}
	if d, ok := p["duration"].(time.Duration); ok && d > 0 {
		fmt.Fprintf(&b, "\nTook %s", d.Round(time.Second))
	}
	msg := message{title: title, body: b.String(), tags: tags}
	if failed > 0 {
		msg.priority = "high"
	}
	return msg
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
