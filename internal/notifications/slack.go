package notifications

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// slackSender posts to an incoming webhook using Block Kit, with the plain
// body as notification fallback text.
type slackSender struct {
	webhook string
	client  *http.Client
}

func (s *slackSender) send(ctx context.Context, msg message) error {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, msg.title, false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, msg.body, false, false), nil, nil),
	}
	if msg.priority == "high" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, ":rotating_light: needs attention", false, false)))
	}
	payload := &slack.WebhookMessage{
		Text:   msg.title + "\n" + msg.body,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhook, s.client, payload); err != nil {
		return fmt.Errorf("send slack notification: %w", err)
	}
	return nil
}
