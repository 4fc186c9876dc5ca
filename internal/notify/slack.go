package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// Summary describes a finished run.
type Summary struct {
	ProjectID   string
	Name        string
	Success     bool
	Message     string
	DownloadURL string
}

// SlackNotifier posts run summaries to an incoming webhook. A notifier
// without a URL does nothing.
type SlackNotifier struct {
	url    string
	post   func(ctx context.Context, url string, msg *slack.WebhookMessage) error
	logger zerolog.Logger
}

// NewSlackNotifier creates a notifier for webhookURL.
func NewSlackNotifier(webhookURL string, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		url:    webhookURL,
		post:   slack.PostWebhookContext,
		logger: logger.With().Str("component", "slack").Logger(),
	}
}

// Enabled reports whether a webhook is configured.
func (n *SlackNotifier) Enabled() bool { return n != nil && n.url != "" }

// Notify posts s. Failures are logged and swallowed.
func (n *SlackNotifier) Notify(ctx context.Context, s Summary) {
	if !n.Enabled() {
		return
	}
	msg := &slack.WebhookMessage{
		Text:   summaryLine(s),
		Blocks: &slack.Blocks{BlockSet: SummaryBlocks(s)},
	}
	if err := n.post(ctx, n.url, msg); err != nil {
		n.logger.Warn().Err(err).Str("project_id", s.ProjectID).Msg("slack notification failed")
	}
}

func summaryLine(s Summary) string {
	if s.Success {
		return fmt.Sprintf("%s generated successfully", s.Name)
	}
	return fmt.Sprintf("%s generation failed", s.Name)
}

// SummaryBlocks renders s as Block Kit blocks.
func SummaryBlocks(s Summary) []slack.Block {
	var sb strings.Builder
	if s.Success {
		sb.WriteString("*Generation completed*\n")
	} else {
		sb.WriteString("*Generation failed*\n")
	}
	sb.WriteString(fmt.Sprintf("*Project:* %s (`%s`)\n", s.Name, s.ProjectID))
	if s.Message != "" {
		sb.WriteString(fmt.Sprintf("*Details:* %s\n", s.Message))
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", sb.String(), false, false), nil, nil),
	}
	if s.DownloadURL != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject("mrkdwn", "Download: "+s.DownloadURL, false, false),
		))
	}
	return blocks
}
