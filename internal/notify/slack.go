// Package notify posts reviewer notifications for groups that pass the
// quality gate but deserve human attention. Notification failures are
// warnings, never pipeline errors.
package notify

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/paulyokota/feedforward/internal/model"
)

// Notifier flags tickets for reviewer attention.
type Notifier interface {
	// LowConfidence flags a ticket whose group scored below the
	// scrutiny threshold.
	LowConfidence(ticket *model.Ticket, confidence float64) error

	// PoorEvidence flags a ticket created from a group with evidence
	// warnings.
	PoorEvidence(ticket *model.Ticket, warnings []string) error
}

// SlackNotifier posts to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier creates a notifier for the given bot token and
// channel.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
	}
}

// LowConfidence posts a low-confidence review request.
func (n *SlackNotifier) LowConfidence(ticket *model.Ticket, confidence float64) error {
	msg := fmt.Sprintf(":warning: *Low-confidence theme needs review*\n*%s* (signature `%s`)\nConfidence %.1f, %d conversations.",
		ticket.Title, ticket.CanonicalSignature, confidence, len(ticket.ConversationIDs))
	return n.post(msg)
}

// PoorEvidence posts an evidence-quality review request.
func (n *SlackNotifier) PoorEvidence(ticket *model.Ticket, warnings []string) error {
	msg := fmt.Sprintf(":mag: *Theme created with evidence warnings*\n*%s* (signature `%s`)\n%s",
		ticket.Title, ticket.CanonicalSignature, "• "+strings.Join(warnings, "\n• "))
	return n.post(msg)
}

func (n *SlackNotifier) post(text string) error {
	_, _, err := n.client.PostMessage(n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post to Slack: %w", err)
	}
	return nil
}

// NopNotifier discards all notifications. Used when no Slack token is
// configured.
type NopNotifier struct{}

func (NopNotifier) LowConfidence(*model.Ticket, float64) error { return nil }
func (NopNotifier) PoorEvidence(*model.Ticket, []string) error { return nil }
