package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"FakeNewsScanner/internal/ports"
)

// Notifier posts crawl digests to a Slack channel.
type Notifier struct {
	api       *slack.Client
	channelID string
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier builds a bot-token client. apiURL overrides the Slack Web API
// base and may be empty.
func NewNotifier(token, channelID, apiURL string) *Notifier {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &Notifier{api: slack.New(token, opts...), channelID: channelID}
}

// PublishDigest posts the digest as plain mrkdwn text.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.channelID == "" {
		return fmt.Errorf("slack notifier misconfigured")
	}
	if _, _, err := n.api.PostMessageContext(ctx, n.channelID, slack.MsgOptionText(digest, false)); err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}
