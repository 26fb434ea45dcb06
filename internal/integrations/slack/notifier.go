// Package slackbot delivers digests through the Slack Web API.
package slackbot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/slack-go/slack"

	"tix/internal/httpx"
)

// Notifier posts plain-text messages to channels and member DMs. Member
// references are resolved to user IDs once and cached.
type Notifier struct {
	api *slack.Client

	mu  sync.Mutex
	ids map[string]string
}

func NewNotifier(token string) *Notifier {
	return newNotifier(slack.New(token, slack.OptionHTTPClient(httpx.Client())))
}

func newNotifier(api *slack.Client) *Notifier {
	return &Notifier{api: api, ids: make(map[string]string)}
}

func (n *Notifier) PostChannel(ctx context.Context, channelID, text string) error {
	_, _, err := n.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("posting to %s: %w", channelID, err)
	}
	return nil
}

// PostDirect opens a DM with member (a user ID or a name) and posts text.
func (n *Notifier) PostDirect(ctx context.Context, member, text string) error {
	userID, err := n.resolve(ctx, member)
	if err != nil {
		return err
	}
	channel, _, _, err := n.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return fmt.Errorf("opening DM with %s: %w", userID, err)
	}
	if _, _, err := n.api.PostMessageContext(ctx, channel.ID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("posting DM to %s: %w", userID, err)
	}
	return nil
}

func (n *Notifier) resolve(ctx context.Context, member string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(member))
	n.mu.Lock()
	id, ok := n.ids[key]
	n.mu.Unlock()
	if ok {
		return id, nil
	}

	ids, unresolved, err := resolveUserIDs(ctx, n.api, []string{member})
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", member, err)
	}
	if len(unresolved) > 0 || len(ids) == 0 {
		return "", fmt.Errorf("no Slack user matches %q", member)
	}

	n.mu.Lock()
	n.ids[key] = ids[0]
	n.mu.Unlock()
	return ids[0], nil
}
