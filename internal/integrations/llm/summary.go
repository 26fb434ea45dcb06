// Package llm writes an optional triage paragraph for a digest using the
// Anthropic Messages API.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"tix/internal/digest"
	"tix/internal/httpx"
	"tix/internal/render"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

const summarySystemPrompt = `You help an engineer triage their issue tracker queue.
Given the open issues grouped by status, reply with two or three plain sentences:
what to focus on next and anything that looks stuck. Refer to issues by name.
Do not use markdown headings or bullet lists.`

type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

var _ digest.Summarizer = (*Summarizer)(nil)

type Summarizer struct {
	client anthropic.Client
	model  string
}

func NewSummarizer(apiKey, model string, opts ...option.RequestOption) *Summarizer {
	if strings.TrimSpace(model) == "" {
		model = defaultAnthropicModel
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpx.Client()),
	}
	return &Summarizer{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  model,
	}
}

// Summarize satisfies digest.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, d digest.Digest) (string, error) {
	text, _, err := s.SummarizeWithUsage(ctx, d)
	return text, err
}

func (s *Summarizer) SummarizeWithUsage(ctx context.Context, d digest.Digest) (string, Usage, error) {
	log.Debug().Str("model", s.model).Str("user", d.User).Int("open", d.Open).Msg("llm summary")

	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: summarySystemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(d))),
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("llm anthropic error")
		return "", Usage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := Usage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Debug().Int("size", len(block.Text)).Int64("tokens_in", usage.InputTokens).
				Int64("tokens_out", usage.OutputTokens).Msg("llm anthropic response")
			return strings.TrimSpace(block.Text), usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}

func buildPrompt(d digest.Digest) string {
	var b strings.Builder
	if d.User != "" {
		fmt.Fprintf(&b, "Queue for %s: %d open, %d closed.\n", d.User, d.Open, d.Closed)
	} else {
		fmt.Fprintf(&b, "Team queue: %d open, %d closed.\n", d.Open, d.Closed)
	}
	for _, g := range d.Actionable() {
		fmt.Fprintf(&b, "\n%s:\n", render.Label(g.Key))
		for _, is := range g.Issues {
			fmt.Fprintf(&b, "- %s [%s, priority %d] %s\n", is.Name, is.Type, is.Priority, is.Summary)
		}
	}
	return b.String()
}
