package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicGenerator implements Generator using the Anthropic SDK.
// anthropic.Client is a value type; the SDK's NewClient returns it by value.
type anthropicGenerator struct {
	client anthropic.Client
	opts   Options
}

func newAnthropicGenerator(opts Options) (Generator, error) {
	apiKey, err := resolveKey(opts.APIKey, "ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicGenerator{client: client, opts: opts}, nil
}

func (g *anthropicGenerator) params(prompt string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:       anthropic.Model(g.opts.Model),
		MaxTokens:   int64(g.opts.MaxTokens),
		Temperature: anthropic.Float(g.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
}

func (g *anthropicGenerator) Query(ctx context.Context, prompt string) (string, error) {
	msg, err := g.client.Messages.New(ctx, g.params(prompt))
	if err != nil {
		return "", fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		// "text" is the only content type carrying assistant output.
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	out := strings.Join(parts, "")
	if strings.TrimSpace(out) == "" {
		return "", ErrNoOutput
	}
	return out, nil
}

func (g *anthropicGenerator) QueryStream(ctx context.Context, prompt string, onToken TokenFunc) (string, error) {
	stream := g.client.Messages.NewStreaming(ctx, g.params(prompt))

	var sb strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				sb.WriteString(delta.Text)
				if onToken != nil {
					onToken(delta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("anthropic: stream: %w", err)
	}

	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return "", ErrNoOutput
	}
	return out, nil
}
