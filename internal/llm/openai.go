package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiGenerator implements Generator using the OpenAI SDK.
type openaiGenerator struct {
	client openai.Client
	opts   Options
}

func newOpenAIGenerator(opts Options) (Generator, error) {
	apiKey, err := resolveKey(opts.APIKey, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiGenerator{client: client, opts: opts}, nil
}

func (g *openaiGenerator) params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(g.opts.Model),
		MaxTokens:   openai.Int(int64(g.opts.MaxTokens)),
		Temperature: openai.Float(g.opts.Temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
}

func (g *openaiGenerator) Query(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, g.params(prompt))
	if err != nil {
		return "", fmt.Errorf("openai: chat.completions.new: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoOutput
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrNoOutput
	}
	return content, nil
}

func (g *openaiGenerator) QueryStream(ctx context.Context, prompt string, onToken TokenFunc) (string, error) {
	stream := g.client.Chat.Completions.NewStreaming(ctx, g.params(prompt))

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		sb.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("openai: stream: %w", err)
	}

	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return "", ErrNoOutput
	}
	return out, nil
}
