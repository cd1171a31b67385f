package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	googleoption "google.golang.org/api/option"
)

// googleGenerator implements Generator using the Google Generative AI SDK.
// The API key is stored at construction time; a new genai.Client is created
// per call so the caller's context governs the connection and the client is
// always closed after use.
type googleGenerator struct {
	apiKey string
	opts   Options
}

func newGoogleGenerator(opts Options) (Generator, error) {
	apiKey, err := resolveKey(opts.APIKey, "GOOGLE_API_KEY")
	if err != nil {
		return nil, err
	}
	return &googleGenerator{apiKey: apiKey, opts: opts}, nil
}

func (g *googleGenerator) model(client *genai.Client) *genai.GenerativeModel {
	m := client.GenerativeModel(g.opts.Model)
	maxOut := int32(g.opts.MaxTokens)
	m.MaxOutputTokens = &maxOut
	temp := float32(g.opts.Temperature)
	m.Temperature = &temp
	return m
}

func (g *googleGenerator) Query(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("google: genai client: %w", err)
	}
	defer client.Close()

	resp, err := g.model(client).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("google: generate content: %w", err)
	}

	out := flattenResponse(resp)
	if strings.TrimSpace(out) == "" {
		return "", ErrNoOutput
	}
	return out, nil
}

func (g *googleGenerator) QueryStream(ctx context.Context, prompt string, onToken TokenFunc) (string, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("google: genai client: %w", err)
	}
	defer client.Close()

	iter := g.model(client).GenerateContentStream(ctx, genai.Text(prompt))

	var sb strings.Builder
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("google: stream: %w", err)
		}
		token := flattenResponse(resp)
		if token == "" {
			continue
		}
		sb.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}

	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return "", ErrNoOutput
	}
	return out, nil
}

func flattenResponse(resp *genai.GenerateContentResponse) string {
	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
	}
	return strings.Join(parts, "")
}
