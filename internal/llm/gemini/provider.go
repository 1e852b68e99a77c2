package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"officehours/backend/internal/llm"
)

// Provider implements llm.Provider for Google Gemini
type Provider struct {
	apiKey string
	model  string
}

// NewProvider creates a new Gemini provider
func NewProvider(apiKey, model string) *Provider {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Provider{apiKey: apiKey, model: model}
}

// Name returns the provider identifier
func (p *Provider) Name() string { return "gemini" }

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool { return p.apiKey != "" }

// TextModel returns the model used for text-only turns
func (p *Provider) TextModel() string { return p.model }

// VisionModel returns the model used when a frame is attached.
// Gemini flash models are multimodal, so both paths share one model.
func (p *Provider) VisionModel() string { return p.model }

// StreamChat streams generated content chunks from the Gemini API
func (p *Provider) StreamChat(ctx context.Context, req llm.Request) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if !p.IsConfigured() {
			errs <- fmt.Errorf("gemini: api key is required")
			return
		}

		client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
		if err != nil {
			errs <- fmt.Errorf("failed to create gemini client: %w", err)
			return
		}
		defer client.Close()

		modelName := req.Model
		if modelName == "" {
			modelName = p.model
		}
		model := client.GenerativeModel(modelName)
		if req.System != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(req.System)},
			}
		}
		if req.MaxTokens > 0 {
			model.SetMaxOutputTokens(int32(req.MaxTokens))
		}
		model.SetTemperature(float32(req.Temperature))
		if req.TopP > 0 {
			model.SetTopP(float32(req.TopP))
		}

		session := model.StartChat()
		session.History = buildHistory(req.History)

		parts := []genai.Part{genai.Text(req.Prompt)}
		if req.Image != nil {
			format := strings.TrimPrefix(req.Image.MIME, "image/")
			parts = append(parts, genai.ImageData(format, req.Image.Data))
		}

		iter := session.SendMessageStream(ctx, parts...)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- &llm.APIError{Provider: p.Name(), Message: err.Error()}
				return
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					text, ok := part.(genai.Text)
					if !ok || text == "" {
						continue
					}
					select {
					case chunks <- string(text):
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
				}
			}
		}
	}()

	return chunks, errs
}

func buildHistory(history []llm.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return contents
}
