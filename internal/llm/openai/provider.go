package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"officehours/backend/internal/llm"
)

// Low-level retry budget for transient connection failures before any
// chunk has been received. Kept small to protect latency.
const maxConnectAttempts = 2

// Provider implements llm.Provider for OpenAI chat completions
type Provider struct {
	apiKey      string
	textModel   string
	visionModel string
	client      *http.Client
	baseURL     string
}

// NewProvider creates a new OpenAI provider
func NewProvider(apiKey, textModel, visionModel string) *Provider {
	if textModel == "" {
		textModel = "gpt-4o-mini"
	}
	if visionModel == "" {
		visionModel = "gpt-4o"
	}
	return &Provider{
		apiKey:      apiKey,
		textModel:   textModel,
		visionModel: visionModel,
		client: &http.Client{
			// No overall timeout: a stream stays open for the length of
			// a generation. Connect and first-byte are bounded instead.
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		baseURL: "https://api.openai.com/v1",
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string { return "openai" }

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool { return p.apiKey != "" }

// TextModel returns the model used for text-only turns
func (p *Provider) TextModel() string { return p.textModel }

// VisionModel returns the model used when a frame is attached
func (p *Provider) VisionModel() string { return p.visionModel }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type imagePart struct {
	Type     string   `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL imageURL `json:"image_url,omitzero"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type streamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func buildMessages(req llm.Request) []chatMessage {
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: llm.RoleSystem, Content: req.System})
	}
	for _, m := range req.History {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	if req.Image != nil {
		dataURL := fmt.Sprintf("data:%s;base64,%s",
			req.Image.MIME, base64.StdEncoding.EncodeToString(req.Image.Data))
		messages = append(messages, chatMessage{
			Role: llm.RoleUser,
			Content: []imagePart{
				{Type: "text", Text: req.Prompt},
				// "low" detail keeps vision turns fast
				{Type: "image_url", ImageURL: imageURL{URL: dataURL, Detail: "low"}},
			},
		})
	} else {
		messages = append(messages, chatMessage{Role: llm.RoleUser, Content: req.Prompt})
	}
	return messages
}

// StreamChat streams assistant content chunks from the chat completions API
func (p *Provider) StreamChat(ctx context.Context, req llm.Request) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if !p.IsConfigured() {
			errs <- fmt.Errorf("openai: api key is required")
			return
		}

		model := req.Model
		if model == "" {
			model = p.textModel
		}

		body, err := json.Marshal(chatRequest{
			Model:       model,
			Messages:    buildMessages(req),
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			TopP:        req.TopP,
			Stream:      true,
		})
		if err != nil {
			errs <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		resp, err := p.connect(ctx, body)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
			errs <- &llm.APIError{
				Provider:   p.Name(),
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(msg)),
			}
			return
		}

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var decoded streamResponse
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				errs <- fmt.Errorf("failed to decode stream chunk: %w", err)
				return
			}
			if decoded.Error != nil {
				errs <- &llm.APIError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: decoded.Error.Message}
				return
			}
			if len(decoded.Choices) == 0 {
				continue
			}
			if delta := decoded.Choices[0].Delta.Content; delta != "" {
				select {
				case chunks <- delta:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}

		if err := sc.Err(); err != nil {
			errs <- fmt.Errorf("stream read failed: %w", err)
		}
	}()

	return chunks, errs
}

// connect opens the streaming request, retrying transient connection
// failures within the small attempt budget.
func (p *Provider) connect(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.client.Do(httpReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("openai request failed: %w", lastErr)
}
