package llm

import "context"

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role/content pair of model input
type Message struct {
	Role    string
	Content string
}

// Image is an optional frame attached to the user message
type Image struct {
	MIME string
	Data []byte
}

// Request contains the input for one streamed generation
type Request struct {
	System      string
	History     []Message
	Prompt      string
	Image       *Image
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Provider defines the interface for streaming LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// TextModel returns the model used for text-only turns
	TextModel() string

	// VisionModel returns the model used when a frame is attached
	VisionModel() string

	// StreamChat opens a streaming generation. Content chunks arrive on
	// the first channel in order; at most one error arrives on the
	// second. Both channels are closed when the stream ends.
	StreamChat(ctx context.Context, req Request) (<-chan string, <-chan error)
}
