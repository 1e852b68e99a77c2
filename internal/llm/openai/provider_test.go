package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"officehours/backend/internal/llm"
)

func sseBody(chunks ...string) string {
	var b strings.Builder
	for _, c := range chunks {
		payload, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"delta": map[string]string{"content": c}},
			},
		})
		b.WriteString("data: ")
		b.Write(payload)
		b.WriteString("\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func collect(t *testing.T, chunks <-chan string, errs <-chan error) ([]string, error) {
	t.Helper()
	var out []string
	for chunks != nil || errs != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			out = append(out, c)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func TestProvider_StreamChat(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseBody("Hello", " there", "!")))
	}))
	defer srv.Close()

	p := NewProvider("test-key", "", "")
	p.baseURL = srv.URL

	chunks, errs := p.StreamChat(context.Background(), llm.Request{
		System:      "You are a tutor.",
		History:     []llm.Message{{Role: llm.RoleUser, Content: "hi"}, {Role: llm.RoleAssistant, Content: "hello"}},
		Prompt:      "Say hello",
		MaxTokens:   600,
		Temperature: 0.3,
		TopP:        0.85,
	})

	got, err := collect(t, chunks, errs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " there", "!"}, got)

	assert.True(t, gotReq.Stream)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	require.Len(t, gotReq.Messages, 4)
	assert.Equal(t, llm.RoleSystem, gotReq.Messages[0].Role)
	assert.Equal(t, llm.RoleUser, gotReq.Messages[3].Role)
}

func TestProvider_StreamChat_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"insufficient quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewProvider("test-key", "", "")
	p.baseURL = srv.URL

	chunks, errs := p.StreamChat(context.Background(), llm.Request{Prompt: "hi"})

	_, err := collect(t, chunks, errs)
	require.Error(t, err)
	assert.True(t, llm.IsAPIError(err))

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestProvider_StreamChat_VisionParts(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(sseBody("ok")))
	}))
	defer srv.Close()

	p := NewProvider("test-key", "", "")
	p.baseURL = srv.URL

	chunks, errs := p.StreamChat(context.Background(), llm.Request{
		Prompt: "What is this?",
		Image:  &llm.Image{MIME: "image/jpeg", Data: []byte("jpeg-bytes")},
		Model:  p.VisionModel(),
	})
	_, err := collect(t, chunks, errs)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", raw["model"])
	messages := raw["messages"].([]any)
	last := messages[len(messages)-1].(map[string]any)
	parts := last["content"].([]any)
	require.Len(t, parts, 2)

	imgPart := parts[1].(map[string]any)
	assert.Equal(t, "image_url", imgPart["type"])
	url := imgPart["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
	assert.Equal(t, "low", imgPart["image_url"].(map[string]any)["detail"])
}

func TestProvider_StreamChat_RequiresKey(t *testing.T) {
	p := NewProvider("", "", "")

	chunks, errs := p.StreamChat(context.Background(), llm.Request{Prompt: "hi"})
	_, err := collect(t, chunks, errs)
	assert.Error(t, err)
}
