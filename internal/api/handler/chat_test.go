package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"officehours/backend/internal/api/handler"
	"officehours/backend/internal/api/middleware"
	"officehours/backend/internal/domain"
	"officehours/backend/internal/llm"
	"officehours/backend/internal/service"
	"officehours/backend/internal/stream"
)

// In-memory stand-ins for the storage layer

type stubSessions struct {
	session *domain.ChatSession
}

func (s *stubSessions) Create(context.Context, *domain.ChatSession) error { return nil }

func (s *stubSessions) Get(_ context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	if s.session != nil && s.session.ID == id {
		return s.session, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubSessions) GetByUserAndOffice(context.Context, uuid.UUID, uuid.UUID) (*domain.ChatSession, error) {
	return nil, domain.ErrNotFound
}

type stubMessages struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.ChatMessage
}

func newStubMessages() *stubMessages {
	return &stubMessages{rows: make(map[uuid.UUID]*domain.ChatMessage)}
}

func (s *stubMessages) Create(_ context.Context, m *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.rows[m.ID] = &cp
	return nil
}

func (s *stubMessages) Get(_ context.Context, id uuid.UUID) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.rows[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubMessages) UpdateContent(_ context.Context, id uuid.UUID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Message = content
	return nil
}

func (s *stubMessages) SetVideoURL(_ context.Context, id uuid.UUID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.VideoURL = &url
	return nil
}

func (s *stubMessages) ListBySession(context.Context, uuid.UUID, int) ([]domain.ChatMessage, error) {
	return nil, nil
}

func (s *stubMessages) bySender(sender string) []*domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ChatMessage
	for _, m := range s.rows {
		if m.Sender == sender {
			out = append(out, m)
		}
	}
	return out
}

type stubOffices struct{}

func (stubOffices) Get(context.Context, uuid.UUID) (*domain.Office, error) {
	return nil, domain.ErrNotFound
}
func (stubOffices) IsMember(context.Context, uuid.UUID, uuid.UUID) (bool, error) { return true, nil }

type stubResources struct{}

func (stubResources) CombinedText(context.Context, uuid.UUID) (string, error) { return "", nil }

type memHistoryCache struct{}

func (memHistoryCache) Get(context.Context, uuid.UUID) ([]domain.HistoryEntry, error) {
	return nil, nil
}
func (memHistoryCache) Set(context.Context, uuid.UUID, []domain.HistoryEntry) error { return nil }
func (memHistoryCache) Invalidate(context.Context, uuid.UUID) error                 { return nil }

type memResultCache struct{}

func (memResultCache) Key(sessionID uuid.UUID, message string, historyLen int) string {
	return fmt.Sprintf("%s|%d|%s", sessionID, historyLen, message)
}
func (memResultCache) Get(context.Context, string) (string, error) { return "", nil }
func (memResultCache) Set(context.Context, string, string) error   { return nil }

type scriptedProvider struct {
	chunks []string
}

func (p *scriptedProvider) Name() string        { return "scripted" }
func (p *scriptedProvider) IsConfigured() bool  { return true }
func (p *scriptedProvider) TextModel() string   { return "scripted" }
func (p *scriptedProvider) VisionModel() string { return "scripted" }

func (p *scriptedProvider) StreamChat(ctx context.Context, _ llm.Request) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		for _, c := range p.chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return chunks, errs
}

func newTestRouter(t *testing.T, messages *stubMessages, session *domain.ChatSession, provider llm.Provider) http.Handler {
	t.Helper()

	llmRouter := llm.NewRouter("scripted")
	llmRouter.RegisterProvider(provider)

	chatService := service.NewChatService(
		&stubSessions{session: session}, messages, stubOffices{}, stubResources{},
		memHistoryCache{}, memResultCache{}, nil, llmRouter, nil, service.NewMetrics(),
	)
	chatHandler := handler.NewChatHandler(chatService)

	r := chi.NewRouter()
	r.Post("/api/v1/chat/message", chatHandler.SendMessage)
	r.Get("/api/v1/chat/message/{messageID}/avatar", chatHandler.AvatarStatus)
	return r
}

func withUser(r *http.Request, userID uuid.UUID) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
	return r.WithContext(ctx)
}

func TestChatHandler_SendMessage_StreamsNDJSON(t *testing.T) {
	userID := uuid.New()
	session := &domain.ChatSession{ID: uuid.New(), UserID: userID, OfficeID: uuid.New()}
	messages := newStubMessages()
	provider := &scriptedProvider{chunks: []string{"A function maps ", "inputs to outputs."}}

	router := newTestRouter(t, messages, session, provider)

	body, _ := json.Marshal(domain.ChatRequest{SessionID: session.ID, Message: "What is a function?"})
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", bytes.NewReader(body)), userID)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	// Every line is one event object
	var events []stream.Event
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var ev stream.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev), "line %q is not a valid event", sc.Text())
		events = append(events, ev)
	}
	require.NotEmpty(t, events)

	var full strings.Builder
	for _, ev := range events {
		if ev.Type == stream.EventText {
			full.WriteString(ev.Content)
		}
	}
	assert.Equal(t, "A function maps inputs to outputs.", full.String())

	last := events[len(events)-1]
	assert.Equal(t, stream.EventEnd, last.Type)
	assert.Equal(t, len("A function maps inputs to outputs."), last.CharCount)

	// Both turn rows persisted, reply finalized
	userRows := messages.bySender(domain.SenderUser)
	require.Len(t, userRows, 1)
	assert.Equal(t, "What is a function?", userRows[0].Message)

	aiRows := messages.bySender(domain.SenderAI)
	require.Len(t, aiRows, 1)
	assert.Equal(t, "A function maps inputs to outputs.", aiRows[0].Message)
}

func TestChatHandler_SendMessage_UnknownSession(t *testing.T) {
	userID := uuid.New()
	router := newTestRouter(t, newStubMessages(), nil, &scriptedProvider{})

	body, _ := json.Marshal(domain.ChatRequest{SessionID: uuid.New(), Message: "hello there"})
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", bytes.NewReader(body)), userID)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatHandler_SendMessage_ForeignSession(t *testing.T) {
	session := &domain.ChatSession{ID: uuid.New(), UserID: uuid.New(), OfficeID: uuid.New()}
	router := newTestRouter(t, newStubMessages(), session, &scriptedProvider{})

	body, _ := json.Marshal(domain.ChatRequest{SessionID: session.ID, Message: "hello there"})
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", bytes.NewReader(body)), uuid.New())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChatHandler_SendMessage_ValidationFailure(t *testing.T) {
	userID := uuid.New()
	router := newTestRouter(t, newStubMessages(), nil, &scriptedProvider{})

	// Missing message text
	body, _ := json.Marshal(domain.ChatRequest{SessionID: uuid.New()})
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", bytes.NewReader(body)), userID)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandler_SendMessage_Unauthorized(t *testing.T) {
	router := newTestRouter(t, newStubMessages(), nil, &scriptedProvider{})

	body, _ := json.Marshal(domain.ChatRequest{SessionID: uuid.New(), Message: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatHandler_AvatarStatus(t *testing.T) {
	userID := uuid.New()
	session := &domain.ChatSession{ID: uuid.New(), UserID: userID, OfficeID: uuid.New()}
	messages := newStubMessages()

	msg := &domain.ChatMessage{ID: uuid.New(), SessionID: session.ID, Sender: domain.SenderAI, Message: "done"}
	require.NoError(t, messages.Create(context.Background(), msg))

	router := newTestRouter(t, messages, session, &scriptedProvider{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/chat/message/"+msg.ID.String()+"/avatar", nil), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data domain.AvatarStatus `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Data.VideoReady)
	assert.Equal(t, "generating", resp.Data.Status)

	// Video lands asynchronously; a later poll reports done
	require.NoError(t, messages.SetVideoURL(context.Background(), msg.ID, "https://cdn.example.com/v.mp4"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/chat/message/"+msg.ID.String()+"/avatar", nil), userID))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Data.VideoReady)
	assert.Equal(t, "done", resp.Data.Status)
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	handler.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, true, response["success"])
}
