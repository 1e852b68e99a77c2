package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"officehours/backend/internal/domain"
	"officehours/backend/internal/llm"
)

// MockSessionRepository mocks the SessionRepository interface
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) GetByUserAndOffice(ctx context.Context, userID, officeID uuid.UUID) (*domain.ChatSession, error) {
	args := m.Called(ctx, userID, officeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

// MockMessageRepository mocks the MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatMessage), args.Error(1)
}

func (m *MockMessageRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	args := m.Called(ctx, id, content)
	return args.Error(0)
}

func (m *MockMessageRepository) SetVideoURL(ctx context.Context, id uuid.UUID, videoURL string) error {
	args := m.Called(ctx, id, videoURL)
	return args.Error(0)
}

func (m *MockMessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatMessage), args.Error(1)
}

// MockOfficeRepository mocks the OfficeRepository interface
type MockOfficeRepository struct {
	mock.Mock
}

func (m *MockOfficeRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Office, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Office), args.Error(1)
}

func (m *MockOfficeRepository) IsMember(ctx context.Context, officeID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, officeID, userID)
	return args.Bool(0), args.Error(1)
}

// MockResourceRepository mocks the ResourceRepository interface
type MockResourceRepository struct {
	mock.Mock
}

func (m *MockResourceRepository) CombinedText(ctx context.Context, officeID uuid.UUID) (string, error) {
	args := m.Called(ctx, officeID)
	return args.String(0), args.Error(1)
}

// MockUserRepository mocks the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// fakeProvider streams a fixed chunk sequence, then optionally an error
type fakeProvider struct {
	chunks   []string
	finalErr error

	mu        sync.Mutex
	callCount int
	lastReq   llm.Request
}

func (f *fakeProvider) Name() string        { return "fake" }
func (f *fakeProvider) IsConfigured() bool  { return true }
func (f *fakeProvider) TextModel() string   { return "fake-text" }
func (f *fakeProvider) VisionModel() string { return "fake-vision" }

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

func (f *fakeProvider) request() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func (f *fakeProvider) StreamChat(ctx context.Context, req llm.Request) (<-chan string, <-chan error) {
	f.mu.Lock()
	f.callCount++
	f.lastReq = req
	f.mu.Unlock()

	chunks := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		for _, c := range f.chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if f.finalErr != nil {
			errs <- f.finalErr
		}
	}()
	return chunks, errs
}

// fakeHistoryCache is a map-backed HistoryCache
type fakeHistoryCache struct {
	mu          sync.Mutex
	data        map[uuid.UUID][]domain.HistoryEntry
	invalidated int
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{data: make(map[uuid.UUID][]domain.HistoryEntry)}
}

func (f *fakeHistoryCache) Get(_ context.Context, sessionID uuid.UUID) ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[sessionID], nil
}

func (f *fakeHistoryCache) Set(_ context.Context, sessionID uuid.UUID, history []domain.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[sessionID] = history
	return nil
}

func (f *fakeHistoryCache) Invalidate(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, sessionID)
	f.invalidated++
	return nil
}

// fakeResultCache is a map-backed ResultCache
type fakeResultCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeResultCache() *fakeResultCache {
	return &fakeResultCache{data: make(map[string]string)}
}

func (f *fakeResultCache) Key(sessionID uuid.UUID, message string, historyLen int) string {
	return fmt.Sprintf("result:%s|%d|%s", sessionID, historyLen, message)
}

func (f *fakeResultCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *fakeResultCache) Set(_ context.Context, key string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = text
	return nil
}

// fakeSynthesizer returns deterministic audio bytes per sentence
type fakeSynthesizer struct {
	mu        sync.Mutex
	sentences []string
	err       error
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.sentences = append(f.sentences, text)
	f.mu.Unlock()
	return []byte("audio:" + text), nil
}

func (f *fakeSynthesizer) Voice() string { return "alloy" }
func (f *fakeSynthesizer) Model() string { return "tts-1" }

func (f *fakeSynthesizer) synthesized() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sentences...)
}

// fakeDispatcher records avatar dispatches
type fakeDispatcher struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (f *fakeDispatcher) Dispatch(messageID uuid.UUID, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messageID)
}

func (f *fakeDispatcher) dispatched() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.calls...)
}
