package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"officehours/backend/internal/domain"
	"officehours/backend/internal/llm"
	"officehours/backend/internal/speech"
	"officehours/backend/internal/stream"
	"officehours/backend/internal/vision"
)

const (
	// Context window: latest rows loaded per turn
	historyLimit = 20

	// Spoken-style replies stay short; vision turns shorter still
	maxTextTokens   = 600
	maxVisionTokens = 300

	temperature = 0.3
	topP        = 0.85
)

// ErrNotSessionOwner is returned when a user touches a session that
// belongs to someone else
var ErrNotSessionOwner = errors.New("session does not belong to user")

// ErrNotOfficeMember is returned when a user starts a chat in an
// office they have not joined
var ErrNotOfficeMember = errors.New("user is not a member of this office")

// HistoryCache caches recent turns per session
type HistoryCache interface {
	Get(ctx context.Context, sessionID uuid.UUID) ([]domain.HistoryEntry, error)
	Set(ctx context.Context, sessionID uuid.UUID, history []domain.HistoryEntry) error
	Invalidate(ctx context.Context, sessionID uuid.UUID) error
}

// ResultCache caches completed reply text
type ResultCache interface {
	Key(sessionID uuid.UUID, message string, historyLen int) string
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, text string) error
}

// AvatarDispatcher starts background video generation for a reply
type AvatarDispatcher interface {
	Dispatch(messageID uuid.UUID, text string)
}

// ChatService orchestrates one streaming tutoring turn end to end
type ChatService struct {
	sessionRepo  domain.SessionRepository
	messageRepo  domain.MessageRepository
	officeRepo   domain.OfficeRepository
	resourceRepo domain.ResourceRepository
	history      HistoryCache
	results      ResultCache
	synth        speech.Synthesizer
	llmRouter    *llm.Router
	avatars      AvatarDispatcher
	metrics      *Metrics
}

// NewChatService creates a new chat service. synth and avatars may be
// nil when the corresponding upstream is not configured.
func NewChatService(
	sessionRepo domain.SessionRepository,
	messageRepo domain.MessageRepository,
	officeRepo domain.OfficeRepository,
	resourceRepo domain.ResourceRepository,
	history HistoryCache,
	results ResultCache,
	synth speech.Synthesizer,
	llmRouter *llm.Router,
	avatars AvatarDispatcher,
	metrics *Metrics,
) *ChatService {
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		officeRepo:   officeRepo,
		resourceRepo: resourceRepo,
		history:      history,
		results:      results,
		synth:        synth,
		llmRouter:    llmRouter,
		avatars:      avatars,
		metrics:      metrics,
	}
}

// StartChat returns the user's session for an office, creating one on
// first contact
func (s *ChatService) StartChat(ctx context.Context, userID uuid.UUID, req domain.StartChatRequest) (*domain.ChatSession, error) {
	member, err := s.officeRepo.IsMember(ctx, req.OfficeID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return nil, ErrNotOfficeMember
	}

	session, err := s.sessionRepo.GetByUserAndOffice(ctx, userID, req.OfficeID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session = &domain.ChatSession{
		ID:        uuid.New(),
		UserID:    userID,
		OfficeID:  req.OfficeID,
		CreatedAt: time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().Stringer("session_id", session.ID).Stringer("office_id", req.OfficeID).Msg("chat session created")
	return session, nil
}

// History returns the recent messages of a session, oldest first
func (s *ChatService) History(ctx context.Context, userID, sessionID uuid.UUID) ([]domain.ChatMessage, error) {
	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	return s.messageRepo.ListBySession(ctx, sessionID, historyLimit)
}

// AvatarStatus reports whether a reply's avatar video is ready
func (s *ChatService) AvatarStatus(ctx context.Context, userID, messageID uuid.UUID) (*domain.AvatarStatus, error) {
	msg, err := s.messageRepo.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.Get(ctx, msg.SessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	status := &domain.AvatarStatus{VideoURL: msg.VideoURL, Status: "generating"}
	if msg.VideoURL != nil {
		status.VideoReady = true
		status.Status = "done"
	}
	return status, nil
}

// StreamReply runs one turn. The synchronous part validates ownership
// and persists the user message plus an empty placeholder for the
// reply; everything upstream-facing happens on the returned channel.
// The channel always terminates with exactly one end or error event,
// and the placeholder is finalized exactly once on every path,
// including client disconnect.
func (s *ChatService) StreamReply(ctx context.Context, userID uuid.UUID, req domain.ChatRequest) (<-chan stream.Event, error) {
	session, err := s.sessionRepo.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	var frame *vision.Frame
	if req.VideoFrame != "" {
		frame, err = vision.ParseDataURL(req.VideoFrame)
		if err != nil {
			return nil, fmt.Errorf("invalid video frame: %w", err)
		}
		frame = vision.Optimize(frame)
	}

	// History is captured before this turn's rows land so the prompt
	// carries the new question exactly once.
	history := s.loadHistory(ctx, session.ID)

	now := time.Now()
	userMsg := &domain.ChatMessage{
		ID:        uuid.New(),
		SessionID: session.ID,
		Sender:    domain.SenderUser,
		Message:   req.Message,
		CreatedAt: now,
	}
	if err := s.messageRepo.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	if err := s.history.Invalidate(ctx, session.ID); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate history cache")
	}

	aiMsg := &domain.ChatMessage{
		ID:        uuid.New(),
		SessionID: session.ID,
		Sender:    domain.SenderAI,
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := s.messageRepo.Create(ctx, aiMsg); err != nil {
		return nil, fmt.Errorf("failed to persist reply placeholder: %w", err)
	}

	events := make(chan stream.Event, 16)
	go s.run(ctx, session, req, frame, history, aiMsg.ID, events)
	return events, nil
}

type turnState struct {
	start       time.Time
	firstToken  time.Time
	full        strings.Builder
	audioChunks int
}

func (t *turnState) endEvent(cached bool) stream.Event {
	ev := stream.Event{
		Type:           stream.EventEnd,
		ProcessingTime: time.Since(t.start).Seconds(),
		Cached:         cached,
		CharCount:      t.full.Len(),
		AudioChunks:    t.audioChunks,
	}
	if !t.firstToken.IsZero() {
		ev.FirstTokenMs = t.firstToken.Sub(t.start).Milliseconds()
	}
	return ev
}

func (s *ChatService) run(
	ctx context.Context,
	session *domain.ChatSession,
	req domain.ChatRequest,
	frame *vision.Frame,
	history []domain.HistoryEntry,
	aiMsgID uuid.UUID,
	events chan<- stream.Event,
) {
	defer close(events)

	state := &turnState{start: time.Now()}

	// Persistence must survive the request context: a disconnect mid
	// stream still finalizes whatever was generated.
	finalizeCtx := context.WithoutCancel(ctx)
	var once sync.Once
	finalize := func() {
		once.Do(func() {
			text := state.full.String()
			if err := s.messageRepo.UpdateContent(finalizeCtx, aiMsgID, text); err != nil {
				log.Error().Err(err).Stringer("message_id", aiMsgID).Msg("failed to finalize reply")
			}
			if err := s.history.Invalidate(finalizeCtx, session.ID); err != nil {
				log.Warn().Err(err).Msg("failed to invalidate history cache")
			}
		})
	}
	defer finalize()

	emit := func(ev stream.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Fast path: an identical question at the same point in the
	// conversation replays the finished answer without an upstream call
	resultKey := s.results.Key(session.ID, req.Message, len(history))
	if frame == nil {
		if cached, _ := s.results.Get(ctx, resultKey); cached != "" {
			s.metrics.resultHits.Add(1)
			s.metrics.turns.Add(1)
			state.full.WriteString(cached)
			if emit(stream.Text(cached)) {
				emit(state.endEvent(true))
			}
			return
		}
	}

	provider, err := s.llmRouter.GetProvider("")
	if err != nil {
		s.metrics.internalErrors.Add(1)
		emit(stream.Error("No language model is configured."))
		return
	}

	llmReq := llm.Request{
		System:      s.systemPrompt(ctx, session.OfficeID),
		History:     toMessages(history),
		Prompt:      req.Message,
		Model:       provider.TextModel(),
		MaxTokens:   maxTextTokens,
		Temperature: temperature,
		TopP:        topP,
	}
	if frame != nil {
		llmReq.Image = &llm.Image{MIME: frame.MIME, Data: frame.Data}
		llmReq.Model = provider.VisionModel()
		llmReq.MaxTokens = maxVisionTokens
	}

	chunks, errs := provider.StreamChat(ctx, llmReq)
	seg := stream.NewSegmenter()

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				// A provider reports failure before closing, so a
				// buffered error may still be pending here
				select {
				case err, ok := <-errs:
					if ok && err != nil {
						s.countError(err)
						log.Error().Err(err).Stringer("session_id", session.ID).Msg("stream failed")
						emit(stream.Error(userFacingError(err)))
						return
					}
				default:
				}
				s.finishTurn(ctx, state, seg, resultKey, aiMsgID, frame == nil, req.UseAvatar, emit)
				return
			}
			if state.firstToken.IsZero() {
				state.firstToken = time.Now()
			}
			state.full.WriteString(chunk)
			if !emit(stream.Text(chunk)) {
				return
			}
			if sentence, ok := seg.Push(chunk); ok {
				if !s.emitAudio(ctx, state, sentence, emit) {
					return
				}
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info().Stringer("session_id", session.ID).Int("chars", state.full.Len()).Msg("client disconnected mid stream")
				return
			}
			s.countError(err)
			log.Error().Err(err).Stringer("session_id", session.ID).Msg("stream failed")
			emit(stream.Error(userFacingError(err)))
			return

		case <-ctx.Done():
			// Client went away; finalize whatever was generated
			log.Info().Stringer("session_id", session.ID).Int("chars", state.full.Len()).Msg("client disconnected mid stream")
			return
		}
	}
}

// finishTurn handles the end of a successful generation: trailing
// audio, result caching, the end event, and avatar dispatch
func (s *ChatService) finishTurn(
	ctx context.Context,
	state *turnState,
	seg *stream.Segmenter,
	resultKey string,
	aiMsgID uuid.UUID,
	cacheable bool,
	useAvatar bool,
	emit func(stream.Event) bool,
) {
	if sentence, ok := seg.Flush(); ok {
		if !s.emitAudio(ctx, state, sentence, emit) {
			return
		}
	}

	text := state.full.String()
	if cacheable && text != "" {
		if err := s.results.Set(ctx, resultKey, text); err != nil {
			log.Warn().Err(err).Msg("failed to cache reply")
		}
	}

	s.metrics.turns.Add(1)
	if !emit(state.endEvent(false)) {
		return
	}

	if useAvatar && s.avatars != nil && text != "" {
		s.avatars.Dispatch(aiMsgID, text)
	}
}

// emitAudio synthesizes one sentence and emits it. Synthesis failure
// is non-fatal: the text already went out, so the turn continues
// without audio.
func (s *ChatService) emitAudio(ctx context.Context, state *turnState, sentence string, emit func(stream.Event) bool) bool {
	if s.synth == nil {
		return true
	}

	audio, err := s.synth.Synthesize(ctx, sentence)
	if err != nil {
		log.Warn().Err(err).Msg("speech synthesis failed")
		return true
	}

	state.audioChunks++
	return emit(stream.Audio(base64.StdEncoding.EncodeToString(audio)))
}

// loadHistory reads conversation context through the cache, falling
// back to Postgres and repopulating on a miss
func (s *ChatService) loadHistory(ctx context.Context, sessionID uuid.UUID) []domain.HistoryEntry {
	if cached, err := s.history.Get(ctx, sessionID); err == nil && cached != nil {
		return cached
	}

	messages, err := s.messageRepo.ListBySession(ctx, sessionID, historyLimit)
	if err != nil {
		log.Warn().Err(err).Stringer("session_id", sessionID).Msg("failed to load history, continuing without context")
		return nil
	}

	history := make([]domain.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		if m.Message == "" {
			continue // unfinalized placeholder
		}
		role := llm.RoleUser
		if m.Sender == domain.SenderAI {
			role = llm.RoleAssistant
		}
		history = append(history, domain.HistoryEntry{Role: role, Content: m.Message})
	}

	if err := s.history.Set(ctx, sessionID, history); err != nil {
		log.Warn().Err(err).Msg("failed to cache history")
	}
	return history
}

// systemPrompt builds the tutoring instruction from office materials.
// A missing office or empty resources still yields a usable prompt.
func (s *ChatService) systemPrompt(ctx context.Context, officeID uuid.UUID) string {
	var b strings.Builder
	b.WriteString("You are a patient, encouraging tutor holding virtual office hours. ")
	b.WriteString("Answer as if speaking aloud: short sentences, no markdown, no bullet lists. ")
	b.WriteString("Guide the student toward understanding instead of just giving answers.")

	office, err := s.officeRepo.Get(ctx, officeID)
	if err == nil {
		fmt.Fprintf(&b, " You are assisting students of %q.", office.Name)
	}

	materials, err := s.resourceRepo.CombinedText(ctx, officeID)
	if err != nil {
		log.Warn().Err(err).Stringer("office_id", officeID).Msg("failed to load office resources")
	} else if materials != "" {
		b.WriteString("\n\nCourse materials for reference:\n")
		b.WriteString(materials)
	}

	return b.String()
}

func (s *ChatService) countError(err error) {
	switch {
	case llm.IsAPIError(err):
		s.metrics.upstreamErrors.Add(1)
	case isNetworkError(err):
		s.metrics.networkErrors.Add(1)
	default:
		s.metrics.internalErrors.Add(1)
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func userFacingError(err error) string {
	switch {
	case llm.IsAPIError(err):
		return "The tutor is temporarily unavailable. Please try again in a moment."
	case isNetworkError(err):
		return "Connection to the tutor was interrupted. Please try again."
	default:
		return "Something went wrong while generating the reply."
	}
}

func toMessages(history []domain.HistoryEntry) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, h := range history {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}
	return messages
}
