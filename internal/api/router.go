package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"officehours/backend/internal/api/handler"
	customMiddleware "officehours/backend/internal/api/middleware"
	"officehours/backend/internal/avatar"
	"officehours/backend/internal/config"
	"officehours/backend/internal/llm"
	"officehours/backend/internal/llm/gemini"
	"officehours/backend/internal/llm/openai"
	"officehours/backend/internal/repository/postgres"
	"officehours/backend/internal/repository/redis"
	"officehours/backend/internal/security"
	"officehours/backend/internal/service"
	"officehours/backend/internal/speech"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *postgres.DB, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.RequestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Security
	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// Repositories
	userRepo := postgres.NewUserRepository(db.Pool)
	sessionRepo := postgres.NewSessionRepository(db.Pool)
	messageRepo := postgres.NewMessageRepository(db.Pool)
	officeRepo := postgres.NewOfficeRepository(db.Pool)
	resourceRepo := postgres.NewResourceRepository(db.Pool)

	// Caches and rate limiter
	rateLimiter := redis.NewRateLimiter(
		redisClient,
		cfg.Security.RateLimit.RequestsPerMinute,
		cfg.Security.RateLimit.Burst,
	)
	historyCache := redis.NewHistoryCache(redisClient, cfg.Cache.HistoryTTL)
	resultCache := redis.NewResultCache(redisClient, cfg.Cache.ResultTTL)
	speechCache := redis.NewSpeechCache(redisClient, cfg.Cache.SpeechTTL)

	// LLM providers
	llmRouter := llm.NewRouter(cfg.LLM.DefaultProvider)
	log.Info().Str("default", cfg.LLM.DefaultProvider).Msg("initializing LLM providers")

	if cfg.LLM.OpenAI.APIKey != "" {
		llmRouter.RegisterProvider(openai.NewProvider(
			cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.TextModel, cfg.LLM.OpenAI.VisionModel,
		))
	}
	if cfg.LLM.Gemini.APIKey != "" {
		llmRouter.RegisterProvider(gemini.NewProvider(cfg.LLM.Gemini.APIKey, cfg.LLM.Gemini.TextModel))
	}
	if len(llmRouter.ListProviders()) == 0 {
		log.Warn().Msg("no LLM provider configured, chat turns will fail")
	}

	// Speech synthesis rides on the OpenAI key
	var synth speech.Synthesizer
	if cfg.LLM.OpenAI.APIKey != "" {
		synth = speech.NewCachedSynthesizer(
			speech.NewOpenAISynthesizer(cfg.LLM.OpenAI.APIKey, cfg.Speech.Model, cfg.Speech.Voice),
			speechCache,
		)
	} else {
		log.Warn().Msg("speech synthesis disabled, no OpenAI API key")
	}

	// Avatar generation
	var avatars service.AvatarDispatcher
	if cfg.Avatar.Enabled() {
		avatars = avatar.NewDispatcher(
			avatar.NewClient(cfg.Avatar.APIKey, cfg.Avatar.BaseURL, cfg.Avatar.PollInterval, cfg.Avatar.MaxWait),
			messageRepo,
		)
	} else {
		log.Info().Msg("avatar generation disabled")
	}

	// Services
	metrics := service.NewMetrics()
	authService := service.NewAuthService(userRepo, jwtManager)
	chatService := service.NewChatService(
		sessionRepo, messageRepo, officeRepo, resourceRepo,
		historyCache, resultCache, synth, llmRouter, avatars, metrics,
	)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)

	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(rateLimiter)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(db, metrics))

		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimitMiddleware.Limit)

			r.Route("/chat", func(r chi.Router) {
				r.Post("/start", chatHandler.Start)
				// No timeout middleware here: the stream stays open for
				// the length of a full generation
				r.Post("/message", chatHandler.SendMessage)
				r.Get("/history/{sessionID}", chatHandler.History)
				r.Get("/message/{messageID}/avatar", chatHandler.AvatarStatus)
			})
		})
	})

	return r
}
