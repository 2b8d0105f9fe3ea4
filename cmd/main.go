package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ari-call-orchestrator/internal/app"
	"ari-call-orchestrator/internal/ari"
	"ari-call-orchestrator/internal/config"
	"ari-call-orchestrator/internal/endpoint"
	"ari-call-orchestrator/internal/events"
	httpapi "ari-call-orchestrator/internal/http"
	"ari-call-orchestrator/internal/nlu"
	"ari-call-orchestrator/internal/observability"
	"ari-call-orchestrator/internal/playback"
	"ari-call-orchestrator/internal/prompts"
	"ari-call-orchestrator/internal/session"
	"ari-call-orchestrator/internal/store"
	"ari-call-orchestrator/internal/synth"
	"ari-call-orchestrator/internal/transcode"
	"ari-call-orchestrator/internal/tts"
	"ari-call-orchestrator/internal/tts/elevenlabs"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	logger := application.Logger

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Startup failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics and health endpoints come up first so probes see the
	// service while it waits for its dependencies.
	obs := observability.NewServer(cfg.Observability.MetricsAddr)
	obs.Start()

	// Call-log store. An empty database URL selects the in-memory store.
	var st store.Store
	if cfg.Database.URL != "" {
		pg, err := store.ConnectWithRetry(ctx, cfg.Database.URL, cfg.Database.ConnectRetries, cfg.Database.ConnectBackoff)
		if err != nil {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		st = pg
	} else {
		logger.Warn().Msg("No database configured, call logs are in-memory only")
		st = store.NewMemory()
	}
	defer st.Close()

	// The NLU backend must answer its status endpoint before any call is
	// accepted; a session without it would be all fallbacks.
	nluClient := nlu.New(nlu.Config{
		WebhookURL: cfg.NLU.WebhookURL,
		StatusURL:  cfg.NLU.StatusURL,
		Timeout:    cfg.NLU.Timeout,
	})
	if err := nluClient.WaitReady(ctx, cfg.NLU.ReadyRetries, cfg.NLU.ReadyInterval); err != nil {
		logger.Fatal().Err(err).Msg("NLU backend never became ready")
	}

	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicStarted: cfg.Kafka.TopicStarted,
		TopicEnded:   cfg.Kafka.TopicEnded,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	client, err := ari.ConnectWithRetry(ctx, ari.Config{
		URL:      cfg.ARI.URL,
		Username: cfg.ARI.Username,
		Password: cfg.ARI.Password,
		App:      cfg.ARI.App,
	}, cfg.ARI.ConnectRetries, cfg.ARI.ConnectBackoff)
	if err != nil {
		logger.Fatal().Err(err).Msg("Call-control connection failed")
	}
	defer client.Close()

	provider := elevenlabs.New(elevenlabs.Config{
		BaseURL: cfg.TTS.BaseURL,
		APIKey:  cfg.TTS.APIKey,
		VoiceID: cfg.TTS.VoiceID,
	})
	pipeline := synth.NewPipeline(provider, transcode.NewFFmpeg(), cfg.TTS.ModelID, tts.VoiceSettings{
		Stability:       cfg.TTS.Stability,
		SimilarityBoost: cfg.TTS.SimilarityBoost,
	}, synth.Options{
		MinRawBytes: cfg.Synthesis.MinRawBytes,
		MinWAVBytes: cfg.Synthesis.MinWAVBytes,
		MinDuration: cfg.Synthesis.MinDuration,
	})

	player := playback.New(client, playback.Options{
		MaxAttempts:    cfg.Playback.MaxAttempts,
		AttemptTimeout: cfg.Playback.AttemptTimeout,
		RetryBackoff:   cfg.Playback.RetryBackoff,
		MinFileBytes:   cfg.Playback.MinFileBytes,
	})
	promptCache := prompts.NewCache(cfg.Service.SoundsDir, pipeline, cfg.Playback.MinFileBytes)

	orchestrator := session.New(client, st, promptCache, pipeline, player, nluClient, publisher, session.Config{
		SoundsDir:                   cfg.Service.SoundsDir,
		Script:                      cfg.Dialogue.Script,
		FallbackReply:               cfg.Dialogue.FallbackReply,
		GreetingText:                cfg.Dialogue.GreetingText,
		GreetingPromptID:            cfg.Dialogue.GreetingPromptID,
		InterTurnDelay:              cfg.Dialogue.InterTurnDelay,
		RecordingMaxDurationSeconds: cfg.Recording.MaxDurationSeconds,
		HangupOnSetupFailure:        cfg.Dialogue.HangupOnSetupFailure,
	})
	go orchestrator.Run(ctx, client.Events())

	if cfg.Endpoint.Enabled {
		poller := endpoint.New(client, endpoint.Config{
			Tech:         cfg.Endpoint.Tech,
			Resource:     cfg.Endpoint.Resource,
			App:          cfg.ARI.App,
			AppArgs:      cfg.Endpoint.AppArgs,
			CallerID:     cfg.Endpoint.CallerID,
			PollInterval: cfg.Endpoint.PollInterval,
		})
		go func() {
			if _, err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Endpoint poller stopped")
			}
		}()
	}

	apiServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(application, st, client),
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("Dashboard API listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Dashboard API failed")
		}
	}()

	obs.SetReady(true)
	logger.Info().Str("app", cfg.ARI.App).Msg("Call orchestrator ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutdown signal received")
	obs.SetReady(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Dashboard API shutdown failed")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Metrics server shutdown failed")
	}
	application.Shutdown()
}
