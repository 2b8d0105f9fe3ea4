package session

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"ari-call-orchestrator/internal/ari"
	"ari-call-orchestrator/internal/events"
	"ari-call-orchestrator/internal/models"
	"ari-call-orchestrator/internal/observability/logging"
	"ari-call-orchestrator/internal/observability/metrics"
	"ari-call-orchestrator/internal/store"
)

// PromptCache resolves static shared prompts to ready artifacts.
type PromptCache interface {
	Ensure(ctx context.Context, promptID, text string) (string, error)
}

// Config holds the orchestrator policy knobs.
type Config struct {
	SoundsDir        string
	Script           []string
	FallbackReply    string
	GreetingText     string
	GreetingPromptID string
	InterTurnDelay   time.Duration

	RecordingMaxDurationSeconds int

	// HangupOnSetupFailure forces a hangup when answering fails. Off by
	// default: the channel is left to the call-control engine's own fate.
	HangupOnSetupFailure bool
}

// Orchestrator dispatches channel lifecycle events into per-channel
// session tasks. Each session is owned by exactly one goroutine; sessions
// share only the read-only script and the prompt cache.
type Orchestrator struct {
	client    ari.Client
	store     store.Store
	prompts   PromptCache
	dialogue  *Coordinator
	player    Player
	publisher *events.Publisher
	cfg       Config
	metrics   *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates the orchestrator.
func New(client ari.Client, st store.Store, prompts PromptCache, synth Synthesizer, player Player, nlu Replier, publisher *events.Publisher, cfg Config) *Orchestrator {
	return &Orchestrator{
		client:    client,
		store:     st,
		prompts:   prompts,
		dialogue:  NewCoordinator(cfg.Script, cfg.FallbackReply, cfg.SoundsDir, cfg.InterTurnDelay, nlu, synth, player),
		player:    player,
		publisher: publisher,
		cfg:       cfg,
		metrics:   metrics.DefaultMetrics,
	}
}

// Run consumes channel lifecycle events until the stream closes or the
// context is cancelled. A ChannelStart spawns a session task; the
// matching ChannelEnd finalizes the session record exactly once, no
// matter how far the session progressed.
func (o *Orchestrator) Run(ctx context.Context, eventsCh <-chan ari.Event) {
	logger := logging.WithComponent("orchestrator")

	o.mu.Lock()
	if o.sessions == nil {
		o.sessions = make(map[string]*Session)
	}
	o.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eventsCh:
			if !ok {
				logger.Info().Msg("Event stream closed")
				return
			}
			switch e := ev.(type) {
			case ari.ChannelStart:
				o.handleStart(ctx, e)
			case ari.ChannelEnd:
				o.handleEnd(ctx, e)
			}
		}
	}
}

func (o *Orchestrator) handleStart(ctx context.Context, e ari.ChannelStart) {
	caller, callee := e.Caller(), e.Callee()
	logger := logging.WithCall(e.ID, caller, callee)
	logger.Info().Msg("Call started")

	sessCtx, cancel := context.WithCancel(ctx)
	sess := newSession(e.ID, caller, callee, cancel)

	o.mu.Lock()
	o.sessions[e.ID] = sess
	o.mu.Unlock()

	o.metrics.RecordCallStart()

	sess.record.StartTime = sess.StartTime
	if err := o.store.Create(sessCtx, sess.record); err != nil {
		logger.Error().Err(err).Msg("Creating call record failed")
	}

	o.publisher.PublishStarted(sessCtx, sess.ID, models.CallStartedEvent{
		EventType: "call.started",
		ChannelID: sess.ID,
		Caller:    caller,
		Callee:    callee,
		Timestamp: sess.StartTime.UnixMilli(),
	})

	go o.runSession(sessCtx, sess)
}

func (o *Orchestrator) handleEnd(ctx context.Context, e ari.ChannelEnd) {
	o.mu.Lock()
	sess := o.sessions[e.ID]
	delete(o.sessions, e.ID)
	o.mu.Unlock()

	if sess == nil {
		logger := logging.WithChannel(e.ID)
		logger.Warn().Msg("Channel end for unknown session")
		return
	}
	// Finalize on the dispatch context: the session context is about to
	// be cancelled.
	o.finalize(ctx, sess)
}

// finalize persists the terminal record state. Guarded by the lifecycle
// so it runs exactly once per session.
func (o *Orchestrator) finalize(ctx context.Context, sess *Session) {
	if !sess.lifecycle.End() {
		return
	}
	sess.cancel()

	end := time.Now().UTC()
	duration := int(end.Sub(sess.StartTime).Seconds())
	logger := logging.WithCall(sess.ID, sess.Caller, sess.Callee)

	sess.record.EndTime = &end
	sess.record.Duration = &duration
	sess.record.RecordingFile = sess.RecordingPath()

	if sess.record.ID != 0 {
		if err := o.store.Finalize(ctx, sess.record); err != nil {
			logger.Error().Err(err).Msg("Call record update failed")
		}
	}

	o.metrics.RecordCallEnd(float64(duration))

	o.publisher.PublishEnded(ctx, sess.ID, models.CallEndedEvent{
		EventType:       "call.ended",
		ChannelID:       sess.ID,
		Caller:          sess.Caller,
		Callee:          sess.Callee,
		Timestamp:       end.UnixMilli(),
		DurationSeconds: duration,
		RecordingFile:   sess.record.RecordingFile,
	})

	logger.Info().Int("durationSeconds", duration).Msg("Call ended")
}

// runSession walks one channel through the state machine. Failures before
// or during greeting abort setup; the record is still finalized when the
// channel-end event arrives.
func (o *Orchestrator) runSession(ctx context.Context, sess *Session) {
	logger := logging.WithCall(sess.ID, sess.Caller, sess.Callee)

	if err := o.client.Answer(ctx, sess.ID); err != nil {
		logger.Error().Err(err).Msg("Answer failed, leaving channel unmanaged")
		if o.cfg.HangupOnSetupFailure {
			if herr := o.client.Hangup(ctx, sess.ID); herr != nil {
				logger.Error().Err(herr).Msg("Compensating hangup failed")
			}
		}
		return
	}
	if err := sess.lifecycle.Advance(StateAnswered); err != nil {
		return
	}
	logger.Info().Msg("Channel answered")

	greetingPath, err := o.prompts.Ensure(ctx, o.cfg.GreetingPromptID, o.cfg.GreetingText)
	if err != nil {
		logger.Error().Err(err).Msg("Greeting synthesis failed, aborting session setup")
		return
	}
	if err := o.player.PlayAndWait(ctx, sess.ID, "sound:"+o.cfg.GreetingPromptID, greetingPath); err != nil {
		logger.Error().Err(err).Msg("Greeting playback failed, aborting session setup")
		return
	}
	if err := sess.lifecycle.Advance(StateGreeting); err != nil {
		return
	}
	logger.Info().Msg("Greeting finished")

	o.startRecording(ctx, sess)
	if err := sess.lifecycle.Advance(StateRecording); err != nil {
		return
	}

	if len(o.cfg.Script) > 0 {
		if err := sess.lifecycle.Advance(StateDialoguing); err != nil {
			return
		}
		o.dialogue.Run(ctx, sess)
		if ctx.Err() != nil {
			return
		}
	}

	if err := sess.lifecycle.Advance(StateHangingUp); err != nil {
		return
	}
	if err := o.client.Hangup(ctx, sess.ID); err != nil {
		logger.Error().Err(err).Msg("Hangup failed")
		return
	}
	logger.Info().Msg("Script exhausted, hangup issued")
}

// startRecording issues the start-recording call fire-and-forget; a
// failure is logged but never blocks the dialogue loop.
func (o *Orchestrator) startRecording(ctx context.Context, sess *Session) {
	sess.setRecordingPath(filepath.Join(o.cfg.SoundsDir, sess.ID+".wav"))
	logger := logging.WithChannel(sess.ID)

	go func() {
		err := o.client.Record(ctx, sess.ID, ari.RecordOptions{
			Name:               sess.ID,
			Format:             "wav",
			MaxDurationSeconds: o.cfg.RecordingMaxDurationSeconds,
			Beep:               false,
			IfExists:           "overwrite",
		})
		if err != nil {
			o.metrics.RecordingFailures.Inc()
			logger.Error().Err(err).Msg("Recording start failed")
			return
		}
		o.metrics.RecordingsStarted.Inc()
		logger.Info().Str("recordingPath", sess.RecordingPath()).Msg("Recording started")
	}()
}

// ActiveSessions reports the number of in-flight sessions.
func (o *Orchestrator) ActiveSessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}
