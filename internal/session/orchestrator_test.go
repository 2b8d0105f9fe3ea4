package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ari-call-orchestrator/internal/ari"
	"ari-call-orchestrator/internal/ari/mock"
	"ari-call-orchestrator/internal/events"
	"ari-call-orchestrator/internal/store"
)

type fakeReplier struct {
	mu    sync.Mutex
	err   error
	empty bool
	block bool
	calls []string // messages in order
}

func (f *fakeReplier) Ask(ctx context.Context, sender, message string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, message)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	if f.empty {
		return "", nil
	}
	return "echo: " + message, nil
}

func (f *fakeReplier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSynth struct {
	mu    sync.Mutex
	errOn map[string]error // keyed by text
	texts []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, destPath string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.errOn[text]
}

func (f *fakeSynth) synthesized() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakePlayer struct {
	mu    sync.Mutex
	errOn map[string]error // keyed by media ref
	refs  []string
}

func (f *fakePlayer) PlayAndWait(ctx context.Context, channelID, mediaRef, sourcePath string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, mediaRef)
	return f.errOn[mediaRef]
}

func (f *fakePlayer) played() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refs...)
}

type fakePrompts struct {
	mu      sync.Mutex
	err     error
	ensures int
}

func (f *fakePrompts) Ensure(ctx context.Context, promptID, text string) (string, error) {
	f.mu.Lock()
	f.ensures++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/sounds/" + promptID + ".wav", nil
}

type harness struct {
	client  *mock.Client
	store   *store.Memory
	replier *fakeReplier
	synth   *fakeSynth
	player  *fakePlayer
	prompts *fakePrompts
	orch    *Orchestrator
	events  chan ari.Event
	done    chan struct{}
	cancel  context.CancelFunc
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	h := &harness{
		client:  &mock.Client{},
		store:   store.NewMemory(),
		replier: &fakeReplier{},
		synth:   &fakeSynth{},
		player:  &fakePlayer{},
		prompts: &fakePrompts{},
		events:  make(chan ari.Event, 8),
		done:    make(chan struct{}),
	}

	if cfg.SoundsDir == "" {
		cfg.SoundsDir = t.TempDir()
	}
	if cfg.GreetingPromptID == "" {
		cfg.GreetingPromptID = "greeting_good_morning"
	}
	if cfg.FallbackReply == "" {
		cfg.FallbackReply = "Sorry, I didn't understand that."
	}
	cfg.InterTurnDelay = time.Millisecond

	publisher := events.New(&events.Config{Enabled: false})
	h.orch = New(h.client, h.store, h.prompts, h.synth, h.player, h.replier, publisher, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		h.orch.Run(ctx, h.events)
		close(h.done)
	}()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	close(h.events)
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not stop")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOrchestrator_HappyPath(t *testing.T) {
	script := []string{"hello", "how are you", "what can you do", "tell me more", "goodbye"}
	h := newHarness(t, Config{Script: script, RecordingMaxDurationSeconds: 3600})

	h.events <- ari.ChannelStart{ID: "chan-1", CallerNumber: "1000", Args: []string{"1001"}}
	waitFor(t, "hangup", func() bool { return h.client.HangupCount() == 1 })

	if got := h.replier.count(); got != len(script) {
		t.Errorf("expected %d NLU calls, got %d", len(script), got)
	}

	played := h.player.played()
	want := []string{"sound:greeting_good_morning", "sound:reply_1", "sound:reply_2", "sound:reply_3", "sound:reply_4", "sound:reply_5"}
	if len(played) != len(want) {
		t.Fatalf("expected %d playbacks, got %d: %v", len(want), len(played), played)
	}
	for i, ref := range want {
		if played[i] != ref {
			t.Errorf("playback %d: expected %s, got %s", i, ref, played[i])
		}
	}

	h.events <- ari.ChannelEnd{ID: "chan-1"}
	waitFor(t, "finalized record", func() bool {
		rec, ok := h.store.Get(1)
		return ok && rec.EndTime != nil
	})

	rec, _ := h.store.Get(1)
	if rec.Caller != "1000" || rec.Callee != "1001" {
		t.Errorf("unexpected parties: %s -> %s", rec.Caller, rec.Callee)
	}
	if rec.Duration == nil {
		t.Error("expected duration to be set")
	}
	if !strings.HasSuffix(rec.RecordingFile, "chan-1.wav") {
		t.Errorf("unexpected recording file: %s", rec.RecordingFile)
	}
	if n := h.orch.ActiveSessions(); n != 0 {
		t.Errorf("expected 0 active sessions, got %d", n)
	}
	h.stop(t)
}

func TestOrchestrator_RecordingOptions(t *testing.T) {
	h := newHarness(t, Config{Script: []string{"hi"}, RecordingMaxDurationSeconds: 3600})

	h.events <- ari.ChannelStart{ID: "chan-1", CallerNumber: "1000"}
	waitFor(t, "record call", func() bool { return h.client.RecordCount() == 1 })

	if h.client.RecordCount() != 1 {
		t.Fatalf("expected 1 record call, got %d", h.client.RecordCount())
	}
	opts := h.client.RecordCalls[0]
	if opts.Format != "wav" {
		t.Errorf("expected wav format, got %s", opts.Format)
	}
	if opts.MaxDurationSeconds != 3600 {
		t.Errorf("expected 3600s max duration, got %d", opts.MaxDurationSeconds)
	}
	if opts.Beep {
		t.Error("expected no beep")
	}
	if opts.IfExists != "overwrite" {
		t.Errorf("expected overwrite, got %s", opts.IfExists)
	}
}

func TestOrchestrator_NLUFailureUsesFallback(t *testing.T) {
	h := newHarness(t, Config{Script: []string{"hello", "goodbye"}})
	h.replier.err = errors.New("webhook down")

	h.events <- ari.ChannelStart{ID: "chan-1", CallerNumber: "1000"}
	waitFor(t, "hangup", func() bool { return h.client.HangupCount() == 1 })

	for i, text := range h.synth.synthesized() {
		if text != "Sorry, I didn't understand that." {
			t.Errorf("turn %d: expected fallback reply, got %q", i+1, text)
		}
	}
	if got := len(h.synth.synthesized()); got != 2 {
		t.Errorf("expected 2 synthesized replies, got %d", got)
	}
}

func TestOrchestrator_EmptyNLUReplyUsesFallback(t *testing.T) {
	h := newHarness(t, Config{Script: []string{"hello"}})
	h.replier.empty = true

	h.events <- ari.ChannelStart{ID: "chan-1", CallerNumber: "1000"}
	waitFor(t, "hangup", func() bool { return h.client.HangupCount() == 1 })

	texts := h.synth.synthesized()
	if len(texts) != 1 || texts[0] != "Sorry, I didn't understand that." {
		t.Errorf("expected fallback reply, got %v", texts)
	}
}

func TestOrchestrator_TurnFailuresDoNotHaltScript(t *testing.T) {
	h := newHarness(t, Config{Script: []string{"one", "two", "three"}})
	h.synth.errOn = map[string]error{"echo: two": errors.New("synthesis failed")}
	h.player.errOn = map[string]error{"sound:reply_3": errors.New("playback failed")}

	h.events <- ari.ChannelStart{ID: "chan-1", CallerNumber: "1000"}
	waitFor(t, "hangup", func() bool { return h.client.HangupCount() == 1 })

	if got := h.replier.count(); got != 3 {
		t.Errorf("expected all 3 turns attempted, got %d", got)
	}
	// Turn two's playback is skipped after the failed synthesis.
	played := h.player.played()
	want := []string{"sound:greeting_good_morning", "sound:reply_1", "sound:reply_3"}
	if len(played) != len(want) {
		t.Fatalf("expected playbacks %v, got %v", want, played)
	}
}

func TestOrchestrator_AnswerFailureLeavesChannel(t *testing.T) {
	h := newHarness(t, Config{Script: []string{"hello"}})
	h.client.AnswerErr = errors.New("channel gone")

	h.events <- ari.ChannelStart{ID: "chan-1", CallerNumber: "1000"}
	h.events <- ari.ChannelEnd{ID: "chan-1"}
	waitFor(t, "finalized record", func() bool {
		rec, ok := h.store.Get(1)
		return ok && rec.EndTime != nil
	})

	if h.client.HangupCount() != 0 {
		t.Error("expected no hangup without the setup-failure policy")
	}
	if h.client.PlayCount() != 0 {
		t.Error("expected no playback after failed answer")
	}
}

func TestOrchestrator_AnswerFailureHangupPolicy(t *testing.T) {
	h := newHarness(t, Config{Script: []string{"hello"}, HangupOnSetupFailure: true})
	h.client.AnswerErr = errors.New("channel gone")

	h.events <- ari.ChannelStart{ID: "chan-1", CallerNumber: "1000"}
	waitFor(t, "compensating hangup", func() bool { return h.client.HangupCount() == 1 })

	if len(h.player.played()) != 0 {
		t.Error("expected no playback after failed answer")
	}
}

func TestOrchestrator_GreetingFailureAbortsSetup(t *testing.T) {
	h := newHarness(t, Config{Script: []string{"hello"}})
	h.prompts.err = errors.New("synthesis failed")

	h.events <- ari.ChannelStart{ID: "chan-1", CallerNumber: "1000"}
	waitFor(t, "answer", func() bool { return h.client.AnswerCount() == 1 })
	time.Sleep(20 * time.Millisecond)

	if got := h.replier.count(); got != 0 {
		t.Errorf("expected no dialogue turns, got %d", got)
	}
	if h.client.HangupCount() != 0 {
		t.Error("expected no hangup after aborted setup")
	}
}

func TestOrchestrator_EndMidDialogue(t *testing.T) {
	h := newHarness(t, Config{Script: []string{"hello", "goodbye"}})
	h.replier.block = true

	h.events <- ari.ChannelStart{ID: "chan-1", CallerNumber: "1000"}
	waitFor(t, "first turn", func() bool { return h.replier.count() == 1 })

	h.events <- ari.ChannelEnd{ID: "chan-1"}
	waitFor(t, "finalized record", func() bool {
		rec, ok := h.store.Get(1)
		return ok && rec.EndTime != nil
	})

	time.Sleep(20 * time.Millisecond)
	if h.client.HangupCount() != 0 {
		t.Error("expected no hangup after external channel end")
	}
}

func TestOrchestrator_UnknownChannelEndIgnored(t *testing.T) {
	h := newHarness(t, Config{Script: []string{"hello"}})

	h.events <- ari.ChannelEnd{ID: "never-started"}
	h.stop(t)

	if recs, _ := h.store.List(context.Background()); len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestOrchestrator_ConcurrentSessions(t *testing.T) {
	h := newHarness(t, Config{Script: []string{"hello"}})

	h.events <- ari.ChannelStart{ID: "chan-1", CallerNumber: "1000"}
	h.events <- ari.ChannelStart{ID: "chan-2", CallerNumber: "2000"}
	waitFor(t, "both hangups", func() bool { return h.client.HangupCount() == 2 })

	h.events <- ari.ChannelEnd{ID: "chan-1"}
	h.events <- ari.ChannelEnd{ID: "chan-2"}
	waitFor(t, "both finalized", func() bool {
		a, okA := h.store.Get(1)
		b, okB := h.store.Get(2)
		return okA && okB && a.EndTime != nil && b.EndTime != nil
	})

	if n := h.orch.ActiveSessions(); n != 0 {
		t.Errorf("expected 0 active sessions, got %d", n)
	}
}
