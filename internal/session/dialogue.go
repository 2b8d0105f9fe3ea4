package session

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"ari-call-orchestrator/internal/observability/logging"
	"ari-call-orchestrator/internal/observability/metrics"
)

// Replier maps one user utterance to a reply.
type Replier interface {
	Ask(ctx context.Context, sender, message string) (string, error)
}

// Synthesizer produces a validated audio artifact for a reply text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, destPath string) error
}

// Player plays an artifact into a channel and blocks until it settles.
type Player interface {
	PlayAndWait(ctx context.Context, channelID, mediaRef, sourcePath string) error
}

// Coordinator advances a session through the fixed utterance script: one
// NLU round trip, one synthesis, and one playback per turn.
//
// The script is scripted test content, not a live dialogue, so a failed
// synthesis or playback for one turn is absorbed and the loop advances to
// the next turn regardless.
type Coordinator struct {
	script    []string
	fallback  string
	soundsDir string
	delay     time.Duration

	nlu     Replier
	synth   Synthesizer
	player  Player
	metrics *metrics.Metrics
}

// NewCoordinator creates a dialogue coordinator. The script slice is
// shared read-only across sessions.
func NewCoordinator(script []string, fallback, soundsDir string, delay time.Duration, nlu Replier, synth Synthesizer, player Player) *Coordinator {
	return &Coordinator{
		script:    script,
		fallback:  fallback,
		soundsDir: soundsDir,
		delay:     delay,
		nlu:       nlu,
		synth:     synth,
		player:    player,
		metrics:   metrics.DefaultMetrics,
	}
}

// Run walks the session through every remaining scripted turn. It returns
// when the script is exhausted or the context is cancelled (channel gone).
func (c *Coordinator) Run(ctx context.Context, sess *Session) {
	logger := logging.WithChannel(sess.ID)
	sender := "call_" + sess.ID

	for {
		line, turn, ok := sess.nextLine(c.script)
		if !ok {
			return
		}
		logger.Info().Int("turn", turn).Str("utterance", line).Msg("User utterance")

		reply := c.fallback
		text, err := c.nlu.Ask(ctx, sender, line)
		switch {
		case err != nil:
			logger.Error().Err(err).Int("turn", turn).Msg("NLU request failed, using fallback reply")
			c.metrics.NLUFallbacks.Inc()
		case text == "":
			c.metrics.NLUFallbacks.Inc()
		default:
			reply = text
			logger.Info().Int("turn", turn).Str("reply", reply).Msg("Bot reply")
		}

		name := fmt.Sprintf("reply_%d", turn)
		path := filepath.Join(c.soundsDir, name+".wav")
		if err := c.synth.Synthesize(ctx, reply, path); err != nil {
			logger.Error().Err(err).Int("turn", turn).Msg("Reply synthesis failed, skipping turn")
		} else if err := c.player.PlayAndWait(ctx, sess.ID, "sound:"+name, path); err != nil {
			logger.Error().Err(err).Int("turn", turn).Msg("Reply playback failed, skipping turn")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.delay):
		}
	}
}
