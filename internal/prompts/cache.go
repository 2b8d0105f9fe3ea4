// Package prompts provides a write-once cache for static prompt
// artifacts shared across sessions, such as the greeting.
//
// The first session needing a prompt produces it; sessions racing for the
// same prompt wait on the in-flight synthesis instead of double-producing.
package prompts

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"ari-call-orchestrator/internal/observability/logging"
)

// Synthesizer produces a prompt artifact at a destination path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, destPath string) error
}

// Cache resolves prompt IDs to ready artifacts, synthesizing at most once
// per prompt.
type Cache struct {
	dir      string
	synth    Synthesizer
	minBytes int64

	group singleflight.Group

	mu    sync.RWMutex
	ready map[string]string // promptID -> artifact path
}

// NewCache creates a prompt cache rooted at dir. Artifacts below minBytes
// are treated as absent and re-produced.
func NewCache(dir string, synth Synthesizer, minBytes int64) *Cache {
	return &Cache{
		dir:      dir,
		synth:    synth,
		minBytes: minBytes,
		ready:    make(map[string]string),
	}
}

// Path returns the artifact path a prompt ID resolves to.
func (c *Cache) Path(promptID string) string {
	return filepath.Join(c.dir, promptID+".wav")
}

// Ensure returns the path of a valid artifact for the prompt, producing
// it if needed. Concurrent callers for the same prompt share one
// synthesis.
func (c *Cache) Ensure(ctx context.Context, promptID, text string) (string, error) {
	c.mu.RLock()
	path, ok := c.ready[promptID]
	c.mu.RUnlock()
	if ok {
		return path, nil
	}

	v, err, _ := c.group.Do(promptID, func() (any, error) {
		path := c.Path(promptID)

		// An artifact produced by an earlier run is reused as-is.
		if info, err := os.Stat(path); err == nil && info.Size() >= c.minBytes {
			logger := logging.WithComponent("prompts")
			logger.Debug().
				Str("promptId", promptID).
				Msg("Reusing existing prompt artifact")
			return path, nil
		}

		if err := c.synth.Synthesize(ctx, text, path); err != nil {
			return nil, err
		}
		logger := logging.WithComponent("prompts")
		logger.Info().
			Str("promptId", promptID).
			Str("path", path).
			Msg("Prompt artifact produced")
		return path, nil
	})
	if err != nil {
		return "", err
	}

	path = v.(string)
	c.mu.Lock()
	c.ready[promptID] = path
	c.mu.Unlock()
	return path, nil
}
