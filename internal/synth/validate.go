package synth

import (
	"context"
	"fmt"
	"os"
	"time"
)

// DurationProber reports the playable duration of an audio artifact.
type DurationProber interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Validator checks a produced audio artifact for plausibility before it is
// handed to the telephony engine.
type Validator struct {
	MinBytes    int64
	MinDuration time.Duration
	Prober      DurationProber
}

// Validate confirms the artifact exists, meets the minimum size, is
// readable by this process, and plays for at least the minimum duration.
func (v *Validator) Validate(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}
	if info.Size() < v.MinBytes {
		return fmt.Errorf("artifact too small: %d bytes, need %d", info.Size(), v.MinBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("artifact unreadable: %w", err)
	}
	f.Close()

	if v.Prober != nil {
		d, err := v.Prober.Duration(ctx, path)
		if err != nil {
			return fmt.Errorf("probing duration: %w", err)
		}
		if d < v.MinDuration {
			return fmt.Errorf("artifact duration %.2fs below minimum %.2fs",
				d.Seconds(), v.MinDuration.Seconds())
		}
	}
	return nil
}
