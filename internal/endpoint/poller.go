// Package endpoint polls a telephony endpoint until it registers and then
// originates a call into the application.
package endpoint

import (
	"context"
	"time"

	"ari-call-orchestrator/internal/ari"
	"ari-call-orchestrator/internal/observability/logging"
)

// Config selects the endpoint to watch and the call to place once it is
// reachable.
type Config struct {
	Tech         string
	Resource     string
	App          string
	AppArgs      string
	CallerID     string
	PollInterval time.Duration
}

// Poller watches one endpoint and dials it exactly once.
type Poller struct {
	client ari.Client
	cfg    Config
}

// New creates a poller.
func New(client ari.Client, cfg Config) *Poller {
	return &Poller{client: client, cfg: cfg}
}

// Run polls the endpoint state on every tick until it reports online, then
// originates the call and returns the new channel ID. State-check failures
// are logged and retried on the next tick; an unreachable endpoint keeps
// the poller running until the context is cancelled.
func (p *Poller) Run(ctx context.Context) (string, error) {
	logger := logging.WithComponent("endpoint-poller").With().
		Str("endpoint", p.cfg.Tech+"/"+p.cfg.Resource).Logger()
	logger.Info().Dur("pollInterval", p.cfg.PollInterval).Msg("Waiting for endpoint to register")

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		state, err := p.client.EndpointState(ctx, p.cfg.Tech, p.cfg.Resource)
		if err != nil {
			logger.Warn().Err(err).Msg("Endpoint state check failed")
			continue
		}
		if state != "online" {
			logger.Debug().Str("state", state).Msg("Endpoint not ready")
			continue
		}

		channelID, err := p.client.Originate(ctx, ari.OriginateOptions{
			Endpoint: p.cfg.Tech + "/" + p.cfg.Resource,
			App:      p.cfg.App,
			AppArgs:  p.cfg.AppArgs,
			CallerID: p.cfg.CallerID,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Originate failed")
			return "", err
		}
		logger.Info().Str("channelId", channelID).Msg("Endpoint online, call originated")
		return channelID, nil
	}
}
