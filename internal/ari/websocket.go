package ari

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ari-call-orchestrator/internal/observability/logging"
)

// Config holds connection settings for the Asterisk REST Interface.
type Config struct {
	// URL is the REST base, e.g. http://asterisk:8088/ari.
	URL      string
	Username string
	Password string
	// App is the Stasis application to subscribe as.
	App string
}

// ConnectError indicates the control plane could not be reached after the
// bounded retry budget was exhausted.
type ConnectError struct {
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("ari: connect failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// WSClient is the real ARI client. Channel lifecycle events arrive over a
// WebSocket; operations go over REST. Playback lifecycle notifications are
// routed to the handle that started them.
type WSClient struct {
	cfg    Config
	httpc  *http.Client
	events chan Event

	mu        sync.Mutex
	playbacks map[string]chan PlaybackEvent

	pbCounter uint64

	conn      *websocket.Conn
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Client = (*WSClient)(nil)

// Connect dials the ARI WebSocket event stream and subscribes the
// application. The returned client is ready for REST operations.
func Connect(ctx context.Context, cfg Config) (*WSClient, error) {
	wsURL, err := eventsURL(cfg)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing ari events: %w", err)
	}

	c := &WSClient{
		cfg:       cfg,
		httpc:     &http.Client{},
		events:    make(chan Event, 64),
		playbacks: make(map[string]chan PlaybackEvent),
		conn:      conn,
		closed:    make(chan struct{}),
	}

	go c.readLoop()

	logger := logging.WithComponent("ari")
	logger.Info().
		Str("app", cfg.App).
		Str("url", cfg.URL).
		Msg("Connected to Asterisk ARI")
	return c, nil
}

// ConnectWithRetry calls Connect with a fixed backoff between attempts and
// gives up after maxAttempts, returning a ConnectError.
func ConnectWithRetry(ctx context.Context, cfg Config, maxAttempts int, backoff time.Duration) (*WSClient, error) {
	logger := logging.WithComponent("ari")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c, err := Connect(ctx, cfg)
		if err == nil {
			return c, nil
		}
		lastErr = err
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", maxAttempts).
			Msg("ARI connect failed")

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &ConnectError{Attempts: attempt, Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}
	return nil, &ConnectError{Attempts: maxAttempts, Err: lastErr}
}

// Events returns the channel lifecycle event stream. The channel is closed
// when the WebSocket connection ends.
func (c *WSClient) Events() <-chan Event {
	return c.events
}

// Close tears down the WebSocket connection.
func (c *WSClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
	return nil
}

// wsMessage is the superset of ARI event fields the client cares about.
type wsMessage struct {
	Type    string   `json:"type"`
	Args    []string `json:"args"`
	Channel struct {
		ID     string `json:"id"`
		Caller struct {
			Number string `json:"number"`
		} `json:"caller"`
		Dialplan struct {
			Exten string `json:"exten"`
		} `json:"dialplan"`
	} `json:"channel"`
	Playback struct {
		ID string `json:"id"`
	} `json:"playback"`
	Message string `json:"message"`
}

func (c *WSClient) readLoop() {
	logger := logging.WithComponent("ari")
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				logger.Error().Err(err).Msg("ARI event stream closed")
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn().Err(err).Msg("Unparseable ARI event")
			continue
		}

		switch msg.Type {
		case "StasisStart":
			c.events <- ChannelStart{
				ID:            msg.Channel.ID,
				CallerNumber:  msg.Channel.Caller.Number,
				Args:          msg.Args,
				DialplanExten: msg.Channel.Dialplan.Exten,
			}
		case "StasisEnd":
			c.events <- ChannelEnd{ID: msg.Channel.ID}
		case "PlaybackStarted":
			c.dispatchPlayback(msg.Playback.ID, PlaybackEvent{Type: PlaybackStarted})
		case "PlaybackFinished":
			c.dispatchPlayback(msg.Playback.ID, PlaybackEvent{Type: PlaybackFinished})
		case "PlaybackFailed", "PlaybackError":
			c.dispatchPlayback(msg.Playback.ID, PlaybackEvent{Type: PlaybackFailed, Message: msg.Message})
		default:
			// Channel state changes, DTMF, etc. are not orchestrated here.
		}
	}
}

func (c *WSClient) dispatchPlayback(playbackID string, ev PlaybackEvent) {
	c.mu.Lock()
	ch := c.playbacks[playbackID]
	c.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
		// Listener abandoned the attempt without closing; drop rather than block.
	}
}

// wsPlayback implements Playback for the WebSocket client.
type wsPlayback struct {
	id     string
	ch     chan PlaybackEvent
	client *WSClient
	once   sync.Once
}

func (p *wsPlayback) ID() string { return p.id }

func (p *wsPlayback) Events() <-chan PlaybackEvent { return p.ch }

func (p *wsPlayback) Close() {
	p.once.Do(func() {
		p.client.mu.Lock()
		delete(p.client.playbacks, p.id)
		p.client.mu.Unlock()
	})
}

// Answer answers the channel.
func (c *WSClient) Answer(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/answer", nil, nil)
}

// Play starts media playback with a fresh playback handle.
func (c *WSClient) Play(ctx context.Context, channelID, mediaRef string) (Playback, error) {
	n := atomic.AddUint64(&c.pbCounter, 1)
	playbackID := fmt.Sprintf("pb-%s-%d", channelID, n)

	ch := make(chan PlaybackEvent, 4)
	c.mu.Lock()
	c.playbacks[playbackID] = ch
	c.mu.Unlock()

	q := url.Values{"media": {mediaRef}}
	path := "/channels/" + url.PathEscape(channelID) + "/play/" + url.PathEscape(playbackID)
	if err := c.do(ctx, http.MethodPost, path, q, nil); err != nil {
		c.mu.Lock()
		delete(c.playbacks, playbackID)
		c.mu.Unlock()
		return nil, err
	}
	return &wsPlayback{id: playbackID, ch: ch, client: c}, nil
}

// Record starts recording the channel.
func (c *WSClient) Record(ctx context.Context, channelID string, opts RecordOptions) error {
	q := url.Values{
		"name":               {opts.Name},
		"format":             {opts.Format},
		"maxDurationSeconds": {strconv.Itoa(opts.MaxDurationSeconds)},
		"beep":               {strconv.FormatBool(opts.Beep)},
	}
	if opts.IfExists != "" {
		q.Set("ifExists", opts.IfExists)
	}
	return c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/record", q, nil)
}

// Hangup hangs up the channel.
func (c *WSClient) Hangup(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(channelID), nil, nil)
}

// Originate places an outbound call and returns the new channel ID.
func (c *WSClient) Originate(ctx context.Context, opts OriginateOptions) (string, error) {
	q := url.Values{
		"endpoint": {opts.Endpoint},
		"app":      {opts.App},
	}
	if opts.AppArgs != "" {
		q.Set("appArgs", opts.AppArgs)
	}
	if opts.CallerID != "" {
		q.Set("callerId", opts.CallerID)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/channels", q, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// EndpointState reports the registration state of an endpoint.
func (c *WSClient) EndpointState(ctx context.Context, tech, resource string) (string, error) {
	var resp struct {
		State string `json:"state"`
	}
	path := "/endpoints/" + url.PathEscape(tech) + "/" + url.PathEscape(resource)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

// do issues a REST call against the ARI base URL.
func (c *WSClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := strings.TrimRight(c.cfg.URL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("ari %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ari %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("ari %s %s: decoding response: %w", method, path, err)
		}
	}
	return nil
}

// eventsURL derives the WebSocket event stream URL from the REST base.
func eventsURL(cfg Config) (string, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parsing ari url: %w", err)
	}
	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https":
		base.Scheme = "wss"
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/events"
	q := base.Query()
	q.Set("app", cfg.App)
	q.Set("api_key", cfg.Username+":"+cfg.Password)
	base.RawQuery = q.Encode()
	return base.String(), nil
}
