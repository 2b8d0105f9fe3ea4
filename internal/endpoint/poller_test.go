package endpoint

import (
	"context"
	"testing"
	"time"

	"ari-call-orchestrator/internal/ari/mock"
)

func TestPoller_OriginatesWhenOnline(t *testing.T) {
	client := &mock.Client{OriginateID: "chan-42"}
	p := New(client, Config{
		Tech:         "SIP",
		Resource:     "7000",
		App:          "call-orchestrator",
		AppArgs:      "dialed",
		CallerID:     "orchestrator",
		PollInterval: time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	channelID, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channelID != "chan-42" {
		t.Errorf("expected chan-42, got %s", channelID)
	}

	if len(client.OriginateCalls) != 1 {
		t.Fatalf("expected 1 originate, got %d", len(client.OriginateCalls))
	}
	opts := client.OriginateCalls[0]
	if opts.Endpoint != "SIP/7000" {
		t.Errorf("expected SIP/7000, got %s", opts.Endpoint)
	}
	if opts.App != "call-orchestrator" {
		t.Errorf("expected app call-orchestrator, got %s", opts.App)
	}
	if opts.CallerID != "orchestrator" {
		t.Errorf("expected caller ID orchestrator, got %s", opts.CallerID)
	}
}

func TestPoller_WaitsForRegistration(t *testing.T) {
	client := &mock.Client{State: "offline"}
	p := New(client, Config{Tech: "SIP", Resource: "7000", PollInterval: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.Run(ctx); err == nil {
		t.Fatal("expected context error while endpoint stays offline")
	}
	if len(client.OriginateCalls) != 0 {
		t.Errorf("expected no originate for offline endpoint, got %d", len(client.OriginateCalls))
	}
}

func TestPoller_CancelledBeforeFirstTick(t *testing.T) {
	client := &mock.Client{}
	p := New(client, Config{Tech: "SIP", Resource: "7000", PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Run(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
