package nlu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestAsk_ReturnsReplyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Sender  string `json:"sender"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Sender != "call_chan-1" || req.Message != "Hello!" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode([]map[string]string{{"text": "Hi there!"}})
	}))
	defer srv.Close()

	c := New(Config{WebhookURL: srv.URL, Timeout: time.Second})

	reply, err := c.Ask(context.Background(), "call_chan-1", "Hello!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Hi there!" {
		t.Errorf("expected 'Hi there!', got %q", reply)
	}
}

func TestAsk_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := New(Config{WebhookURL: srv.URL, Timeout: time.Second})

	reply, err := c.Ask(context.Background(), "call_chan-1", "Hello!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "" {
		t.Errorf("expected empty reply, got %q", reply)
	}
}

func TestAsk_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{WebhookURL: srv.URL, Timeout: 20 * time.Millisecond})

	if _, err := c.Ask(context.Background(), "call_chan-1", "Hello!"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestAsk_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{WebhookURL: srv.URL, Timeout: time.Second})

	if _, err := c.Ask(context.Background(), "call_chan-1", "Hello!"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestWaitReady_SucceedsOnceUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{StatusURL: srv.URL, Timeout: time.Second})

	if err := c.WaitReady(context.Background(), 5, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 status polls, got %d", calls.Load())
	}
}

func TestWaitReady_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{StatusURL: srv.URL, Timeout: time.Second})

	if err := c.WaitReady(context.Background(), 3, time.Millisecond); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}
