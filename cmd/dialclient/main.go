// Command dialclient places an outbound call through the orchestrator's
// dashboard API. Useful for exercising a running stack without a
// registered softphone.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"time"
)

func main() {
	addr := flag.String("addr", "http://localhost:3002", "orchestrator API base URL")
	to := flag.String("to", "7000", "extension to dial")
	flag.Parse()

	body, err := json.Marshal(map[string]string{"to": *to})
	if err != nil {
		log.Fatalf("failed to encode request: %v", err)
	}

	httpc := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpc.Post(*addr+"/api/dial", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("failed to dial: %v", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		log.Fatalf("dial rejected: %s: %s", resp.Status, payload)
	}

	log.Printf("Dialed %s: %s", *to, payload)
}
