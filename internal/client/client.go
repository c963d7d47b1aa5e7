// Package client talks to the external collaborators: the inference
// endpoint and the per-provider model catalogs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wisp/internal/models"

	"go.uber.org/zap"
)

const DefaultBackendURL = "http://localhost:8000"

// ModelRef identifies the model a request should run against.
type ModelRef struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

type chatRequest struct {
	Conversation []models.Message `json:"conversation"`
	Model        ModelRef         `json:"model"`
	WebSearch    bool             `json:"web_search"`
}

type Client struct {
	backendURL string
	ollamaURL  string
	// The inference client carries no timeout: the only bound on an
	// in-flight generation is explicit cancellation via ctx.
	http    *http.Client
	catalog *http.Client
	log     *zap.Logger
}

func New(backendURL string, log *zap.Logger) *Client {
	if backendURL == "" {
		backendURL = DefaultBackendURL
	}
	return &Client{
		backendURL: backendURL,
		ollamaURL:  "http://localhost:11434",
		http:       &http.Client{},
		catalog:    &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// Chat issues the inference request and hands back the live response
// body for the stream consumer. The caller owns closing it. Request
// cancellation propagates through ctx.
func (c *Client) Chat(ctx context.Context, conversation []models.Message, ref ModelRef, webSearch bool) (io.ReadCloser, error) {
	payload, err := json.Marshal(chatRequest{
		Conversation: conversation,
		Model:        ref,
		WebSearch:    webSearch,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backendURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("inference endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return resp.Body, nil
}
