// Package correct implements the optional LLM corrector: a finite-
// timeout call to a local Ollama model that rewrites a finalized
// utterance. On timeout or error the original text passes through
// unchanged.
package correct

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Config configures the corrector. Enabled gates whether Correct ever
// calls out to the model; when false Correct is a passthrough.
type Config struct {
	Enabled      bool
	Host         string
	Model        string
	SystemPrompt string
	TimeoutSecs  float64
}

// DefaultSystemPrompt instructs the model to only fix transcription
// artifacts, never rephrase or answer.
const DefaultSystemPrompt = "You correct speech-to-text transcription errors. " +
	"Fix grammar, punctuation, and misrecognized words. " +
	"Return only the corrected text, nothing else. Do not answer questions or add commentary."

// Corrector owns a client and its fixed configuration. It is not safe
// for concurrent use from multiple goroutines issuing Correct calls
// simultaneously (the supervisor calls it from its single event loop).
type Corrector struct {
	client *api.Client
	cfg    Config
}

// New builds a Corrector against host, or returns an error if host is
// not a valid URL. New succeeds whether or not cfg.Enabled is set; the
// configuration is fixed once built, and a disabled Corrector's Correct
// is a passthrough.
func New(cfg Config) (*Corrector, error) {
	host := strings.TrimSuffix(cfg.Host, "/")
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("correct: invalid host %q: %w", cfg.Host, err)
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	httpClient := &http.Client{
		Timeout: time.Duration(cfg.TimeoutSecs * float64(time.Second)),
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Corrector{
		client: api.NewClient(parsed, httpClient),
		cfg:    cfg,
	}, nil
}

// Correct rewrites text via the configured model. If correction is
// disabled, times out, or errors, it returns the original text
// unchanged — degradation is always silent to the caller beyond the
// returned bool, which the supervisor logs as a warning.
func (c *Corrector) Correct(ctx context.Context, text string) (corrected string, wasApplied bool) {
	if !c.cfg.Enabled || strings.TrimSpace(text) == "" {
		return text, false
	}

	timeout := time.Duration(c.cfg.TimeoutSecs * float64(time.Second))
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := []api.Message{
		{Role: "system", Content: c.cfg.SystemPrompt},
		{Role: "user", Content: text},
	}
	stream := false

	var response api.ChatResponse
	err := c.client.Chat(ctx, &api.ChatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": 0.2, // favor faithful correction over creativity
			"num_predict": 256,
			"num_ctx":     1024,
		},
	}, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return text, false
	}

	result := strings.TrimSpace(response.Message.Content)
	if result == "" {
		return text, false
	}
	return result, true
}

// HealthCheck verifies the backing Ollama server is reachable.
func (c *Corrector) HealthCheck(ctx context.Context) error {
	if err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("correct: cannot reach ollama: %w", err)
	}
	return nil
}
