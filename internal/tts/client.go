// Package tts is the boundary to the narration collaborator: it accepts
// text plus a language and yields synthesized audio on disk.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Config holds the configuration for the narration service.
//
// Environment Variables:
// - TTS_API_KEY: API key for the narration provider (required)
// - TTS_API_URL: API endpoint URL (required)
// - TTS_VOICE: Voice preset name (default: "narrator")
// - TTS_TIMEOUT: Request timeout in seconds (default: 60)
type Config struct {
	APIKey  string `json:"api_key"`
	APIURL  string `json:"api_url"`
	Voice   string `json:"voice"`
	Timeout int    `json:"timeout"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("TTS API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("TTS API URL is required")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("TTS timeout must be greater than 0")
	}
	return nil
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Voice    string `json:"voice,omitempty"`
}

// Client calls the narration service over HTTP
// Thread-safe for concurrent use
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a narration client with the given configuration
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

// Synthesize renders text into narration audio and writes it to
// outputPath. The audio duration is measured by the caller afterwards.
func (c *Client) Synthesize(ctx context.Context, text, lang, outputPath string) error {
	payload, err := json.Marshal(synthesizeRequest{
		Text:     text,
		Language: lang,
		Voice:    c.config.Voice,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("synthesis failed with status %d: %s", resp.StatusCode, string(body))
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("narration service returned empty audio for %q", text)
	}
	return nil
}
