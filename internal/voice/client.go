package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is where the speech service listens in local setups.
const DefaultBaseURL = "http://localhost:5000"

const (
	maxReplySize = 10 * 1024 * 1024 // synthesized WAV plus base64 overhead
	activeState  = "activo"
)

// Client calls the speech service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds configuration for the speech service client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client // shared client with connection pooling; optional
}

// NewClient creates a speech service client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type speakRequest struct {
	Text string `json:"texto"`
}

type transcribeRequest struct {
	Audio string `json:"audio"` // base64 clip
}

type healthReply struct {
	State string `json:"estado"`
}

// Synthesize asks the service to speak text and returns the WAV bytes.
// Every failure is a *SynthesisError.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	res, err := c.post(ctx, "/api/hablar", speakRequest{Text: text}, audioField, "Error al generar audio")
	if err != nil {
		return nil, &SynthesisError{Reason: "request failed", Err: err}
	}
	if !res.OK() {
		return nil, &SynthesisError{Reason: res.Reason()}
	}

	audio, err := base64.StdEncoding.DecodeString(res.Payload())
	if err != nil {
		return nil, &SynthesisError{Reason: "malformed audio payload", Err: err}
	}
	if len(audio) == 0 {
		return nil, &SynthesisError{Reason: "empty audio payload"}
	}
	return audio, nil
}

// Transcribe uploads a recorded clip and returns the recognized text.
// Every failure is a *CaptureError.
func (c *Client) Transcribe(ctx context.Context, clip []byte) (string, error) {
	req := transcribeRequest{Audio: base64.StdEncoding.EncodeToString(clip)}
	res, err := c.post(ctx, "/api/transcribir", req, textField, "No se pudo transcribir el audio")
	if err != nil {
		return "", &CaptureError{Kind: CaptureTranscriptionFailed, Reason: "request failed", Err: err}
	}
	if !res.OK() {
		return "", &CaptureError{Kind: CaptureTranscriptionFailed, Reason: res.Reason()}
	}

	text := strings.TrimSpace(res.Payload())
	if text == "" {
		return "", &CaptureError{Kind: CaptureEmptyTranscript, Reason: "empty transcript"}
	}
	return text, nil
}

// Health probes the service. It reports true only when the service says it
// is active; transport and decoding problems are returned as errors.
func (c *Client) Health(ctx context.Context) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/salud", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var reply healthReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&reply); err != nil {
		return false, fmt.Errorf("failed to decode health reply: %w", err)
	}
	return reply.State == activeState, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, field payloadField, fallback string) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// The service answers errors with the same envelope, so decode first and
	// only fall back to the HTTP status when the body is unusable.
	res, err := decodeResult(io.LimitReader(resp.Body, maxReplySize), field, fallback)
	if err != nil {
		if resp.StatusCode >= 400 {
			return Result{}, fmt.Errorf("voice service error: %s", resp.Status)
		}
		return Result{}, err
	}
	if res.OK() && resp.StatusCode >= 400 {
		return Failure(fmt.Sprintf("voice service error: %s", resp.Status)), nil
	}
	return res, nil
}
