// Package api is the HTTP client for the DayMind backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ClientConfig configures the backend client
type ClientConfig struct {
	BaseURL string        // e.g., "http://localhost:5000"
	Timeout time.Duration // HTTP request timeout
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://localhost:5000",
		Timeout: 60 * time.Second,
	}
}

// NetworkError reports a failed round-trip: transport failure, non-2xx
// status or a body that could not be decoded.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ErrMalformedResponse marks a 2xx response whose body was not the expected JSON
var ErrMalformedResponse = errors.New("malformed response")

// IsNetworkError reports whether err came from a backend round-trip
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Client talks to the DayMind backend over JSON/HTTP
type Client struct {
	config     *ClientConfig
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	audioSeq   atomic.Uint64
}

// NewClient creates a new backend client
func NewClient(cfg *ClientConfig, logger zerolog.Logger) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	return &Client{
		config:  cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With().Str("component", "api-client").Logger(),
	}
}

// BaseURL returns the configured backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat sends a text message. The emotion only affects speech synthesis.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.doJSON(ctx, "chat", http.MethodPost, "/chat", req, &resp); err != nil {
		return nil, err
	}
	if err := c.requireFields("chat", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Voice uploads a recording for transcription and a reply
func (c *Client) Voice(ctx context.Context, audio []byte) (*VoiceResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, &NetworkError{Op: "voice", Err: fmt.Errorf("failed to create form file: %w", err)}
	}
	if _, err := part.Write(audio); err != nil {
		return nil, &NetworkError{Op: "voice", Err: fmt.Errorf("failed to write audio data: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return nil, &NetworkError{Op: "voice", Err: fmt.Errorf("failed to close multipart writer: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice", body)
	if err != nil {
		return nil, &NetworkError{Op: "voice", Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debug().Int("audioBytes", len(audio)).Msg("Uploading voice recording")

	var resp VoiceResponse
	if err := c.do(httpReq, "voice", &resp); err != nil {
		return nil, err
	}
	if err := c.requireFields("voice", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AudioURL returns the reply audio URL with a cache-buster that is unique
// for every call, even within the same clock tick.
func (c *Client) AudioURL() string {
	seq := c.audioSeq.Add(1)
	token := strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + strconv.FormatUint(seq, 10)
	return c.baseURL + "/audio?t=" + url.QueryEscape(token)
}

// FetchAudio downloads an audio resource produced by AudioURL
func (c *Client) FetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, &NetworkError{Op: "audio", Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "audio", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("audio", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "audio", Err: fmt.Errorf("failed to read audio: %w", err)}
	}
	return data, nil
}

// Tasks fetches the authoritative task list
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var list TaskList
	if err := c.doJSON(ctx, "tasks", http.MethodGet, "/tasks", nil, &list); err != nil {
		return nil, err
	}
	if list.Tasks == nil {
		list.Tasks = []Task{}
	}
	return list.Tasks, nil
}

// CompleteTask marks the task at index as completed
func (c *Client) CompleteTask(ctx context.Context, index int) error {
	return c.doJSON(ctx, "tasks/complete", http.MethodPost, "/tasks/complete", completeTaskRequest{Index: index}, nil)
}

// ClearTasks removes every task
func (c *Client) ClearTasks(ctx context.Context) error {
	return c.doJSON(ctx, "tasks/clear", http.MethodPost, "/tasks/clear", struct{}{}, nil)
}

// Journal fetches every journal entry, oldest first
func (c *Client) Journal(ctx context.Context) ([]JournalEntry, error) {
	var j Journal
	if err := c.doJSON(ctx, "journal", http.MethodGet, "/journal", nil, &j); err != nil {
		return nil, err
	}
	return j.Entries, nil
}

// CreateJournalEntry saves an entry and returns it with the assistant's reflection
func (c *Client) CreateJournalEntry(ctx context.Context, req JournalEntryRequest) (*JournalEntryResponse, error) {
	var resp JournalEntryResponse
	if err := c.doJSON(ctx, "journal/entry", http.MethodPost, "/journal/entry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchJournal returns entries whose text or mood contains query
func (c *Client) SearchJournal(ctx context.Context, query string) ([]JournalEntry, error) {
	var resp journalSearchResponse
	if err := c.doJSON(ctx, "journal/search", http.MethodPost, "/journal/search", journalSearchRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// JournalSummary fetches the weekly summary
func (c *Client) JournalSummary(ctx context.Context) (*JournalSummary, error) {
	var resp JournalSummary
	if err := c.doJSON(ctx, "journal/summary", http.MethodGet, "/journal/summary", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JournalPrompts fetches today's reflection prompts
func (c *Client) JournalPrompts(ctx context.Context) ([]string, error) {
	var resp journalPromptsResponse
	if err := c.doJSON(ctx, "journal/prompts", http.MethodGet, "/journal/prompts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Prompts, nil
}

// Ping checks that the backend answers at all
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Tasks(ctx)
	return err
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &NetworkError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", op).Msg("Request failed")
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		nerr := statusError(op, resp)
		c.logger.Warn().Str("op", op).Int("status", resp.StatusCode).Str("error", nerr.Message).Msg("Backend returned error")
		return nerr
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Int("bodyLen", len(respBody)).
		Dur("elapsed", time.Since(start)).
		Msg("Backend response received")

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		c.logger.Error().Err(err).Str("op", op).Str("body", truncateForLog(string(respBody), 200)).Msg("Failed to parse response")
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}

var responseValidator = validator.New()

// requireFields rejects a decoded 2xx body that lacks the fields an exchange
// needs, which covers `{}` and `null` as well as renamed keys.
func (c *Client) requireFields(op string, resp any) error {
	if err := responseValidator.Struct(resp); err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("Response missing required fields")
		return &NetworkError{Op: op, StatusCode: http.StatusOK, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}

func statusError(op string, resp *http.Response) *NetworkError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))

	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &NetworkError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}

func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
