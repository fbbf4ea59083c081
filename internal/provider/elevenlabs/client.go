// Package elevenlabs provides the client for the ElevenLabs voice API.
//
// All provider calls are funneled through a bounded dispatcher so that the
// number of in-flight requests against the provider never exceeds the
// configured cap, regardless of how many callers are active.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/book-expert/logger"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/dispatch"
)

// API endpoints and paths.
const (
	apiVoices       = "/v1/voices"
	apiVoicesAdd    = "/v1/voices/add"
	apiTextToSpeech = "/v1/text-to-speech/"
	apiSubscription = "/v1/user/subscription"
)

// HTTP headers.
const (
	headerAPIKey      = "xi-api-key"
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
)

// Defaults.
const (
	// DefaultBaseURL is the public ElevenLabs API endpoint.
	DefaultBaseURL = "https://api.elevenlabs.io"

	defaultModelID = "eleven_multilingual_v2"
	defaultTimeout = 30 * time.Second
)

// Static errors.
var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrEmptyVoiceID    = errors.New("voice id cannot be empty")
	ErrEmptyCloneName  = errors.New("clone name cannot be empty")
	ErrNoCloneSamples  = errors.New("at least one audio sample is required")
	ErrEmptyAudio      = errors.New("received empty audio data")
	ErrUnexpectedValue = errors.New("unexpected result type from dispatcher")
)

// Client is a bounded-concurrency client for the ElevenLabs HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
	dispatcher *dispatch.Dispatcher
	log        *logger.Logger
}

// New creates an ElevenLabs client. The baseURL should include the protocol
// (e.g. "https://api.elevenlabs.io"); an empty value selects the public
// endpoint. The timeout applies to each individual provider call.
func New(
	baseURL, apiKey string,
	timeout time.Duration,
	dispatcher *dispatch.Dispatcher,
	log *logger.Logger,
) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    timeout,
		dispatcher: dispatcher,
		log:        log,
	}
}

// QueueStatus reports the current occupancy of the request dispatcher.
func (c *Client) QueueStatus() core.QueueStatus {
	return c.dispatcher.Status()
}

// ListVoices returns the voices available to the configured account.
func (c *Client) ListVoices(ctx context.Context) ([]core.Voice, error) {
	value, err := c.await(ctx, func(callCtx context.Context) (any, error) {
		return c.listVoices(callCtx)
	})
	if err != nil {
		return nil, err
	}

	voices, ok := value.([]core.Voice)
	if !ok {
		return nil, ErrUnexpectedValue
	}

	return voices, nil
}

// CloneVoice creates a cloned voice from the uploaded audio samples.
func (c *Client) CloneVoice(ctx context.Context, req core.CloneRequest) (core.Voice, error) {
	if req.Name == "" {
		return core.Voice{}, ErrEmptyCloneName
	}

	if len(req.Samples) == 0 {
		return core.Voice{}, ErrNoCloneSamples
	}

	value, err := c.await(ctx, func(callCtx context.Context) (any, error) {
		return c.cloneVoice(callCtx, req)
	})
	if err != nil {
		return core.Voice{}, err
	}

	voice, ok := value.(core.Voice)
	if !ok {
		return core.Voice{}, ErrUnexpectedValue
	}

	return voice, nil
}

// Synthesize converts text to speech and returns the raw MP3 audio bytes.
// The request settings must already be normalized; Synthesize clamps them
// once more so out-of-range values can never reach the provider.
func (c *Client) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	if req.VoiceID == "" {
		return nil, ErrEmptyVoiceID
	}

	req.Settings = Clamp(req.Settings)

	if req.ModelID == "" {
		req.ModelID = defaultModelID
	}

	value, err := c.await(ctx, func(callCtx context.Context) (any, error) {
		return c.synthesize(callCtx, req)
	})
	if err != nil {
		return nil, err
	}

	audio, ok := value.([]byte)
	if !ok {
		return nil, ErrUnexpectedValue
	}

	return audio, nil
}

// DeleteVoice removes a voice from the provider account.
func (c *Client) DeleteVoice(ctx context.Context, voiceID string) error {
	if voiceID == "" {
		return ErrEmptyVoiceID
	}

	_, err := c.await(ctx, func(callCtx context.Context) (any, error) {
		return nil, c.deleteVoice(callCtx, voiceID)
	})

	return err
}

// UserInfo returns the provider subscription tier and remaining quota.
func (c *Client) UserInfo(ctx context.Context) (core.UserInfo, error) {
	value, err := c.await(ctx, func(callCtx context.Context) (any, error) {
		return c.userInfo(callCtx)
	})
	if err != nil {
		return core.UserInfo{}, err
	}

	info, ok := value.(core.UserInfo)
	if !ok {
		return core.UserInfo{}, ErrUnexpectedValue
	}

	return info, nil
}

// await enqueues a provider call and blocks until it settles. The caller
// context only bounds the wait; an enqueued call always runs to completion
// under the client's own per-call timeout.
func (c *Client) await(
	ctx context.Context,
	execute func(context.Context) (any, error),
) (any, error) {
	future := c.dispatcher.Enqueue(func(taskCtx context.Context) (any, error) {
		callCtx, cancel := context.WithTimeout(taskCtx, c.timeout)
		defer cancel()

		return execute(callCtx)
	})

	select {
	case result := <-future:
		return result.Value, result.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("abandoned wait for provider call: %w", ctx.Err())
	}
}

type voicesResponse struct {
	Voices []voicePayload `json:"voices"`
}

type voicePayload struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	PreviewURL  string `json:"preview_url"`
}

type synthesisPayload struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings core.VoiceSettings `json:"voice_settings"`
}

type subscriptionResponse struct {
	Tier           string `json:"tier"`
	CharacterCount int64  `json:"character_count"`
	CharacterLimit int64  `json:"character_limit"`
	CanCloneVoices bool   `json:"can_use_instant_voice_cloning"`
}

func (c *Client) listVoices(ctx context.Context) ([]core.Voice, error) {
	var payload voicesResponse

	err := c.getJSON(ctx, apiVoices, &payload)
	if err != nil {
		return nil, err
	}

	voices := make([]core.Voice, 0, len(payload.Voices))
	for _, voice := range payload.Voices {
		voices = append(voices, core.Voice{
			ID:          voice.VoiceID,
			Name:        voice.Name,
			Category:    voice.Category,
			Description: voice.Description,
			PreviewURL:  voice.PreviewURL,
		})
	}

	return voices, nil
}

func (c *Client) cloneVoice(ctx context.Context, req core.CloneRequest) (core.Voice, error) {
	body, contentType, err := buildCloneForm(req)
	if err != nil {
		return core.Voice{}, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiVoicesAdd,
		body,
	)
	if err != nil {
		return core.Voice{}, fmt.Errorf("failed to create clone request: %w", err)
	}

	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set(headerContentType, contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.Voice{}, Translate(fmt.Errorf("clone request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Voice{}, Translate(c.captureError(resp))
	}

	var created struct {
		VoiceID string `json:"voice_id"`
	}

	err = json.NewDecoder(resp.Body).Decode(&created)
	if err != nil {
		return core.Voice{}, fmt.Errorf("failed to decode clone response: %w", err)
	}

	return core.Voice{
		ID:          created.VoiceID,
		Name:        req.Name,
		Category:    "cloned",
		Description: req.Description,
		PreviewURL:  "",
	}, nil
}

func (c *Client) synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	payload := synthesisPayload{
		Text:          req.Text,
		ModelID:       req.ModelID,
		VoiceSettings: req.Settings,
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiTextToSpeech+req.VoiceID,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, Translate(fmt.Errorf("synthesis request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, Translate(c.captureError(resp))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	return audio, nil
}

func (c *Client) deleteVoice(ctx context.Context, voiceID string) error {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodDelete,
		c.baseURL+apiVoices+"/"+voiceID,
		http.NoBody,
	)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}

	httpReq.Header.Set(headerAPIKey, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Translate(fmt.Errorf("delete request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Translate(c.captureError(resp))
	}

	return nil
}

func (c *Client) userInfo(ctx context.Context) (core.UserInfo, error) {
	var payload subscriptionResponse

	err := c.getJSON(ctx, apiSubscription, &payload)
	if err != nil {
		return core.UserInfo{}, err
	}

	return core.UserInfo{
		Tier:           payload.Tier,
		CharacterCount: payload.CharacterCount,
		CharacterLimit: payload.CharacterLimit,
		CanCloneVoices: payload.CanCloneVoices,
	}, nil
}

// getJSON performs an authenticated GET and decodes a JSON response body.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+path,
		http.NoBody,
	)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}

	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Translate(fmt.Errorf("request to %s failed: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Translate(c.captureError(resp))
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	return nil
}

// captureError builds an APIError from a non-OK provider response. The
// provider usually returns {"detail": ...}; if that shape is absent the raw
// body is preserved so diagnostics are never lost.
func (c *Client) captureError(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return &APIError{StatusCode: resp.StatusCode, Detail: resp.Status}
	}

	var structured struct {
		Detail json.RawMessage `json:"detail"`
	}

	detail := string(bytes.TrimSpace(body))

	err := json.Unmarshal(body, &structured)
	if err == nil && len(structured.Detail) > 0 {
		var message string
		if json.Unmarshal(structured.Detail, &message) == nil {
			detail = message
		} else {
			detail = string(structured.Detail)
		}
	}

	return &APIError{StatusCode: resp.StatusCode, Detail: detail}
}

// buildCloneForm assembles the multipart body for a voice clone request.
func buildCloneForm(req core.CloneRequest) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	err := form.WriteField("name", req.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write clone name field: %w", err)
	}

	if req.Description != "" {
		err = form.WriteField("description", req.Description)
		if err != nil {
			return nil, "", fmt.Errorf("failed to write clone description field: %w", err)
		}
	}

	for _, sample := range req.Samples {
		part, partErr := form.CreateFormFile("files", sample.Filename)
		if partErr != nil {
			return nil, "", fmt.Errorf("failed to create sample part: %w", partErr)
		}

		_, writeErr := part.Write(sample.Data)
		if writeErr != nil {
			return nil, "", fmt.Errorf("failed to write sample data: %w", writeErr)
		}
	}

	err = form.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	return body, form.FormDataContentType(), nil
}
