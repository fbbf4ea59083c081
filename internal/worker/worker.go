// Package worker provides a NATS worker that serves synthesis jobs
// published by other services, bypassing the REST surface.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/events"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/provider/elevenlabs"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/text"
	"github.com/nats-io/nats.go"
)

const (
	handleMessageTimeout = 60 * time.Second
	maxTextLength        = 5000
	audioFileExtension   = ".mp3"
)

var (
	// ErrTextEmpty indicates that the job carried no text to synthesize.
	ErrTextEmpty = errors.New("synthesis text cannot be empty")
	// ErrTextTooLong indicates that the job text exceeds the per-request cap.
	ErrTextTooLong = errors.New("synthesis text exceeds the maximum length")
	// ErrVoiceEmpty indicates that the job named no voice.
	ErrVoiceEmpty = errors.New("voice id cannot be empty")
)

// NatsWorker listens for synthesis jobs on a NATS subject and processes them.
type NatsWorker struct {
	conn      *nats.Conn
	subject   string
	provider  core.SynthesisProvider
	audio     core.AudioStore
	sanitizer *text.Sanitizer
	log       *logger.Logger
}

// NewNatsWorker creates a worker bound to the given subject.
func NewNatsWorker(
	conn *nats.Conn,
	subject string,
	provider core.SynthesisProvider,
	audio core.AudioStore,
	log *logger.Logger,
) *NatsWorker {
	if subject == "" {
		subject = events.DefaultSynthesisRequestedSubject
	}

	return &NatsWorker{
		conn:      conn,
		subject:   subject,
		provider:  provider,
		audio:     audio,
		sanitizer: text.NewSanitizer(),
		log:       log,
	}
}

// Run starts the worker and blocks until the context is cancelled.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.conn.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var event events.SynthesisRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal synthesis job: %v", err)

		return
	}

	audioKey, characters, processErr := w.processJob(ctx, &event)
	if processErr != nil {
		w.log.Error("Failed to process synthesis job %s: %v", event.EventID, processErr)

		return
	}

	replyErr := w.publishReply(msg, &event, audioKey, characters)
	if replyErr != nil {
		w.log.Error("Failed to reply for synthesis job %s: %v", event.EventID, replyErr)
	}
}

// processJob sanitizes and validates the job, synthesizes the audio, and
// stores it. It returns the stored audio key and the billed character count.
func (w *NatsWorker) processJob(
	ctx context.Context,
	event *events.SynthesisRequestedEvent,
) (string, int, error) {
	cleaned := w.sanitizer.Sanitize(event.Text)

	validationErr := validateJob(cleaned, event.VoiceID)
	if validationErr != nil {
		return "", 0, validationErr
	}

	settings := elevenlabs.Normalize(&elevenlabs.SettingsInput{
		Stability:       event.Stability,
		SimilarityBoost: event.SimilarityBoost,
		Style:           event.Style,
		SpeakerBoost:    event.SpeakerBoost,
	})

	request := core.SynthesisRequest{
		Text:     cleaned,
		VoiceID:  event.VoiceID,
		ModelID:  event.ModelID,
		Settings: settings,
	}

	audioData, err := w.provider.Synthesize(ctx, request)
	if err != nil {
		return "", 0, fmt.Errorf("failed to synthesize job %s: %w", event.EventID, err)
	}

	audioKey, err := w.audio.Save(audioData, audioFileExtension)
	if err != nil {
		return "", 0, fmt.Errorf("failed to store audio for job %s: %w", event.EventID, err)
	}

	return audioKey, len(cleaned), nil
}

// publishReply responds on the message's reply subject with a completed
// event describing the stored audio.
func (w *NatsWorker) publishReply(
	msg *nats.Msg,
	event *events.SynthesisRequestedEvent,
	audioKey string,
	characters int,
) error {
	reply := events.SynthesisCompletedEvent{
		EventID:    event.EventID,
		AudioKey:   audioKey,
		AgentID:    event.AgentID,
		VoiceID:    event.VoiceID,
		Characters: characters,
		Timestamp:  time.Now().UTC(),
	}

	replyData, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func validateJob(cleanedText, voiceID string) error {
	if cleanedText == "" {
		return ErrTextEmpty
	}

	if len(cleanedText) > maxTextLength {
		return ErrTextTooLong
	}

	if voiceID == "" {
		return ErrVoiceEmpty
	}

	return nil
}
