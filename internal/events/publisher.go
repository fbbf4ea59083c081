// Package events publishes domain events over NATS after successful
// provider operations. Publishing is fire-and-forget; a failed publish is
// logged and never fails the request that produced it.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Default subjects.
const (
	DefaultSynthesisRequestedSubject = "voice.synthesis.requested"
	DefaultSynthesisCompletedSubject = "voice.synthesis.completed"
	DefaultVoiceClonedSubject        = "voice.clone.created"
)

// SynthesisRequestedEvent asks the worker to synthesize text and store the
// resulting audio. Settings overrides are optional; absent fields take the
// provider defaults.
type SynthesisRequestedEvent struct {
	EventID         string   `json:"event_id"`
	Text            string   `json:"text"`
	VoiceID         string   `json:"voice_id"`
	AgentID         string   `json:"agent_id,omitempty"`
	ModelID         string   `json:"model_id,omitempty"`
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Style           *float64 `json:"style,omitempty"`
	SpeakerBoost    *bool    `json:"use_speaker_boost,omitempty"`
}

// SynthesisCompletedEvent announces that audio was generated and stored.
type SynthesisCompletedEvent struct {
	EventID    string    `json:"event_id"`
	AudioKey   string    `json:"audio_key"`
	AgentID    string    `json:"agent_id,omitempty"`
	VoiceID    string    `json:"voice_id"`
	Characters int       `json:"characters"`
	Timestamp  time.Time `json:"timestamp"`
}

// VoiceClonedEvent announces that a cloned voice was created.
type VoiceClonedEvent struct {
	EventID   string    `json:"event_id"`
	VoiceID   string    `json:"voice_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits domain events to configured NATS subjects.
type Publisher struct {
	conn                      *nats.Conn
	synthesisCompletedSubject string
	voiceClonedSubject        string
	log                       *logger.Logger
}

// Connect dials NATS and returns a publisher. Empty subjects take the
// package defaults.
func Connect(url, synthesisSubject, clonedSubject string, log *logger.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	return NewWithConn(conn, synthesisSubject, clonedSubject, log), nil
}

// NewWithConn wraps an existing NATS connection. Primarily for tests.
func NewWithConn(conn *nats.Conn, synthesisSubject, clonedSubject string, log *logger.Logger) *Publisher {
	if synthesisSubject == "" {
		synthesisSubject = DefaultSynthesisCompletedSubject
	}

	if clonedSubject == "" {
		clonedSubject = DefaultVoiceClonedSubject
	}

	return &Publisher{
		conn:                      conn,
		synthesisCompletedSubject: synthesisSubject,
		voiceClonedSubject:        clonedSubject,
		log:                       log,
	}
}

// SynthesisCompleted publishes a SynthesisCompletedEvent.
func (p *Publisher) SynthesisCompleted(audioKey, agentID, voiceID string, characters int) error {
	event := SynthesisCompletedEvent{
		EventID:    uuid.NewString(),
		AudioKey:   audioKey,
		AgentID:    agentID,
		VoiceID:    voiceID,
		Characters: characters,
		Timestamp:  time.Now().UTC(),
	}

	return p.publish(p.synthesisCompletedSubject, event)
}

// VoiceCloned publishes a VoiceClonedEvent.
func (p *Publisher) VoiceCloned(voiceID, name string) error {
	event := VoiceClonedEvent{
		EventID:   uuid.NewString(),
		VoiceID:   voiceID,
		Name:      name,
		Timestamp: time.Now().UTC(),
	}

	return p.publish(p.voiceClonedSubject, event)
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *Publisher) publish(subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}

	err = p.conn.Publish(subject, payload)
	if err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", subject, err)
	}

	if p.log != nil {
		p.log.Info("Published event to %s", subject)
	}

	return nil
}
