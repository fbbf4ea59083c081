// Package core defines the domain types and interfaces shared across the
// voice service.
package core

import (
	"context"
	"time"
)

// VoiceSettings controls the character of synthesized speech. All float
// fields are bounded to [0.0, 1.0] before being forwarded to the provider.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

// Agent is a persisted voice agent record.
type Agent struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	VoiceID      string        `json:"voice_id"`
	Description  string        `json:"description"`
	SystemPrompt string        `json:"system_prompt"`
	Settings     VoiceSettings `json:"voice_settings"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Voice describes a voice available at the synthesis provider.
type Voice struct {
	ID          string `json:"voice_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	PreviewURL  string `json:"preview_url"`
}

// UserInfo summarizes the provider account and its remaining quota.
type UserInfo struct {
	Tier           string `json:"tier"`
	CharacterCount int64  `json:"character_count"`
	CharacterLimit int64  `json:"character_limit"`
	CanCloneVoices bool   `json:"can_clone_voices"`
}

// SynthesisRequest holds the parameters for a single text-to-speech call.
// Settings must already be normalized by the caller.
type SynthesisRequest struct {
	Text     string
	VoiceID  string
	ModelID  string
	Settings VoiceSettings
}

// CloneSample is one uploaded audio sample used to create a cloned voice.
type CloneSample struct {
	Filename string
	Data     []byte
}

// CloneRequest holds the parameters for creating a cloned voice.
type CloneRequest struct {
	Name        string
	Description string
	Samples     []CloneSample
}

// QueueStatus is a point-in-time snapshot of the request dispatcher.
type QueueStatus struct {
	Active        int `json:"active"`
	Queued        int `json:"queued"`
	MaxConcurrent int `json:"max_concurrent"`
}

// SynthesisProvider defines the interface for the external voice provider.
type SynthesisProvider interface {
	ListVoices(ctx context.Context) ([]Voice, error)
	CloneVoice(ctx context.Context, req CloneRequest) (Voice, error)
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
	DeleteVoice(ctx context.Context, voiceID string) error
	UserInfo(ctx context.Context) (UserInfo, error)
}

// AgentStore defines the interface for agent record persistence.
type AgentStore interface {
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	ListAgents(ctx context.Context) ([]Agent, error)
	UpdateAgent(ctx context.Context, agent *Agent) error
	DeleteAgent(ctx context.Context, id string) error
}

// AudioStore defines the interface for audio file persistence on disk.
type AudioStore interface {
	Save(data []byte, ext string) (string, error)
	Open(name string) ([]byte, error)
	Delete(name string) error
	List() ([]string, error)
}

// EventPublisher defines the interface for emitting domain events after
// successful provider operations.
type EventPublisher interface {
	SynthesisCompleted(audioKey, agentID, voiceID string, characters int) error
	VoiceCloned(voiceID, name string) error
}
