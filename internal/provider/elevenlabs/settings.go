package elevenlabs

import "github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"

// Baseline values used when a caller omits a settings field.
const (
	defaultStability       = 0.5
	defaultSimilarityBoost = 0.5
	defaultStyle           = 0.0
	defaultSpeakerBoost    = true
)

// SettingsInput is a caller-supplied, possibly partial settings record. Nil
// fields take the baseline defaults.
type SettingsInput struct {
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Style           *float64 `json:"style,omitempty"`
	SpeakerBoost    *bool    `json:"use_speaker_boost,omitempty"`
}

// DefaultSettings returns the baseline voice settings.
func DefaultSettings() core.VoiceSettings {
	return core.VoiceSettings{
		Stability:       defaultStability,
		SimilarityBoost: defaultSimilarityBoost,
		Style:           defaultStyle,
		SpeakerBoost:    defaultSpeakerBoost,
	}
}

// Normalize converts a partial settings record into a fully populated one
// that is safe to forward to the provider: missing fields take defaults and
// numeric fields are clamped into [0, 1]. Out-of-range values clamp silently;
// rejecting them is the job of the stricter request validation upstream.
func Normalize(input *SettingsInput) core.VoiceSettings {
	settings := DefaultSettings()

	if input != nil {
		if input.Stability != nil {
			settings.Stability = *input.Stability
		}

		if input.SimilarityBoost != nil {
			settings.SimilarityBoost = *input.SimilarityBoost
		}

		if input.Style != nil {
			settings.Style = *input.Style
		}

		if input.SpeakerBoost != nil {
			settings.SpeakerBoost = *input.SpeakerBoost
		}
	}

	return Clamp(settings)
}

// Clamp bounds every numeric field of an already populated settings record
// into [0, 1]. Clamping is idempotent.
func Clamp(settings core.VoiceSettings) core.VoiceSettings {
	settings.Stability = clamp01(settings.Stability)
	settings.SimilarityBoost = clamp01(settings.SimilarityBoost)
	settings.Style = clamp01(settings.Style)

	return settings
}

func clamp01(value float64) float64 {
	if value < 0.0 {
		return 0.0
	}

	if value > 1.0 {
		return 1.0
	}

	return value
}
