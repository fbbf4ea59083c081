package server

import (
	"errors"
	"fmt"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/provider/elevenlabs"
)

// Request shape limits.
const (
	maxTextLength      = 5000
	maxAgentNameLength = 100
)

// Validation errors. Unlike the clamping normalizer, this layer rejects
// malformed input outright so callers learn about bad requests instead of
// getting silently adjusted output.
var (
	ErrTextRequired       = errors.New("text is required")
	ErrTextTooLong        = fmt.Errorf("text exceeds %d characters", maxTextLength)
	ErrVoiceRequired      = errors.New("voice_id or agent_id is required")
	ErrAgentNameRequired  = errors.New("agent name is required")
	ErrAgentNameTooLong   = fmt.Errorf("agent name exceeds %d characters", maxAgentNameLength)
	ErrStabilityRange     = errors.New("stability must be between 0.0 and 1.0")
	ErrSimilarityRange    = errors.New("similarity_boost must be between 0.0 and 1.0")
	ErrStyleRange         = errors.New("style must be between 0.0 and 1.0")
	ErrCloneNameRequired  = errors.New("clone name is required")
	ErrCloneFilesRequired = errors.New("at least one audio sample file is required")
)

// validateSettingsInput checks every provided settings field against its
// declared range. Missing fields are fine; they take defaults later.
func validateSettingsInput(input *elevenlabs.SettingsInput) error {
	if input == nil {
		return nil
	}

	if input.Stability != nil && outOfUnitRange(*input.Stability) {
		return ErrStabilityRange
	}

	if input.SimilarityBoost != nil && outOfUnitRange(*input.SimilarityBoost) {
		return ErrSimilarityRange
	}

	if input.Style != nil && outOfUnitRange(*input.Style) {
		return ErrStyleRange
	}

	return nil
}

func validateAgentName(name string) error {
	if name == "" {
		return ErrAgentNameRequired
	}

	if len(name) > maxAgentNameLength {
		return ErrAgentNameTooLong
	}

	return nil
}

func validateSynthesisText(text string) error {
	if text == "" {
		return ErrTextRequired
	}

	if len(text) > maxTextLength {
		return ErrTextTooLong
	}

	return nil
}

func outOfUnitRange(value float64) bool {
	return value < 0.0 || value > 1.0
}
