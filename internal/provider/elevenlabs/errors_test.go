package elevenlabs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/provider/elevenlabs"
)

func TestTranslate_MappedStatusCodes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		statusCode int
		want       error
	}{
		{name: "unauthorized", statusCode: 401, want: elevenlabs.ErrInvalidCredentials},
		{name: "payment required", statusCode: 402, want: elevenlabs.ErrQuotaExceeded},
		{name: "unprocessable", statusCode: 422, want: elevenlabs.ErrInvalidRequest},
		{name: "rate limited", statusCode: 429, want: elevenlabs.ErrRateLimited},
		{name: "server error", statusCode: 500, want: elevenlabs.ErrServerError},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			translated := elevenlabs.Translate(&elevenlabs.APIError{
				StatusCode: testCase.statusCode,
				Detail:     "detail from provider",
			})

			require.ErrorIs(t, translated, testCase.want)
		})
	}
}

func TestTranslate_UnprocessableIncludesProviderDetail(t *testing.T) {
	t.Parallel()

	translated := elevenlabs.Translate(&elevenlabs.APIError{
		StatusCode: 422,
		Detail:     "text is too long",
	})

	require.ErrorIs(t, translated, elevenlabs.ErrInvalidRequest)
	assert.Contains(t, translated.Error(), "text is too long")
}

func TestTranslate_UnmappedStatusFallsThroughToGeneric(t *testing.T) {
	t.Parallel()

	translated := elevenlabs.Translate(&elevenlabs.APIError{
		StatusCode: 999,
		Detail:     "unusual upstream condition",
	})

	assert.Contains(t, translated.Error(), "elevenlabs error")
	assert.Contains(t, translated.Error(), "unusual upstream condition")
}

func TestTranslate_ErrorWithoutStatusUsesRawMessage(t *testing.T) {
	t.Parallel()

	raw := errors.New("connection refused")

	translated := elevenlabs.Translate(raw)

	require.ErrorIs(t, translated, raw)
	assert.Contains(t, translated.Error(), "elevenlabs error")
	assert.Contains(t, translated.Error(), "connection refused")
}

func TestTranslate_NilStaysNil(t *testing.T) {
	t.Parallel()

	require.NoError(t, elevenlabs.Translate(nil))
}
