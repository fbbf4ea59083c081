package elevenlabs_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/dispatch"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/provider/elevenlabs"
)

const (
	testAPIKey     = "test-api-key"
	testVoiceID    = "voice-123"
	testDispatchMS = 5 * time.Millisecond
)

// newTestClient builds a client pointed at the given mock server with a
// small dispatcher so tests exercise the real queueing path.
func newTestClient(t *testing.T, server *httptest.Server) *elevenlabs.Client {
	t.Helper()

	dispatcher := dispatch.New(2, testDispatchMS, nil)

	return elevenlabs.New(server.URL, testAPIKey, 5*time.Second, dispatcher, nil)
}

func TestClient_ListVoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodGet, request.Method)
			assert.Equal(t, "/v1/voices", request.URL.Path)
			assert.Equal(t, testAPIKey, request.Header.Get("xi-api-key"))

			_, _ = responseWriter.Write([]byte(`{
				"voices": [
					{"voice_id": "voice-123", "name": "Rachel", "category": "premade"},
					{"voice_id": "voice-456", "name": "Custom", "category": "cloned"}
				]
			}`))
		}))
	defer server.Close()

	client := newTestClient(t, server)

	voices, err := client.ListVoices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, "voice-123", voices[0].ID)
	assert.Equal(t, "Rachel", voices[0].Name)
	assert.Equal(t, "cloned", voices[1].Category)
}

func TestClient_Synthesize_Success(t *testing.T) {
	t.Parallel()

	audioBytes := []byte("ID3 fake mpeg frames")

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodPost, request.Method)
			assert.Equal(t, "/v1/text-to-speech/"+testVoiceID, request.URL.Path)
			assert.Equal(t, "application/json", request.Header.Get("Content-Type"))
			assert.Equal(t, "audio/mpeg", request.Header.Get("Accept"))

			var payload struct {
				Text          string             `json:"text"`
				ModelID       string             `json:"model_id"`
				VoiceSettings core.VoiceSettings `json:"voice_settings"`
			}

			err := json.NewDecoder(request.Body).Decode(&payload)
			require.NoError(t, err)
			assert.Equal(t, "hello there", payload.Text)
			assert.NotEmpty(t, payload.ModelID)

			// Out-of-range settings must arrive clamped.
			assert.LessOrEqual(t, payload.VoiceSettings.Stability, 1.0)
			assert.GreaterOrEqual(t, payload.VoiceSettings.Style, 0.0)

			responseWriter.Header().Set("Content-Type", "audio/mpeg")
			_, _ = responseWriter.Write(audioBytes)
		}))
	defer server.Close()

	client := newTestClient(t, server)

	audio, err := client.Synthesize(context.Background(), core.SynthesisRequest{
		Text:    "hello there",
		VoiceID: testVoiceID,
		ModelID: "",
		Settings: core.VoiceSettings{
			Stability:       1.7,
			SimilarityBoost: 0.5,
			Style:           -0.4,
			SpeakerBoost:    true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, audioBytes, audio)
}

func TestClient_Synthesize_ValidatesInput(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, httptest.NewServer(http.NotFoundHandler()))

	_, err := client.Synthesize(context.Background(), core.SynthesisRequest{
		Text:     "",
		VoiceID:  testVoiceID,
		ModelID:  "",
		Settings: elevenlabs.DefaultSettings(),
	})
	require.ErrorIs(t, err, elevenlabs.ErrEmptyText)

	_, err = client.Synthesize(context.Background(), core.SynthesisRequest{
		Text:     "hello",
		VoiceID:  "",
		ModelID:  "",
		Settings: elevenlabs.DefaultSettings(),
	})
	require.ErrorIs(t, err, elevenlabs.ErrEmptyVoiceID)
}

func TestClient_Synthesize_TranslatesProviderErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.WriteHeader(http.StatusTooManyRequests)
			_, _ = responseWriter.Write([]byte(`{"detail": "too many concurrent requests"}`))
		}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.Synthesize(context.Background(), core.SynthesisRequest{
		Text:     "hello",
		VoiceID:  testVoiceID,
		ModelID:  "",
		Settings: elevenlabs.DefaultSettings(),
	})
	require.ErrorIs(t, err, elevenlabs.ErrRateLimited)
}

func TestClient_CloneVoice(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodPost, request.Method)
			assert.Equal(t, "/v1/voices/add", request.URL.Path)

			err := request.ParseMultipartForm(1 << 20)
			require.NoError(t, err)
			assert.Equal(t, "My Clone", request.FormValue("name"))
			require.Len(t, request.MultipartForm.File["files"], 2)

			_, _ = responseWriter.Write([]byte(`{"voice_id": "cloned-789"}`))
		}))
	defer server.Close()

	client := newTestClient(t, server)

	voice, err := client.CloneVoice(context.Background(), core.CloneRequest{
		Name:        "My Clone",
		Description: "test clone",
		Samples: []core.CloneSample{
			{Filename: "sample1.mp3", Data: []byte("sample one")},
			{Filename: "sample2.mp3", Data: []byte("sample two")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "cloned-789", voice.ID)
	assert.Equal(t, "My Clone", voice.Name)
	assert.Equal(t, "cloned", voice.Category)
}

func TestClient_CloneVoice_RequiresNameAndSamples(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, httptest.NewServer(http.NotFoundHandler()))

	_, err := client.CloneVoice(context.Background(), core.CloneRequest{
		Name:        "",
		Description: "",
		Samples:     []core.CloneSample{{Filename: "a.mp3", Data: []byte("x")}},
	})
	require.ErrorIs(t, err, elevenlabs.ErrEmptyCloneName)

	_, err = client.CloneVoice(context.Background(), core.CloneRequest{
		Name:        "No Samples",
		Description: "",
		Samples:     nil,
	})
	require.ErrorIs(t, err, elevenlabs.ErrNoCloneSamples)
}

func TestClient_DeleteVoice(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodDelete, request.Method)
			assert.Equal(t, "/v1/voices/"+testVoiceID, request.URL.Path)

			_, _ = responseWriter.Write([]byte(`{"status": "ok"}`))
		}))
	defer server.Close()

	client := newTestClient(t, server)

	err := client.DeleteVoice(context.Background(), testVoiceID)
	require.NoError(t, err)
}

func TestClient_UserInfo(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/v1/user/subscription", request.URL.Path)

			_, _ = responseWriter.Write([]byte(`{
				"tier": "creator",
				"character_count": 1200,
				"character_limit": 100000,
				"can_use_instant_voice_cloning": true
			}`))
		}))
	defer server.Close()

	client := newTestClient(t, server)

	info, err := client.UserInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "creator", info.Tier)
	assert.Equal(t, int64(1200), info.CharacterCount)
	assert.Equal(t, int64(100000), info.CharacterLimit)
	assert.True(t, info.CanCloneVoices)
}

func TestClient_UserInfo_InvalidCredentials(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.WriteHeader(http.StatusUnauthorized)
			_, _ = responseWriter.Write([]byte(`{"detail": "invalid api key"}`))
		}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.UserInfo(context.Background())
	require.ErrorIs(t, err, elevenlabs.ErrInvalidCredentials)
}

func TestClient_QueueStatusReflectsDispatcher(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, httptest.NewServer(http.NotFoundHandler()))

	status := client.QueueStatus()
	assert.Equal(t, 0, status.Active)
	assert.Equal(t, 0, status.Queued)
	assert.Equal(t, 2, status.MaxConcurrent)
}
