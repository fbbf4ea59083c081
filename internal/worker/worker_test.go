// Package worker_test tests the NATS synthesis worker.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/events"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/worker"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errMockSynthesize = errors.New("mock synthesize error")
	errMockSave       = errors.New("mock save error")
)

// mockSynthesisProvider is a mock implementation of core.SynthesisProvider.
type mockSynthesisProvider struct {
	synthesizeShouldFail bool
	synthesizedRequest   core.SynthesisRequest
}

func (m *mockSynthesisProvider) ListVoices(_ context.Context) ([]core.Voice, error) {
	return nil, nil
}

func (m *mockSynthesisProvider) CloneVoice(_ context.Context, _ core.CloneRequest) (core.Voice, error) {
	return core.Voice{}, nil
}

func (m *mockSynthesisProvider) Synthesize(_ context.Context, req core.SynthesisRequest) ([]byte, error) {
	if m.synthesizeShouldFail {
		return nil, errMockSynthesize
	}

	m.synthesizedRequest = req

	return []byte("sample audio"), nil
}

func (m *mockSynthesisProvider) DeleteVoice(_ context.Context, _ string) error {
	return nil
}

func (m *mockSynthesisProvider) UserInfo(_ context.Context) (core.UserInfo, error) {
	return core.UserInfo{}, nil
}

// mockAudioStore is a mock implementation of core.AudioStore.
type mockAudioStore struct {
	saveShouldFail bool
	savedData      []byte
	savedExt       string
}

func (m *mockAudioStore) Save(data []byte, ext string) (string, error) {
	if m.saveShouldFail {
		return "", errMockSave
	}

	m.savedData = data
	m.savedExt = ext

	return "stored-audio.mp3", nil
}

func (m *mockAudioStore) Open(_ string) ([]byte, error) {
	return nil, nil
}

func (m *mockAudioStore) Delete(_ string) error {
	return nil
}

func (m *mockAudioStore) List() ([]string, error) {
	return nil, nil
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func setupTest(t *testing.T) (
	*mockSynthesisProvider,
	*mockAudioStore,
	*nats.Conn,
) {
	t.Helper()

	provider := &mockSynthesisProvider{
		synthesizeShouldFail: false,
		synthesizedRequest:   core.SynthesisRequest{},
	}
	audioStore := &mockAudioStore{
		saveShouldFail: false,
		savedData:      nil,
		savedExt:       "",
	}

	natsConnection := createTestNatsClient(t)

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	workerInstance := worker.NewNatsWorker(
		natsConnection, "test.synthesis.requested", provider, audioStore, testLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()

		shutdownErr := <-errChan
		assert.NoError(t, shutdownErr)
	})

	// Give the subscription a moment to register before publishing.
	require.Eventually(t, func() bool {
		return natsConnection.NumSubscriptions() > 0
	}, time.Second, 10*time.Millisecond)

	return provider, audioStore, natsConnection
}

func TestWorker_Success(t *testing.T) {
	t.Parallel()

	provider, audioStore, natsConnection := setupTest(t)

	job := events.SynthesisRequestedEvent{
		EventID: uuid.NewString(),
		Text:    "  hello   worker  ",
		VoiceID: "voice-123",
		AgentID: "agent-1",
	}
	jobData, err := json.Marshal(job)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("test.synthesis.requested", jobData, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var reply events.SynthesisCompletedEvent

	err = json.Unmarshal(replyMsg.Data, &reply)
	require.NoError(t, err)

	assert.Equal(t, "hello worker", provider.synthesizedRequest.Text)
	assert.Equal(t, "voice-123", provider.synthesizedRequest.VoiceID)
	assert.Equal(t, []byte("sample audio"), audioStore.savedData)
	assert.Equal(t, ".mp3", audioStore.savedExt)

	assert.Equal(t, job.EventID, reply.EventID)
	assert.Equal(t, "stored-audio.mp3", reply.AudioKey)
	assert.Equal(t, "agent-1", reply.AgentID)
	assert.Equal(t, len("hello worker"), reply.Characters)
}

func TestWorker_NormalizesSettings(t *testing.T) {
	t.Parallel()

	provider, _, natsConnection := setupTest(t)

	stability := 1.7
	job := events.SynthesisRequestedEvent{
		EventID:   uuid.NewString(),
		Text:      "settings check",
		VoiceID:   "voice-123",
		Stability: &stability,
	}
	jobData, err := json.Marshal(job)
	require.NoError(t, err)

	_, err = natsConnection.Request("test.synthesis.requested", jobData, 5*time.Second)
	require.NoError(t, err)

	settings := provider.synthesizedRequest.Settings
	assert.InDelta(t, 1.0, settings.Stability, 0.0001)
	assert.InDelta(t, 0.5, settings.SimilarityBoost, 0.0001)
	assert.InDelta(t, 0.0, settings.Style, 0.0001)
	assert.True(t, settings.SpeakerBoost)
}

func TestWorker_InvalidJobGetsNoReply(t *testing.T) {
	t.Parallel()

	_, audioStore, natsConnection := setupTest(t)

	job := events.SynthesisRequestedEvent{
		EventID: uuid.NewString(),
		Text:    "   ",
		VoiceID: "voice-123",
	}
	jobData, err := json.Marshal(job)
	require.NoError(t, err)

	_, err = natsConnection.Request("test.synthesis.requested", jobData, 500*time.Millisecond)
	require.Error(t, err, "whitespace-only text should be rejected without a reply")

	assert.Nil(t, audioStore.savedData)
}

func TestWorker_ProviderFailureGetsNoReply(t *testing.T) {
	t.Parallel()

	provider, audioStore, natsConnection := setupTest(t)
	provider.synthesizeShouldFail = true

	job := events.SynthesisRequestedEvent{
		EventID: uuid.NewString(),
		Text:    "doomed job",
		VoiceID: "voice-123",
	}
	jobData, err := json.Marshal(job)
	require.NoError(t, err)

	_, err = natsConnection.Request("test.synthesis.requested", jobData, 500*time.Millisecond)
	require.Error(t, err, "provider failure should produce no reply")

	assert.Nil(t, audioStore.savedData)
}
