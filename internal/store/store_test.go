package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "agents.db")

	testStore, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, testStore.Migrate())

	t.Cleanup(func() {
		_ = testStore.Close()
	})

	return testStore
}

func sampleAgent(name string) *core.Agent {
	return &core.Agent{
		ID:           "",
		Name:         name,
		VoiceID:      "voice-123",
		Description:  "test agent",
		SystemPrompt: "You are a helpful equity assistant.",
		Settings: core.VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
			Style:           0.0,
			SpeakerBoost:    true,
		},
		CreatedAt: time.Time{},
		UpdatedAt: time.Time{},
	}
}

func TestStore_CreateAndGetAgent(t *testing.T) {
	t.Parallel()

	testStore := openTestStore(t)
	ctx := context.Background()

	agent := sampleAgent("Rachel Proxy")

	err := testStore.CreateAgent(ctx, agent)
	require.NoError(t, err)
	require.NotEmpty(t, agent.ID, "store should assign an id")
	require.False(t, agent.CreatedAt.IsZero())

	loaded, err := testStore.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.Name, loaded.Name)
	assert.Equal(t, agent.VoiceID, loaded.VoiceID)
	assert.Equal(t, agent.SystemPrompt, loaded.SystemPrompt)
	assert.InEpsilon(t, 0.5, loaded.Settings.Stability, 0.0001)
	assert.True(t, loaded.Settings.SpeakerBoost)
}

func TestStore_CreateAgent_RequiresName(t *testing.T) {
	t.Parallel()

	testStore := openTestStore(t)

	agent := sampleAgent("")

	err := testStore.CreateAgent(context.Background(), agent)
	require.ErrorIs(t, err, store.ErrAgentNameEmpty)
}

func TestStore_GetAgent_NotFound(t *testing.T) {
	t.Parallel()

	testStore := openTestStore(t)

	_, err := testStore.GetAgent(context.Background(), "missing-id")
	require.ErrorIs(t, err, store.ErrAgentNotFound)
}

func TestStore_ListAgents_OrderedByCreation(t *testing.T) {
	t.Parallel()

	testStore := openTestStore(t)
	ctx := context.Background()

	names := []string{"first", "second", "third"}
	for _, name := range names {
		require.NoError(t, testStore.CreateAgent(ctx, sampleAgent(name)))
	}

	agents, err := testStore.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 3)

	listed := make([]string, 0, len(agents))
	for _, agent := range agents {
		listed = append(listed, agent.Name)
	}

	assert.Equal(t, names, listed)
}

func TestStore_UpdateAgent(t *testing.T) {
	t.Parallel()

	testStore := openTestStore(t)
	ctx := context.Background()

	agent := sampleAgent("before")
	require.NoError(t, testStore.CreateAgent(ctx, agent))

	agent.Name = "after"
	agent.Settings.Stability = 0.9

	err := testStore.UpdateAgent(ctx, agent)
	require.NoError(t, err)

	loaded, err := testStore.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", loaded.Name)
	assert.InEpsilon(t, 0.9, loaded.Settings.Stability, 0.0001)
	assert.False(t, loaded.UpdatedAt.Before(loaded.CreatedAt))
}

func TestStore_UpdateAgent_NotFound(t *testing.T) {
	t.Parallel()

	testStore := openTestStore(t)

	agent := sampleAgent("ghost")
	agent.ID = "missing-id"

	err := testStore.UpdateAgent(context.Background(), agent)
	require.ErrorIs(t, err, store.ErrAgentNotFound)
}

func TestStore_DeleteAgent(t *testing.T) {
	t.Parallel()

	testStore := openTestStore(t)
	ctx := context.Background()

	agent := sampleAgent("doomed")
	require.NoError(t, testStore.CreateAgent(ctx, agent))

	require.NoError(t, testStore.DeleteAgent(ctx, agent.ID))

	_, err := testStore.GetAgent(ctx, agent.ID)
	require.ErrorIs(t, err, store.ErrAgentNotFound)

	err = testStore.DeleteAgent(ctx, agent.ID)
	require.ErrorIs(t, err, store.ErrAgentNotFound)
}
