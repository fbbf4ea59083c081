package audio_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/audio"
)

func newTestStore(t *testing.T) *audio.Store {
	t.Helper()

	testStore, err := audio.New(t.TempDir())
	require.NoError(t, err)

	return testStore
}

func TestStore_SaveAndOpen(t *testing.T) {
	t.Parallel()

	testStore := newTestStore(t)
	data := []byte("fake mpeg audio")

	name, err := testStore.Save(data, ".mp3")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".mp3"))

	loaded, err := testStore.Open(name)
	require.NoError(t, err)
	assert.Equal(t, data, loaded)
}

func TestStore_Save_RejectsEmptyData(t *testing.T) {
	t.Parallel()

	testStore := newTestStore(t)

	_, err := testStore.Save(nil, ".mp3")
	require.ErrorIs(t, err, audio.ErrEmptyAudioData)
}

func TestStore_Save_SanitizesExtension(t *testing.T) {
	t.Parallel()

	testStore := newTestStore(t)

	name, err := testStore.Save([]byte("wav bytes"), "wav")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".wav"))

	name, err = testStore.Save([]byte("odd bytes"), "../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".mp3"),
		"suspicious extensions fall back to .mp3")
}

func TestStore_Open_RejectsTraversalNames(t *testing.T) {
	t.Parallel()

	testStore := newTestStore(t)

	for _, name := range []string{"", "../secret.mp3", "a/b.mp3", `a\b.mp3`, "..", "x..y"} {
		_, err := testStore.Open(name)
		require.ErrorIs(t, err, audio.ErrInvalidName, "name %q must be refused", name)
	}
}

func TestStore_Open_NotFound(t *testing.T) {
	t.Parallel()

	testStore := newTestStore(t)

	_, err := testStore.Open("nonexistent.mp3")
	require.ErrorIs(t, err, audio.ErrAudioNotFound)
}

func TestStore_DeleteAndList(t *testing.T) {
	t.Parallel()

	testStore := newTestStore(t)

	first, err := testStore.Save([]byte("one"), ".mp3")
	require.NoError(t, err)

	second, err := testStore.Save([]byte("two"), ".mp3")
	require.NoError(t, err)

	names, err := testStore.List()
	require.NoError(t, err)
	assert.Len(t, names, 2)
	assert.Contains(t, names, first)
	assert.Contains(t, names, second)

	require.NoError(t, testStore.Delete(first))

	names, err = testStore.List()
	require.NoError(t, err)
	assert.Equal(t, []string{second}, names)

	err = testStore.Delete(first)
	require.ErrorIs(t, err, audio.ErrAudioNotFound)
}
