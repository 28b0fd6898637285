package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oshaberi/internal/llm"
	"oshaberi/internal/style"
)

func TestStoreCreatesOnFirstAccess(t *testing.T) {
	store := testStore(t)

	_, ok := store.Lookup("abc")
	assert.False(t, ok)

	sess := store.Get("abc")
	require.NotNil(t, sess)
	assert.Same(t, sess, store.Get("abc"))
	assert.Equal(t, 1, store.Len())

	snap := sess.Snapshot()
	assert.Equal(t, "standard", snap.Style.Key)
	assert.Equal(t, DefaultTemperature, snap.Temperature)
	assert.False(t, snap.ConfirmReset)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, llm.RoleAssistant, snap.Messages[0].Role)
	assert.Equal(t, 2, sess.Len())

	store.Delete("abc")
	assert.Equal(t, 0, store.Len())
	assert.NotSame(t, sess, store.Get("abc"))
}

func TestStoresAreIndependentPerSession(t *testing.T) {
	store := testStore(t)
	a := store.Get(NewID())
	b := store.Get(NewID())

	require.NoError(t, a.SelectStyle("kansai"))
	require.NoError(t, a.SetTemperature(0.9))

	assert.Equal(t, "standard", b.Style())
	assert.Equal(t, DefaultTemperature, b.Temperature())
}

func TestNewStoreValidatesDefaults(t *testing.T) {
	registry := testRegistry(t)

	_, err := NewStore(registry, Defaults{Style: "nope", Temperature: 0.5}, nil)
	assert.ErrorIs(t, err, style.ErrStyleNotFound)

	_, err = NewStore(registry, Defaults{Temperature: 1.5}, nil)
	assert.ErrorIs(t, err, ErrTemperatureOutOfRange)

	store, err := NewStore(registry, Defaults{Style: "okinawan", Temperature: 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, "okinawan", store.Get("x").Style())
}

func TestSelectStyleRestartsConversation(t *testing.T) {
	store := testStore(t)
	sess := store.Get("s")
	sess.appendUser("hello")

	require.NoError(t, sess.SelectStyle("kansai"))
	kansai, err := testRegistry(t).Lookup("kansai")
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: kansai.SystemPrompt},
		{Role: llm.RoleAssistant, Content: kansai.Greeting},
	}, sess.History())

	sess.appendUser("again")
	require.NoError(t, sess.SelectStyle("kansai"))
	assert.Equal(t, 3, sess.Len(), "reselecting the current style keeps history")

	err = sess.SelectStyle("unknown")
	assert.ErrorIs(t, err, style.ErrStyleNotFound)
	assert.Equal(t, "kansai", sess.Style())
}

func TestCycleStyleWraps(t *testing.T) {
	sess := testStore(t).Get("s")
	sess.appendUser("hello")

	for _, want := range []string{"kansai", "okinawan", "standard"} {
		got, err := sess.CycleStyle()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, want, sess.Style())
	}
	assert.Equal(t, 2, sess.Len(), "each switch restarts the conversation")
}

func TestSetTemperatureBounds(t *testing.T) {
	sess := testStore(t).Get("s")

	for _, v := range []float64{0, 0.1, 0.5, 1} {
		require.NoError(t, sess.SetTemperature(v))
		assert.Equal(t, v, sess.Temperature())
	}
	for _, v := range []float64{-0.1, 1.01} {
		assert.ErrorIs(t, sess.SetTemperature(v), ErrTemperatureOutOfRange)
	}
	assert.Equal(t, 1.0, sess.Temperature())
}

func TestTwoStepReset(t *testing.T) {
	sess := testStore(t).Get("s")
	sess.appendUser("one")
	sess.appendAssistant(0, "two")
	require.Equal(t, 4, sess.Len())

	assert.False(t, sess.ConfirmReset(), "confirm without request does nothing")
	assert.Equal(t, 4, sess.Len())

	sess.RequestReset()
	assert.True(t, sess.ConfirmResetPending())
	sess.CancelReset()
	assert.False(t, sess.ConfirmResetPending())
	assert.Equal(t, 4, sess.Len(), "cancel leaves history untouched")

	sess.RequestReset()
	assert.True(t, sess.ConfirmReset())
	assert.False(t, sess.ConfirmResetPending())
	assert.Equal(t, 2, sess.Len())
	assert.Equal(t, "standard", sess.Style(), "reset keeps the current style")
}

func TestReplyAfterResetIsNotStored(t *testing.T) {
	sess := testStore(t).Get("s")
	generation, _, _ := sess.appendUser("question")

	sess.RequestReset()
	sess.ConfirmReset()

	assert.False(t, sess.appendAssistant(generation, "late answer"))
	assert.Equal(t, 2, sess.Len())
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	store := testStore(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	old := store.Get("old")
	now = now.Add(20 * time.Minute)
	fresh := store.Get("fresh")
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, store.Sweep(30*time.Minute))
	_, ok := store.Lookup("old")
	assert.False(t, ok)
	got, ok := store.Lookup("fresh")
	assert.True(t, ok)
	assert.Same(t, fresh, got)
	assert.NotNil(t, old)
}

func TestSweepKeepsAttachedSessions(t *testing.T) {
	store := testStore(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	sess, release := store.Attach("open")
	now = now.Add(time.Hour)
	assert.Equal(t, 0, store.Sweep(30*time.Minute))
	got, ok := store.Lookup("open")
	require.True(t, ok)
	assert.Same(t, sess, got)

	release()
	release()
	assert.Equal(t, 0, store.Sweep(30*time.Minute), "release restarts the idle clock")
	now = now.Add(31 * time.Minute)
	assert.Equal(t, 1, store.Sweep(30*time.Minute))
	_, ok = store.Lookup("open")
	assert.False(t, ok)
}

func TestTouchRestartsIdleClock(t *testing.T) {
	store := testStore(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	sess := store.Get("s")
	now = now.Add(25 * time.Minute)
	sess.Touch()
	now = now.Add(25 * time.Minute)
	assert.Equal(t, 0, store.Sweep(30*time.Minute))
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := testStore(t)
	var wg sync.WaitGroup
	sessions := make([]*Session, 32)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = store.Get("shared")
			_ = sessions[i].SetTemperature(0.3)
			sessions[i].RequestReset()
			sessions[i].CancelReset()
		}(i)
	}
	wg.Wait()
	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, 1, store.Len())
}
