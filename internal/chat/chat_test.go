package chat

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"oshaberi/internal/llm"
	"oshaberi/internal/style"
)

func testRegistry(t *testing.T) *style.Registry {
	t.Helper()
	r, err := style.New()
	require.NoError(t, err)
	return r
}

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(testRegistry(t), Defaults{Temperature: DefaultTemperature}, nil)
	require.NoError(t, err)
	return store
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func testChat(client llm.Client) (*Chat, *bytes.Buffer) {
	logger, buf := testLogger()
	return New(NewCompleter(client, "chat-dep", logger), logger), buf
}
