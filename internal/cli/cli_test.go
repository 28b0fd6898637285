package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oshaberi/internal/config"
	"oshaberi/internal/llm"
)

func TestReadQueryFromArgs(t *testing.T) {
	input, err := readInput([]string{"hello", "world"}, "", strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if input != "hello world" {
		t.Fatalf("unexpected input: %q", input)
	}
}

func TestReadQueryFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(path, []byte("file input\n"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	input, err := readInput(nil, path, strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if input != "file input" {
		t.Fatalf("unexpected input: %q", input)
	}
}

func TestReadQueryFromStdin(t *testing.T) {
	input, err := readInput(nil, "-", strings.NewReader("stdin input\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if input != "stdin input" {
		t.Fatalf("unexpected input: %q", input)
	}
}

func TestReadQueryMissing(t *testing.T) {
	_, err := readInput(nil, "", strings.NewReader(""))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestReadQueryConflict(t *testing.T) {
	_, err := readInput([]string{"hello"}, "input.txt", strings.NewReader(""))
	if err == nil {
		t.Fatalf("expected error")
	}
}

// withClient points the command factory at a scripted backend.
func withClient(t *testing.T, client llm.Client) {
	t.Helper()
	original := newLLMClient
	newLLMClient = func(config.LLMConfig) (llm.Client, error) { return client, nil }
	t.Cleanup(func() { newLLMClient = original })
}

func withEnv(t *testing.T, complete bool) string {
	t.Helper()
	for _, key := range []string{"ENDPOINT_URL", "DEPLOYMENT_NAME", "AZURE_OPENAI_API_KEY", "OSHABERI_LLM_URL", "OSHABERI_LLM_MODEL", "OSHABERI_LLM_TOKEN"} {
		t.Setenv(key, "")
	}
	if complete {
		t.Setenv("ENDPOINT_URL", "https://example.openai.azure.com")
		t.Setenv("DEPLOYMENT_NAME", "chat-dep")
		t.Setenv("AZURE_OPENAI_API_KEY", "secret")
	}
	path := filepath.Join(t.TempDir(), "oshaberi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestAskStreamsReply(t *testing.T) {
	client := llm.NewMockClient("", " Hi", " there!")
	withClient(t, client)
	cfgPath := withEnv(t, true)

	out, _, err := execute(t, "", "--config", cfgPath, "ask", "--style", "kansai", "-t", "0", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!\n", out)

	requests := client.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, 0.0, requests[0].Temperature)
	assert.Equal(t, "chat-dep", requests[0].Model)
	assert.Contains(t, requests[0].Messages[0].Content, "関西弁")
	assert.Equal(t, "hello", requests[0].Messages[2].Content)
}

func TestAskFromStdin(t *testing.T) {
	client := llm.NewMockClient("ok")
	withClient(t, client)
	cfgPath := withEnv(t, true)

	out, _, err := execute(t, "from stdin\n", "--config", cfgPath, "ask", "-F", "-")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
	assert.Equal(t, "from stdin", client.Requests()[0].Messages[2].Content)
}

func TestAskAlertGoesToStderr(t *testing.T) {
	withClient(t, &llm.MockClient{Error: &llm.ContentFilterError{Message: "blocked"}})
	cfgPath := withEnv(t, true)

	out, errOut, err := execute(t, "", "--config", cfgPath, "ask", "bad")
	assert.ErrorIs(t, err, ErrAlerted)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "The request was rejected because it includes disallowed content")
}

func TestAskRejectsBadTemperature(t *testing.T) {
	withClient(t, llm.NewMockClient("ok"))
	cfgPath := withEnv(t, true)

	_, _, err := execute(t, "", "--config", cfgPath, "ask", "-t", "1.5", "hi")
	assert.Error(t, err)
}

func TestAskWithoutConfiguration(t *testing.T) {
	withClient(t, llm.NewMockClient("ok"))
	cfgPath := withEnv(t, false)

	_, _, err := execute(t, "", "--config", cfgPath, "ask", "hello")
	var missing *config.MissingError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, []string{"llm.url", "llm.model", "llm.token"}, missing.Keys)
}

func TestStyles(t *testing.T) {
	cfgPath := withEnv(t, false)
	out, _, err := execute(t, "", "--config", cfgPath, "styles")
	require.NoError(t, err)
	assert.Contains(t, out, "* standard")
	assert.Contains(t, out, "kansai")
	assert.Contains(t, out, "まいど！")
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestLLMTest(t *testing.T) {
	withClient(t, llm.NewMockClient("pong"))
	cfgPath := withEnv(t, true)

	out, _, err := execute(t, "", "--config", cfgPath, "llm", "test")
	require.NoError(t, err)
	assert.Equal(t, "ok chat-dep (azure): pong\n", out)
}

func TestLLMTestConnectionFailure(t *testing.T) {
	withClient(t, &llm.MockClient{Error: &llm.ConnectionError{Err: errors.New("refused")}})
	cfgPath := withEnv(t, false)

	_, errOut, err := execute(t, "", "--config", cfgPath, "llm", "test", "--url", "https://x", "--model", "m", "--token", "k")
	assert.ErrorIs(t, err, ErrAlerted)
	assert.Contains(t, errOut, "connection_failed: A network error occurred")
}

func TestNewLLMClient(t *testing.T) {
	azure, err := newLLMClient(config.LLMConfig{Type: config.TypeAzure, URL: "https://x", Model: "d", Token: "k"})
	require.NoError(t, err)
	assert.IsType(t, &llm.AzureClient{}, azure)

	openai, err := newLLMClient(config.LLMConfig{Type: config.TypeOpenAI, URL: "http://localhost", Model: "m", Token: "k"})
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAIClient{}, openai)

	_, err = newLLMClient(config.LLMConfig{Type: "gemini"})
	assert.Error(t, err)

	_, err = newLLMClient(config.LLMConfig{Type: config.TypeAzure})
	assert.Error(t, err)
}
