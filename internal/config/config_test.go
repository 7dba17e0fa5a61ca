package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{}})
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Port)
	require.Equal(t, "meta-llama/llama-3.1-8b-instruct", cfg.Model)
	require.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouterBaseURL)
	require.Equal(t, 0.7, cfg.Temperature)
	require.Equal(t, 1000, cfg.MaxTokens)
	require.Equal(t, "systemprompt.txt", cfg.SystemPromptPath)
	require.Equal(t, "Crypto_Knowledge_Base.md", cfg.KnowledgeBasePath)
	require.Equal(t, "default", cfg.ConversationID)
	require.Equal(t, "http://localhost:5000/api/chat", cfg.ChatURL)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, 30*24*time.Hour, cfg.StateTTL)
	require.Equal(t, "http://localhost", cfg.HTTPReferer)
	require.Equal(t, "Crypto Chatbot", cfg.AppTitle)
	require.False(t, cfg.UsesDynamoDB())
	require.False(t, cfg.UsesParamStore())
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"PORT":                "8080",
		"MODEL_NAME":          "openai/gpt-4o-mini",
		"STATE_TABLE":         "atlas-memory",
		"PARAM_PREFIX":        "/atlas",
		"MAX_TOOL_ITERATIONS": "2",
		"SHUTDOWN_TIMEOUT":    "3s",
		"STATE_TTL":           "48h",
		"HTTP_REFERER":        "https://atlas.example",
		"APP_TITLE":           "Atlas",
	}})
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "openai/gpt-4o-mini", cfg.Model)
	require.Equal(t, 2, cfg.MaxToolIterations)
	require.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, 48*time.Hour, cfg.StateTTL)
	require.Equal(t, "https://atlas.example", cfg.HTTPReferer)
	require.Equal(t, "Atlas", cfg.AppTitle)
	require.True(t, cfg.UsesDynamoDB())
	require.True(t, cfg.UsesParamStore())
}

func TestParse_Invalid(t *testing.T) {
	_, err := parse(env.Options{Environment: map[string]string{"PORT": "not-a-port"}})
	require.ErrorContains(t, err, "parse environment")

	_, err = parse(env.Options{Environment: map[string]string{"PORT": "70000"}})
	require.ErrorContains(t, err, "out of range")

	_, err = parse(env.Options{Environment: map[string]string{"MAX_CONTEXT_ITEMS": "-1"}})
	require.ErrorContains(t, err, "negative")

	_, err = parse(env.Options{Environment: map[string]string{"STATE_TTL": "-1h"}})
	require.ErrorContains(t, err, "STATE_TTL")
}

func TestLoad_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ATLAS_TEST_MODEL_FILE=1\nMODEL_NAME=from-file\nPORT=6001\n"), 0o600))

	t.Setenv("PORT", "7001")
	t.Setenv("MODEL_NAME", "")
	require.NoError(t, os.Unsetenv("MODEL_NAME"))
	t.Cleanup(func() { _ = os.Unsetenv("ATLAS_TEST_MODEL_FILE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7001, cfg.Port)
	require.Equal(t, "from-file", cfg.Model)
}

func TestLoad_MissingDotenvIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}
