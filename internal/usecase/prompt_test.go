package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"atlas-widget/internal/domain"
)

func TestBuildSystemContext(t *testing.T) {
	got := buildSystemContext(PromptContext{SystemPrompt: " You are Atlas. ", KnowledgeBase: "BTC is Bitcoin.\n"})
	require.Equal(t, "You are Atlas.\n\n### KNOWLEDGE BASE ###\nBTC is Bitcoin.\n\n"+plainLanguageRule, got)

	got = buildSystemContext(PromptContext{})
	require.Equal(t, FallbackSystemPrompt+"\n\n"+plainLanguageRule, got)
	require.Contains(t, got, "Never output raw JSON")
}

func TestHistoryToPromptMessages(t *testing.T) {
	require.Nil(t, historyToPromptMessages(domain.Message{Text: "q", Answer: "a", Status: "pending"}))
	require.Nil(t, historyToPromptMessages(domain.Message{Text: "q", Status: statusComplete}))
	require.Nil(t, historyToPromptMessages(domain.Message{Text: " ", Answer: "a", Status: statusComplete}))
	require.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "q"},
		{Role: domain.RoleAssistant, Content: "a"},
	}, historyToPromptMessages(domain.Message{Text: " q ", Answer: "a", Status: statusComplete}))
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFilePromptLoader(t *testing.T) {
	dir := t.TempDir()
	loader := FilePromptLoader{
		SystemPromptPath:  writeFile(t, dir, "systemprompt.txt", "You are Atlas."),
		KnowledgeBasePath: writeFile(t, dir, "Crypto_Knowledge_Base.md", "# Coins\nBTC"),
	}
	got, err := loader.LoadPrompt(context.Background())
	require.NoError(t, err)
	require.Equal(t, PromptContext{SystemPrompt: "You are Atlas.", KnowledgeBase: "# Coins\nBTC"}, got)
}

func TestFilePromptLoader_MissingFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	loader := FilePromptLoader{
		SystemPromptPath:  writeFile(t, dir, "systemprompt.txt", "You are Atlas."),
		KnowledgeBasePath: filepath.Join(dir, "missing.md"),
	}
	got, err := loader.LoadPrompt(context.Background())
	require.NoError(t, err)
	require.Equal(t, PromptContext{SystemPrompt: FallbackSystemPrompt}, got)
}

func TestFilePromptLoader_UnreadableIsError(t *testing.T) {
	dir := t.TempDir()
	loader := FilePromptLoader{SystemPromptPath: dir, KnowledgeBasePath: dir}
	_, err := loader.LoadPrompt(context.Background())
	require.Error(t, err)
}

type fakePathReader struct {
	vals map[string]string
	err  error
	path string
}

func (f *fakePathReader) GetParametersByPath(_ context.Context, path string) (map[string]string, error) {
	f.path = path
	return f.vals, f.err
}

func TestParamPromptLoader(t *testing.T) {
	reader := &fakePathReader{vals: map[string]string{
		"system_prompt":  "You are Atlas.",
		"knowledge_base": "BTC",
		"config/model":   " openai/gpt-4o-mini ",
	}}
	loader, err := NewParamPromptLoader(reader, "/atlas/")
	require.NoError(t, err)

	got, err := loader.LoadPrompt(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/atlas", reader.path)
	require.Equal(t, PromptContext{SystemPrompt: "You are Atlas.", KnowledgeBase: "BTC", Model: "openai/gpt-4o-mini"}, got)
}

func TestParamPromptLoader_Errors(t *testing.T) {
	_, err := NewParamPromptLoader(nil, "/atlas")
	require.ErrorContains(t, err, "must not be nil")
	_, err = NewParamPromptLoader(&fakePathReader{}, " / ")
	require.ErrorContains(t, err, "prefix")

	loader, err := NewParamPromptLoader(&fakePathReader{vals: map[string]string{"knowledge_base": "x"}}, "/atlas")
	require.NoError(t, err)
	_, err = loader.LoadPrompt(context.Background())
	require.ErrorContains(t, err, "/atlas/system_prompt is missing")

	loader, err = NewParamPromptLoader(&fakePathReader{err: errors.New("AccessDenied")}, "/atlas")
	require.NoError(t, err)
	_, err = loader.LoadPrompt(context.Background())
	require.ErrorContains(t, err, "AccessDenied")
}
