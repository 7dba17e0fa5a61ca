package usecase

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FilePromptLoader reads the system prompt and knowledge base from disk. If
// either file is missing the whole context falls back to
// FallbackSystemPrompt.
type FilePromptLoader struct {
	SystemPromptPath  string
	KnowledgeBasePath string
}

func (l FilePromptLoader) LoadPrompt(_ context.Context) (PromptContext, error) {
	system, err := os.ReadFile(l.SystemPromptPath)
	if err != nil {
		return l.fallback(l.SystemPromptPath, err)
	}
	kb, err := os.ReadFile(l.KnowledgeBasePath)
	if err != nil {
		return l.fallback(l.KnowledgeBasePath, err)
	}
	return PromptContext{
		SystemPrompt:  string(system),
		KnowledgeBase: string(kb),
	}, nil
}

func (l FilePromptLoader) fallback(path string, err error) (PromptContext, error) {
	if !errors.Is(err, os.ErrNotExist) {
		return PromptContext{}, errors.Wrapf(err, "usecase: read %s", path)
	}
	log.Warn().Str("path", path).Msg("context file not found, using fallback prompt")
	return PromptContext{SystemPrompt: FallbackSystemPrompt}, nil
}

// PathReader returns every parameter below a path keyed by relative name.
type PathReader interface {
	GetParametersByPath(ctx context.Context, path string) (map[string]string, error)
}

// ParamPromptLoader reads the prompt from Parameter Store:
//
//	<prefix>/system_prompt   required
//	<prefix>/knowledge_base  optional
//	<prefix>/config/model    optional
type ParamPromptLoader struct {
	params PathReader
	prefix string
}

func NewParamPromptLoader(params PathReader, prefix string) (*ParamPromptLoader, error) {
	if params == nil {
		return nil, errors.New("usecase: param reader must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &ParamPromptLoader{params: params, prefix: prefix}, nil
}

func (l *ParamPromptLoader) LoadPrompt(ctx context.Context) (PromptContext, error) {
	vals, err := l.params.GetParametersByPath(ctx, l.prefix)
	if err != nil {
		return PromptContext{}, errors.Wrap(err, "usecase: load prompt parameters")
	}
	system := strings.TrimSpace(vals["system_prompt"])
	if system == "" {
		return PromptContext{}, errors.Errorf("usecase: %s/system_prompt is missing", l.prefix)
	}
	return PromptContext{
		SystemPrompt:  system,
		KnowledgeBase: vals["knowledge_base"],
		Model:         strings.TrimSpace(vals["config/model"]),
	}, nil
}
