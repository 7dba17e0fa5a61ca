package main

import (
	"context"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"atlas-widget/handler"
	"atlas-widget/internal/config"
	"atlas-widget/internal/integrations/freecrypto"
	"atlas-widget/internal/integrations/openai"
	"atlas-widget/internal/integrations/paramstore"
	"atlas-widget/internal/repository"
	"atlas-widget/internal/tools"
	"atlas-widget/internal/usecase"
	"atlas-widget/internal/widget"
)

// buildChatService wires the agent from configuration. AWS is only touched
// when a parameter prefix or state table is configured.
func buildChatService(ctx context.Context, cfg config.Config) (*usecase.ChatService, error) {
	var (
		params *paramstore.Client
		state  usecase.StateReadWriter
	)

	if cfg.UsesParamStore() || cfg.UsesDynamoDB() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "load AWS config")
		}
		if cfg.UsesParamStore() {
			if params, err = paramstore.New(awsssm.NewFromConfig(awsCfg)); err != nil {
				return nil, err
			}
		}
		if cfg.UsesDynamoDB() {
			if state, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable, repository.WithTTL(cfg.StateTTL)); err != nil {
				return nil, err
			}
		}
	}
	if state == nil {
		state = repository.NewBuffer(cfg.MaxContextItems)
	}

	var prompts usecase.PromptLoader = usecase.FilePromptLoader{
		SystemPromptPath:  cfg.SystemPromptPath,
		KnowledgeBasePath: cfg.KnowledgeBasePath,
	}
	if params != nil {
		loader, err := usecase.NewParamPromptLoader(params, cfg.ParamPrefix)
		if err != nil {
			return nil, err
		}
		prompts = loader
	}

	llmOpts := []openai.Option{
		openai.WithBaseURL(cfg.OpenRouterBaseURL),
		openai.WithSampling(cfg.Temperature, cfg.MaxTokens),
		openai.WithAttribution(cfg.HTTPReferer, cfg.AppTitle),
	}
	switch {
	case cfg.OpenRouterAPIKey != "":
		llmOpts = append(llmOpts, openai.WithAPIKey(cfg.OpenRouterAPIKey))
	case params != nil:
		llmOpts = append(llmOpts, openai.WithParamStore(params, cfg.ParamPrefix))
	default:
		return nil, errors.New("OPENROUTER_API_KEY not set; add it to .env or set PARAM_PREFIX")
	}
	llm, err := openai.NewClient(llmOpts...)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry(
		tools.NewCryptoConversionTool(freecrypto.New(cfg.FreeCryptoAPIKey, freecrypto.WithBaseURL(cfg.FreeCryptoBaseURL))),
	)

	event := log.Info().
		Str("default_model", cfg.Model).
		Bool("param_store", params != nil).
		Bool("dynamodb", cfg.UsesDynamoDB())
	if params != nil {
		// the prompt loader may replace the model on first request
		event = event.Str("model_param", strings.TrimRight(cfg.ParamPrefix, "/")+"/config/model")
	}
	event.Msg("chat service configured")

	return usecase.NewChatService(prompts, llm, state, registry, usecase.Options{
		ConversationID:    cfg.ConversationID,
		Model:             cfg.Model,
		MaxContextItems:   cfg.MaxContextItems,
		MaxMessageLength:  cfg.MaxMessageLength,
		MaxToolIterations: cfg.MaxToolIterations,
	})
}

// localTransport lets the widget talk to an in-process agent instead of the
// HTTP API.
type localTransport struct {
	uc handler.ChatUseCase
}

func (t localTransport) Send(ctx context.Context, message string) (widget.Reply, error) {
	out, err := t.uc.Chat(ctx, usecase.ChatInput{Message: message})
	if err != nil {
		log.Debug().Err(err).Msg("local chat failed")
		return widget.Reply{Error: handler.ErrorMessage(err)}, nil
	}
	return widget.Reply{Response: out.Response}, nil
}
