package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"atlas-widget/internal/domain"
)

const (
	DefaultConversationID = "default"
	DefaultModel          = "meta-llama/llama-3.1-8b-instruct"

	defaultMaxContext    = 20
	defaultMaxMessage    = 4000
	defaultMaxToolRounds = 5
	statusComplete       = "complete"
)

type PromptLoader interface {
	LoadPrompt(ctx context.Context) (PromptContext, error)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage, tools []domain.ToolDefinition) (domain.ChatMessage, error)
}

type StateReadWriter interface {
	GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	SaveTurn(ctx context.Context, conversationID, question, answer string) error
	Turns(ctx context.Context, conversationID string) (int, error)
}

type ToolRunner interface {
	Definitions() []domain.ToolDefinition
	Run(ctx context.Context, name, args string) string
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Options tunes a ChatService. Zero values fall back to defaults.
type Options struct {
	ConversationID    string
	Model             string
	MaxContextItems   int
	MaxMessageLength  int
	MaxToolIterations int
}

// ChatService answers one user message at a time against a single shared
// conversation, calling tools until the model produces a plain reply.
type ChatService struct {
	prompts PromptLoader
	llm     LLMClient
	state   StateReadWriter
	tools   ToolRunner
	opts    Options

	cacheMu     sync.RWMutex
	cacheLoaded bool
	prompt      PromptContext
}

type ChatInput struct {
	Message string
}

type ChatOutput struct {
	Response string
}

// NewChatService wires the service. tools may be nil, in which case the model
// is never offered any.
func NewChatService(p PromptLoader, llm LLMClient, s StateReadWriter, tools ToolRunner, opts Options) (*ChatService, error) {
	if p == nil {
		return nil, errors.New("usecase: prompt loader must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: state store must not be nil")
	}
	opts.ConversationID = strings.TrimSpace(opts.ConversationID)
	if opts.ConversationID == "" {
		opts.ConversationID = DefaultConversationID
	}
	opts.Model = strings.TrimSpace(opts.Model)
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxContextItems <= 0 {
		opts.MaxContextItems = defaultMaxContext
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = defaultMaxMessage
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = defaultMaxToolRounds
	}
	return &ChatService{
		prompts: p,
		llm:     llm,
		state:   s,
		tools:   tools,
		opts:    opts,
	}, nil
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len([]rune(message)) > s.opts.MaxMessageLength {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	prompt, err := s.ensurePrompt(ctx)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "prompt_load_error", err)
	}

	convID := s.opts.ConversationID
	history, err := s.state.GetHistory(ctx, convID, s.opts.MaxContextItems)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "history_read_error", err)
	}

	model := s.opts.Model
	if prompt.Model != "" {
		model = prompt.Model
	}

	answer, err := s.runAgent(ctx, model, buildPromptMessages(prompt, message, history))
	if err != nil {
		return ChatOutput{}, err
	}

	if err := s.state.SaveTurn(ctx, convID, message, answer); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "history_write_error", err)
	}

	event := log.Ctx(ctx).Info().Str("conversation_id", convID).Str("model", model)
	if turns, err := s.state.Turns(ctx, convID); err != nil {
		event = event.AnErr("turns_err", err)
	} else {
		event = event.Int("turns", turns)
	}
	event.Msg("turn saved")
	return ChatOutput{Response: answer}, nil
}

// runAgent calls the model, runs any tools it asks for and feeds the results
// back, until it answers in text or the round limit is hit.
func (s *ChatService) runAgent(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	var defs []domain.ToolDefinition
	if s.tools != nil {
		defs = s.tools.Definitions()
	}

	for round := 0; ; round++ {
		reply, err := s.llm.Chat(ctx, model, messages, defs)
		if err != nil {
			if status, ok := upstreamStatusCode(err); ok && status == 429 {
				return "", newError(ErrorRateLimited, "llm_rate_limited", err)
			}
			return "", newError(ErrorUpstream, "llm_error", err)
		}

		if len(reply.ToolCalls) == 0 {
			answer := strings.TrimSpace(reply.Content)
			if answer == "" {
				return "", newError(ErrorUpstream, "empty_reply", nil)
			}
			return answer, nil
		}
		if s.tools == nil {
			return "", newError(ErrorUpstream, "unexpected_tool_call", nil)
		}
		if round >= s.opts.MaxToolIterations {
			return "", newError(ErrorUpstream, "tool_loop_exhausted", nil)
		}

		reply.Role = domain.RoleAssistant
		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			log.Ctx(ctx).Debug().
				Str("tool", call.Name).
				Str("call_id", call.ID).
				Int("round", round).
				Msg("running tool")
			messages = append(messages, domain.ChatMessage{
				Role:       domain.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    s.tools.Run(ctx, call.Name, call.Arguments),
			})
		}
	}
}

// ensurePrompt loads the prompt once. A failed load is retried on the next
// call.
func (s *ChatService) ensurePrompt(ctx context.Context) (PromptContext, error) {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		p := s.prompt
		s.cacheMu.RUnlock()
		return p, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return s.prompt, nil
	}

	p, err := s.prompts.LoadPrompt(ctx)
	if err != nil {
		return PromptContext{}, err
	}
	s.prompt = p
	s.cacheLoaded = true
	return p, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
