package usecase

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"atlas-widget/internal/domain"
	"atlas-widget/internal/integrations/openai"
)

type mockPrompts struct {
	prompt    PromptContext
	err       error
	failOnce  bool
	callCount int
}

func (m *mockPrompts) LoadPrompt(_ context.Context) (PromptContext, error) {
	m.callCount++
	if m.failOnce {
		m.failOnce = false
		return PromptContext{}, errors.New("temporary ssm failure")
	}
	return m.prompt, m.err
}

type llmCall struct {
	model    string
	messages []domain.ChatMessage
	tools    []domain.ToolDefinition
}

type mockLLM struct {
	responses []domain.ChatMessage
	err       error
	calls     []llmCall
}

func (m *mockLLM) Chat(_ context.Context, model string, messages []domain.ChatMessage, tools []domain.ToolDefinition) (domain.ChatMessage, error) {
	m.calls = append(m.calls, llmCall{
		model:    model,
		messages: append([]domain.ChatMessage(nil), messages...),
		tools:    tools,
	})
	if m.err != nil {
		return domain.ChatMessage{}, m.err
	}
	if len(m.responses) == 0 {
		return domain.ChatMessage{}, errors.New("no llm response configured")
	}
	next := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return next, nil
}

type savedTurn struct {
	convID, question, answer string
}

type mockState struct {
	history      []domain.Message
	historyErr   error
	saveErr      error
	saved        []savedTurn
	historyLimit int
	historyConv  string
	turnsErr     error
}

func (m *mockState) GetHistory(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	m.historyConv = conversationID
	m.historyLimit = limit
	return m.history, m.historyErr
}

func (m *mockState) SaveTurn(_ context.Context, conversationID, question, answer string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, savedTurn{conversationID, question, answer})
	return nil
}

func (m *mockState) Turns(_ context.Context, _ string) (int, error) {
	if m.turnsErr != nil {
		return 0, m.turnsErr
	}
	return len(m.saved), nil
}

type toolRun struct {
	name, args string
}

type mockTools struct {
	result string
	runs   []toolRun
}

func (m *mockTools) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{{Name: "get_crypto_conversion"}}
}

func (m *mockTools) Run(_ context.Context, name, args string) string {
	m.runs = append(m.runs, toolRun{name, args})
	return m.result
}

func text(s string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleAssistant, Content: s}
}

func toolCall(id, args string) domain.ChatMessage {
	return domain.ChatMessage{
		Role:      domain.RoleAssistant,
		ToolCalls: []domain.ToolCall{{ID: id, Name: "get_crypto_conversion", Arguments: args}},
	}
}

func newService(t *testing.T, llm *mockLLM, state *mockState, tools ToolRunner, opts Options) (*ChatService, *mockPrompts) {
	t.Helper()
	prompts := &mockPrompts{prompt: PromptContext{SystemPrompt: "You are Atlas.", KnowledgeBase: "BTC is Bitcoin."}}
	svc, err := NewChatService(prompts, llm, state, tools, opts)
	require.NoError(t, err)
	return svc, prompts
}

func requireCode(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, code, uerr.Code)
	require.Equal(t, reason, uerr.Reason)
}

func TestNewChatService_Validation(t *testing.T) {
	_, err := NewChatService(nil, &mockLLM{}, &mockState{}, nil, Options{})
	require.ErrorContains(t, err, "prompt loader")
	_, err = NewChatService(&mockPrompts{}, nil, &mockState{}, nil, Options{})
	require.ErrorContains(t, err, "llm client")
	_, err = NewChatService(&mockPrompts{}, &mockLLM{}, nil, nil, Options{})
	require.ErrorContains(t, err, "state store")
}

func TestNewChatService_Defaults(t *testing.T) {
	svc, _ := newService(t, &mockLLM{}, &mockState{}, nil, Options{})
	require.Equal(t, DefaultConversationID, svc.opts.ConversationID)
	require.Equal(t, DefaultModel, svc.opts.Model)
	require.Equal(t, defaultMaxContext, svc.opts.MaxContextItems)
	require.Equal(t, defaultMaxMessage, svc.opts.MaxMessageLength)
	require.Equal(t, defaultMaxToolRounds, svc.opts.MaxToolIterations)
}

func TestChat_HappyPath(t *testing.T) {
	llm := &mockLLM{responses: []domain.ChatMessage{text("  Bitcoin is a cryptocurrency.  ")}}
	state := &mockState{history: []domain.Message{
		{Text: "hi", Answer: "Hello! I am Atlas.", Status: statusComplete},
		{Text: "pending", Answer: "", Status: "pending"},
	}}
	svc, _ := newService(t, llm, state, nil, Options{ConversationID: "desk", MaxContextItems: 6})

	out, err := svc.Chat(context.Background(), ChatInput{Message: "  What is BTC? "})
	require.NoError(t, err)
	require.Equal(t, "Bitcoin is a cryptocurrency.", out.Response)

	require.Equal(t, "desk", state.historyConv)
	require.Equal(t, 6, state.historyLimit)
	require.Equal(t, []savedTurn{{"desk", "What is BTC?", "Bitcoin is a cryptocurrency."}}, state.saved)

	require.Len(t, llm.calls, 1)
	call := llm.calls[0]
	require.Equal(t, DefaultModel, call.model)
	require.Nil(t, call.tools)
	require.Len(t, call.messages, 4)
	require.Equal(t, domain.RoleSystem, call.messages[0].Role)
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "hi"}, call.messages[1])
	require.Equal(t, domain.ChatMessage{Role: domain.RoleAssistant, Content: "Hello! I am Atlas."}, call.messages[2])
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "What is BTC?"}, call.messages[3])
}

func TestChat_ModelFromPromptOverridesOption(t *testing.T) {
	llm := &mockLLM{responses: []domain.ChatMessage{text("ok")}}
	prompts := &mockPrompts{prompt: PromptContext{SystemPrompt: "x", Model: "openai/gpt-4o-mini"}}
	svc, err := NewChatService(prompts, llm, &mockState{}, nil, Options{Model: "other"})
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), ChatInput{Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "openai/gpt-4o-mini", llm.calls[0].model)
}

func TestChat_LogsTurnCountAndEffectiveModel(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	llm := &mockLLM{responses: []domain.ChatMessage{text("ok")}}
	prompts := &mockPrompts{prompt: PromptContext{SystemPrompt: "x", Model: "openai/gpt-4o-mini"}}
	state := &mockState{}
	svc, err := NewChatService(prompts, llm, state, nil, Options{Model: "other"})
	require.NoError(t, err)

	_, err = svc.Chat(ctx, ChatInput{Message: "hi"})
	require.NoError(t, err)
	_, err = svc.Chat(ctx, ChatInput{Message: "again"})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, `"model":"openai/gpt-4o-mini"`)
	require.NotContains(t, out, `"model":"other"`)
	require.Contains(t, out, `"turns":1`)
	require.Contains(t, out, `"turns":2`)
}

func TestChat_TurnCountFailureDoesNotFailReply(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	llm := &mockLLM{responses: []domain.ChatMessage{text("ok")}}
	svc, _ := newService(t, llm, &mockState{turnsErr: errors.New("throttled")}, nil, Options{})

	out, err := svc.Chat(ctx, ChatInput{Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "ok", out.Response)
	require.Contains(t, buf.String(), `"turns_err":"throttled"`)
}

func TestChat_InputValidation(t *testing.T) {
	llm := &mockLLM{}
	svc, prompts := newService(t, llm, &mockState{}, nil, Options{MaxMessageLength: 5})

	_, err := svc.Chat(context.Background(), ChatInput{Message: " \n\t "})
	requireCode(t, err, ErrorInvalidInput, "empty_message")

	_, err = svc.Chat(context.Background(), ChatInput{Message: "toolong"})
	requireCode(t, err, ErrorInvalidInput, "message_too_long")

	require.Empty(t, llm.calls)
	require.Zero(t, prompts.callCount)

	// length counts characters, not bytes
	_, err = svc.Chat(context.Background(), ChatInput{Message: strings.Repeat("é", 5)})
	requireCode(t, err, ErrorUpstream, "llm_error")
	require.Len(t, llm.calls, 1)
}

func TestChat_ToolLoop(t *testing.T) {
	llm := &mockLLM{responses: []domain.ChatMessage{
		toolCall("call_1", `{"from_coin":"BTC","to_coin":"USD","amount":0.5}`),
		text("0.5 BTC is about 32,000 USD."),
	}}
	tools := &mockTools{result: `{"result":32000}`}
	state := &mockState{}
	svc, _ := newService(t, llm, state, tools, Options{})

	out, err := svc.Chat(context.Background(), ChatInput{Message: "Convert 0.5 BTC to USD"})
	require.NoError(t, err)
	require.Equal(t, "0.5 BTC is about 32,000 USD.", out.Response)

	require.Equal(t, []toolRun{{"get_crypto_conversion", `{"from_coin":"BTC","to_coin":"USD","amount":0.5}`}}, tools.runs)
	require.Len(t, llm.calls, 2)
	require.Len(t, llm.calls[0].tools, 1)

	second := llm.calls[1].messages
	require.Len(t, second, 4)
	require.Equal(t, domain.RoleAssistant, second[2].Role)
	require.Equal(t, "call_1", second[2].ToolCalls[0].ID)
	require.Equal(t, domain.ChatMessage{
		Role:       domain.RoleTool,
		ToolCallID: "call_1",
		Name:       "get_crypto_conversion",
		Content:    `{"result":32000}`,
	}, second[3])

	require.Len(t, state.saved, 1)
	require.Equal(t, "Convert 0.5 BTC to USD", state.saved[0].question)
}

func TestChat_ToolLoopExhausted(t *testing.T) {
	llm := &mockLLM{responses: []domain.ChatMessage{toolCall("loop", `{}`)}}
	tools := &mockTools{result: "again"}
	state := &mockState{}
	svc, _ := newService(t, llm, state, tools, Options{MaxToolIterations: 2})

	_, err := svc.Chat(context.Background(), ChatInput{Message: "spin"})
	requireCode(t, err, ErrorUpstream, "tool_loop_exhausted")
	require.Len(t, llm.calls, 3)
	require.Len(t, tools.runs, 2)
	require.Empty(t, state.saved)
}

func TestChat_ToolCallWithoutRegistry(t *testing.T) {
	llm := &mockLLM{responses: []domain.ChatMessage{toolCall("c", `{}`)}}
	svc, _ := newService(t, llm, &mockState{}, nil, Options{})
	_, err := svc.Chat(context.Background(), ChatInput{Message: "hi"})
	requireCode(t, err, ErrorUpstream, "unexpected_tool_call")
}

func TestChat_EmptyReply(t *testing.T) {
	llm := &mockLLM{responses: []domain.ChatMessage{text("   ")}}
	svc, _ := newService(t, llm, &mockState{}, nil, Options{})
	_, err := svc.Chat(context.Background(), ChatInput{Message: "hi"})
	requireCode(t, err, ErrorUpstream, "empty_reply")
}

func TestChat_UpstreamErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   ErrorCode
		reason string
	}{
		{"rate limited", &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests}, ErrorRateLimited, "llm_rate_limited"},
		{"server error", &openai.HTTPStatusError{StatusCode: http.StatusBadGateway}, ErrorUpstream, "llm_error"},
		{"network", errors.New("connection reset"), ErrorUpstream, "llm_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newService(t, &mockLLM{err: tc.err}, &mockState{}, nil, Options{})
			_, err := svc.Chat(context.Background(), ChatInput{Message: "hi"})
			requireCode(t, err, tc.code, tc.reason)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestChat_StateErrors(t *testing.T) {
	svc, _ := newService(t, &mockLLM{}, &mockState{historyErr: errors.New("dynamo down")}, nil, Options{})
	_, err := svc.Chat(context.Background(), ChatInput{Message: "hi"})
	requireCode(t, err, ErrorInternal, "history_read_error")

	svc, _ = newService(t, &mockLLM{responses: []domain.ChatMessage{text("ok")}}, &mockState{saveErr: errors.New("conditional check failed")}, nil, Options{})
	_, err = svc.Chat(context.Background(), ChatInput{Message: "hi"})
	requireCode(t, err, ErrorInternal, "history_write_error")
}

func TestChat_PromptLoadedOnceAndRetriedAfterFailure(t *testing.T) {
	llm := &mockLLM{responses: []domain.ChatMessage{text("ok")}}
	svc, prompts := newService(t, llm, &mockState{}, nil, Options{})
	prompts.failOnce = true

	_, err := svc.Chat(context.Background(), ChatInput{Message: "hi"})
	requireCode(t, err, ErrorInternal, "prompt_load_error")

	for i := 0; i < 3; i++ {
		_, err = svc.Chat(context.Background(), ChatInput{Message: "hi"})
		require.NoError(t, err)
	}
	require.Equal(t, 2, prompts.callCount)
}

func TestError_Formatting(t *testing.T) {
	require.Equal(t, "usecase: INVALID_INPUT (empty_message)", newError(ErrorInvalidInput, "empty_message", nil).Error())
	wrapped := newError(ErrorUpstream, "llm_error", errors.New("boom"))
	require.Equal(t, "usecase: UPSTREAM_ERROR (llm_error): boom", wrapped.Error())

	var nilErr *Error
	require.Empty(t, nilErr.Error())
	require.Nil(t, nilErr.Unwrap())
}
