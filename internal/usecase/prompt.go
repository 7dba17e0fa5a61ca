package usecase

import (
	"strings"

	"atlas-widget/internal/domain"
)

// FallbackSystemPrompt is used when the prompt files cannot be found.
const FallbackSystemPrompt = "You are a crypto assistant."

const knowledgeBaseHeader = "### KNOWLEDGE BASE ###"

const plainLanguageRule = "CRITICAL: You are a friendly AI. Never output raw JSON or tool-call syntax directly to the user. " +
	"Always wait for the tool output and then explain it in natural language. " +
	`If you are about to output something like '{"name": ...}', STOP and rewrite it as a natural sentence.`

// PromptContext is everything the system message is built from.
type PromptContext struct {
	SystemPrompt  string
	KnowledgeBase string
	// Model overrides the service's configured model when set.
	Model string
}

func buildPromptMessages(p PromptContext, message string, history []domain.Message) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildSystemContext(p)},
	}
	for _, m := range history {
		messages = append(messages, historyToPromptMessages(m)...)
	}
	return append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: message,
	})
}

func buildSystemContext(p PromptContext) string {
	system := strings.TrimSpace(p.SystemPrompt)
	if system == "" {
		system = FallbackSystemPrompt
	}
	if kb := strings.TrimSpace(p.KnowledgeBase); kb != "" {
		system += "\n\n" + knowledgeBaseHeader + "\n" + kb
	}
	return system + "\n\n" + plainLanguageRule
}

func historyToPromptMessages(m domain.Message) []domain.ChatMessage {
	if m.Status != "" && m.Status != statusComplete {
		return nil
	}
	question := strings.TrimSpace(m.Text)
	answer := strings.TrimSpace(m.Answer)
	if question == "" || answer == "" {
		return nil
	}
	return []domain.ChatMessage{
		{Role: domain.RoleUser, Content: question},
		{Role: domain.RoleAssistant, Content: answer},
	}
}
