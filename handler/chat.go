package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"atlas-widget/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 64 << 10
	msgNoMessage      = "No message provided"
)

// ChatUseCase is satisfied by *usecase.ChatService.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type chatRequest struct {
	Message *string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// serveChat is the transport-independent body of POST /api/chat.
func serveChat(ctx context.Context, uc ChatUseCase, body []byte) (int, any) {
	logger := zerolog.Ctx(ctx)

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Debug().Err(err).Msg("invalid chat request body")
		return http.StatusBadRequest, errorResponse{Error: "Invalid request body"}
	}
	if req.Message == nil || strings.TrimSpace(*req.Message) == "" {
		return http.StatusBadRequest, errorResponse{Error: msgNoMessage}
	}

	out, err := uc.Chat(ctx, usecase.ChatInput{Message: *req.Message})
	if err != nil {
		status, msg := mapError(err)
		ev := logger.Warn()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		var uerr *usecase.Error
		if errors.As(err, &uerr) {
			ev = ev.Str("code", string(uerr.Code)).Str("reason", uerr.Reason)
		}
		ev.Err(err).Int("status", status).Msg("chat request failed")
		return status, errorResponse{Error: msg}
	}
	return http.StatusOK, chatResponse{Response: out.Response}
}

func mapError(err error) (int, string) {
	var uerr *usecase.Error
	if !errors.As(err, &uerr) {
		return http.StatusInternalServerError, "Internal error"
	}
	switch uerr.Code {
	case usecase.ErrorInvalidInput:
		if uerr.Reason == "empty_message" {
			return http.StatusBadRequest, msgNoMessage
		}
		if uerr.Reason == "message_too_long" {
			return http.StatusBadRequest, "Message is too long"
		}
		return http.StatusBadRequest, "Invalid message"
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, "The model is busy right now. Please try again shortly."
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, "The model request failed"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// ErrorMessage is the user-facing text the chat API reports for err.
func ErrorMessage(err error) string {
	_, msg := mapError(err)
	return msg
}
