package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler adapts the chat API to API Gateway proxy events.
type Handler struct {
	uc ChatUseCase
}

func NewHandler(uc ChatUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = newCorrelationID()
	}
	logger := log.With().
		Str("correlation_id", correlationID).
		Str("path", event.Path).
		Logger()
	ctx = logger.WithContext(ctx)

	headers := map[string]string{
		"Content-Type":                "application/json",
		"Access-Control-Allow-Origin": "*",
		correlationHeader:             correlationID,
	}

	if event.HTTPMethod == http.MethodOptions {
		headers["Access-Control-Allow-Methods"] = "POST, OPTIONS"
		headers["Access-Control-Allow-Headers"] = "Content-Type, " + correlationHeader
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: headers}, nil
	}
	if event.HTTPMethod != "" && event.HTTPMethod != http.MethodPost {
		return respond(http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"}, headers), nil
	}

	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := decodeBase64(body)
		if err != nil {
			return respond(http.StatusBadRequest, errorResponse{Error: "Invalid request body"}, headers), nil
		}
		body = decoded
	}

	status, payload := serveChat(ctx, h.uc, []byte(body))
	logger.Info().Int("status", status).Msg("chat request handled")
	return respond(status, payload, headers), nil
}

func respond(status int, payload any, headers map[string]string) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"Internal error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(raw),
	}
}

// headerValue looks a header up case-insensitively; API Gateway passes
// headers through with whatever casing the client used.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var newCorrelationID = func() string {
	return uuid.NewString()
}

func decodeBase64(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
