// Package tools holds the functions the assistant may call while answering.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"atlas-widget/internal/domain"
)

// Tool is one callable function. Failures are reported in the returned text
// so the model can explain them.
type Tool interface {
	Def() domain.ToolDefinition
	Run(ctx context.Context, args json.RawMessage) string
}

type Registry struct {
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Def().Name] = t
}

// Definitions returns every tool definition sorted by name.
func (r *Registry) Definitions() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Def())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (r *Registry) Run(ctx context.Context, name, args string) string {
	t, ok := r.tools[name]
	if !ok {
		log.Warn().Str("tool", name).Msg("unknown tool requested")
		return fmt.Sprintf("Error: unknown tool '%s'", name)
	}
	raw := json.RawMessage(args)
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	out := t.Run(ctx, raw)
	log.Debug().Str("tool", name).Int("result_bytes", len(out)).Msg("tool finished")
	return out
}
