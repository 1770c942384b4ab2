package tools

import (
	"context"

	"github.com/PabloGalante/farum-studio/internal/domain"
)

// ToolContext brings metadata of the call to the tool
type ToolContext struct {
	UserID    string
	SessionID string
	RequestID string
}

// Tool represents a function the model can call.
// input/output is a generic map to maintain flexibility.
type Tool interface {
	Name() string
	Declaration() domain.FunctionDeclaration
	Call(ctx context.Context, tctx ToolContext, input map[string]any) (map[string]any, error)
}

// Declarations collects the function declarations of the given tools.
func Declarations(tools ...Tool) []domain.FunctionDeclaration {
	out := make([]domain.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Declaration())
	}
	return out
}
