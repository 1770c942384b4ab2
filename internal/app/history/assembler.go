package history

import (
	"github.com/PabloGalante/farum-studio/internal/domain"
)

// Input is what the upstream history is derived from.
type Input struct {
	ActiveID  domain.SessionID
	Sessions  []*domain.Session // collection order, newest first
	Context   []domain.SessionID
	WebSearch bool
}

// Assemble builds the request for a fresh upstream chat: the history of
// every context session in collection order, then the active session's.
// Each session's first message is the seeded welcome and is never sent.
func Assemble(in Input, functions []domain.FunctionDeclaration) domain.ChatRequest {
	selected := make(map[domain.SessionID]bool, len(in.Context))
	for _, id := range in.Context {
		selected[id] = true
	}

	var contextHistory []domain.Content
	var active *domain.Session
	for _, s := range in.Sessions {
		// The active session is appended last even when it is also selected.
		if selected[s.ID] && s.ID != in.ActiveID {
			contextHistory = append(contextHistory, SessionHistory(s)...)
		}
		if s.ID == in.ActiveID {
			active = s
		}
	}

	history := contextHistory
	if active != nil {
		history = append(history, SessionHistory(active)...)
	}

	return domain.ChatRequest{
		SystemInstruction: BuildSystemInstruction(in.WebSearch),
		History:           history,
		Tools: domain.ToolSet{
			Functions: functions,
			WebSearch: in.WebSearch,
		},
	}
}

// SessionHistory maps a session's messages, minus the welcome message, to
// upstream turns. Placeholders still generating and turns without API
// content, such as inline error notices, are left out.
func SessionHistory(s *domain.Session) []domain.Content {
	if s == nil || len(s.Messages) <= 1 {
		return nil
	}

	out := make([]domain.Content, 0, len(s.Messages)-1)
	for _, m := range s.Messages[1:] {
		if m.Generating || m.Error || len(m.Parts) == 0 {
			continue
		}
		out = append(out, domain.Content{
			Role:  m.Role,
			Parts: append([]domain.Part(nil), m.Parts...),
		})
	}
	return out
}
