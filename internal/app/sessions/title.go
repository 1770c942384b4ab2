package sessions

import (
	"strings"

	"github.com/PabloGalante/farum-studio/internal/domain"
)

const (
	DefaultTitle   = "New Chat"
	FallbackTitle  = "Untitled Chat"
	MaxTitleLength = 30

	WelcomeText = "Hello! I'm Farum. Ask me anything, attach files, or switch to image and video generation."
)

// NewSeededSession returns a session holding only the welcome message.
func NewSeededSession(userID domain.UserID, clock *Clock) *domain.Session {
	created := clock.Next()
	return &domain.Session{
		ID:        domain.SessionID(formatID(created)),
		UserID:    userID,
		Title:     DefaultTitle,
		CreatedAt: created,
		Messages: []domain.Message{{
			Role:      domain.RoleModel,
			Parts:     []domain.Part{{Text: WelcomeText}},
			Display:   []domain.DisplayPart{{Kind: domain.DisplayText, Text: WelcomeText}},
			Timestamp: clock.Next(),
		}},
	}
}

// DeriveTitle builds a session title from the first user message.
func DeriveTitle(m domain.Message) string {
	text := m.DisplayText()
	if text == "" {
		for _, p := range m.Parts {
			if p.Text != "" {
				text = p.Text
				break
			}
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackTitle
	}

	runes := []rune(text)
	if len(runes) > MaxTitleLength {
		return string(runes[:MaxTitleLength]) + "..."
	}
	return text
}

func firstUserMessage(msgs []domain.Message) (domain.Message, bool) {
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			return m, true
		}
	}
	return domain.Message{}, false
}
