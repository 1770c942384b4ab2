package history_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-studio/internal/app/history"
	"github.com/PabloGalante/farum-studio/internal/app/tools"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

func msg(role domain.Role, ts int64, text string) domain.Message {
	return domain.Message{
		Role:      role,
		Parts:     []domain.Part{{Text: text}},
		Display:   []domain.DisplayPart{{Kind: domain.DisplayText, Text: text}},
		Timestamp: ts,
	}
}

func sess(id string, created int64, msgs ...domain.Message) *domain.Session {
	all := append([]domain.Message{msg(domain.RoleModel, created, "welcome")}, msgs...)
	return &domain.Session{ID: domain.SessionID(id), UserID: "u", CreatedAt: created, Messages: all}
}

func texts(contents []domain.Content) []string {
	var out []string
	for _, c := range contents {
		for _, p := range c.Parts {
			out = append(out, string(c.Role)+":"+p.Text)
		}
	}
	return out
}

func TestAssemble_ContextThenActiveWithoutWelcome(t *testing.T) {
	collection := []*domain.Session{
		sess("c", 300, msg(domain.RoleUser, 301, "active q"), msg(domain.RoleModel, 302, "active a")),
		sess("b", 200, msg(domain.RoleUser, 201, "b q")),
		sess("a", 100, msg(domain.RoleUser, 101, "a q"), msg(domain.RoleModel, 102, "a a")),
	}

	req := history.Assemble(history.Input{
		ActiveID: "c",
		Sessions: collection,
		Context:  []domain.SessionID{"a", "b"},
	}, tools.Declarations(tools.NewFilesTool()))

	assert.Equal(t, []string{
		"user:b q",
		"user:a q", "model:a a",
		"user:active q", "model:active a",
	}, texts(req.History))
	assert.NotContains(t, texts(req.History), "model:welcome")

	require.Len(t, req.Tools.Functions, 1)
	assert.Equal(t, tools.FilesToolName, req.Tools.Functions[0].Name)
	assert.False(t, req.Tools.WebSearch)
	assert.NotEmpty(t, req.SystemInstruction)
}

func TestAssemble_WebSearchFlag(t *testing.T) {
	req := history.Assemble(history.Input{
		ActiveID:  "a",
		Sessions:  []*domain.Session{sess("a", 100)},
		WebSearch: true,
	}, nil)

	assert.True(t, req.Tools.WebSearch)
	assert.Empty(t, req.History)
	assert.Contains(t, req.SystemInstruction, "Web search")
}

func TestAssemble_SkipsPlaceholdersAndErrors(t *testing.T) {
	pending := domain.Message{Role: domain.RoleModel, Timestamp: 103, Generating: true}
	failed := domain.Message{
		Role:      domain.RoleModel,
		Timestamp: 104,
		Error:     true,
		Display:   []domain.DisplayPart{{Kind: domain.DisplayText, Text: "boom"}},
	}
	s := sess("a", 100, msg(domain.RoleUser, 101, "q"), failed, pending)

	req := history.Assemble(history.Input{ActiveID: "a", Sessions: []*domain.Session{s}}, nil)
	assert.Equal(t, []string{"user:q"}, texts(req.History))
}

func TestSessionHistory_Empty(t *testing.T) {
	assert.Nil(t, history.SessionHistory(nil))
	assert.Nil(t, history.SessionHistory(sess("a", 1)))
}

func TestAssemble_ActiveSessionSelectedAsContextIsSentOnce(t *testing.T) {
	collection := []*domain.Session{
		sess("b", 200, msg(domain.RoleUser, 201, "b q")),
		sess("a", 100, msg(domain.RoleUser, 101, "a q")),
	}

	req := history.Assemble(history.Input{
		ActiveID: "b",
		Sessions: collection,
		Context:  []domain.SessionID{"a", "b"},
	}, nil)

	assert.Equal(t, []string{"user:a q", "user:b q"}, texts(req.History))
}
