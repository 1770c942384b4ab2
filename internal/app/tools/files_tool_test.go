package tools_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-studio/internal/app/tools"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

func filesInput() map[string]any {
	return map[string]any{
		"files": []any{
			map[string]any{"filename": "main.go", "content": "package main"},
			map[string]any{"content": "orphan"},
			"garbage",
			map[string]any{"filename": "README.md", "content": "# hi"},
		},
	}
}

func TestParseFiles(t *testing.T) {
	files := tools.ParseFiles(filesInput())
	require.Len(t, files, 2)
	assert.Equal(t, tools.GeneratedFile{Filename: "main.go", Content: "package main"}, files[0])
	assert.Equal(t, "README.md", files[1].Filename)

	assert.Nil(t, tools.ParseFiles(map[string]any{"files": "nope"}))
	assert.Nil(t, tools.ParseFiles(nil))
}

func TestFilesTool_Call(t *testing.T) {
	tool := tools.NewFilesTool()

	out, err := tool.Call(context.Background(), tools.ToolContext{SessionID: "s1"}, filesInput())
	require.NoError(t, err)
	assert.Equal(t, 2, out["files_count"])
	assert.Equal(t, []string{"main.go", "README.md"}, out["filenames"])

	_, err = tool.Call(context.Background(), tools.ToolContext{}, map[string]any{})
	assert.Error(t, err)
}

func TestFilesTool_Declaration(t *testing.T) {
	decls := tools.Declarations(tools.NewFilesTool())
	require.Len(t, decls, 1)
	assert.Equal(t, tools.FilesToolName, decls[0].Name)
	assert.Equal(t, []string{"files"}, decls[0].Parameters.Required)
	assert.Equal(t, "array", decls[0].Parameters.Properties["files"].Type)
}

func TestDisplayParts(t *testing.T) {
	parts := tools.DisplayParts([]tools.GeneratedFile{{Filename: "notes", Content: "x"}})
	require.Len(t, parts, 1)
	assert.Equal(t, domain.DisplayFile, parts[0].Kind)
	assert.Equal(t, "text/plain", parts[0].MIMEType)
}
