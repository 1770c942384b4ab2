package tools

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/PabloGalante/farum-studio/internal/domain"
)

const FilesToolName = "create_files"

// GeneratedFile is one file the model produced through create_files.
type GeneratedFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// FilesTool lets the model return a set of files instead of one long text
// answer. Packaging the files is left to the caller.
type FilesTool struct{}

func NewFilesTool() *FilesTool {
	return &FilesTool{}
}

func (t *FilesTool) Name() string {
	return FilesToolName
}

func (t *FilesTool) Declaration() domain.FunctionDeclaration {
	return domain.FunctionDeclaration{
		Name:        FilesToolName,
		Description: "Create one or more files for the user, e.g. a multi-file project. Use it whenever the answer is code spread across several files.",
		Parameters: &domain.Schema{
			Type: "object",
			Properties: map[string]*domain.Schema{
				"files": {
					Type:        "array",
					Description: "Files to create.",
					Items: &domain.Schema{
						Type: "object",
						Properties: map[string]*domain.Schema{
							"filename": {Type: "string", Description: "Relative path, e.g. src/main.go"},
							"content":  {Type: "string", Description: "Full file content."},
						},
						Required: []string{"filename", "content"},
					},
				},
			},
			Required: []string{"files"},
		},
	}
}

// Call expects an input with this shape:
//
//	{
//	  "files": [
//	    {"filename": "main.go", "content": "package main ..."}
//	  ]
//	}
func (t *FilesTool) Call(
	ctx context.Context,
	tctx ToolContext,
	input map[string]any,
) (map[string]any, error) {
	files := ParseFiles(input)
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: no files in input", FilesToolName)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Filename)
	}

	return map[string]any{
		"status":      "ok",
		"session_id":  tctx.SessionID,
		"files_count": len(files),
		"filenames":   names,
	}, nil
}

// ParseFiles reads the files argument of a create_files call. Entries
// without a filename are skipped.
func ParseFiles(input map[string]any) []GeneratedFile {
	raw, ok := input["files"]
	if !ok || raw == nil {
		return nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	var files []GeneratedFile
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		name := getString(obj, "filename")
		if name == "" {
			continue
		}

		files = append(files, GeneratedFile{
			Filename: name,
			Content:  getString(obj, "content"),
		})
	}
	return files
}

// DisplayParts renders generated files as file attachments.
func DisplayParts(files []GeneratedFile) []domain.DisplayPart {
	out := make([]domain.DisplayPart, 0, len(files))
	for _, f := range files {
		mt := mime.TypeByExtension(filepath.Ext(f.Filename))
		if mt == "" {
			mt = "text/plain"
		}
		out = append(out, domain.DisplayPart{
			Kind:     domain.DisplayFile,
			FileName: f.Filename,
			MIMEType: mt,
			Text:     f.Content,
		})
	}
	return out
}

// --- internal helpers --- //

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
