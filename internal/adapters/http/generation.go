package httpadapter

import (
	"net/http"
	"strconv"

	"github.com/PabloGalante/farum-studio/internal/app/conversation"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

// attachmentRequest carries base64 data, decoded by encoding/json.
type attachmentRequest struct {
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type sendMessageRequest struct {
	Text        string              `json:"text"`
	Attachments []attachmentRequest `json:"attachments,omitempty"`
}

type imageRequest struct {
	Prompt      string              `json:"prompt"`
	Attachments []attachmentRequest `json:"attachments,omitempty"`
}

type videoRequest struct {
	Prompt          string              `json:"prompt"`
	StartImage      *attachmentRequest  `json:"start_image,omitempty"`
	EndImage        *attachmentRequest  `json:"end_image,omitempty"`
	ReferenceImages []attachmentRequest `json:"reference_images,omitempty"`
	Resolution      string              `json:"resolution,omitempty"`
	AspectRatio     string              `json:"aspect_ratio,omitempty"`
}

type speechRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Role         string               `json:"role"`
	Timestamp    int64                `json:"timestamp"`
	Text         string               `json:"text"`
	Display      []domain.DisplayPart `json:"display"`
	Error        bool                 `json:"error,omitempty"`
	Generating   bool                 `json:"generating,omitempty"`
	CreditError  bool                 `json:"credit_error,omitempty"`
	Progress     string               `json:"progress,omitempty"`
	FunctionCall *domain.FunctionCall `json:"function_call,omitempty"`
	Sources      []domain.Source      `json:"sources,omitempty"`
}

type generationResponse struct {
	SessionID    string          `json:"session_id"`
	UserMessage  messageResponse `json:"user_message"`
	ModelMessage messageResponse `json:"model_message"`
}

type listMessagesResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []messageResponse `json:"messages"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

// handleListMessages returns the active session, or ?session_id= when given.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	id := domain.SessionID(r.URL.Query().Get("session_id"))
	var msgs []domain.Message
	if id == "" {
		id = ws.Sessions.ActiveID()
		msgs = ws.Sessions.ActiveMessages()
	} else {
		sess, found := ws.Sessions.Session(id)
		if !found {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "session " + string(id) + " not found"})
			return
		}
		msgs = sess.Messages
	}

	resp := listMessagesResponse{SessionID: string(id), Messages: make([]messageResponse, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !decode(w, r, &req) {
		return
	}

	out, err := ws.Conversation.SendMessage(r.Context(), conversation.SendMessageInput{
		Text:        req.Text,
		Attachments: toAttachments(req.Attachments),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGenerationResponse(out))
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req imageRequest
	if !decode(w, r, &req) {
		return
	}

	out, err := ws.Conversation.GenerateImage(r.Context(), conversation.ImageInput{
		Prompt:      req.Prompt,
		Attachments: toAttachments(req.Attachments),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGenerationResponse(out))
}

// handleGenerateVideo answers 202 with the placeholder; the job keeps
// polling after the response is written.
func (s *Server) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req videoRequest
	if !decode(w, r, &req) {
		return
	}

	out, err := ws.Conversation.StartVideoGeneration(r.Context(), conversation.VideoInput{
		Prompt:          req.Prompt,
		StartImage:      toAttachment(req.StartImage),
		EndImage:        toAttachment(req.EndImage),
		ReferenceImages: toAttachments(req.ReferenceImages),
		Resolution:      req.Resolution,
		AspectRatio:     req.AspectRatio,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toGenerationResponse(out))
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req speechRequest
	if !decode(w, r, &req) {
		return
	}

	blob, err := ws.Conversation.Speak(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", blob.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

// ─────────────────────────────────────────────
// Conversion Helpers
// ─────────────────────────────────────────────

func toAttachment(a *attachmentRequest) *conversation.Attachment {
	if a == nil {
		return nil
	}
	return &conversation.Attachment{FileName: a.FileName, MIMEType: a.MIMEType, Data: a.Data}
}

func toAttachments(in []attachmentRequest) []conversation.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]conversation.Attachment, 0, len(in))
	for i := range in {
		out = append(out, *toAttachment(&in[i]))
	}
	return out
}

func toMessageResponse(m domain.Message) messageResponse {
	display := m.Display
	if display == nil {
		display = []domain.DisplayPart{}
	}
	return messageResponse{
		Role:         string(m.Role),
		Timestamp:    m.Timestamp,
		Text:         m.DisplayText(),
		Display:      display,
		Error:        m.Error,
		Generating:   m.Generating,
		CreditError:  m.CreditError,
		Progress:     m.Progress,
		FunctionCall: m.FunctionCall,
		Sources:      m.Sources,
	}
}

func toGenerationResponse(out *conversation.GenerationOutput) generationResponse {
	return generationResponse{
		SessionID:    string(out.SessionID),
		UserMessage:  toMessageResponse(out.User),
		ModelMessage: toMessageResponse(out.Model),
	}
}
