package conversation

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PabloGalante/farum-studio/internal/app/history"
	"github.com/PabloGalante/farum-studio/internal/app/sessions"
	"github.com/PabloGalante/farum-studio/internal/app/tools"
	"github.com/PabloGalante/farum-studio/internal/domain"
	"github.com/PabloGalante/farum-studio/internal/observability"
)

const (
	creditErrorText  = "You have run out of API credits or hit a rate limit. Check your plan and billing, then try again."
	genericErrorText = "Sorry, something went wrong: "

	defaultPollInterval = 10 * time.Second
)

// Credentials is the part of the key store the service needs.
type Credentials interface {
	ChatKey(ctx context.Context) (string, error)
	VideoKey(ctx context.Context) (string, error)
}

// Service sends user turns upstream and writes the replies into the
// workspace. Replies are written by (session, timestamp), so a reply that
// arrives after the user switched sessions still lands in its own session.
type Service struct {
	sessions     *sessions.Manager
	binder       *history.Binder
	gen          domain.Generator
	creds        Credentials
	filesTool    *tools.FilesTool
	pollInterval time.Duration
}

type Option func(*Service)

// WithPollInterval sets how often a video job is polled.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

func NewService(
	manager *sessions.Manager,
	binder *history.Binder,
	gen domain.Generator,
	creds Credentials,
	opts ...Option,
) *Service {
	s := &Service{
		sessions:     manager,
		binder:       binder,
		gen:          gen,
		creds:        creds,
		filesTool:    tools.NewFilesTool(),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attachment is a file the user sent along with a turn.
type Attachment struct {
	FileName string
	MIMEType string
	Data     []byte
}

type SendMessageInput struct {
	Text        string
	Attachments []Attachment
}

// GenerationOutput describes the turn pair written for one request. Model
// may still be generating when the work continues in the background.
type GenerationOutput struct {
	SessionID domain.SessionID
	User      domain.Message
	Model     domain.Message
}

// CanSend reports whether an upstream chat is available for the active
// session; the UI disables sending while it is not.
func (s *Service) CanSend(ctx context.Context) bool {
	_, err := s.binder.Handle(ctx, s.sessions.Snapshot())
	return err == nil
}

// SendMessage streams a chat reply for the active session. Upstream failures
// are recorded on the reply turn and do not surface as an error.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*GenerationOutput, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Attachments) == 0 {
		return nil, fmt.Errorf("message is empty: %w", domain.ErrInvalidInput)
	}

	snap := s.sessions.Snapshot()
	handle, err := s.binder.Handle(ctx, snap)
	if err != nil {
		return nil, err
	}

	sessionID := snap.ActiveID
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	userMsg := s.userMessage(in.Text, in.Attachments)
	placeholder := domain.Message{
		Role:       domain.RoleModel,
		Timestamp:  s.sessions.NextTimestamp(),
		Generating: true,
	}
	if err := s.sessions.UpdateMessages(ctx, sessionID, sessions.AppendMessages(userMsg, placeholder)); err != nil {
		return nil, err
	}
	log.Info("sending message", "attachments", len(in.Attachments))

	var (
		text    strings.Builder
		call    *domain.FunctionCall
		sources []domain.Source
	)

	for chunk, err := range handle.SendStream(ctx, userMsg.Parts) {
		if err != nil {
			s.fail(ctx, log, "chat", sessionID, placeholder.Timestamp, err)
			return s.output(sessionID, userMsg, placeholder.Timestamp), nil
		}

		text.WriteString(chunk.Text)
		if chunk.FunctionCall != nil {
			call = chunk.FunctionCall
		}
		sources = mergeSources(sources, chunk.Sources)

		cumulative := text.String()
		fc, srcs := call, append([]domain.Source(nil), sources...)
		s.update(ctx, log, sessionID, placeholder.Timestamp, func(m *domain.Message) {
			m.Parts, m.Display = s.replyContent(cumulative, fc)
			m.FunctionCall = fc
			m.Sources = srcs
		})
	}

	s.update(ctx, log, sessionID, placeholder.Timestamp, func(m *domain.Message) {
		m.Generating = false
	})
	observability.Generations.WithLabelValues("chat", "ok").Inc()
	log.Info("send message completed", "reply_chars", text.Len())

	return s.output(sessionID, userMsg, placeholder.Timestamp), nil
}

// replyContent renders the accumulated reply. A create_files call becomes
// file attachments plus a short text note so the turn stays in history.
func (s *Service) replyContent(text string, call *domain.FunctionCall) ([]domain.Part, []domain.DisplayPart) {
	var (
		parts   []domain.Part
		display []domain.DisplayPart
	)
	if text != "" {
		parts = append(parts, domain.Part{Text: text})
		display = append(display, domain.DisplayPart{Kind: domain.DisplayText, Text: text})
	}

	if call != nil && call.Name == s.filesTool.Name() {
		files := tools.ParseFiles(call.Args)
		if len(files) > 0 {
			names := make([]string, 0, len(files))
			for _, f := range files {
				names = append(names, f.Filename)
			}
			parts = append(parts, domain.Part{Text: "Created files: " + strings.Join(names, ", ")})
			display = append(display, tools.DisplayParts(files)...)
		}
	}
	return parts, display
}

type ImageInput struct {
	Prompt      string
	Attachments []Attachment
}

// GenerateImage asks the image model for one picture and stores it as the
// reply turn of the active session.
func (s *Service) GenerateImage(ctx context.Context, in ImageInput) (*GenerationOutput, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("prompt is empty: %w", domain.ErrInvalidInput)
	}
	key, err := s.creds.ChatKey(ctx)
	if err != nil {
		return nil, err
	}

	sessionID, userMsg, ts, err := s.begin(ctx, in.Prompt, in.Attachments, "Generating image...")
	if err != nil {
		return nil, err
	}
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	blob, err := s.gen.GenerateImage(ctx, key, userMsg.Parts)
	if err != nil {
		s.fail(ctx, log, "image", sessionID, ts, err)
		return s.output(sessionID, userMsg, ts), nil
	}

	s.update(ctx, log, sessionID, ts, func(m *domain.Message) {
		m.Generating = false
		m.Progress = ""
		m.Parts = []domain.Part{{InlineData: blob}}
		m.Display = []domain.DisplayPart{{Kind: domain.DisplayImage, URL: DataURL(blob), MIMEType: blob.MIMEType}}
	})
	observability.Generations.WithLabelValues("image", "ok").Inc()
	return s.output(sessionID, userMsg, ts), nil
}

type VideoInput struct {
	Prompt          string
	StartImage      *Attachment
	EndImage        *Attachment
	ReferenceImages []Attachment
	Resolution      string
	AspectRatio     string
}

// GenerateVideo runs a video job to completion, polling its status.
func (s *Service) GenerateVideo(ctx context.Context, in VideoInput) (*GenerationOutput, error) {
	job, err := s.prepareVideo(ctx, in)
	if err != nil {
		return nil, err
	}
	job.run(ctx)
	return s.output(job.sessionID, job.user, job.ts), nil
}

// StartVideoGeneration returns as soon as the placeholder turn exists and
// keeps polling in the background, detached from ctx cancellation.
func (s *Service) StartVideoGeneration(ctx context.Context, in VideoInput) (*GenerationOutput, error) {
	job, err := s.prepareVideo(ctx, in)
	if err != nil {
		return nil, err
	}
	go job.run(context.WithoutCancel(ctx))
	return s.output(job.sessionID, job.user, job.ts), nil
}

type videoJob struct {
	svc       *Service
	key       string
	req       domain.VideoRequest
	sessionID domain.SessionID
	user      domain.Message
	ts        domain.Timestamp
}

func (s *Service) prepareVideo(ctx context.Context, in VideoInput) (*videoJob, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("prompt is empty: %w", domain.ErrInvalidInput)
	}
	key, err := s.creds.VideoKey(ctx)
	if err != nil {
		return nil, err
	}

	var attachments []Attachment
	req := domain.VideoRequest{
		Prompt:      in.Prompt,
		Resolution:  in.Resolution,
		AspectRatio: in.AspectRatio,
	}
	if in.StartImage != nil {
		req.StartImage = in.StartImage.blob()
		attachments = append(attachments, *in.StartImage)
	}
	if in.EndImage != nil {
		req.EndImage = in.EndImage.blob()
		attachments = append(attachments, *in.EndImage)
	}
	for _, ref := range in.ReferenceImages {
		req.ReferenceImages = append(req.ReferenceImages, ref.blob())
		attachments = append(attachments, ref)
	}

	sessionID, userMsg, ts, err := s.begin(ctx, in.Prompt, attachments, "Starting video generation...")
	if err != nil {
		return nil, err
	}

	return &videoJob{svc: s, key: key, req: req, sessionID: sessionID, user: userMsg, ts: ts}, nil
}

func (j *videoJob) run(ctx context.Context) {
	s := j.svc
	log := observability.LoggerFromContext(ctx).With("session_id", j.sessionID)
	started := time.Now()

	op, err := s.gen.StartVideo(ctx, j.key, j.req)
	if err != nil {
		s.fail(ctx, log, "video", j.sessionID, j.ts, err)
		return
	}
	log.Info("video job started", "operation", op.Name)

	for !op.Done {
		select {
		case <-ctx.Done():
			s.fail(ctx, log, "video", j.sessionID, j.ts, ctx.Err())
			return
		case <-time.After(s.pollInterval):
		}

		op, err = s.gen.PollVideo(ctx, j.key, op)
		if err != nil {
			s.fail(ctx, log, "video", j.sessionID, j.ts, err)
			return
		}

		elapsed := time.Since(started).Round(time.Second)
		s.update(ctx, log, j.sessionID, j.ts, func(m *domain.Message) {
			m.Progress = fmt.Sprintf("Generating video... %s elapsed", elapsed)
		})
	}

	if op.Video == nil {
		s.fail(ctx, log, "video", j.sessionID, j.ts, fmt.Errorf("video job %s finished without a video", op.Name))
		return
	}

	blob, err := s.gen.FetchVideo(ctx, j.key, op.Video)
	if err != nil {
		s.fail(ctx, log, "video", j.sessionID, j.ts, err)
		return
	}

	s.update(ctx, log, j.sessionID, j.ts, func(m *domain.Message) {
		m.Generating = false
		m.Progress = ""
		m.Parts = []domain.Part{{Text: "Generated a video for: " + j.req.Prompt}}
		m.Display = []domain.DisplayPart{{Kind: domain.DisplayVideo, URL: DataURL(blob), MIMEType: blob.MIMEType}}
	})
	observability.Generations.WithLabelValues("video", "ok").Inc()
	log.Info("video job finished", "elapsed_ms", time.Since(started).Milliseconds())
}

// Speak turns text into audio. Nothing is written to the session.
func (s *Service) Speak(ctx context.Context, text string) (*domain.Blob, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is empty: %w", domain.ErrInvalidInput)
	}
	key, err := s.creds.ChatKey(ctx)
	if err != nil {
		return nil, err
	}

	blob, err := s.gen.Synthesize(ctx, key, text)
	if err != nil {
		kind := domain.Classify(err)
		observability.Generations.WithLabelValues("speech", outcome(kind)).Inc()
		code := domain.ErrCodeUpstream
		if kind == domain.ErrorKindCredit {
			code = domain.ErrCodeCredit
		}
		return nil, domain.NewAppError(code, "speech synthesis failed", err)
	}
	observability.Generations.WithLabelValues("speech", "ok").Inc()
	return blob, nil
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

// begin appends the user turn and a generating placeholder to the active
// session and returns where the reply will be written.
func (s *Service) begin(ctx context.Context, text string, attachments []Attachment, progress string) (domain.SessionID, domain.Message, domain.Timestamp, error) {
	sessionID := s.sessions.ActiveID()
	userMsg := s.userMessage(text, attachments)
	placeholder := domain.Message{
		Role:       domain.RoleModel,
		Timestamp:  s.sessions.NextTimestamp(),
		Generating: true,
		Progress:   progress,
	}
	if err := s.sessions.UpdateMessages(ctx, sessionID, sessions.AppendMessages(userMsg, placeholder)); err != nil {
		return "", domain.Message{}, 0, err
	}
	return sessionID, userMsg, placeholder.Timestamp, nil
}

func (s *Service) userMessage(text string, attachments []Attachment) domain.Message {
	msg := domain.Message{
		Role:      domain.RoleUser,
		Timestamp: s.sessions.NextTimestamp(),
	}
	for _, a := range attachments {
		msg.Parts = append(msg.Parts, domain.Part{InlineData: a.blob()})
		msg.Display = append(msg.Display, a.display())
	}
	if text = strings.TrimSpace(text); text != "" {
		msg.Parts = append(msg.Parts, domain.Part{Text: text})
		msg.Display = append(msg.Display, domain.DisplayPart{Kind: domain.DisplayText, Text: text})
	}
	return msg
}

func (s *Service) update(ctx context.Context, log *slog.Logger, id domain.SessionID, ts domain.Timestamp, fn func(*domain.Message)) {
	found, err := s.sessions.UpdateMessage(ctx, id, ts, fn)
	if err != nil {
		// The session was deleted while the reply was in flight.
		log.Warn("dropping reply update", "timestamp", ts, "error", err)
		return
	}
	if !found {
		log.Warn("reply placeholder missing", "timestamp", ts)
	}
}

// fail replaces the placeholder with an inline error turn. Credit failures
// are flagged separately so the UI can point at billing.
func (s *Service) fail(ctx context.Context, log *slog.Logger, kind string, id domain.SessionID, ts domain.Timestamp, err error) {
	errKind := domain.Classify(err)
	log.Error("generation failed", "kind", kind, "error_kind", errKind.String(), "error", err)
	observability.Generations.WithLabelValues(kind, outcome(errKind)).Inc()

	text := genericErrorText + err.Error()
	if errKind == domain.ErrorKindCredit {
		text = creditErrorText
	}

	s.update(ctx, log, id, ts, func(m *domain.Message) {
		m.Generating = false
		m.Progress = ""
		m.Error = true
		m.CreditError = errKind == domain.ErrorKindCredit
		m.Parts = nil
		m.FunctionCall = nil
		m.Display = []domain.DisplayPart{{Kind: domain.DisplayText, Text: text}}
	})
}

func (s *Service) output(id domain.SessionID, user domain.Message, ts domain.Timestamp) *GenerationOutput {
	out := &GenerationOutput{SessionID: id, User: user}
	if sess, ok := s.sessions.Session(id); ok {
		for _, m := range sess.Messages {
			if m.Timestamp == ts {
				out.Model = m
				break
			}
		}
	}
	return out
}

func outcome(kind domain.ErrorKind) string {
	if kind == domain.ErrorKindCredit {
		return "credit"
	}
	return "error"
}

func mergeSources(have, add []domain.Source) []domain.Source {
	for _, src := range add {
		dup := false
		for _, h := range have {
			if h.URI == src.URI {
				dup = true
				break
			}
		}
		if !dup {
			have = append(have, src)
		}
	}
	return have
}

func (a Attachment) blob() *domain.Blob {
	return &domain.Blob{MIMEType: a.MIMEType, Data: a.Data}
}

func (a Attachment) display() domain.DisplayPart {
	b := a.blob()
	switch {
	case strings.HasPrefix(a.MIMEType, "image/"):
		return domain.DisplayPart{Kind: domain.DisplayImage, URL: DataURL(b), MIMEType: a.MIMEType, FileName: a.FileName}
	case strings.HasPrefix(a.MIMEType, "video/"):
		return domain.DisplayPart{Kind: domain.DisplayVideo, URL: DataURL(b), MIMEType: a.MIMEType, FileName: a.FileName}
	default:
		return domain.DisplayPart{Kind: domain.DisplayFile, MIMEType: a.MIMEType, FileName: a.FileName}
	}
}

// DataURL encodes a blob for display.
func DataURL(b *domain.Blob) string {
	return "data:" + b.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}
