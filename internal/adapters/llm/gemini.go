package llm

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"google.golang.org/genai"

	"github.com/PabloGalante/farum-studio/internal/domain"
)

// GeminiConfig selects models and, optionally, the Vertex AI backend.
type GeminiConfig struct {
	ChatModel   string
	ImageModel  string
	VideoModel  string
	SpeechModel string
	Voice       string

	// Vertex switches to project credentials; API keys are then ignored.
	Vertex   bool
	Project  string
	Location string
}

// GeminiClient implements every upstream collaborator on top of genai. One
// genai client is kept per API key.
type GeminiClient struct {
	cfg     GeminiConfig
	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	return &GeminiClient{
		cfg:     cfg,
		clients: make(map[string]*genai.Client),
	}
}

func (g *GeminiClient) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cacheKey := apiKey
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if g.cfg.Vertex {
		cacheKey = "vertex"
		cc = &genai.ClientConfig{
			Project:  g.cfg.Project,
			Location: g.cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	} else if apiKey == "" {
		return nil, domain.NewAppError(domain.ErrCodeCredentials, "API key is required", domain.ErrChatUnavailable)
	}

	if c, ok := g.clients[cacheKey]; ok {
		return c, nil
	}

	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	g.clients[cacheKey] = c
	return c, nil
}

// ─────────────────────────────────────────
// Chat
// ─────────────────────────────────────────

func (g *GeminiClient) StartChat(ctx context.Context, req domain.ChatRequest) (domain.ChatHandle, error) {
	c, err := g.client(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		Tools: toTools(req.Tools),
	}
	if req.SystemInstruction != "" {
		// According to official examples, the role here is usually RoleUser, not "system"
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	chat, err := c.Chats.Create(ctx, g.cfg.ChatModel, cfg, toContents(req.History))
	if err != nil {
		return nil, fmt.Errorf("creating gemini chat: %w", err)
	}
	return &geminiChat{chat: chat}, nil
}

type geminiChat struct {
	chat *genai.Chat
}

func (c *geminiChat) SendStream(ctx context.Context, parts []domain.Part) iter.Seq2[domain.ChatChunk, error] {
	return func(yield func(domain.ChatChunk, error) bool) {
		for resp, err := range c.chat.SendMessageStream(ctx, toPartValues(parts)...) {
			if err != nil {
				yield(domain.ChatChunk{}, fmt.Errorf("gemini stream: %w", err))
				return
			}
			if !yield(fromResponse(resp), nil) {
				return
			}
		}
	}
}

func fromResponse(resp *genai.GenerateContentResponse) domain.ChatChunk {
	var chunk domain.ChatChunk
	if resp == nil || len(resp.Candidates) == 0 {
		return chunk
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			chunk.Text += part.Text
			if part.FunctionCall != nil {
				chunk.FunctionCall = &domain.FunctionCall{
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				}
			}
		}
	}

	if gm := cand.GroundingMetadata; gm != nil {
		for _, gc := range gm.GroundingChunks {
			if gc == nil || gc.Web == nil || gc.Web.URI == "" {
				continue
			}
			chunk.Sources = append(chunk.Sources, domain.Source{URI: gc.Web.URI, Title: gc.Web.Title})
		}
	}
	return chunk
}

// ─────────────────────────────────────────
// Image and speech
// ─────────────────────────────────────────

func (g *GeminiClient) GenerateImage(ctx context.Context, apiKey string, parts []domain.Part) (*domain.Blob, error) {
	c, err := g.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{}
	cfg.ResponseModalities = append(cfg.ResponseModalities, "TEXT", "IMAGE")

	contents := []*genai.Content{{Role: string(genai.RoleUser), Parts: toPartPtrs(parts)}}
	res, err := c.Models.GenerateContent(ctx, g.cfg.ImageModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate image: %w", err)
	}

	if blob := firstInline(res); blob != nil {
		return blob, nil
	}
	return nil, fmt.Errorf("gemini returned no image")
}

func (g *GeminiClient) Synthesize(ctx context.Context, apiKey string, text string) (*domain.Blob, error) {
	c, err := g.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.cfg.Voice},
			},
		},
	}
	cfg.ResponseModalities = append(cfg.ResponseModalities, "AUDIO")

	res, err := c.Models.GenerateContent(ctx, g.cfg.SpeechModel, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini synthesize: %w", err)
	}

	if blob := firstInline(res); blob != nil {
		return blob, nil
	}
	return nil, fmt.Errorf("gemini returned no audio")
}

func firstInline(res *genai.GenerateContentResponse) *domain.Blob {
	if res == nil {
		return nil
	}
	for _, cand := range res.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &domain.Blob{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}
			}
		}
	}
	return nil
}

// ─────────────────────────────────────────
// Video
// ─────────────────────────────────────────

func (g *GeminiClient) StartVideo(ctx context.Context, apiKey string, req domain.VideoRequest) (*domain.VideoOperation, error) {
	c, err := g.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    req.AspectRatio,
		Resolution:     req.Resolution,
	}
	if req.EndImage != nil {
		cfg.LastFrame = toImage(req.EndImage)
	}
	for _, ref := range req.ReferenceImages {
		cfg.ReferenceImages = append(cfg.ReferenceImages, &genai.VideoGenerationReferenceImage{
			Image:         toImage(ref),
			ReferenceType: genai.VideoGenerationReferenceTypeAsset,
		})
	}

	op, err := c.Models.GenerateVideos(ctx, g.cfg.VideoModel, req.Prompt, toImage(req.StartImage), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate videos: %w", err)
	}
	return fromVideoOperation(op)
}

func (g *GeminiClient) PollVideo(ctx context.Context, apiKey string, op *domain.VideoOperation) (*domain.VideoOperation, error) {
	native, ok := op.Handle.(*genai.GenerateVideosOperation)
	if !ok {
		return nil, fmt.Errorf("operation %q was not started by gemini", op.Name)
	}

	c, err := g.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	next, err := c.Operations.GetVideosOperation(ctx, native, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini poll video: %w", err)
	}
	return fromVideoOperation(next)
}

func fromVideoOperation(op *genai.GenerateVideosOperation) (*domain.VideoOperation, error) {
	out := &domain.VideoOperation{Name: op.Name, Done: op.Done, Handle: op}
	if !op.Done {
		return out, nil
	}
	if op.Error != nil {
		return nil, fmt.Errorf("video operation %s failed: %v", op.Name, op.Error)
	}
	if op.Response != nil {
		for _, gv := range op.Response.GeneratedVideos {
			if gv != nil && gv.Video != nil {
				out.Video = &domain.GeneratedVideo{URI: gv.Video.URI, MIMEType: gv.Video.MIMEType}
				break
			}
		}
	}
	return out, nil
}

func (g *GeminiClient) FetchVideo(ctx context.Context, apiKey string, video *domain.GeneratedVideo) (*domain.Blob, error) {
	c, err := g.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	mimeType := video.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	data, err := c.Files.Download(ctx, genai.NewDownloadURIFromVideo(&genai.Video{URI: video.URI, MIMEType: mimeType}), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini download video: %w", err)
	}
	return &domain.Blob{MIMEType: mimeType, Data: data}, nil
}

// ─────────────────────────────────────────
// Conversions
// ─────────────────────────────────────────

func toPartPtrs(parts []domain.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		gp := toPart(p)
		out = append(out, &gp)
	}
	return out
}

func toPartValues(parts []domain.Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		out = append(out, toPart(p))
	}
	return out
}

func toPart(p domain.Part) genai.Part {
	if p.InlineData != nil {
		return genai.Part{InlineData: &genai.Blob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}}
	}
	return genai.Part{Text: p.Text}
}

func toContents(history []domain.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, c := range history {
		role := genai.RoleUser
		if c.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{Role: string(role), Parts: toPartPtrs(c.Parts)})
	}
	return out
}

func toTools(ts domain.ToolSet) []*genai.Tool {
	var out []*genai.Tool
	if len(ts.Functions) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(ts.Functions))
		for _, fn := range ts.Functions {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  toSchema(fn.Parameters),
			})
		}
		out = append(out, &genai.Tool{FunctionDeclarations: decls})
	}
	if ts.WebSearch {
		out = append(out, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	return out
}

func toSchema(s *domain.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Items:       toSchema(s.Items),
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	return out
}

func toImage(b *domain.Blob) *genai.Image {
	if b == nil {
		return nil
	}
	return &genai.Image{ImageBytes: b.Data, MIMEType: b.MIMEType}
}
