package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/PabloGalante/farum-studio/internal/domain"
)

// MockLLM is an offline stand-in for every upstream collaborator. With no
// script it echoes the user's text back word by word.
type MockLLM struct {
	mu sync.Mutex

	Requests []domain.ChatRequest
	Sent     [][]domain.Part

	Chunks     []domain.ChatChunk // scripted stream, replayed on every send
	StartErr   error
	StreamErr  error // returned after the scripted chunks
	ImageErr   error
	VideoErr   error
	SpeechErr  error
	VideoPolls int // polls before a video job reports done
}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) StartChat(_ context.Context, req domain.ChatRequest) (domain.ChatHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StartErr != nil {
		return nil, m.StartErr
	}
	m.Requests = append(m.Requests, req)
	return &mockChat{llm: m}, nil
}

// LastRequest returns the most recent StartChat request.
func (m *MockLLM) LastRequest() (domain.ChatRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Requests) == 0 {
		return domain.ChatRequest{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

type mockChat struct {
	llm *MockLLM
}

func (c *mockChat) SendStream(ctx context.Context, parts []domain.Part) iter.Seq2[domain.ChatChunk, error] {
	c.llm.mu.Lock()
	c.llm.Sent = append(c.llm.Sent, parts)
	chunks := append([]domain.ChatChunk(nil), c.llm.Chunks...)
	streamErr := c.llm.StreamErr
	c.llm.mu.Unlock()

	if chunks == nil && streamErr == nil {
		chunks = echoChunks(parts)
	}

	return func(yield func(domain.ChatChunk, error) bool) {
		for _, ch := range chunks {
			if err := ctx.Err(); err != nil {
				yield(domain.ChatChunk{}, err)
				return
			}
			if !yield(ch, nil) {
				return
			}
		}
		if streamErr != nil {
			yield(domain.ChatChunk{}, streamErr)
		}
	}
}

func echoChunks(parts []domain.Part) []domain.ChatChunk {
	var text []string
	for _, p := range parts {
		if p.Text != "" {
			text = append(text, p.Text)
		}
	}
	reply := fmt.Sprintf("I hear you. You said %q.", strings.Join(text, " "))

	var out []domain.ChatChunk
	for _, w := range strings.SplitAfter(reply, " ") {
		out = append(out, domain.ChatChunk{Text: w})
	}
	return out
}

// mockPNG is a 1x1 transparent PNG.
var mockPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func (m *MockLLM) GenerateImage(_ context.Context, _ string, _ []domain.Part) (*domain.Blob, error) {
	if m.ImageErr != nil {
		return nil, m.ImageErr
	}
	return &domain.Blob{MIMEType: "image/png", Data: mockPNG}, nil
}

type mockVideoJob struct {
	polls int
}

func (m *MockLLM) StartVideo(_ context.Context, _ string, req domain.VideoRequest) (*domain.VideoOperation, error) {
	if m.VideoErr != nil {
		return nil, m.VideoErr
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("mock video: prompt is required")
	}
	return &domain.VideoOperation{Name: "operations/mock-video", Handle: &mockVideoJob{}}, nil
}

func (m *MockLLM) PollVideo(_ context.Context, _ string, op *domain.VideoOperation) (*domain.VideoOperation, error) {
	job, ok := op.Handle.(*mockVideoJob)
	if !ok {
		return nil, fmt.Errorf("mock video: foreign operation %q", op.Name)
	}
	job.polls++

	next := *op
	if job.polls >= m.VideoPolls {
		next.Done = true
		next.Video = &domain.GeneratedVideo{URI: "mock://video.mp4", MIMEType: "video/mp4"}
	}
	return &next, nil
}

func (m *MockLLM) FetchVideo(_ context.Context, _ string, video *domain.GeneratedVideo) (*domain.Blob, error) {
	return &domain.Blob{MIMEType: video.MIMEType, Data: []byte("mock-mp4")}, nil
}

func (m *MockLLM) Synthesize(_ context.Context, _ string, text string) (*domain.Blob, error) {
	if m.SpeechErr != nil {
		return nil, m.SpeechErr
	}
	return &domain.Blob{MIMEType: "audio/L16;rate=24000", Data: []byte(text)}, nil
}
