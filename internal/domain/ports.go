package domain

import (
	"context"
	"iter"
)

// KVStore is the durable key/value document store backing the app state.
// Get reports ok=false when the key has never been written.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Schema describes function-call parameters in a provider-neutral way.
type Schema struct {
	Type        string             `json:"type"` // object, array, string
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

type FunctionDeclaration struct {
	Name        string
	Description string
	Parameters  *Schema
}

type ToolSet struct {
	Functions []FunctionDeclaration
	WebSearch bool
}

// ChatRequest is everything needed to open an upstream conversation.
type ChatRequest struct {
	APIKey            string
	SystemInstruction string
	History           []Content
	Tools             ToolSet
}

// ChatChunk is one incremental update of a streamed reply. Text is a delta.
type ChatChunk struct {
	Text         string
	FunctionCall *FunctionCall
	Sources      []Source
}

// ChatHandle is a live upstream conversation.
type ChatHandle interface {
	SendStream(ctx context.Context, parts []Part) iter.Seq2[ChatChunk, error]
}

// ChatBackend opens upstream conversations.
type ChatBackend interface {
	StartChat(ctx context.Context, req ChatRequest) (ChatHandle, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, apiKey string, parts []Part) (*Blob, error)
}

type VideoRequest struct {
	Prompt          string
	StartImage      *Blob
	EndImage        *Blob
	ReferenceImages []*Blob
	Resolution      string // 720p, 1080p
	AspectRatio     string // 16:9, 9:16
}

type GeneratedVideo struct {
	URI      string
	MIMEType string
}

// VideoOperation is a long-running video job. Handle is owned by the adapter.
type VideoOperation struct {
	Name   string
	Done   bool
	Video  *GeneratedVideo
	Handle any
}

type VideoGenerator interface {
	StartVideo(ctx context.Context, apiKey string, req VideoRequest) (*VideoOperation, error)
	PollVideo(ctx context.Context, apiKey string, op *VideoOperation) (*VideoOperation, error)
	FetchVideo(ctx context.Context, apiKey string, video *GeneratedVideo) (*Blob, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, apiKey string, text string) (*Blob, error)
}

// Generator bundles every upstream collaborator.
type Generator interface {
	ChatBackend
	ImageGenerator
	VideoGenerator
	SpeechSynthesizer
}
