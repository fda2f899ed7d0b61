package app

import (
	"context"

	"atlas/internal/engine/classify"
	"atlas/internal/fetch"
)

// EventType tags one record of the ordered analysis stream.
type EventType string

const (
	EventStatus    EventType = "status"
	EventFiles     EventType = "files"
	EventProgress  EventType = "progress"
	EventComponent EventType = "component"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Event is one tagged record. Data is one of the payload types below,
// matching Type.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

type StatusPayload struct {
	Message string `json:"message"`
}

type FilesPayload struct {
	Files  []fetch.FileRecord `json:"files"`
	Coords fetch.Coords       `json:"coords"`
}

type ProgressPayload struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Path    string `json:"path"`
}

type ComponentPayload struct {
	Entity *classify.Entity `json:"entity"`
}

type CompletePayload struct {
	Entities      []*classify.Entity `json:"entities"`
	TotalFiles    int                `json:"totalFiles"`
	AnalyzedFiles int                `json:"analyzedFiles"`
	FromCache     bool               `json:"fromCache"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Emitter delivers events to one consumer. A non-nil error means the
// consumer is gone; the run stops delivering but may finish its own work.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, event Event) error

func (f EmitterFunc) Emit(ctx context.Context, event Event) error {
	return f(ctx, event)
}
