package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"atlas/internal/core/app"
)

// sseEmitter writes analysis events as server-sent events, flushing after
// each one so consumers see progress while later files are still pending.
type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *sseEmitter) Emit(ctx context.Context, event app.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
