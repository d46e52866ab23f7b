package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrStreamingUnsupported возвращается, когда ResponseWriter не поддерживает Flush.
var ErrStreamingUnsupported = errors.New("response writer does not support streaming")

// Encoder пишет события в поток в формате "data: <JSON>\n\n"
// и сбрасывает буфер после каждого события.
type Encoder struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewEncoder подготавливает ResponseWriter к потоковой отдаче событий.
func NewEncoder(w http.ResponseWriter) (*Encoder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")

	return &Encoder{w: w, flusher: flusher}, nil
}

// Encode сериализует событие в JSON и отправляет один кадр.
func (e *Encoder) Encode(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write event frame: %w", err)
	}
	e.flusher.Flush()
	return nil
}
