package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxFrameSize ограничивает размер одного кадра; батч промптов с панелями
// укладывается в доли мегабайта, лимит берется с большим запасом.
const maxFrameSize = 16 * 1024 * 1024

// Message — один декодированный кадр потока.
// Raw содержит полный JSON события, Type — его дискриминатор.
type Message struct {
	Type string
	Raw  json.RawMessage
}

// Decoder читает кадры "data: <JSON>\n\n" из потока.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder создает декодер поверх тела SSE-ответа.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	scanner.Split(splitFrames)
	return &Decoder{scanner: scanner}
}

// Next возвращает следующее событие потока.
// По исчерпании потока возвращается io.EOF; завершение без события
// done или error интерпретирует вызывающая сторона.
func (d *Decoder) Next() (*Message, error) {
	for d.scanner.Scan() {
		payload := framePayload(d.scanner.Text())
		if payload == "" {
			continue
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(payload), &head); err != nil {
			return nil, fmt.Errorf("malformed event frame: %w", err)
		}
		return &Message{Type: head.Type, Raw: json.RawMessage(payload)}, nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// framePayload извлекает JSON из кадра, пропуская строки без префикса "data: ".
func framePayload(frame string) string {
	for _, line := range strings.Split(frame, "\n") {
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	return ""
}

// splitFrames разбивает поток по пустой строке (граница кадра SSE).
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
