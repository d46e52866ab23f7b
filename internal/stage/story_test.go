package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comic-server/internal/model"
	"comic-server/internal/sse"
)

// fakeTextGenerator отдает заранее заданные ответы по очереди.
type fakeTextGenerator struct {
	responses []string
	err       error
	calls     int
	systems   []string
	users     []string
}

func (f *fakeTextGenerator) GenerateJSON(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.systems = append(f.systems, systemPrompt)
	f.users = append(f.users, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

// collectSink накапливает события пайплайна.
type collectSink struct {
	events []any
}

func (c *collectSink) sink(event any) error {
	c.events = append(c.events, event)
	return nil
}

func (c *collectSink) types(t *testing.T) []string {
	t.Helper()
	var types []string
	for _, ev := range c.events {
		payload, err := json.Marshal(ev)
		require.NoError(t, err)
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(payload, &head))
		types = append(types, head.Type)
	}
	return types
}

func storyJSON(parts int) string {
	resp := map[string]any{
		"chapter_name": "WiFi Adventures",
		"summary":      "A story about invisible waves.",
	}
	var list []map[string]any
	for i := 1; i <= parts; i++ {
		list = append(list, map[string]any{
			"part_number":   i,
			"chapter_title": fmt.Sprintf("Part title %d", i),
			"story_content": fmt.Sprintf("Content of part %d.", i),
		})
	}
	resp["story_parts"] = list
	payload, _ := json.Marshal(resp)
	return string(payload)
}

func TestStory_Run_Success(t *testing.T) {
	gen := &fakeTextGenerator{responses: []string{storyJSON(3)}}
	s := NewStory(gen, 3, 0, zap.NewNop())
	sink := &collectSink{}

	bundle, err := s.Run(context.Background(), "How WiFi Works", sink.sink)
	require.NoError(t, err)

	assert.Equal(t, "WiFi Adventures", bundle.ChapterName)
	require.Len(t, bundle.Parts, 3)
	for i, part := range bundle.Parts {
		assert.Equal(t, i+1, part.PartNumber)
	}

	assert.Equal(t,
		[]string{sse.TypeStatus, sse.TypeStorySummary, sse.TypeStoryPart, sse.TypeStoryPart, sse.TypeStoryPart, sse.TypeStatus},
		sink.types(t))
	assert.Equal(t, 1, gen.calls, "story stage must make exactly one AI call")
}

func TestStory_Run_EmptyTopic(t *testing.T) {
	s := NewStory(&fakeTextGenerator{}, 3, 0, zap.NewNop())

	_, err := s.Run(context.Background(), "   ", (&collectSink{}).sink)
	assert.ErrorIs(t, err, model.ErrEmptyTopic)
}

func TestStory_Run_MalformedJSON(t *testing.T) {
	gen := &fakeTextGenerator{responses: []string{"this is not json"}}
	s := NewStory(gen, 3, 0, zap.NewNop())

	_, err := s.Run(context.Background(), "volcanoes", (&collectSink{}).sink)
	assert.ErrorIs(t, err, model.ErrGenerationFormat)
}

func TestStory_Run_MissingPartsArray(t *testing.T) {
	gen := &fakeTextGenerator{responses: []string{`{"chapter_name":"x","summary":"y"}`}}
	s := NewStory(gen, 3, 0, zap.NewNop())

	_, err := s.Run(context.Background(), "volcanoes", (&collectSink{}).sink)
	assert.ErrorIs(t, err, model.ErrGenerationFormat)
}

func TestStory_Run_CountMismatch(t *testing.T) {
	gen := &fakeTextGenerator{responses: []string{storyJSON(2)}}
	s := NewStory(gen, 3, 0, zap.NewNop())

	_, err := s.Run(context.Background(), "volcanoes", (&collectSink{}).sink)
	assert.ErrorIs(t, err, model.ErrGenerationCountMismatch)
}

func storyJSONNumbered(numbers ...int) string {
	resp := map[string]any{
		"chapter_name": "WiFi Adventures",
		"summary":      "A story about invisible waves.",
	}
	var list []map[string]any
	for _, n := range numbers {
		list = append(list, map[string]any{
			"part_number":   n,
			"chapter_title": fmt.Sprintf("Part title %d", n),
			"story_content": fmt.Sprintf("Content of part %d.", n),
		})
	}
	resp["story_parts"] = list
	payload, _ := json.Marshal(resp)
	return string(payload)
}

// Номера частей должны идти подряд с единицы, без пропусков и дублей.
func TestStory_Run_NonContiguousPartNumbers(t *testing.T) {
	gen := &fakeTextGenerator{responses: []string{storyJSONNumbered(2, 3, 4)}}
	s := NewStory(gen, 3, 0, zap.NewNop())

	_, err := s.Run(context.Background(), "volcanoes", (&collectSink{}).sink)
	assert.ErrorIs(t, err, model.ErrGenerationFormat)
}

func TestStory_Run_DuplicatePartNumbers(t *testing.T) {
	gen := &fakeTextGenerator{responses: []string{storyJSONNumbered(1, 1, 2)}}
	s := NewStory(gen, 3, 0, zap.NewNop())

	_, err := s.Run(context.Background(), "volcanoes", (&collectSink{}).sink)
	assert.ErrorIs(t, err, model.ErrGenerationFormat)
}

func TestStory_Run_AIFailure(t *testing.T) {
	gen := &fakeTextGenerator{err: errors.New("upstream exploded")}
	s := NewStory(gen, 3, 0, zap.NewNop())

	_, err := s.Run(context.Background(), "volcanoes", (&collectSink{}).sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestStorySystemPrompt_MentionsPartCount(t *testing.T) {
	prompt := storySystemPrompt(6)
	assert.Contains(t, prompt, "exactly 6 parts")
	assert.Contains(t, prompt, `"part_number": 6`)
}
