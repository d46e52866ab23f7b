package stage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comic-server/internal/model"
	"comic-server/internal/sse"
)

// fakeImageCaller отдает изображение либо ошибку в зависимости от промпта.
type fakeImageCaller struct {
	failIDs map[int]error
	calls   int
	order   []string
}

func (f *fakeImageCaller) Generate(_ context.Context, prompt, filename string) (model.ImageResult, error) {
	f.calls++
	f.order = append(f.order, filename)
	for id, err := range f.failIDs {
		if filename == fmt.Sprintf("comic-image-%d.png", id) {
			return model.ImageResult{}, err
		}
	}
	return model.ImageResult{ImageBase64: "Zm9v", Prompt: prompt}, nil
}

func promptsFixture(ids ...int) []model.ImagePrompt {
	var prompts []model.ImagePrompt
	for _, id := range ids {
		prompts = append(prompts, model.ImagePrompt{
			ID:         id,
			Title:      fmt.Sprintf("Page %d", id),
			PromptText: "Layout.",
			Panels: []model.PanelPrompt{
				{PanelNumber: 1, Description: "One", TextContent: "A"},
				{PanelNumber: 2, Description: "Two", TextContent: "B"},
				{PanelNumber: 3, Description: "Three", TextContent: "C"},
			},
			ArtNotes: "Bright.",
		})
	}
	return prompts
}

func TestImages_Run_AllSucceed(t *testing.T) {
	caller := &fakeImageCaller{}
	s := NewImages(caller, 0, zap.NewNop())
	sink := &collectSink{}

	images, err := s.Run(context.Background(), promptsFixture(1, 2, 3), sink.sink)
	require.NoError(t, err)
	require.Len(t, images, 3)

	for i, img := range images {
		assert.Equal(t, i+1, img.ID, "images must preserve prompt order")
		assert.False(t, img.Placeholder)
		assert.Equal(t, "Zm9v", img.ImageBase64)
	}
	assert.Equal(t, 3, caller.calls)
	assert.Equal(t,
		[]string{"comic-image-1.png", "comic-image-2.png", "comic-image-3.png"},
		caller.order, "generation must be strictly sequential")
}

// Сбой одного изображения не прерывает этап: на его месте появляется заглушка,
// порядок и количество страниц сохраняются.
func TestImages_Run_PlaceholderOnTransientFailure(t *testing.T) {
	transient := fmt.Errorf("%w: image endpoint returned status 502", model.ErrTransientService)
	caller := &fakeImageCaller{failIDs: map[int]error{2: transient}}
	s := NewImages(caller, 0, zap.NewNop())
	sink := &collectSink{}

	images, err := s.Run(context.Background(), promptsFixture(1, 2, 3), sink.sink)
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.False(t, images[0].Placeholder)
	assert.True(t, images[1].Placeholder)
	assert.False(t, images[2].Placeholder)
	assert.Equal(t, 2, images[1].ID)
	// При временной недоступности сервиса исходная инструкция сохраняется
	assert.Contains(t, images[1].Prompt, "Layout.")
	assert.Equal(t, 3, caller.calls, "failure must not stop the loop")
}

func TestImages_Run_PlaceholderOnGenericFailure(t *testing.T) {
	caller := &fakeImageCaller{failIDs: map[int]error{1: fmt.Errorf("some backend error")}}
	s := NewImages(caller, 0, zap.NewNop())

	images, err := s.Run(context.Background(), promptsFixture(1), (&collectSink{}).sink)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.True(t, images[0].Placeholder)
	assert.Equal(t, "Placeholder for: Page 1", images[0].Prompt)
}

func TestImages_Run_EventOrder(t *testing.T) {
	s := NewImages(&fakeImageCaller{}, 0, zap.NewNop())
	sink := &collectSink{}

	_, err := s.Run(context.Background(), promptsFixture(1, 2), sink.sink)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{sse.TypeImageProgress, sse.TypeImageResult, sse.TypeImageProgress, sse.TypeImageResult},
		sink.types(t))
}

func TestImages_Run_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewImages(&fakeImageCaller{}, 0, zap.NewNop())
	_, err := s.Run(ctx, promptsFixture(1, 2), (&collectSink{}).sink)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderPlaceholder_Is512PNG(t *testing.T) {
	encoded := RenderPlaceholder("The Mysterious Case of the Missing WiFi Signal", 2)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, 512, bounds.Dx())
	assert.Equal(t, 512, bounds.Dy())

	// Рамка черная
	r, g, b, _ := img.At(2, 2).RGBA()
	assert.Zero(t, r)
	assert.Zero(t, g)
	assert.Zero(t, b)

	// Фон янтарный: красный канал доминирует над синим
	r, _, b, _ = img.At(256, 100).RGBA()
	assert.Greater(t, r, b)
}

func TestFlattenPrompt(t *testing.T) {
	prompt := promptsFixture(7)[0]
	flat := FlattenPrompt(prompt)

	assert.Contains(t, flat, "Layout.")
	assert.Contains(t, flat, "Panel 1: One")
	assert.Contains(t, flat, `Text: "A".`)
	assert.Contains(t, flat, "Art notes: Bright.")
}
