package model

import (
	"fmt"
	"strings"
)

// StoryPart — одна часть сгенерированной истории комикса.
type StoryPart struct {
	PartNumber   int    `json:"part_number"`
	ChapterTitle string `json:"chapter_title"`
	StoryContent string `json:"story_content"`
}

// StoryBundle — полный результат этапа генерации истории.
type StoryBundle struct {
	ChapterName string      `json:"chapter_name"`
	Summary     string      `json:"summary"`
	Parts       []StoryPart `json:"story_parts"`
}

// PanelPrompt описывает одну панель комикса внутри промпта изображения.
type PanelPrompt struct {
	PanelNumber int    `json:"panel_number"`
	Description string `json:"description"`
	TextContent string `json:"text_content"`
}

// ImagePrompt — промпт для генерации одной страницы комикса.
// ID совпадает с part_number части истории, из которой он получен.
type ImagePrompt struct {
	ID         int           `json:"id"`
	Title      string        `json:"title"`
	PromptText string        `json:"prompt_text"`
	Panels     []PanelPrompt `json:"panels"`
	ArtNotes   string        `json:"art_notes"`
}

// GeneratedImage — результат этапа генерации изображений для одной страницы.
// Placeholder выставляется, когда вместо AI-изображения подставлена заглушка.
type GeneratedImage struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ImageBase64 string `json:"imageBase64"`
	ImageURL    string `json:"imageUrl,omitempty"`
	StoredPath  string `json:"savedFilePath,omitempty"`
	Prompt      string `json:"prompt"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// ImageResult — ответ сервиса генерации одного изображения.
type ImageResult struct {
	ImageBase64   string `json:"imageBase64"`
	ImageURL      string `json:"imageUrl,omitempty"`
	SavedFilePath string `json:"savedFilePath,omitempty"`
	Prompt        string `json:"prompt"`
}

// ReconstructStory собирает полный текст истории из частей.
// Формат каждой части фиксирован: заголовок "Part N: Title", затем текст.
// Части разделяются пустой строкой.
func ReconstructStory(parts []StoryPart) string {
	blocks := make([]string, 0, len(parts))
	for _, p := range parts {
		blocks = append(blocks, fmt.Sprintf("Part %d: %s\n%s", p.PartNumber, p.ChapterTitle, p.StoryContent))
	}
	return strings.Join(blocks, "\n\n")
}
