// Package sse реализует проводной формат событий пайплайна:
// каждый кадр — строка "data: <JSON>\n\n", JSON несет поле type.
package sse

import "comic-server/internal/model"

// Типы событий пайплайна.
const (
	TypeStatus            = "status"
	TypeStorySummary      = "story_summary"
	TypeStoryPart         = "story_part"
	TypeImagePromptsChunk = "image_prompts_chunk"
	TypeImagePromptItem   = "image_prompt_item"
	TypeImageProgress     = "image_progress"
	TypeImageResult       = "image_result"
	TypeError             = "error"
	TypeDone              = "done"
)

// StatusEvent — человекочитаемое сообщение о ходе генерации.
type StatusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StorySummaryEvent несет название главы и краткое содержание истории.
type StorySummaryEvent struct {
	Type        string `json:"type"`
	ChapterName string `json:"chapter_name"`
	Summary     string `json:"summary"`
}

// StoryPartEvent — одна часть истории.
type StoryPartEvent struct {
	Type         string `json:"type"`
	PartNumber   int    `json:"part_number"`
	ChapterTitle string `json:"chapter_title"`
	StoryContent string `json:"story_content"`
}

// ImagePromptsChunkEvent — все промпты одного батча разом.
type ImagePromptsChunkEvent struct {
	Type    string              `json:"type"`
	Prompts []model.ImagePrompt `json:"prompts"`
}

// ImagePromptItemEvent — один промпт изображения.
type ImagePromptItemEvent struct {
	Type string            `json:"type"`
	Item model.ImagePrompt `json:"item"`
}

// ImageProgressEvent — прогресс последовательной генерации изображений.
type ImageProgressEvent struct {
	Type    string `json:"type"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Title   string `json:"title"`
}

// ImageResultEvent — готовое изображение страницы (или заглушка).
type ImageResultEvent struct {
	Type  string               `json:"type"`
	Image model.GeneratedImage `json:"image"`
}

// ErrorEvent — терминальное событие с текстом ошибки.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DoneEvent — терминальное событие успешного завершения потока.
type DoneEvent struct {
	Type        string `json:"type"`
	BookID      string `json:"book_id,omitempty"`
	ChapterName string `json:"chapter_name,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

func Status(message string) StatusEvent {
	return StatusEvent{Type: TypeStatus, Message: message}
}

func StorySummary(chapterName, summary string) StorySummaryEvent {
	return StorySummaryEvent{Type: TypeStorySummary, ChapterName: chapterName, Summary: summary}
}

func StoryPart(p model.StoryPart) StoryPartEvent {
	return StoryPartEvent{
		Type:         TypeStoryPart,
		PartNumber:   p.PartNumber,
		ChapterTitle: p.ChapterTitle,
		StoryContent: p.StoryContent,
	}
}

func ImagePromptsChunk(prompts []model.ImagePrompt) ImagePromptsChunkEvent {
	return ImagePromptsChunkEvent{Type: TypeImagePromptsChunk, Prompts: prompts}
}

func ImagePromptItem(item model.ImagePrompt) ImagePromptItemEvent {
	return ImagePromptItemEvent{Type: TypeImagePromptItem, Item: item}
}

func ImageProgress(current, total int, title string) ImageProgressEvent {
	return ImageProgressEvent{Type: TypeImageProgress, Current: current, Total: total, Title: title}
}

func ImageResult(img model.GeneratedImage) ImageResultEvent {
	return ImageResultEvent{Type: TypeImageResult, Image: img}
}

func Error(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}

func Done() DoneEvent {
	return DoneEvent{Type: TypeDone}
}

func DoneWithBook(bookID string) DoneEvent {
	return DoneEvent{Type: TypeDone, BookID: bookID}
}

func DoneWithStory(chapterName, summary string) DoneEvent {
	return DoneEvent{Type: TypeDone, ChapterName: chapterName, Summary: summary}
}
