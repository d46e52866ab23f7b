// Package schemas описывает JSON-структуры, которые обязана вернуть
// текстовая модель. Дескрипторы вставляются в промпт как требование к ответу.
package schemas

import (
	"encoding/json"
	"fmt"
)

// panelsPerPage — фиксированное число панелей на странице комикса.
const panelsPerPage = 3

// Schema — узел JSON-схемы. Сериализуется в стандартную schema-нотацию.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	MinItems    int                `json:"minItems,omitempty"`
	MaxItems    int                `json:"maxItems,omitempty"`
}

// ImagePrompts строит схему ответа этапа промптов для батча из batchSize
// частей истории: массив image_prompts обязан содержать ровно batchSize
// элементов, каждый — ровно panelsPerPage панелей.
func ImagePrompts(batchSize int) *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"image_prompts": {
				Type:     "array",
				MinItems: batchSize,
				MaxItems: batchSize,
				Items: &Schema{
					Type: "object",
					Properties: map[string]*Schema{
						"id": {
							Type:        "number",
							Description: "Must equal the part_number of the story part this page illustrates",
						},
						"title": {
							Type:        "string",
							Description: "Short page title",
						},
						"prompt_text": {
							Type:        "string",
							Description: "Overall page layout and composition instruction",
						},
						"panels": {
							Type:     "array",
							MinItems: panelsPerPage,
							MaxItems: panelsPerPage,
							Items: &Schema{
								Type: "object",
								Properties: map[string]*Schema{
									"panel_number": {Type: "number"},
									"description": {
										Type:        "string",
										Description: "Visual description of the panel scene",
									},
									"text_content": {
										Type:        "string",
										Description: "Exact dialogue or caption text to render in the panel",
									},
								},
								Required: []string{"panel_number", "description", "text_content"},
							},
						},
						"art_notes": {
							Type:        "string",
							Description: "Style, palette and mood notes for the artist",
						},
					},
					Required: []string{"id", "title", "prompt_text", "panels", "art_notes"},
				},
			},
		},
		Required: []string{"image_prompts"},
	}
}

// ImagePromptsJSON возвращает схему в отформатированном JSON для вставки в промпт.
func ImagePromptsJSON(batchSize int) (string, error) {
	payload, err := json.MarshalIndent(ImagePrompts(batchSize), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal image prompts schema: %w", err)
	}
	return string(payload), nil
}
