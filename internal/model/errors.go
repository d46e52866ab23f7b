package model

import "errors"

// Ошибки уровня домена. Оборачиваются через %w, проверяются через errors.Is.
var (
	// ErrGenerationFormat — ответ AI не удалось распарсить или он нарушает
	// требуемую структуру (не-JSON, лишние/отсутствующие поля).
	ErrGenerationFormat = errors.New("generation response has invalid format")

	// ErrGenerationCountMismatch — ответ AI структурно корректен, но содержит
	// не то число элементов, которое было запрошено.
	ErrGenerationCountMismatch = errors.New("generation response item count mismatch")

	// ErrTransientService — удаленный AI-сервис временно недоступен (502/503/504).
	ErrTransientService = errors.New("ai service temporarily unavailable")

	// ErrUpload — не удалось загрузить изображение в хранилище.
	ErrUpload = errors.New("image upload failed")

	// ErrPersistence — не удалось сохранить книгу в базе данных.
	ErrPersistence = errors.New("book persistence failed")

	// ErrNotFound — запрошенная сущность не найдена.
	ErrNotFound = errors.New("not found")

	// ErrEmptyTopic — тема генерации отсутствует или состоит из пробелов.
	ErrEmptyTopic = errors.New("topic is required")

	// ErrRunInProgress — генерация по этой теме уже выполняется.
	ErrRunInProgress = errors.New("generation for this topic is already in progress")

	// ErrStreamIncomplete — SSE-поток завершился без терминального события.
	ErrStreamIncomplete = errors.New("stream ended without done or error event")
)
