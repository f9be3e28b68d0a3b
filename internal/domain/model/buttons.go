package model

// Уникальные ключи inline-кнопок. Привязаны к обработчикам в internal/app.
// Не следует изменять константы без изменения регистрации обработчиков.
const (
	StartTestKey  = "test"
	ConflictKey   = "conflict"
	AnswerKey     = "answer"
	NavigationKey = "nav"
	FinishKey     = "finish"
	DetailsKey    = "details"
)
