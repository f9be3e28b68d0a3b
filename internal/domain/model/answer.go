package model

import "time"

// Answer представляет ответ пользователя на вопрос сессии.
// Value зависит от типа вопроса: string для single_choice, free_text и code,
// []string для multi_choice, bool для boolean.
type Answer struct {
	QuestionID  int       `json:"question_id"`
	Value       any       `json:"value"`
	SubmittedAt time.Time `json:"submitted_at"`
}
