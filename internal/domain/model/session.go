package model

import "time"

// SessionStatus статус сессии прохождения теста
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusInProgress SessionStatus = "in_progress"
	StatusSubmitted  SessionStatus = "submitted"
	StatusExpired    SessionStatus = "expired"
)

// Terminal сообщает, что из статуса больше нет переходов
func (s SessionStatus) Terminal() bool {
	return s == StatusSubmitted || s == StatusExpired
}

// CanTransition проверяет монотонность переходов:
// not_started -> in_progress -> {submitted | expired}
func CanTransition(from, to SessionStatus) bool {
	switch from {
	case StatusNotStarted:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusSubmitted || to == StatusExpired
	default:
		return false
	}
}

// Progress производное состояние прохождения, отдельно не хранится
type Progress struct {
	CurrentQuestionIndex int `json:"current_question_index"`
	AnsweredCount        int `json:"answered_count"`
	Total                int `json:"total"`
}

// ResumeState состояние сессии на сервере для восстановления
type ResumeState struct {
	RemainingSeconds int      `json:"remaining_seconds"`
	Answered         int      `json:"answered"`
	Total            int      `json:"total"`
	Answers          []Answer `json:"answers"`
}

// ResultSummary итог проверки сессии
type ResultSummary struct {
	AssessmentID string        `json:"assessment_id"`
	ResultID     string        `json:"result_id"`
	Score        float64       `json:"score"`
	TotalPoints  float64       `json:"total_points"`
	Status       SessionStatus `json:"status"`
	SubmittedAt  time.Time     `json:"submitted_at"`
}

// QuestionResult разбор ответа на один вопрос
type QuestionResult struct {
	QuestionID int     `json:"question_id"`
	Prompt     string  `json:"prompt"`
	Answer     any     `json:"answer"`
	Correct    *bool   `json:"correct,omitempty"`
	Points     float64 `json:"points"`
	Earned     float64 `json:"earned"`
}

// ResultDetail подробный результат для экрана результатов
type ResultDetail struct {
	ResultSummary
	Questions []QuestionResult `json:"questions"`
}
