package model

// Test описание теста из каталога бэкенда
type Test struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	QuestionCount   int    `json:"question_count"`
}

// StartedAssessment ответ бэкенда на запуск теста
type StartedAssessment struct {
	AssessmentID    string `json:"assessment_id"`
	DurationSeconds int    `json:"duration_seconds"`
	Test            Test   `json:"test"`
}
