package dto

import "github.com/IT-Nick/assessbot/internal/domain/model"

// ActiveSessionsResponse структура для отчета по активным сессиям
type ActiveSessionsResponse struct {
	TotalActiveUsers int                 `json:"total_active_users"`
	ActiveSessions   []ActiveSessionInfo `json:"active_sessions"`
}

type ActiveSessionInfo struct {
	TelegramID      int64               `json:"telegram_id"`
	AssessmentID    string              `json:"assessment_id"`
	TestID          int                 `json:"test_id"`
	TestName        string              `json:"test_name"`
	Status          model.SessionStatus `json:"status"`
	Phase           string              `json:"phase"`
	StartedAt       string              `json:"started_at"`
	Duration        int                 `json:"duration"`
	RemainingTime   string              `json:"remaining_time"`
	CurrentQuestion int                 `json:"current_question"`
	AnsweredCount   int                 `json:"answered_count"`
	TotalQuestions  int                 `json:"total_questions"`
}
