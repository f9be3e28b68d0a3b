package active_sessions_handler

import (
	"net/http"
	"time"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/render"
	"github.com/IT-Nick/assessbot/internal/domain/assessment/registry"
	"github.com/IT-Nick/assessbot/internal/domain/dto"
	httpResponse "github.com/IT-Nick/assessbot/pkg/http"
)

// SessionLister источник активных сессий
type SessionLister interface {
	List() []registry.ActiveSession
}

// ActiveSessionsHandler отчет по активным сессиям
type ActiveSessionsHandler struct {
	sessions SessionLister
}

// NewActiveSessionsHandler создает новый экземпляр обработчика
func NewActiveSessionsHandler(sessions SessionLister) *ActiveSessionsHandler {
	return &ActiveSessionsHandler{sessions: sessions}
}

// ServeHTTP метод для обработки запроса
func (h *ActiveSessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	active := h.sessions.List()

	infos := make([]dto.ActiveSessionInfo, 0, len(active))
	for _, s := range active {
		infos = append(infos, dto.ActiveSessionInfo{
			TelegramID:      s.TelegramID,
			AssessmentID:    s.AssessmentID,
			TestID:          s.TestID,
			TestName:        s.TestTitle,
			Status:          s.Status,
			Phase:           s.Phase,
			StartedAt:       s.StartedAt.Format(time.RFC3339),
			Duration:        s.DurationSeconds,
			RemainingTime:   render.FormatDuration(s.RemainingSeconds),
			CurrentQuestion: s.Progress.CurrentQuestionIndex + 1,
			AnsweredCount:   s.Progress.AnsweredCount,
			TotalQuestions:  s.Progress.Total,
		})
	}

	httpResponse.JSONResponse(w, http.StatusOK, dto.ActiveSessionsResponse{
		TotalActiveUsers: len(infos),
		ActiveSessions:   infos,
	})
}
