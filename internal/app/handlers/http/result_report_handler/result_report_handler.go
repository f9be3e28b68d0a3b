package result_report_handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/IT-Nick/assessbot/internal/domain/dto"
	"github.com/IT-Nick/assessbot/internal/domain/model"
	httpResponse "github.com/IT-Nick/assessbot/pkg/http"
)

// ResultStore сохраненные итоги
type ResultStore interface {
	GetByAssessmentID(ctx context.Context, assessmentID string) (*model.ResultSummary, error)
}

// ResultReportHandler отдает сохраненный итог сессии
type ResultReportHandler struct {
	results ResultStore
	logger  *zap.Logger
}

// NewResultReportHandler создает новый экземпляр обработчика
func NewResultReportHandler(results ResultStore, logger *zap.Logger) *ResultReportHandler {
	return &ResultReportHandler{results: results, logger: logger}
}

// ServeHTTP метод для обработки запроса
func (h *ResultReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assessmentID := mux.Vars(r)["assessment_id"]
	if assessmentID == "" {
		httpResponse.ErrorResponse(w, http.StatusBadRequest, "Missing assessment_id")
		return
	}

	result, err := h.results.GetByAssessmentID(r.Context(), assessmentID)
	if err != nil {
		h.logger.Error("failed to get result", zap.String("assessment_id", assessmentID), zap.Error(err))
		httpResponse.ErrorResponse(w, http.StatusInternalServerError, "Failed to get result")
		return
	}
	if result == nil {
		httpResponse.ErrorResponse(w, http.StatusNotFound, "Result not found")
		return
	}

	response := dto.ResultReportResponse{
		AssessmentID: result.AssessmentID,
		ResultID:     result.ResultID,
		Score:        result.Score,
		TotalPoints:  result.TotalPoints,
		Status:       string(result.Status),
		SubmittedAt:  result.SubmittedAt.Format(time.RFC3339),
	}
	if result.TotalPoints > 0 {
		response.Percent = result.Score / result.TotalPoints * 100
	}
	httpResponse.JSONResponse(w, http.StatusOK, response)
}
