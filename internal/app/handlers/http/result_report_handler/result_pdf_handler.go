package result_report_handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/IT-Nick/assessbot/internal/domain/model"
	"github.com/IT-Nick/assessbot/internal/infra/report"
	httpResponse "github.com/IT-Nick/assessbot/pkg/http"
)

// ResultPDFHandler отдает сохраненный итог в виде PDF
type ResultPDFHandler struct {
	results ResultStore
	reports *report.Generator
	logger  *zap.Logger
}

func NewResultPDFHandler(results ResultStore, reports *report.Generator, logger *zap.Logger) *ResultPDFHandler {
	return &ResultPDFHandler{results: results, reports: reports, logger: logger}
}

func (h *ResultPDFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assessmentID := mux.Vars(r)["assessment_id"]

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

	pdf, err := h.reports.PDF(model.ResultDetail{ResultSummary: *result})
	if err != nil {
		h.logger.Error("failed to render report", zap.String("assessment_id", assessmentID), zap.Error(err))
		httpResponse.ErrorResponse(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(assessmentID)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
