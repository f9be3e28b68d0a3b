package dto

// ResultReportResponse структура для отчета по сохраненному итогу
type ResultReportResponse struct {
	AssessmentID string  `json:"assessment_id"`
	ResultID     string  `json:"result_id"`
	Score        float64 `json:"score"`
	TotalPoints  float64 `json:"total_points"`
	Percent      float64 `json:"percent"`
	Status       string  `json:"status"`
	SubmittedAt  string  `json:"submitted_at"`
}
