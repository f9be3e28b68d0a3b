package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

// ListTests получает каталог доступных тестов
func (c *Client) ListTests(ctx context.Context) ([]model.Test, error) {
	var tests []model.Test
	if err := c.do(ctx, http.MethodGet, "/skill-tests", nil, &tests); err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	return tests, nil
}

// StartTest запускает тест. Если сессия уже идет, возвращает *ConflictError.
func (c *Client) StartTest(ctx context.Context, testID int) (*model.StartedAssessment, error) {
	var started model.StartedAssessment
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/skill-tests/%d/start", testID), struct{}{}, &started)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return nil, &ConflictError{AssessmentID: apiErr.AssessmentID, Reason: apiErr.Reason}
		}
		return nil, fmt.Errorf("start test %d: %w", testID, err)
	}
	if started.AssessmentID == "" {
		return nil, fmt.Errorf("start test %d: empty assessment id", testID)
	}
	return &started, nil
}

type resumeResponse struct {
	RemainingSeconds int `json:"remaining_seconds"`
	Progress         struct {
		Answered int `json:"answered"`
		Total    int `json:"total"`
	} `json:"progress"`
	Answers []model.Answer `json:"answers"`
}

// ResumeSession получает оставшееся время, прогресс и уже отправленные ответы
func (c *Client) ResumeSession(ctx context.Context, assessmentID string) (*model.ResumeState, error) {
	var resp resumeResponse
	if err := c.do(ctx, http.MethodGet, assessmentPath(assessmentID, "resume"), nil, &resp); err != nil {
		return nil, fmt.Errorf("resume %s: %w", assessmentID, err)
	}
	return &model.ResumeState{
		RemainingSeconds: resp.RemainingSeconds,
		Answered:         resp.Progress.Answered,
		Total:            resp.Progress.Total,
		Answers:          resp.Answers,
	}, nil
}

// CancelSession отменяет идущую сессию на сервере
func (c *Client) CancelSession(ctx context.Context, assessmentID string) error {
	if err := c.do(ctx, http.MethodPost, assessmentPath(assessmentID, "cancel"), struct{}{}, nil); err != nil {
		return fmt.Errorf("cancel %s: %w", assessmentID, err)
	}
	return nil
}

// FetchQuestions получает упорядоченный список вопросов сессии
func (c *Client) FetchQuestions(ctx context.Context, assessmentID string) ([]model.Question, error) {
	var questions []model.Question
	if err := c.do(ctx, http.MethodGet, assessmentPath(assessmentID, "questions"), nil, &questions); err != nil {
		return nil, fmt.Errorf("questions %s: %w", assessmentID, err)
	}
	return questions, nil
}

type submitAnswerRequest struct {
	QuestionID       int `json:"question_id"`
	Value            any `json:"value"`
	TimeTakenSeconds int `json:"time_taken_seconds"`
}

// SubmitAnswer сохраняет (или перезаписывает) ответ на вопрос
func (c *Client) SubmitAnswer(ctx context.Context, assessmentID string, questionID int, value any, timeTaken time.Duration) error {
	req := submitAnswerRequest{
		QuestionID:       questionID,
		Value:            value,
		TimeTakenSeconds: int(timeTaken.Seconds()),
	}
	if err := c.do(ctx, http.MethodPost, assessmentPath(assessmentID, "answers"), req, nil); err != nil {
		return fmt.Errorf("submit answer %d: %w", questionID, err)
	}
	return nil
}

// FinishSession отправляет сессию на проверку. Повторная отправка дает ErrAlreadySubmitted.
func (c *Client) FinishSession(ctx context.Context, assessmentID string) (*model.ResultSummary, error) {
	var result model.ResultSummary
	err := c.do(ctx, http.MethodPost, assessmentPath(assessmentID, "submit"), struct{}{}, &result)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			apiErr.kind = ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("finish %s: %w", assessmentID, err)
	}
	if result.AssessmentID == "" {
		result.AssessmentID = assessmentID
	}
	return &result, nil
}

// FetchResult получает подробный результат сессии
func (c *Client) FetchResult(ctx context.Context, assessmentID string) (*model.ResultDetail, error) {
	var detail model.ResultDetail
	if err := c.do(ctx, http.MethodGet, assessmentPath(assessmentID, "results"), nil, &detail); err != nil {
		return nil, fmt.Errorf("results %s: %w", assessmentID, err)
	}
	if detail.AssessmentID == "" {
		detail.AssessmentID = assessmentID
	}
	return &detail, nil
}

func assessmentPath(assessmentID, action string) string {
	return "/assessments/" + url.PathEscape(assessmentID) + "/" + action
}
