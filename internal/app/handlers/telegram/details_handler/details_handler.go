package details_handler

import (
	"bytes"
	"context"

	"go.uber.org/zap"
	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/flow"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/render"
	"github.com/IT-Nick/assessbot/internal/infra/report"
)

// DetailsHandler показывает разбор результата: details|<assessmentId>.
// Вслед за текстом отправляется PDF-отчет.
type DetailsHandler struct {
	flow    *flow.Flow
	reports *report.Generator
	logger  *zap.Logger
}

func NewDetailsHandler(f *flow.Flow, reports *report.Generator, logger *zap.Logger) *DetailsHandler {
	return &DetailsHandler{flow: f, reports: reports, logger: logger}
}

func (h *DetailsHandler) Handle(c telebot.Context) error {
	telegramID := c.Sender().ID
	assessmentID := c.Callback().Data
	if assessmentID == "" {
		return c.Respond(&telebot.CallbackResponse{Text: "Некорректный запрос"})
	}

	userCtx, err := h.flow.UserContext(context.Background(), telegramID)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: flow.UserMessage(err), ShowAlert: true})
	}

	detail, err := h.flow.Assessments().Result(userCtx, assessmentID)
	if err != nil {
		h.logger.Warn("failed to get result", zap.String("assessment_id", assessmentID), zap.Error(err))
		return c.Respond(&telebot.CallbackResponse{Text: flow.UserMessage(err), ShowAlert: true})
	}

	_ = c.Respond()
	if err := c.Send(render.ResultDetail(*detail), telebot.ModeHTML); err != nil {
		return err
	}

	pdf, err := h.reports.PDF(*detail)
	if err != nil {
		h.logger.Warn("failed to render report", zap.String("assessment_id", assessmentID), zap.Error(err))
		return nil
	}
	return c.Send(&telebot.Document{
		File:     telebot.FromReader(bytes.NewReader(pdf)),
		FileName: report.FileName(assessmentID),
		MIME:     "application/pdf",
	})
}

func (h *DetailsHandler) GetHandlerFunc() telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return h.Handle(c)
	}
}
