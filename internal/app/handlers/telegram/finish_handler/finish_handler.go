package finish_handler

import (
	"context"

	"go.uber.org/zap"
	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/flow"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/render"
	"github.com/IT-Nick/assessbot/internal/domain/assessment/service"
)

// FinishHandler ручное завершение теста
type FinishHandler struct {
	flow   *flow.Flow
	logger *zap.Logger
}

func NewFinishHandler(f *flow.Flow, logger *zap.Logger) *FinishHandler {
	return &FinishHandler{flow: f, logger: logger}
}

func (h *FinishHandler) Handle(c telebot.Context) error {
	telegramID := c.Sender().ID
	sess, ok := h.flow.Active(telegramID)
	if !ok {
		return c.Respond(&telebot.CallbackResponse{Text: render.TextNoSession})
	}
	if sess.Finalizing() {
		return c.Respond(&telebot.CallbackResponse{Text: render.TextFinishing})
	}

	userCtx, err := h.flow.UserContext(context.Background(), telegramID)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: flow.UserMessage(err), ShowAlert: true})
	}
	_ = c.Respond(&telebot.CallbackResponse{Text: render.TextFinishing})

	if err := h.flow.Complete(userCtx, telegramID, sess, service.TriggerManual); err != nil {
		h.logger.Warn("manual finish failed", zap.Int64("telegram_id", telegramID), zap.String("assessment_id", sess.ID()), zap.Error(err))
	}
	return nil
}

func (h *FinishHandler) GetHandlerFunc() telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return h.Handle(c)
	}
}
