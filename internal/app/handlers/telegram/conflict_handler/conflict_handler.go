package conflict_handler

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/flow"
	"github.com/IT-Nick/assessbot/internal/domain/assessment/service"
	"github.com/IT-Nick/assessbot/internal/infra/backend"
)

// ConflictHandler применяет выбор пользователя при конфликте старта:
// conflict|<resume|restart|cancel>|<testId>|<assessmentId>
type ConflictHandler struct {
	flow   *flow.Flow
	logger *zap.Logger
}

func NewConflictHandler(f *flow.Flow, logger *zap.Logger) *ConflictHandler {
	return &ConflictHandler{flow: f, logger: logger}
}

func (h *ConflictHandler) Handle(c telebot.Context) error {
	telegramID := c.Sender().ID
	args := c.Args()
	if len(args) != 3 {
		return c.Respond(&telebot.CallbackResponse{Text: "Некорректный выбор"})
	}
	resolution, err := service.ParseResolution(args[0])
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Некорректный выбор"})
	}
	testID, err := strconv.Atoi(args[1])
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Некорректный тест"})
	}
	conflict := &backend.ConflictError{AssessmentID: args[2]}

	userCtx, err := h.flow.UserContext(context.Background(), telegramID)
	if err != nil {
		_ = c.Respond()
		return c.Send(flow.UserMessage(err), telebot.ModeHTML)
	}
	_ = c.Respond()

	err = h.flow.Resolve(userCtx, telegramID, testID, conflict, resolution)
	switch {
	case errors.Is(err, flow.ErrStartInFlight):
		// выбор уже обрабатывается по первому нажатию
		return nil
	case err != nil:
		if !errors.Is(err, service.ErrStartCancelled) {
			h.logger.Warn("conflict resolution failed",
				zap.Int64("telegram_id", telegramID),
				zap.String("resolution", string(resolution)),
				zap.Error(err))
		}
		return c.Edit(flow.UserMessage(err))
	}

	if err := c.Edit("👌 Выбор принят."); err != nil {
		h.logger.Debug("failed to edit conflict message", zap.Error(err))
	}
	return nil
}

func (h *ConflictHandler) GetHandlerFunc() telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return h.Handle(c)
	}
}
