package start_test_handler

import (
	"context"
	"errors"
	"strconv"

	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/flow"
)

// StartTestHandler структура для обработки нажатия кнопки запуска теста
type StartTestHandler struct {
	flow *flow.Flow
}

// NewStartTestHandler возвращает новый экземпляр обработчика
func NewStartTestHandler(f *flow.Flow) *StartTestHandler {
	return &StartTestHandler{flow: f}
}

// Handle обрабатывает callback test|<id>
func (h *StartTestHandler) Handle(c telebot.Context) error {
	telegramID := c.Sender().ID

	testID, err := strconv.Atoi(c.Callback().Data)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Некорректный тест"})
	}

	userCtx, err := h.flow.UserContext(context.Background(), telegramID)
	if err != nil {
		_ = c.Respond()
		return c.Send(flow.UserMessage(err), telebot.ModeHTML)
	}

	if err := c.Respond(&telebot.CallbackResponse{Text: "Запускаем тест..."}); err != nil {
		return err
	}
	if err := h.flow.Launch(userCtx, telegramID, testID); !errors.Is(err, flow.ErrStartInFlight) {
		return err
	}
	// повторное нажатие, пока первый старт еще идет
	return nil
}

// GetHandlerFunc возвращает обработчик в формате telebot.HandlerFunc
func (h *StartTestHandler) GetHandlerFunc() telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return h.Handle(c)
	}
}
