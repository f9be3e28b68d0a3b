package start_handler

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/flow"
	"github.com/IT-Nick/assessbot/internal/domain/users/service"
)

var payloadPattern = regexp.MustCompile(`^test_(\d+)(?:_([A-Za-z0-9]+))?$`)

// ParsePayload разбирает параметр deep link вида test_<id> или test_<id>_<ref>
func ParsePayload(payload string) (testID int, ref string, ok bool) {
	m := payloadPattern.FindStringSubmatch(payload)
	if m == nil {
		return 0, "", false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, m[2], true
}

// StartHandler регистрирует пользователя и показывает каталог тестов
type StartHandler struct {
	userService *service.UserService
	flow        *flow.Flow
	logger      *zap.Logger
}

// NewStartHandler возвращает новый экземпляр обработчика
func NewStartHandler(userService *service.UserService, f *flow.Flow, logger *zap.Logger) *StartHandler {
	return &StartHandler{
		userService: userService,
		flow:        f,
		logger:      logger,
	}
}

func (h *StartHandler) Handle(c telebot.Context) error {
	ctx := context.Background()
	sender := c.Sender()

	if _, err := h.userService.GetOrCreateUser(ctx, sender.ID, sender.Username); err != nil {
		h.logger.Error("failed to register user", zap.Int64("telegram_id", sender.ID), zap.Error(err))
		return c.Send(flow.UserMessage(err))
	}

	userCtx, err := h.flow.UserContext(ctx, sender.ID)
	if err != nil {
		return c.Send(flow.UserMessage(err), telebot.ModeHTML)
	}

	if testID, ref, ok := ParsePayload(c.Message().Payload); ok {
		h.logger.Info("start by link", zap.Int64("telegram_id", sender.ID), zap.Int("test_id", testID), zap.String("ref", ref))
		err := h.flow.Launch(userCtx, sender.ID, testID)
		if errors.Is(err, flow.ErrStartInFlight) {
			return c.Send(flow.UserMessage(err))
		}
		return err
	}

	return h.flow.SendMenu(userCtx, sender.ID)
}

// GetHandlerFunc возвращает обработчик в формате telebot.HandlerFunc
func (h *StartHandler) GetHandlerFunc() telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return h.Handle(c)
	}
}
