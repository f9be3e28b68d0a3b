package token_handler

import (
	"context"

	"go.uber.org/zap"
	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/flow"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/render"
	"github.com/IT-Nick/assessbot/internal/domain/users/service"
)

// TokenHandler привязывает токен бэкенда командой /token <значение>
type TokenHandler struct {
	userService *service.UserService
	flow        *flow.Flow
	logger      *zap.Logger
}

func NewTokenHandler(userService *service.UserService, f *flow.Flow, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{userService: userService, flow: f, logger: logger}
}

func (h *TokenHandler) Handle(c telebot.Context) error {
	ctx := context.Background()
	sender := c.Sender()

	// сообщение с токеном не должно оставаться в чате
	if err := c.Delete(); err != nil {
		h.logger.Debug("failed to delete token message", zap.Error(err))
	}

	if _, err := h.userService.GetOrCreateUser(ctx, sender.ID, sender.Username); err != nil {
		h.logger.Error("failed to register user", zap.Int64("telegram_id", sender.ID), zap.Error(err))
		return c.Send(flow.UserMessage(err))
	}
	if err := h.userService.SetAPIToken(ctx, sender.ID, c.Message().Payload); err != nil {
		return c.Send(flow.UserMessage(err), telebot.ModeHTML)
	}
	h.logger.Info("api token bound", zap.Int64("telegram_id", sender.ID))

	if err := c.Send(render.TextTokenSaved); err != nil {
		return err
	}
	userCtx, err := h.flow.UserContext(ctx, sender.ID)
	if err != nil {
		return err
	}
	return h.flow.SendMenu(userCtx, sender.ID)
}

func (h *TokenHandler) GetHandlerFunc() telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return h.Handle(c)
	}
}
