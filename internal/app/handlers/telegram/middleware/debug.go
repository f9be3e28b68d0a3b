package middleware

import (
	"fmt"

	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/domain/assessment/registry"
)

// DebugUserActions после каждого обработчика отправляет пользователю отладочное сообщение:
// кто он, какое действие выполнил и в каком состоянии его тест.
func DebugUserActions(enabled bool, reg *registry.Registry) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			err := next(c)
			if !enabled || c.Sender() == nil {
				return err
			}

			user := c.Sender()
			go func() {
				_, _ = c.Bot().Send(user, DebugText(user, Action(c), reg))
			}()
			return err
		}
	}
}

// DebugText текст отладочного сообщения
func DebugText(user *telebot.User, action string, reg *registry.Registry) string {
	state := "no session"
	if entry, ok := reg.Get(user.ID); ok {
		snap := entry.Session.Snapshot()
		state = fmt.Sprintf("%s/%s, question %d of %d, %ds left",
			snap.Status, snap.Phase, snap.Progress.CurrentQuestionIndex+1, snap.Progress.Total, snap.RemainingSeconds)
	}
	return fmt.Sprintf("DEBUG: User: %s (ID: %d), Session: %s, Action: %s", user.FirstName, user.ID, state, action)
}
