package middleware

import (
	"time"

	"go.uber.org/zap"
	"gopkg.in/telebot.v4"
)

// Logger пишет в лог каждое входящее обновление и время его обработки.
// В режиме verbose добавляется текст сообщения или данные callback.
func Logger(logger *zap.Logger, verbose bool) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			started := time.Now()
			err := next(c)

			fields := []zap.Field{
				zap.Int("update_id", c.Update().ID),
				zap.Duration("took", time.Since(started)),
			}
			if sender := c.Sender(); sender != nil {
				fields = append(fields, zap.Int64("telegram_id", sender.ID))
			}
			if verbose {
				fields = append(fields, zap.String("action", Action(c)))
			}
			if err != nil {
				logger.Warn("update handled with error", append(fields, zap.Error(err))...)
				return err
			}
			logger.Debug("update handled", fields...)
			return nil
		}
	}
}

// Action краткое описание действия пользователя
func Action(c telebot.Context) string {
	if cb := c.Callback(); cb != nil {
		return "callback: " + cb.Unique + "|" + cb.Data
	}
	if msg := c.Message(); msg != nil {
		return "message: " + msg.Text
	}
	return "unknown"
}
