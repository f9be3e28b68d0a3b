package nav_handler

import (
	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/flow"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/render"
)

// NavHandler переход между вопросами: nav|prev, nav|next
type NavHandler struct {
	flow *flow.Flow
}

func NewNavHandler(f *flow.Flow) *NavHandler {
	return &NavHandler{flow: f}
}

func (h *NavHandler) Handle(c telebot.Context) error {
	telegramID := c.Sender().ID
	sess, ok := h.flow.Active(telegramID)
	if !ok {
		return c.Respond(&telebot.CallbackResponse{Text: render.TextNoSession})
	}

	var err error
	switch c.Callback().Data {
	case "prev":
		err = sess.Previous()
	case "next":
		err = sess.Next()
	default:
		return c.Respond(&telebot.CallbackResponse{Text: "Некорректная команда"})
	}
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: flow.UserMessage(err)})
	}

	if err := h.flow.ShowQuestion(telegramID, sess); err != nil {
		return err
	}
	return c.Respond()
}

func (h *NavHandler) GetHandlerFunc() telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return h.Handle(c)
	}
}
