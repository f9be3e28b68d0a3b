package text_handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/flow"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/render"
	"github.com/IT-Nick/assessbot/internal/domain/model"
)

// TextHandler принимает текстовый ответ на текущий вопрос
type TextHandler struct {
	flow *flow.Flow
}

func NewTextHandler(f *flow.Flow) *TextHandler {
	return &TextHandler{flow: f}
}

// TextValue переводит текст сообщения в значение ответа на вопрос q.
// Для вариантов ответа ожидаются их номера, для multi_choice через запятую.
func TextValue(q model.Question, text string) (any, error) {
	text = strings.TrimSpace(text)
	switch q.Type {
	case model.QuestionMultiChoice:
		parts := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			value, err := optionByNumber(q, p)
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		return values, nil
	case model.QuestionSingleChoice:
		return optionByNumber(q, text)
	}
	// boolean принимает да/нет, проверка в NormalizeAnswer
	return text, nil
}

func optionByNumber(q model.Question, s string) (string, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > len(q.Options) {
		return "", fmt.Errorf("option number %q out of range", s)
	}
	return q.Options[n-1].Value, nil
}

func (h *TextHandler) Handle(c telebot.Context) error {
	telegramID := c.Sender().ID
	sess, ok := h.flow.Active(telegramID)
	if !ok {
		return c.Send("Чтобы выбрать тест, отправьте /start")
	}

	q, _ := sess.Current()
	value, err := TextValue(q, c.Text())
	if err != nil {
		return c.Send("❗️ Не удалось разобрать ответ. "+render.TextMultiChoiceHelp, telebot.ModeHTML)
	}

	userCtx, err := h.flow.UserContext(context.Background(), telegramID)
	if err != nil {
		return c.Send(flow.UserMessage(err), telebot.ModeHTML)
	}
	if err := h.flow.Submit(userCtx, telegramID, sess, q.ID, value); err != nil {
		return c.Send(flow.UserMessage(err))
	}
	return nil
}

func (h *TextHandler) GetHandlerFunc() telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return h.Handle(c)
	}
}
