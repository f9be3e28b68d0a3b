package answer_handler

import (
	"context"
	"fmt"
	"strconv"

	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/flow"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/render"
	"github.com/IT-Nick/assessbot/internal/domain/model"
)

// AnswerHandler принимает ответ кнопкой: answer|<questionId>|<номер варианта или true/false>
type AnswerHandler struct {
	flow *flow.Flow
}

func NewAnswerHandler(f *flow.Flow) *AnswerHandler {
	return &AnswerHandler{flow: f}
}

// CallbackValue переводит данные кнопки в значение ответа
func CallbackValue(q model.Question, raw string) (any, error) {
	switch q.Type {
	case model.QuestionBoolean:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", raw)
		}
		return v, nil
	case model.QuestionSingleChoice:
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 || idx >= len(q.Options) {
			return nil, fmt.Errorf("invalid option index %q", raw)
		}
		return q.Options[idx].Value, nil
	}
	return nil, fmt.Errorf("question type %s is answered by text", q.Type)
}

func (h *AnswerHandler) Handle(c telebot.Context) error {
	telegramID := c.Sender().ID
	args := c.Args()
	if len(args) != 2 {
		return c.Respond(&telebot.CallbackResponse{Text: "Некорректный ответ"})
	}
	questionID, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Некорректный ответ"})
	}

	sess, ok := h.flow.Active(telegramID)
	if !ok {
		return c.Respond(&telebot.CallbackResponse{Text: render.TextNoSession})
	}

	var question *model.Question
	for _, q := range sess.Questions() {
		if q.ID == questionID {
			question = &q
			break
		}
	}
	if question == nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Этот вопрос не из текущего теста"})
	}
	value, err := CallbackValue(*question, args[1])
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Некорректный ответ"})
	}

	userCtx, err := h.flow.UserContext(context.Background(), telegramID)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: flow.UserMessage(err), ShowAlert: true})
	}

	if err := h.flow.Submit(userCtx, telegramID, sess, questionID, value); err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: flow.UserMessage(err), ShowAlert: true})
	}
	return c.Respond(&telebot.CallbackResponse{Text: render.TextAnswerSaved})
}

func (h *AnswerHandler) GetHandlerFunc() telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return h.Handle(c)
	}
}
