// Package render формирует тексты и клавиатуры сообщений бота.
package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

const (
	TextNeedToken = "🔑 Чтобы проходить тесты, привяжите аккаунт: отправьте <code>/token ВАШ_ТОКЕН</code>.\n" +
		"Токен можно получить в личном кабинете платформы."
	TextTokenSaved      = "✅ Токен сохранен."
	TextNoTests         = "Сейчас нет доступных тестов."
	TextNoSession       = "У вас нет активного теста."
	TextStartCancelled  = "Хорошо, текущий тест остается без изменений."
	TextSubmitInFlight  = "⏳ Предыдущий ответ еще сохраняется, подождите."
	TextAnswerSaved     = "Ответ сохранен"
	TextStartInFlight   = "⏳ Тест уже запускается, подождите."
	TextFinishing       = "⏳ Отправляем тест на проверку..."
	TextTimeIsUp        = "⏰ Время вышло!"
	TextAnswersClosed   = "⏰ Время вышло, ответы больше не принимаются. Нажмите «Завершить тест»."
	TextTestFinished    = "🏁 Тест завершен."
	TextFinishFailed    = "❌ Не удалось отправить тест на проверку. Попробуйте еще раз кнопкой «Завершить тест»."
	TextCannotStart     = "❌ Не удалось начать тест. Попробуйте позже."
	TextCannotResume    = "❌ Не удалось продолжить тест. Попробуйте позже."
	TextForbidden       = "⛔️ Доступ запрещен. Проверьте токен командой /token."
	TextTemporary       = "⚠️ Сервис временно недоступен. Попробуйте еще раз."
	TextMultiChoiceHelp = "Отправьте номера вариантов через запятую, например: <code>1,3</code>"
	TextFreeTextHelp    = "Отправьте ответ сообщением."
	TextCodeHelp        = "Отправьте код сообщением."
)

// FormatDuration форматирует секунды как ММ:СС
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// TimerText текст сообщения с таймером
func TimerText(title string, remaining int, p model.Progress) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "📝 <b>%s</b>\n", html.EscapeString(title))
	}
	fmt.Fprintf(&b, "⏰ Осталось: %s · Вопрос %d/%d · Отвечено %d",
		FormatDuration(remaining), p.CurrentQuestionIndex+1, p.Total, p.AnsweredCount)
	return b.String()
}

// TestsMenu список тестов кнопками
func TestsMenu(tests []model.Test) (string, *telebot.ReplyMarkup) {
	if len(tests) == 0 {
		return TextNoTests, nil
	}

	markup := &telebot.ReplyMarkup{}
	rows := make([]telebot.Row, 0, len(tests))
	var b strings.Builder
	b.WriteString("📋 <b>Доступные тесты</b>\n\n")
	for _, t := range tests {
		fmt.Fprintf(&b, "• <b>%s</b>", html.EscapeString(t.Title))
		if t.DurationSeconds > 0 {
			fmt.Fprintf(&b, " · %d мин", (t.DurationSeconds+59)/60)
		}
		if t.QuestionCount > 0 {
			fmt.Fprintf(&b, " · %d вопр.", t.QuestionCount)
		}
		b.WriteString("\n")
		if t.Description != "" {
			fmt.Fprintf(&b, "  <i>%s</i>\n", html.EscapeString(t.Description))
		}
		rows = append(rows, markup.Row(markup.Data("▶️ "+t.Title, model.StartTestKey, strconv.Itoa(t.ID))))
	}
	markup.Inline(rows...)
	return b.String(), markup
}

// Conflict предложение выбрать, что делать с уже идущим тестом
func Conflict(testID int, assessmentID string) (string, *telebot.ReplyMarkup) {
	markup := &telebot.ReplyMarkup{}
	id := strconv.Itoa(testID)
	markup.Inline(
		markup.Row(markup.Data("▶️ Продолжить", model.ConflictKey, "resume", id, assessmentID)),
		markup.Row(markup.Data("🔄 Начать заново", model.ConflictKey, "restart", id, assessmentID)),
		markup.Row(markup.Data("✖️ Отмена", model.ConflictKey, "cancel", id, assessmentID)),
	)
	return "⚠️ У вас уже есть незавершенный тест. Продолжить его или начать заново?", markup
}

// Question текст вопроса и клавиатура ответов и навигации
func Question(q model.Question, index, total int, answer *model.Answer) (string, *telebot.ReplyMarkup) {
	var b strings.Builder
	fmt.Fprintf(&b, "❓ <b>Вопрос %d/%d</b>", index+1, total)
	if q.Points > 0 {
		fmt.Fprintf(&b, " · %d б.", q.Points)
	}
	b.WriteString("\n\n")
	if q.Type == model.QuestionCode {
		fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(q.Prompt))
	} else {
		fmt.Fprintf(&b, "%s\n", html.EscapeString(q.Prompt))
	}

	markup := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	qid := strconv.Itoa(q.ID)

	switch q.Type {
	case model.QuestionSingleChoice:
		b.WriteString("\n")
		for i, o := range q.Options {
			fmt.Fprintf(&b, "%d. %s\n", i+1, html.EscapeString(optionLabel(o)))
			rows = append(rows, markup.Row(markup.Data(marker(answer, o.Value)+strconv.Itoa(i+1)+". "+optionLabel(o), model.AnswerKey, qid, strconv.Itoa(i))))
		}
	case model.QuestionMultiChoice:
		b.WriteString("\n")
		for i, o := range q.Options {
			fmt.Fprintf(&b, "%s%d. %s\n", marker(answer, o.Value), i+1, html.EscapeString(optionLabel(o)))
		}
		fmt.Fprintf(&b, "\n%s\n", TextMultiChoiceHelp)
	case model.QuestionBoolean:
		rows = append(rows, markup.Row(
			markup.Data(boolMarker(answer, true)+"Да", model.AnswerKey, qid, "true"),
			markup.Data(boolMarker(answer, false)+"Нет", model.AnswerKey, qid, "false"),
		))
	case model.QuestionFreeText:
		fmt.Fprintf(&b, "\n%s\n", TextFreeTextHelp)
	case model.QuestionCode:
		fmt.Fprintf(&b, "\n%s\n", TextCodeHelp)
	}

	if answer != nil {
		if s := AnswerText(q, answer.Value); s != "" && q.Type != model.QuestionSingleChoice && q.Type != model.QuestionBoolean {
			fmt.Fprintf(&b, "\n✅ Ваш ответ: %s\n", html.EscapeString(s))
		}
	}

	var nav []telebot.Btn
	if index > 0 {
		nav = append(nav, markup.Data("⬅️ Назад", model.NavigationKey, "prev"))
	}
	if index < total-1 {
		nav = append(nav, markup.Data("Далее ➡️", model.NavigationKey, "next"))
	}
	if len(nav) > 0 {
		rows = append(rows, markup.Row(nav...))
	}
	rows = append(rows, markup.Row(markup.Data("🏁 Завершить тест", model.FinishKey)))
	markup.Inline(rows...)

	return b.String(), markup
}

// AnswerText ответ в читаемом виде
func AnswerText(q model.Question, value any) string {
	switch v := value.(type) {
	case string:
		if o, ok := findOption(q, v); ok {
			return optionLabel(o)
		}
		return v
	case bool:
		if v {
			return "Да"
		}
		return "Нет"
	case []string:
		labels := make([]string, 0, len(v))
		for _, s := range v {
			labels = append(labels, AnswerText(q, s))
		}
		return strings.Join(labels, ", ")
	case []any:
		labels := make([]string, 0, len(v))
		for _, s := range v {
			labels = append(labels, AnswerText(q, s))
		}
		return strings.Join(labels, ", ")
	case nil:
		return ""
	}
	return fmt.Sprint(value)
}

// FinishPrompt предложение завершить тест после ответа на последний вопрос
func FinishPrompt(p model.Progress) (string, *telebot.ReplyMarkup) {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("🏁 Завершить тест", model.FinishKey)))

	text := fmt.Sprintf("Вы ответили на %d из %d вопросов. Завершить тест?", p.AnsweredCount, p.Total)
	if unanswered := p.Total - p.AnsweredCount; unanswered > 0 {
		text += fmt.Sprintf("\nБез ответа осталось вопросов: %d. К ним можно вернуться кнопкой «Назад».", unanswered)
	}
	return text, markup
}

// Result итог проверки с кнопкой подробностей
func Result(r model.ResultSummary) (string, *telebot.ReplyMarkup) {
	var b strings.Builder
	if r.Status == model.StatusExpired {
		b.WriteString(TextTimeIsUp + "\n")
	}
	b.WriteString(TextTestFinished + "\n\n")
	fmt.Fprintf(&b, "📊 Результат: <b>%s из %s</b>", formatPoints(r.Score), formatPoints(r.TotalPoints))
	if r.TotalPoints > 0 {
		fmt.Fprintf(&b, " (%.0f%%)", r.Score/r.TotalPoints*100)
	}

	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("🔍 Подробнее", model.DetailsKey, r.AssessmentID)))
	return b.String(), markup
}

// ResultDetail разбор ответов по вопросам
func ResultDetail(d model.ResultDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Результат: %s из %s</b>\n", formatPoints(d.Score), formatPoints(d.TotalPoints))
	if !d.SubmittedAt.IsZero() {
		fmt.Fprintf(&b, "Отправлен: %s\n", d.SubmittedAt.Format("02.01.2006 15:04"))
	}
	b.WriteString("\n")

	for i, q := range d.Questions {
		mark := "▫️"
		if q.Correct != nil {
			if *q.Correct {
				mark = "✅"
			} else {
				mark = "❌"
			}
		}
		fmt.Fprintf(&b, "%s %d. %s\n", mark, i+1, html.EscapeString(q.Prompt))
		answer := AnswerText(model.Question{}, q.Answer)
		if answer == "" {
			answer = "нет ответа"
		}
		fmt.Fprintf(&b, "    Ответ: %s · %s/%s\n", html.EscapeString(answer), formatPoints(q.Earned), formatPoints(q.Points))
	}
	return b.String()
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionLabel(o model.Option) string {
	if o.Label != "" {
		return o.Label
	}
	return o.Value
}

func findOption(q model.Question, value string) (model.Option, bool) {
	for _, o := range q.Options {
		if o.Value == value {
			return o, true
		}
	}
	return model.Option{}, false
}

func marker(answer *model.Answer, value string) string {
	if answer == nil {
		return ""
	}
	switch v := answer.Value.(type) {
	case string:
		if v == value {
			return "✅ "
		}
	case []string:
		for _, s := range v {
			if s == value {
				return "✅ "
			}
		}
	}
	return ""
}

func boolMarker(answer *model.Answer, value bool) string {
	if answer == nil {
		return ""
	}
	if v, ok := answer.Value.(bool); ok && v == value {
		return "✅ "
	}
	return ""
}
