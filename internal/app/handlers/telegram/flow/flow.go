// Package flow связывает сессию прохождения теста с сообщениями в чате:
// таймер, текущий вопрос, итог.
package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/render"
	"github.com/IT-Nick/assessbot/internal/domain/assessment/registry"
	"github.com/IT-Nick/assessbot/internal/domain/assessment/service"
	"github.com/IT-Nick/assessbot/internal/domain/model"
	usersService "github.com/IT-Nick/assessbot/internal/domain/users/service"
	"github.com/IT-Nick/assessbot/internal/infra/backend"
	"github.com/IT-Nick/assessbot/internal/infra/timer"
)

// ErrStartInFlight старт или возобновление теста пользователя уже выполняется
var ErrStartInFlight = errors.New("start already in progress")

// Bot часть *telebot.Bot, через которую идут сообщения
type Bot interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Edit(msg telebot.Editable, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Tokens выдает токен бэкенда пользователя
type Tokens interface {
	TokenFor(ctx context.Context, telegramID int64) (string, error)
}

// Options параметры таймера
type Options struct {
	TickInterval time.Duration
	ResyncEvery  int
	// TimerRefresh как часто перерисовывать сообщение с таймером
	TimerRefresh time.Duration
}

type Flow struct {
	bot         Bot
	assessments *service.AssessmentService
	tokens      Tokens
	registry    *registry.Registry
	opts        Options
	logger      *zap.Logger
}

func New(bot Bot, assessments *service.AssessmentService, tokens Tokens, reg *registry.Registry, opts Options, logger *zap.Logger) *Flow {
	return &Flow{
		bot:         bot,
		assessments: assessments,
		tokens:      tokens,
		registry:    reg,
		opts:        opts,
		logger:      logger.Named("flow"),
	}
}

func (f *Flow) Assessments() *service.AssessmentService {
	return f.assessments
}

func (f *Flow) Registry() *registry.Registry {
	return f.registry
}

// UserContext контекст запросов к бэкенду от имени пользователя
func (f *Flow) UserContext(ctx context.Context, telegramID int64) (context.Context, error) {
	token, err := f.tokens.TokenFor(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return backend.WithToken(ctx, token), nil
}

// SendMenu отправляет каталог тестов
func (f *Flow) SendMenu(ctx context.Context, telegramID int64) error {
	tests, err := f.assessments.ListTests(ctx)
	if err != nil {
		f.logger.Warn("list tests failed", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return f.send(telegramID, UserMessage(err), nil)
	}
	text, markup := render.TestsMenu(tests)
	return f.send(telegramID, text, markup)
}

// Active активная сессия пользователя
func (f *Flow) Active(telegramID int64) (*service.Session, bool) {
	entry, ok := f.registry.Get(telegramID)
	if !ok {
		return nil, false
	}
	return entry.Session, true
}

// Launch запускает тест; при конфликте предлагает выбор.
// Пока старт не закончен, повторный вызов для того же пользователя возвращает ErrStartInFlight.
func (f *Flow) Launch(ctx context.Context, telegramID int64, testID int) error {
	if !f.registry.BeginStart(telegramID) {
		return ErrStartInFlight
	}
	defer f.registry.EndStart(telegramID)

	sess, err := f.assessments.Start(ctx, testID)
	if err != nil {
		var conflict *backend.ConflictError
		if errors.As(err, &conflict) {
			text, markup := render.Conflict(testID, conflict.AssessmentID)
			return f.send(telegramID, text, markup)
		}
		f.logger.Warn("start failed", zap.Int64("telegram_id", telegramID), zap.Int("test_id", testID), zap.Error(err))
		return f.send(telegramID, UserMessage(err), nil)
	}
	return f.Begin(ctx, telegramID, sess)
}

// Resolve применяет выбор пользователя при конфликте и начинает полученную сессию
func (f *Flow) Resolve(ctx context.Context, telegramID int64, testID int, conflict *backend.ConflictError, res service.Resolution) error {
	if !f.registry.BeginStart(telegramID) {
		return ErrStartInFlight
	}
	defer f.registry.EndStart(telegramID)

	sess, err := f.assessments.ResolveConflict(ctx, testID, conflict, res)
	if err != nil {
		return err
	}
	return f.Begin(ctx, telegramID, sess)
}

// Begin регистрирует сессию, отправляет сообщения таймера и вопроса и запускает отсчет.
// ctx должен жить дольше обработчика: на нем работают таймер и автоматическое завершение.
func (f *Flow) Begin(ctx context.Context, telegramID int64, sess *service.Session) error {
	log := f.logger.With(zap.Int64("telegram_id", telegramID), zap.String("assessment_id", sess.ID()))

	entry := &registry.Entry{TelegramID: telegramID, Session: sess}
	var lastRefresh time.Time
	var mu sync.Mutex

	countdown := timer.NewCountdown(sess, timer.Options{
		Interval:    f.opts.TickInterval,
		ResyncEvery: f.opts.ResyncEvery,
		Resync:      f.assessments.RemainingSeconds,
		OnTick: func(remaining int) {
			mu.Lock()
			due := time.Since(lastRefresh) >= f.opts.TimerRefresh || remaining == 0
			if due {
				lastRefresh = time.Now()
			}
			mu.Unlock()
			if due {
				f.RefreshTimer(telegramID)
			}
		},
		OnExpire: func(ctx context.Context) {
			if err := f.Complete(ctx, telegramID, sess, service.TriggerTimer); err != nil {
				log.Error("automatic finish failed", zap.Error(err))
			}
		},
	}, f.logger)
	entry.Timer = countdown
	f.registry.Put(entry)

	timerText := render.TimerText(sess.Test().Title, sess.Remaining(), sess.Progress())
	timerMsg, err := f.bot.Send(&telebot.User{ID: telegramID}, timerText, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	if err != nil {
		f.registry.Remove(telegramID, sess.ID())
		return err
	}
	mu.Lock()
	lastRefresh = time.Now()
	mu.Unlock()
	f.registry.SetMessages(telegramID, timerMsg.ID, 0)

	if err := f.sendQuestion(telegramID, sess); err != nil {
		log.Error("failed to send question", zap.Error(err))
	}

	countdown.Start(ctx)
	log.Info("session attached to chat")
	return nil
}

// RefreshTimer перерисовывает сообщение таймера
func (f *Flow) RefreshTimer(telegramID int64) {
	entry, ok := f.registry.Get(telegramID)
	if !ok {
		return
	}
	timerID, _ := f.registry.Messages(telegramID)
	if timerID == 0 {
		return
	}
	sess := entry.Session
	text := render.TimerText(sess.Test().Title, sess.Remaining(), sess.Progress())
	f.edit(telegramID, timerID, text, nil)
}

// ShowQuestion показывает текущий вопрос, редактируя сообщение вопроса
func (f *Flow) ShowQuestion(telegramID int64, sess *service.Session) error {
	_, questionID := f.registry.Messages(telegramID)
	if questionID == 0 {
		return f.sendQuestion(telegramID, sess)
	}
	q, idx := sess.Current()
	text, markup := render.Question(q, idx, len(sess.Questions()), answerPtr(sess, q.ID))
	if !f.edit(telegramID, questionID, text, markup) {
		return f.sendQuestion(telegramID, sess)
	}
	f.RefreshTimer(telegramID)
	return nil
}

func (f *Flow) sendQuestion(telegramID int64, sess *service.Session) error {
	q, idx := sess.Current()
	text, markup := render.Question(q, idx, len(sess.Questions()), answerPtr(sess, q.ID))
	msg, err := f.bot.Send(&telebot.User{ID: telegramID}, text, &telebot.SendOptions{ParseMode: telebot.ModeHTML, ReplyMarkup: markup})
	if err != nil {
		return err
	}
	f.registry.SetMessages(telegramID, 0, msg.ID)
	return nil
}

// Submit отправляет ответ и показывает следующий вопрос или предложение завершить тест
func (f *Flow) Submit(ctx context.Context, telegramID int64, sess *service.Session, questionID int, value any) error {
	outcome, err := f.assessments.Submit(ctx, sess, questionID, value)
	if err != nil {
		return err
	}
	if outcome.ReadyToFinish {
		if err := f.ShowQuestion(telegramID, sess); err != nil {
			return err
		}
		text, markup := render.FinishPrompt(outcome.Progress)
		return f.send(telegramID, text, markup)
	}
	return f.ShowQuestion(telegramID, sess)
}

// Complete завершает сессию и показывает итог. Итог отправляется один раз,
// даже если ручное завершение и истечение времени совпали.
func (f *Flow) Complete(ctx context.Context, telegramID int64, sess *service.Session, trigger service.Trigger) error {
	timerID, questionID := f.registry.Messages(telegramID)
	if trigger == service.TriggerManual && timerID != 0 {
		f.edit(telegramID, timerID, render.TextFinishing, nil)
	}

	result, err := f.assessments.Finish(ctx, sess, trigger)
	if err != nil {
		_ = f.send(telegramID, render.TextFinishFailed, finishMarkup())
		return err
	}

	if !f.registry.Remove(telegramID, sess.ID()) {
		return nil
	}

	if timerID != 0 {
		closing := render.TextTestFinished
		if result.Status == model.StatusExpired {
			closing = render.TextTimeIsUp
		}
		f.edit(telegramID, timerID, closing, nil)
	}
	if questionID != 0 {
		q, idx := sess.Current()
		text, _ := render.Question(q, idx, len(sess.Questions()), answerPtr(sess, q.ID))
		f.edit(telegramID, questionID, text, &telebot.ReplyMarkup{})
	}

	text, markup := render.Result(*result)
	return f.send(telegramID, text, markup)
}

func (f *Flow) send(telegramID int64, text string, markup *telebot.ReplyMarkup) error {
	opts := &telebot.SendOptions{ParseMode: telebot.ModeHTML}
	if markup != nil {
		opts.ReplyMarkup = markup
	}
	_, err := f.bot.Send(&telebot.User{ID: telegramID}, text, opts)
	return err
}

// edit возвращает false, если сообщение отредактировать не удалось
func (f *Flow) edit(telegramID int64, messageID int, text string, markup *telebot.ReplyMarkup) bool {
	opts := &telebot.SendOptions{ParseMode: telebot.ModeHTML}
	if markup != nil {
		opts.ReplyMarkup = markup
	}
	_, err := f.bot.Edit(&telebot.Message{ID: messageID, Chat: &telebot.Chat{ID: telegramID}}, text, opts)
	if err != nil && !isNotModified(err) {
		f.logger.Debug("edit failed", zap.Int64("telegram_id", telegramID), zap.Int("message_id", messageID), zap.Error(err))
		return false
	}
	return true
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

func answerPtr(sess *service.Session, questionID int) *model.Answer {
	if a, ok := sess.Answer(questionID); ok {
		return &a
	}
	return nil
}

func finishMarkup() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("🏁 Завершить тест", model.FinishKey)))
	return markup
}

// UserMessage текст ошибки для пользователя
func UserMessage(err error) string {
	switch {
	case errors.Is(err, usersService.ErrNoToken):
		return render.TextNeedToken
	case errors.Is(err, ErrStartInFlight):
		return render.TextStartInFlight
	case errors.Is(err, service.ErrTimeUp):
		return render.TextAnswersClosed
	case errors.Is(err, service.ErrSubmitInFlight):
		return render.TextSubmitInFlight
	case errors.Is(err, service.ErrStartCancelled):
		return render.TextStartCancelled
	case errors.Is(err, service.ErrNotActive):
		return render.TextNoSession
	case errors.Is(err, service.ErrInvalidAnswer):
		return "❗️ Ответ не подходит к вопросу."
	case errors.Is(err, service.ErrNotPresented), errors.Is(err, service.ErrUnknownQuestion):
		return "❗️ Этот вопрос сейчас недоступен."
	case errors.Is(err, service.ErrOutOfRange):
		return "Дальше вопросов нет."
	case errors.Is(err, backend.ErrForbidden):
		return render.TextForbidden
	case errors.Is(err, backend.ErrTransient):
		return render.TextTemporary
	case errors.Is(err, service.ErrCannotResume):
		return render.TextCannotResume
	case errors.Is(err, service.ErrCannotStart):
		return render.TextCannotStart
	case errors.Is(err, backend.ErrValidation), errors.Is(err, backend.ErrBadRequest):
		return strings.TrimSpace("❗️ Сервер отклонил запрос. " + hint(err))
	}
	return "❌ Что-то пошло не так. Попробуйте еще раз."
}

func hint(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Reason != "" {
		return apiErr.Reason
	}
	return ""
}
