package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/IT-Nick/assessbot/internal/domain/model"
	"github.com/IT-Nick/assessbot/internal/infra/backend"
)

// Backend удаленный API оценки навыков
type Backend interface {
	ListTests(ctx context.Context) ([]model.Test, error)
	StartTest(ctx context.Context, testID int) (*model.StartedAssessment, error)
	ResumeSession(ctx context.Context, assessmentID string) (*model.ResumeState, error)
	CancelSession(ctx context.Context, assessmentID string) error
	FetchQuestions(ctx context.Context, assessmentID string) ([]model.Question, error)
	SubmitAnswer(ctx context.Context, assessmentID string, questionID int, value any, timeTaken time.Duration) error
	FinishSession(ctx context.Context, assessmentID string) (*model.ResultSummary, error)
	FetchResult(ctx context.Context, assessmentID string) (*model.ResultDetail, error)
}

// ResultStore локальный кэш итогов. Save сохраняет только первую запись и возвращает сохраненную.
type ResultStore interface {
	Save(ctx context.Context, result model.ResultSummary) (model.ResultSummary, error)
	GetByAssessmentID(ctx context.Context, assessmentID string) (*model.ResultSummary, error)
}

// Resolution выбор пользователя при конфликте старта
type Resolution string

const (
	ResolutionCancel  Resolution = "cancel"
	ResolutionResume  Resolution = "resume"
	ResolutionRestart Resolution = "restart"
)

// ParseResolution разбирает выбор из данных callback-кнопки
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case ResolutionCancel, ResolutionResume, ResolutionRestart:
		return r, nil
	}
	return "", fmt.Errorf("unknown resolution %q", s)
}

// Trigger источник завершения
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerTimer  Trigger = "timer"
)

// SubmitOutcome результат подтвержденной отправки ответа
type SubmitOutcome struct {
	// Advanced текущий вопрос сдвинулся на следующий
	Advanced bool
	// ReadyToFinish ответ был на последний вопрос, пора предложить завершение
	ReadyToFinish bool
	Progress      model.Progress
}

// AssessmentService управляет сессиями прохождения тестов
type AssessmentService struct {
	backend Backend
	results ResultStore
	logger  *zap.Logger
}

// NewAssessmentService создает сервис. results может быть nil, тогда итоги не кэшируются.
func NewAssessmentService(b Backend, results ResultStore, logger *zap.Logger) *AssessmentService {
	return &AssessmentService{
		backend: b,
		results: results,
		logger:  logger.Named("assessment"),
	}
}

// ListTests каталог тестов для меню
func (s *AssessmentService) ListTests(ctx context.Context) ([]model.Test, error) {
	tests, err := s.backend.ListTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	return tests, nil
}

// Start запускает тест. При уже идущей сессии возвращает *backend.ConflictError,
// дальше вызывающий спрашивает пользователя и передает выбор в ResolveConflict.
func (s *AssessmentService) Start(ctx context.Context, testID int) (*Session, error) {
	started, err := s.backend.StartTest(ctx, testID)
	if err != nil {
		if conflict, ok := backend.AsConflict(err); ok {
			s.logger.Info("start conflict",
				zap.Int("test_id", testID),
				zap.String("assessment_id", conflict.AssessmentID))
			return nil, conflict
		}
		return nil, fmt.Errorf("%w: %w", ErrCannotStart, err)
	}
	return s.open(ctx, started)
}

// ResolveConflict применяет выбор пользователя к конфликту старта
func (s *AssessmentService) ResolveConflict(ctx context.Context, testID int, conflict *backend.ConflictError, res Resolution) (*Session, error) {
	log := s.logger.With(zap.Int("test_id", testID), zap.String("resolution", string(res)))

	switch res {
	case ResolutionCancel:
		return nil, ErrStartCancelled

	case ResolutionResume:
		if conflict == nil || conflict.AssessmentID == "" {
			return nil, fmt.Errorf("%w: conflicting assessment id is unknown", ErrCannotResume)
		}
		return s.resume(ctx, model.Test{ID: testID}, conflict.AssessmentID)

	case ResolutionRestart:
		if conflict != nil && conflict.AssessmentID != "" {
			if err := s.backend.CancelSession(ctx, conflict.AssessmentID); err != nil {
				log.Warn("cancel before restart failed, resuming existing assessment",
					zap.String("assessment_id", conflict.AssessmentID), zap.Error(err))
				return s.resume(ctx, model.Test{ID: testID}, conflict.AssessmentID)
			}
		}

		started, err := s.backend.StartTest(ctx, testID)
		if err != nil {
			// повторный конфликт не предлагаем снова, а продолжаем то, что вернул сервер
			if again, ok := backend.AsConflict(err); ok && again.AssessmentID != "" {
				log.Warn("conflict after cancel, resuming", zap.String("assessment_id", again.AssessmentID))
				return s.resume(ctx, model.Test{ID: testID}, again.AssessmentID)
			}
			return nil, fmt.Errorf("%w: %w", ErrCannotStart, err)
		}
		return s.open(ctx, started)
	}

	return nil, fmt.Errorf("unknown resolution %q", res)
}

// Resume восстанавливает сессию по данным сервера
func (s *AssessmentService) Resume(ctx context.Context, assessmentID string) (*Session, error) {
	return s.resume(ctx, model.Test{}, assessmentID)
}

func (s *AssessmentService) open(ctx context.Context, started *model.StartedAssessment) (*Session, error) {
	questions, err := s.fetchQuestions(ctx, started.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotStart, err)
	}

	test := started.Test
	duration := started.DurationSeconds
	if duration <= 0 {
		duration = test.DurationSeconds
	}

	sess := newSession(started.AssessmentID, test, duration, duration, questions)
	s.logger.Info("assessment started",
		zap.String("assessment_id", sess.ID()),
		zap.Int("test_id", test.ID),
		zap.Int("questions", len(questions)),
		zap.Int("duration_seconds", duration))
	return sess, nil
}

func (s *AssessmentService) resume(ctx context.Context, test model.Test, assessmentID string) (*Session, error) {
	state, err := s.backend.ResumeSession(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotResume, err)
	}
	questions, err := s.fetchQuestions(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotResume, err)
	}

	duration := test.DurationSeconds
	if duration <= 0 {
		duration = state.RemainingSeconds
	}
	sess := newSession(assessmentID, test, duration, state.RemainingSeconds, questions)

	for _, a := range state.Answers {
		idx := sess.indexOf(a.QuestionID)
		if idx < 0 {
			s.logger.Warn("resumed answer for unknown question",
				zap.String("assessment_id", assessmentID), zap.Int("question_id", a.QuestionID))
			continue
		}
		if v, err := NormalizeAnswer(questions[idx], a.Value); err == nil {
			a.Value = v
		}
		sess.answers[a.QuestionID] = a
		sess.presented[idx] = true
	}

	current := len(sess.answers)
	if current > len(questions)-1 {
		current = len(questions) - 1
	}
	for i := 0; i <= current; i++ {
		sess.presented[i] = true
	}
	sess.current = current

	if state.Answered != len(sess.answers) {
		s.logger.Warn("resumed progress differs from restored answers",
			zap.String("assessment_id", assessmentID),
			zap.Int("server_answered", state.Answered),
			zap.Int("restored", len(sess.answers)))
	}
	s.logger.Info("assessment resumed",
		zap.String("assessment_id", assessmentID),
		zap.Int("remaining_seconds", sess.remaining),
		zap.Int("current_index", current))
	return sess, nil
}

func (s *AssessmentService) fetchQuestions(ctx context.Context, assessmentID string) ([]model.Question, error) {
	questions, err := s.backend.FetchQuestions(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Order < questions[j].Order
	})
	return questions, nil
}

// Submit проверяет и отправляет ответ. Локальное состояние меняется только после
// подтверждения сервера; при ошибке ответ и текущий вопрос остаются прежними.
func (s *AssessmentService) Submit(ctx context.Context, sess *Session, questionID int, value any) (SubmitOutcome, error) {
	sess.mu.Lock()
	if sess.status != model.StatusInProgress || sess.phase != phaseRunning {
		sess.mu.Unlock()
		return SubmitOutcome{}, ErrNotActive
	}
	if sess.timeUp {
		sess.mu.Unlock()
		return SubmitOutcome{}, ErrTimeUp
	}
	idx := sess.indexOf(questionID)
	if idx < 0 {
		sess.mu.Unlock()
		return SubmitOutcome{}, ErrUnknownQuestion
	}
	if !sess.presented[idx] {
		sess.mu.Unlock()
		return SubmitOutcome{}, ErrNotPresented
	}
	if sess.submitting {
		sess.mu.Unlock()
		return SubmitOutcome{}, ErrSubmitInFlight
	}
	normalized, err := NormalizeAnswer(sess.questions[idx], value)
	if err != nil {
		sess.mu.Unlock()
		return SubmitOutcome{}, err
	}

	var timeTaken time.Duration
	if idx == sess.current {
		timeTaken = time.Since(sess.shownAt)
	}
	sess.submitting = true
	assessmentID := sess.assessmentID
	sess.mu.Unlock()

	err = s.backend.SubmitAnswer(ctx, assessmentID, questionID, normalized, timeTaken)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.submitting = false

	if err != nil {
		s.logger.Warn("answer not saved",
			zap.String("assessment_id", assessmentID),
			zap.Int("question_id", questionID),
			zap.Error(err))
		return SubmitOutcome{Progress: sess.progressLocked()}, fmt.Errorf("failed to save answer: %w", err)
	}

	sess.answers[questionID] = model.Answer{
		QuestionID:  questionID,
		Value:       normalized,
		SubmittedAt: time.Now(),
	}

	var outcome SubmitOutcome
	if sess.status == model.StatusInProgress && sess.phase == phaseRunning && !sess.timeUp {
		if idx < len(sess.questions)-1 {
			sess.current = idx + 1
			sess.presented[sess.current] = true
			sess.shownAt = time.Now()
			outcome.Advanced = true
		} else {
			sess.current = idx
			outcome.ReadyToFinish = true
		}
	}
	outcome.Progress = sess.progressLocked()
	return outcome, nil
}

// Finish отправляет сессию на проверку. Выполняется не более одного раза одновременно:
// параллельные вызовы ждут и получают тот же итог, завершенная сессия отдает сохраненный итог.
// При ошибке сессия возвращается в работу, чтобы пользователь мог повторить. Если время
// уже вышло, повтор остается завершением по таймеру и ответы больше не принимаются.
func (s *AssessmentService) Finish(ctx context.Context, sess *Session, trigger Trigger) (*model.ResultSummary, error) {
	sess.mu.Lock()
	switch sess.phase {
	case phaseDone:
		r := *sess.result
		sess.mu.Unlock()
		return &r, nil

	case phaseFinalizing:
		attempt := sess.finishing
		sess.mu.Unlock()
		select {
		case <-attempt.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if attempt.err != nil {
			return nil, attempt.err
		}
		r := *attempt.result
		return &r, nil

	case phaseRunning:
	default:
		sess.mu.Unlock()
		return nil, ErrNotActive
	}

	if trigger == TriggerTimer {
		sess.timeUp = true
	} else if sess.timeUp {
		trigger = TriggerTimer
	}

	attempt := &finishAttempt{done: make(chan struct{})}
	sess.phase = phaseFinalizing
	sess.finishing = attempt
	assessmentID := sess.assessmentID
	sess.mu.Unlock()

	log := s.logger.With(zap.String("assessment_id", assessmentID), zap.String("trigger", string(trigger)))
	log.Info("finishing assessment")

	result, err := s.finalize(ctx, assessmentID, trigger)

	sess.mu.Lock()
	if err != nil {
		sess.phase = phaseRunning
		attempt.err = err
		log.Error("finish failed", zap.Error(err))
	} else {
		if model.CanTransition(sess.status, result.Status) {
			sess.status = result.Status
		}
		sess.phase = phaseDone
		sess.result = result
		attempt.result = result
		log.Info("assessment finished",
			zap.String("status", string(result.Status)),
			zap.Float64("score", result.Score))
	}
	close(attempt.done)
	sess.mu.Unlock()

	if err != nil {
		return nil, err
	}
	r := *result
	return &r, nil
}

func (s *AssessmentService) finalize(ctx context.Context, assessmentID string, trigger Trigger) (*model.ResultSummary, error) {
	if s.results != nil {
		cached, err := s.results.GetByAssessmentID(ctx, assessmentID)
		if err != nil {
			s.logger.Warn("result cache lookup failed", zap.String("assessment_id", assessmentID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	result, err := s.backend.FinishSession(ctx, assessmentID)
	if errors.Is(err, backend.ErrAlreadySubmitted) {
		detail, ferr := s.backend.FetchResult(ctx, assessmentID)
		if ferr != nil {
			return nil, fmt.Errorf("failed to fetch result of submitted assessment: %w", ferr)
		}
		result = &detail.ResultSummary
	} else if err != nil {
		return nil, fmt.Errorf("failed to finish assessment: %w", err)
	}

	if !result.Status.Terminal() {
		result.Status = model.StatusSubmitted
		if trigger == TriggerTimer {
			result.Status = model.StatusExpired
		}
	}
	if result.AssessmentID == "" {
		result.AssessmentID = assessmentID
	}
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = time.Now().UTC()
	}

	if s.results != nil {
		stored, err := s.results.Save(ctx, *result)
		if err != nil {
			s.logger.Warn("result cache save failed", zap.String("assessment_id", assessmentID), zap.Error(err))
		} else {
			result = &stored
		}
	}
	return result, nil
}

// Result подробный результат для экрана результатов
func (s *AssessmentService) Result(ctx context.Context, assessmentID string) (*model.ResultDetail, error) {
	detail, err := s.backend.FetchResult(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return detail, nil
}

// RemainingSeconds авторитетное оставшееся время по данным сервера
func (s *AssessmentService) RemainingSeconds(ctx context.Context, assessmentID string) (int, error) {
	state, err := s.backend.ResumeSession(ctx, assessmentID)
	if err != nil {
		return 0, err
	}
	return state.RemainingSeconds, nil
}
