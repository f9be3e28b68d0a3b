package service

import (
	"sync"
	"time"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

// phase фаза жизненного цикла сессии на клиенте.
// Истечение таймера и ручное завершение ведут в один и тот же phaseFinalizing.
type phase int

const (
	phaseIdle phase = iota
	phaseRunning
	phaseFinalizing
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseRunning:
		return "running"
	case phaseFinalizing:
		return "finalizing"
	case phaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// finishAttempt одна попытка завершения; ожидающие получают ее результат
type finishAttempt struct {
	done   chan struct{}
	result *model.ResultSummary
	err    error
}

// Session локальное состояние одной попытки прохождения теста.
// Все поля защищены mu: обработчики бота и таймер работают в разных горутинах.
type Session struct {
	mu sync.Mutex

	assessmentID string
	test         model.Test
	startedAt    time.Time
	duration     int
	remaining    int
	status       model.SessionStatus

	questions []model.Question
	answers   map[int]model.Answer
	presented map[int]bool
	current   int
	shownAt   time.Time

	phase      phase
	submitting bool
	// timeUp время вышло: ответы и навигация закрыты до завершения
	timeUp     bool
	finishing  *finishAttempt
	result     *model.ResultSummary
}

// NewSession создает активную сессию с первым показанным вопросом
func NewSession(assessmentID string, test model.Test, duration, remaining int, questions []model.Question) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return newSession(assessmentID, test, duration, remaining, questions), nil
}

func newSession(assessmentID string, test model.Test, duration, remaining int, questions []model.Question) *Session {
	if remaining < 0 {
		remaining = 0
	}
	now := time.Now()
	s := &Session{
		assessmentID: assessmentID,
		test:         test,
		startedAt:    now,
		duration:     duration,
		remaining:    remaining,
		status:       model.StatusInProgress,
		questions:    questions,
		answers:      make(map[int]model.Answer),
		presented:    map[int]bool{0: true},
		shownAt:      now,
		phase:        phaseRunning,
	}
	return s
}

// ID идентификатор сессии на сервере (assessmentId)
func (s *Session) ID() string {
	return s.assessmentID
}

func (s *Session) Test() model.Test {
	return s.test
}

func (s *Session) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Questions возвращает копию упорядоченного списка вопросов
func (s *Session) Questions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// Current возвращает текущий вопрос и его индекс
func (s *Session) Current() (model.Question, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions[s.current], s.current
}

func (s *Session) Progress() model.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() model.Progress {
	return model.Progress{
		CurrentQuestionIndex: s.current,
		AnsweredCount:        len(s.answers),
		Total:                len(s.questions),
	}
}

// Answer возвращает подтвержденный сервером ответ на вопрос
func (s *Session) Answer(questionID int) (model.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[questionID]
	return a, ok
}

// Answers копия карты ответов
func (s *Session) Answers() map[int]model.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]model.Answer, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Result итог, если сессия уже завершена
func (s *Session) Result() (*model.ResultSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil, false
	}
	r := *s.result
	return &r, true
}

// Finalizing сообщает, что идет или завершена отправка на проверку
func (s *Session) Finalizing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == phaseFinalizing || s.phase == phaseDone
}

// TimeUp сообщает, что время вышло, а сессия еще не завершена
func (s *Session) TimeUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeUp
}

// Navigate переходит к вопросу index. Ответ при этом не требуется,
// но переход запрещен, пока отправка ответа не подтверждена.
func (s *Session) Navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusInProgress || s.phase != phaseRunning {
		return ErrNotActive
	}
	if s.timeUp {
		return ErrTimeUp
	}
	if s.submitting {
		return ErrSubmitInFlight
	}
	if index < 0 || index >= len(s.questions) {
		return ErrOutOfRange
	}
	if index != s.current {
		s.current = index
		s.shownAt = time.Now()
	}
	s.presented[index] = true
	return nil
}

func (s *Session) Next() error {
	s.mu.Lock()
	next := s.current + 1
	s.mu.Unlock()
	return s.Navigate(next)
}

func (s *Session) Previous() error {
	s.mu.Lock()
	prev := s.current - 1
	s.mu.Unlock()
	return s.Navigate(prev)
}

// Tick уменьшает оставшееся время на секунду.
// expired становится true, когда время дошло до нуля у активной сессии.
func (s *Session) Tick() (remaining int, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusInProgress || s.phase != phaseRunning {
		return s.remaining, false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		s.timeUp = true
	}
	return s.remaining, s.remaining == 0
}

// CorrectRemaining подставляет оставшееся время по данным сервера
func (s *Session) CorrectRemaining(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusInProgress {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	s.remaining = seconds
}

// Snapshot срез состояния для отчетов
type Snapshot struct {
	AssessmentID     string              `json:"assessment_id"`
	TestID           int                 `json:"test_id"`
	TestTitle        string              `json:"test_title"`
	Status           model.SessionStatus `json:"status"`
	Phase            string              `json:"phase"`
	StartedAt        time.Time           `json:"started_at"`
	DurationSeconds  int                 `json:"duration_seconds"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	Progress         model.Progress      `json:"progress"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		AssessmentID:     s.assessmentID,
		TestID:           s.test.ID,
		TestTitle:        s.test.Title,
		Status:           s.status,
		Phase:            s.phase.String(),
		StartedAt:        s.startedAt,
		DurationSeconds:  s.duration,
		RemainingSeconds: s.remaining,
		Progress:         s.progressLocked(),
	}
}

func (s *Session) indexOf(questionID int) int {
	for i, q := range s.questions {
		if q.ID == questionID {
			return i
		}
	}
	return -1
}
