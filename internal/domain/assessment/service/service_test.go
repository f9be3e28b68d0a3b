package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/IT-Nick/assessbot/internal/domain/model"
	"github.com/IT-Nick/assessbot/internal/infra/backend"
)

type fakeBackend struct {
	mu sync.Mutex

	startErrs []error
	started   *model.StartedAssessment
	questions []model.Question
	resume    *model.ResumeState
	resumeErr error
	cancelErr error
	submitErr error
	finishErr error
	finishRes *model.ResultSummary
	detail    *model.ResultDetail

	finishGate chan struct{}

	startCalls   int
	cancelCalls  int
	resumedIDs   []string
	submitted    []submitCall
	finishCalls  atomic.Int32
	fetchResults int
}

type submitCall struct {
	assessmentID string
	questionID   int
	value        any
}

func (f *fakeBackend) ListTests(ctx context.Context) ([]model.Test, error) {
	return []model.Test{{ID: 1, Title: "Go"}}, nil
}

func (f *fakeBackend) StartTest(ctx context.Context, testID int) (*model.StartedAssessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if len(f.startErrs) > 0 {
		err := f.startErrs[0]
		f.startErrs = f.startErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	s := *f.started
	return &s, nil
}

func (f *fakeBackend) ResumeSession(ctx context.Context, assessmentID string) (*model.ResumeState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumedIDs = append(f.resumedIDs, assessmentID)
	if f.resumeErr != nil {
		return nil, f.resumeErr
	}
	return f.resume, nil
}

func (f *fakeBackend) CancelSession(ctx context.Context, assessmentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return f.cancelErr
}

func (f *fakeBackend) FetchQuestions(ctx context.Context, assessmentID string) ([]model.Question, error) {
	out := make([]model.Question, len(f.questions))
	copy(out, f.questions)
	return out, nil
}

func (f *fakeBackend) SubmitAnswer(ctx context.Context, assessmentID string, questionID int, value any, timeTaken time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, submitCall{assessmentID, questionID, value})
	return nil
}

func (f *fakeBackend) FinishSession(ctx context.Context, assessmentID string) (*model.ResultSummary, error) {
	f.finishCalls.Add(1)
	if f.finishGate != nil {
		<-f.finishGate
	}
	if f.finishErr != nil {
		return nil, f.finishErr
	}
	r := *f.finishRes
	return &r, nil
}

func (f *fakeBackend) FetchResult(ctx context.Context, assessmentID string) (*model.ResultDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchResults++
	if f.detail == nil {
		return nil, backend.ErrNotFound
	}
	d := *f.detail
	return &d, nil
}

type memoryResults struct {
	mu    sync.Mutex
	items map[string]model.ResultSummary
}

func (m *memoryResults) Save(ctx context.Context, r model.ResultSummary) (model.ResultSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]model.ResultSummary)
	}
	if existing, ok := m.items[r.AssessmentID]; ok {
		return existing, nil
	}
	m.items[r.AssessmentID] = r
	return r, nil
}

func (m *memoryResults) GetByAssessmentID(ctx context.Context, id string) (*model.ResultSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.items[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func testQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID:      i + 1,
			Prompt:  fmt.Sprintf("Вопрос %d", i+1),
			Type:    model.QuestionSingleChoice,
			Options: []model.Option{{Value: "a", Label: "A"}, {Value: "b", Label: "B"}},
			Order:   i,
			Points:  1,
		}
	}
	return qs
}

func newFakeBackend(n int) *fakeBackend {
	return &fakeBackend{
		started: &model.StartedAssessment{
			AssessmentID:    "a-1",
			DurationSeconds: 600,
			Test:            model.Test{ID: 7, Title: "Go"},
		},
		questions: testQuestions(n),
		finishRes: &model.ResultSummary{AssessmentID: "a-1", ResultID: "r-1", Score: 4, TotalPoints: 5, Status: model.StatusSubmitted},
	}
}

func newTestService(b *fakeBackend) (*AssessmentService, *memoryResults) {
	store := &memoryResults{}
	return NewAssessmentService(b, store, zap.NewNop()), store
}

func startSession(t *testing.T, svc *AssessmentService) *Session {
	t.Helper()
	sess, err := svc.Start(context.Background(), 7)
	if err != nil {
		t.Fatalf("Start вернул ошибку: %v", err)
	}
	return sess
}

func TestStart(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)

	sess := startSession(t, svc)

	if sess.ID() != "a-1" || sess.Status() != model.StatusInProgress {
		t.Errorf("неожиданная сессия: %s %s", sess.ID(), sess.Status())
	}
	if sess.Remaining() != 600 {
		t.Errorf("ожидалось 600 секунд, получено %d", sess.Remaining())
	}
	if q, idx := sess.Current(); idx != 0 || q.ID != 1 {
		t.Errorf("ожидался первый вопрос, получено %d (%d)", q.ID, idx)
	}
}

func TestStart_SortsQuestionsByOrder(t *testing.T) {
	b := newFakeBackend(3)
	b.questions[0].Order, b.questions[2].Order = 2, 0
	svc, _ := newTestService(b)

	sess := startSession(t, svc)

	qs := sess.Questions()
	if qs[0].ID != 3 || qs[2].ID != 1 {
		t.Errorf("вопросы не упорядочены: %d %d %d", qs[0].ID, qs[1].ID, qs[2].ID)
	}
}

func TestStart_NoQuestions(t *testing.T) {
	b := newFakeBackend(0)
	svc, _ := newTestService(b)

	_, err := svc.Start(context.Background(), 7)
	if !errors.Is(err, ErrCannotStart) || !errors.Is(err, ErrNoQuestions) {
		t.Errorf("ожидалась ErrCannotStart/ErrNoQuestions, получено %v", err)
	}
}

func TestStart_FailureIsCannotStart(t *testing.T) {
	b := newFakeBackend(3)
	b.startErrs = []error{backend.ErrTransient}
	svc, _ := newTestService(b)

	_, err := svc.Start(context.Background(), 7)
	if !errors.Is(err, ErrCannotStart) || !errors.Is(err, backend.ErrTransient) {
		t.Errorf("ожидалась ErrCannotStart с причиной, получено %v", err)
	}
}

func TestStart_Conflict(t *testing.T) {
	b := newFakeBackend(3)
	b.startErrs = []error{&backend.ConflictError{AssessmentID: "old"}}
	svc, _ := newTestService(b)

	_, err := svc.Start(context.Background(), 7)
	conflict, ok := backend.AsConflict(err)
	if !ok || conflict.AssessmentID != "old" {
		t.Fatalf("ожидался конфликт с old, получено %v", err)
	}
}

func TestResolveConflict_Cancel(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)

	sess, err := svc.ResolveConflict(context.Background(), 7, &backend.ConflictError{AssessmentID: "old"}, ResolutionCancel)
	if sess != nil || !errors.Is(err, ErrStartCancelled) {
		t.Errorf("ожидалась ErrStartCancelled, получено %v", err)
	}
	if b.cancelCalls != 0 || b.startCalls != 0 {
		t.Errorf("отказ не должен обращаться к серверу")
	}
}

func TestResolveConflict_Resume(t *testing.T) {
	b := newFakeBackend(5)
	b.resume = &model.ResumeState{
		RemainingSeconds: 90,
		Answered:         2,
		Total:            5,
		Answers: []model.Answer{
			{QuestionID: 1, Value: "a"},
			{QuestionID: 2, Value: "b"},
		},
	}
	svc, _ := newTestService(b)

	sess, err := svc.ResolveConflict(context.Background(), 7, &backend.ConflictError{AssessmentID: "old"}, ResolutionResume)
	if err != nil {
		t.Fatalf("ResolveConflict вернул ошибку: %v", err)
	}
	if sess.ID() != "old" || sess.Remaining() != 90 {
		t.Errorf("неожиданная сессия: %s, %d", sess.ID(), sess.Remaining())
	}
	if _, idx := sess.Current(); idx != 2 {
		t.Errorf("ожидался индекс 2, получено %d", idx)
	}
	answers := sess.Answers()
	if len(answers) != 2 || answers[1].Value != "a" || answers[2].Value != "b" {
		t.Errorf("ответы восстановлены неверно: %+v", answers)
	}
}

func TestResume_IndexClampedToLastQuestion(t *testing.T) {
	b := newFakeBackend(3)
	b.resume = &model.ResumeState{
		RemainingSeconds: 30,
		Answers: []model.Answer{
			{QuestionID: 1, Value: "a"},
			{QuestionID: 2, Value: "a"},
			{QuestionID: 3, Value: "a"},
		},
	}
	svc, _ := newTestService(b)

	sess, err := svc.Resume(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("Resume вернул ошибку: %v", err)
	}
	if _, idx := sess.Current(); idx != 2 {
		t.Errorf("ожидался последний индекс 2, получено %d", idx)
	}
	// после восстановления на предыдущие вопросы можно вернуться и ответить заново
	if err := sess.Navigate(0); err != nil {
		t.Errorf("Navigate(0) вернул ошибку: %v", err)
	}
}

func TestResume_Failure(t *testing.T) {
	b := newFakeBackend(3)
	b.resumeErr = backend.ErrNotFound
	svc, _ := newTestService(b)

	_, err := svc.Resume(context.Background(), "gone")
	if !errors.Is(err, ErrCannotResume) || !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("ожидалась ErrCannotResume, получено %v", err)
	}
}

func TestResolveConflict_Restart(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)

	sess, err := svc.ResolveConflict(context.Background(), 7, &backend.ConflictError{AssessmentID: "old"}, ResolutionRestart)
	if err != nil {
		t.Fatalf("ResolveConflict вернул ошибку: %v", err)
	}
	if b.cancelCalls != 1 || b.startCalls != 1 {
		t.Errorf("ожидались отмена и новый старт, получено cancel=%d start=%d", b.cancelCalls, b.startCalls)
	}
	if sess.ID() != "a-1" {
		t.Errorf("ожидалась новая сессия a-1, получено %s", sess.ID())
	}
}

func TestResolveConflict_RestartCancelFailsFallsBackToResume(t *testing.T) {
	b := newFakeBackend(3)
	b.cancelErr = backend.ErrTransient
	b.resume = &model.ResumeState{RemainingSeconds: 50}
	svc, _ := newTestService(b)

	sess, err := svc.ResolveConflict(context.Background(), 7, &backend.ConflictError{AssessmentID: "old"}, ResolutionRestart)
	if err != nil {
		t.Fatalf("ResolveConflict вернул ошибку: %v", err)
	}
	if sess.ID() != "old" {
		t.Errorf("ожидалось продолжение old, получено %s", sess.ID())
	}
	if b.startCalls != 0 {
		t.Errorf("после неудачной отмены старт не должен вызываться")
	}
}

func TestResolveConflict_RestartSecondConflictResumes(t *testing.T) {
	b := newFakeBackend(3)
	b.startErrs = []error{&backend.ConflictError{AssessmentID: "newer"}}
	b.resume = &model.ResumeState{RemainingSeconds: 50}
	svc, _ := newTestService(b)

	sess, err := svc.ResolveConflict(context.Background(), 7, &backend.ConflictError{AssessmentID: "old"}, ResolutionRestart)
	if err != nil {
		t.Fatalf("ResolveConflict вернул ошибку: %v", err)
	}
	if sess.ID() != "newer" {
		t.Errorf("ожидалось продолжение newer, получено %s", sess.ID())
	}
	if b.startCalls != 1 {
		t.Errorf("повторный конфликт не должен приводить к новому старту, startCalls=%d", b.startCalls)
	}
}

func TestParseResolution(t *testing.T) {
	for _, s := range []string{"cancel", "resume", "restart"} {
		if _, err := ParseResolution(s); err != nil {
			t.Errorf("ParseResolution(%q) вернул ошибку: %v", s, err)
		}
	}
	if _, err := ParseResolution("later"); err == nil {
		t.Errorf("ожидалась ошибка для неизвестного выбора")
	}
}

func TestSubmit_AdvancesAndRecords(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	out, err := svc.Submit(context.Background(), sess, 1, "a")
	if err != nil {
		t.Fatalf("Submit вернул ошибку: %v", err)
	}
	if !out.Advanced || out.ReadyToFinish {
		t.Errorf("неожиданный итог: %+v", out)
	}
	if out.Progress.CurrentQuestionIndex != 1 || out.Progress.AnsweredCount != 1 {
		t.Errorf("неожиданный прогресс: %+v", out.Progress)
	}
	if a, ok := sess.Answer(1); !ok || a.Value != "a" {
		t.Errorf("ответ не сохранен: %+v", a)
	}
	if len(b.submitted) != 1 || b.submitted[0].assessmentID != "a-1" {
		t.Errorf("ответ не отправлен на сервер: %+v", b.submitted)
	}
}

func TestSubmit_RejectedLeavesStateUnchanged(t *testing.T) {
	b := newFakeBackend(3)
	b.submitErr = backend.ErrValidation
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	_, err := svc.Submit(context.Background(), sess, 1, "a")
	if !errors.Is(err, backend.ErrValidation) {
		t.Fatalf("ожидалась ErrValidation, получено %v", err)
	}
	if _, ok := sess.Answer(1); ok {
		t.Errorf("отклоненный ответ не должен сохраняться")
	}
	if _, idx := sess.Current(); idx != 0 {
		t.Errorf("индекс не должен меняться, получено %d", idx)
	}
	// флаг отправки снят, можно перейти к другому вопросу
	if err := sess.Navigate(0); err != nil {
		t.Errorf("Navigate после ошибки вернул %v", err)
	}
}

func TestSubmit_Validation(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	cases := []struct {
		name       string
		questionID int
		value      any
		want       error
	}{
		{"неизвестный вопрос", 99, "a", ErrUnknownQuestion},
		{"вопрос еще не показан", 3, "a", ErrNotPresented},
		{"неверный вариант", 1, "z", ErrInvalidAnswer},
		{"неверный тип", 1, 42, ErrInvalidAnswer},
	}
	for _, tc := range cases {
		_, err := svc.Submit(context.Background(), sess, tc.questionID, tc.value)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: ожидалась %v, получено %v", tc.name, tc.want, err)
		}
	}
	if len(b.submitted) != 0 {
		t.Errorf("невалидные ответы не должны уходить на сервер")
	}
}

func TestSubmit_LastQuestionReadyToFinish(t *testing.T) {
	b := newFakeBackend(2)
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	if _, err := svc.Submit(context.Background(), sess, 1, "a"); err != nil {
		t.Fatalf("Submit вернул ошибку: %v", err)
	}
	out, err := svc.Submit(context.Background(), sess, 2, "b")
	if err != nil {
		t.Fatalf("Submit вернул ошибку: %v", err)
	}
	if out.Advanced || !out.ReadyToFinish || out.Progress.CurrentQuestionIndex != 1 {
		t.Errorf("неожиданный итог на последнем вопросе: %+v", out)
	}
}

func TestSubmit_OverwriteKeepsLatest(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	if _, err := svc.Submit(context.Background(), sess, 1, "a"); err != nil {
		t.Fatalf("Submit вернул ошибку: %v", err)
	}
	if err := sess.Previous(); err != nil {
		t.Fatalf("Previous вернул ошибку: %v", err)
	}
	if _, err := svc.Submit(context.Background(), sess, 1, "b"); err != nil {
		t.Fatalf("повторный Submit вернул ошибку: %v", err)
	}
	if a, _ := sess.Answer(1); a.Value != "b" {
		t.Errorf("ожидался последний ответ b, получено %v", a.Value)
	}
	if sess.Progress().AnsweredCount != 1 {
		t.Errorf("перезапись не должна увеличивать число ответов")
	}
}

func TestSubmit_InFlightBlocksSecondSubmitAndNavigation(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	gate := make(chan struct{})
	blocking := &blockingBackend{fakeBackend: b, gate: gate, entered: make(chan struct{})}
	svc.backend = blocking

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), sess, 1, "a")
		done <- err
	}()
	<-blocking.entered

	if _, err := svc.Submit(context.Background(), sess, 1, "b"); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("ожидалась ErrSubmitInFlight, получено %v", err)
	}
	if err := sess.Next(); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("навигация во время отправки: ожидалась ErrSubmitInFlight, получено %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("первая отправка вернула ошибку: %v", err)
	}
}

type blockingBackend struct {
	*fakeBackend
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (b *blockingBackend) SubmitAnswer(ctx context.Context, assessmentID string, questionID int, value any, timeTaken time.Duration) error {
	b.once.Do(func() { close(b.entered) })
	<-b.gate
	return b.fakeBackend.SubmitAnswer(ctx, assessmentID, questionID, value, timeTaken)
}

func TestNavigate_Bounds(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	if err := sess.Previous(); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Previous на первом вопросе: ожидалась ErrOutOfRange, получено %v", err)
	}
	if err := sess.Navigate(3); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Navigate(3): ожидалась ErrOutOfRange, получено %v", err)
	}
	if err := sess.Next(); err != nil {
		t.Fatalf("Next вернул ошибку: %v", err)
	}
	// вопрос стал показан, на него можно ответить без ответа на предыдущий
	if _, err := svc.Submit(context.Background(), sess, 2, "a"); err != nil {
		t.Errorf("ответ на показанный вопрос вернул %v", err)
	}
}

func TestFinish_SameResultTwice(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	first, err := svc.Finish(context.Background(), sess, TriggerManual)
	if err != nil {
		t.Fatalf("Finish вернул ошибку: %v", err)
	}
	second, err := svc.Finish(context.Background(), sess, TriggerTimer)
	if err != nil {
		t.Fatalf("повторный Finish вернул ошибку: %v", err)
	}
	if *first != *second {
		t.Errorf("итоги различаются: %+v и %+v", first, second)
	}
	if n := b.finishCalls.Load(); n != 1 {
		t.Errorf("ожидался один вызов finish, получено %d", n)
	}
	if sess.Status() != model.StatusSubmitted {
		t.Errorf("ожидался статус submitted, получено %s", sess.Status())
	}
}

func TestFinish_ConcurrentCallersShareOneRequest(t *testing.T) {
	b := newFakeBackend(3)
	b.finishGate = make(chan struct{})
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	const callers = 5
	results := make(chan *model.ResultSummary, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trigger := TriggerManual
			if i%2 == 0 {
				trigger = TriggerTimer
			}
			r, err := svc.Finish(context.Background(), sess, trigger)
			if err != nil {
				t.Errorf("Finish вернул ошибку: %v", err)
				return
			}
			results <- r
		}(i)
	}

	// даем горутинам дойти до ожидания
	for !sess.Finalizing() {
		time.Sleep(time.Millisecond)
	}
	close(b.finishGate)
	wg.Wait()
	close(results)

	for r := range results {
		if r.ResultID != "r-1" {
			t.Errorf("неожиданный итог: %+v", r)
		}
	}
	if n := b.finishCalls.Load(); n != 1 {
		t.Errorf("ожидался один вызов finish, получено %d", n)
	}
}

func TestFinish_AlreadySubmittedFetchesResult(t *testing.T) {
	b := newFakeBackend(3)
	b.finishErr = fmt.Errorf("finish a-1: %w", backend.ErrAlreadySubmitted)
	b.detail = &model.ResultDetail{ResultSummary: model.ResultSummary{AssessmentID: "a-1", ResultID: "r-old", Status: model.StatusSubmitted}}
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	r, err := svc.Finish(context.Background(), sess, TriggerManual)
	if err != nil {
		t.Fatalf("Finish вернул ошибку: %v", err)
	}
	if r.ResultID != "r-old" || b.fetchResults != 1 {
		t.Errorf("ожидался существующий итог r-old, получено %+v", r)
	}
}

func TestFinish_FailureAllowsRetry(t *testing.T) {
	b := newFakeBackend(3)
	b.finishErr = backend.ErrTransient
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	if _, err := svc.Finish(context.Background(), sess, TriggerManual); !errors.Is(err, backend.ErrTransient) {
		t.Fatalf("ожидалась ErrTransient, получено %v", err)
	}
	if sess.Status() != model.StatusInProgress || sess.Finalizing() {
		t.Errorf("после ошибки сессия должна вернуться в работу")
	}

	b.finishErr = nil
	r, err := svc.Finish(context.Background(), sess, TriggerManual)
	if err != nil {
		t.Fatalf("повторный Finish вернул ошибку: %v", err)
	}
	if r.ResultID != "r-1" {
		t.Errorf("неожиданный итог: %+v", r)
	}
}

func TestFinish_UsesCachedResult(t *testing.T) {
	b := newFakeBackend(3)
	svc, store := newTestService(b)
	if _, err := store.Save(context.Background(), model.ResultSummary{AssessmentID: "a-1", ResultID: "cached", Status: model.StatusSubmitted}); err != nil {
		t.Fatal(err)
	}
	sess := startSession(t, svc)

	r, err := svc.Finish(context.Background(), sess, TriggerManual)
	if err != nil {
		t.Fatalf("Finish вернул ошибку: %v", err)
	}
	if r.ResultID != "cached" || b.finishCalls.Load() != 0 {
		t.Errorf("ожидался итог из кэша без запроса, получено %+v", r)
	}
}

func TestFinish_TimerMarksExpired(t *testing.T) {
	b := newFakeBackend(3)
	b.finishRes = &model.ResultSummary{ResultID: "r-2"}
	svc, store := newTestService(b)
	sess := startSession(t, svc)

	r, err := svc.Finish(context.Background(), sess, TriggerTimer)
	if err != nil {
		t.Fatalf("Finish вернул ошибку: %v", err)
	}
	if r.Status != model.StatusExpired || sess.Status() != model.StatusExpired {
		t.Errorf("ожидался статус expired, получено %s/%s", r.Status, sess.Status())
	}
	if r.AssessmentID != "a-1" || r.SubmittedAt.IsZero() {
		t.Errorf("итог не дополнен: %+v", r)
	}
	if cached, _ := store.GetByAssessmentID(context.Background(), "a-1"); cached == nil {
		t.Errorf("итог не сохранен в кэш")
	}
}

func TestFinish_TimerFailureClosesAnswersAndRetryExpires(t *testing.T) {
	b := newFakeBackend(3)
	b.finishErr = backend.ErrTransient
	b.finishRes = &model.ResultSummary{ResultID: "r-3"}
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	sess.CorrectRemaining(1)
	if _, expired := sess.Tick(); !expired {
		t.Fatalf("ожидалось истечение времени")
	}
	if _, err := svc.Finish(context.Background(), sess, TriggerTimer); !errors.Is(err, backend.ErrTransient) {
		t.Fatalf("ожидалась ErrTransient, получено %v", err)
	}
	if !sess.TimeUp() || sess.Status() != model.StatusInProgress {
		t.Fatalf("после неудачного завершения по таймеру время должно считаться вышедшим")
	}

	if _, err := svc.Submit(context.Background(), sess, 1, "a"); !errors.Is(err, ErrTimeUp) {
		t.Errorf("ответ после истечения времени: ожидалась ErrTimeUp, получено %v", err)
	}
	if err := sess.Next(); !errors.Is(err, ErrTimeUp) {
		t.Errorf("навигация после истечения времени: ожидалась ErrTimeUp, получено %v", err)
	}
	if len(b.submitted) != 0 || len(sess.Answers()) != 0 {
		t.Errorf("ответ не должен уходить на сервер после истечения времени")
	}

	b.finishErr = nil
	r, err := svc.Finish(context.Background(), sess, TriggerManual)
	if err != nil {
		t.Fatalf("повторное завершение вернуло ошибку: %v", err)
	}
	if r.Status != model.StatusExpired || sess.Status() != model.StatusExpired {
		t.Errorf("повтор после истечения времени должен дать expired, получено %s/%s", r.Status, sess.Status())
	}
	if n := b.finishCalls.Load(); n != 2 {
		t.Errorf("ожидалось два запроса завершения, получено %d", n)
	}
}

func TestSubmit_AckAfterTimeUpDoesNotAdvance(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)
	sess := startSession(t, svc)
	sess.CorrectRemaining(1)

	gate := make(chan struct{})
	blocking := &blockingBackend{fakeBackend: b, gate: gate, entered: make(chan struct{})}
	svc.backend = blocking

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), sess, 1, "a")
		done <- err
	}()
	<-blocking.entered

	if _, expired := sess.Tick(); !expired {
		t.Fatalf("ожидалось истечение времени")
	}
	close(gate)

	if err := <-done; err != nil {
		t.Fatalf("подтвержденный ответ вернул ошибку: %v", err)
	}
	if _, ok := sess.Answer(1); !ok {
		t.Errorf("подтвержденный сервером ответ должен сохраниться")
	}
	if _, idx := sess.Current(); idx != 0 {
		t.Errorf("после истечения времени переход к следующему вопросу запрещен, индекс %d", idx)
	}
}

func TestAfterFinish_SessionIsReadOnly(t *testing.T) {
	b := newFakeBackend(3)
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	if _, err := svc.Finish(context.Background(), sess, TriggerManual); err != nil {
		t.Fatalf("Finish вернул ошибку: %v", err)
	}
	if _, err := svc.Submit(context.Background(), sess, 1, "a"); !errors.Is(err, ErrNotActive) {
		t.Errorf("ответ после завершения: ожидалась ErrNotActive, получено %v", err)
	}
	if err := sess.Next(); !errors.Is(err, ErrNotActive) {
		t.Errorf("навигация после завершения: ожидалась ErrNotActive, получено %v", err)
	}
	if _, expired := sess.Tick(); expired {
		t.Errorf("завершенная сессия не должна истекать")
	}
}

func TestEndToEnd_FiveQuestions(t *testing.T) {
	b := newFakeBackend(5)
	svc, _ := newTestService(b)
	sess := startSession(t, svc)

	var out SubmitOutcome
	for i := 1; i <= 5; i++ {
		q, _ := sess.Current()
		if q.ID != i {
			t.Fatalf("шаг %d: ожидался вопрос %d, получено %d", i, i, q.ID)
		}
		var err error
		out, err = svc.Submit(context.Background(), sess, q.ID, "a")
		if err != nil {
			t.Fatalf("шаг %d: Submit вернул ошибку: %v", i, err)
		}
	}
	if !out.ReadyToFinish || out.Progress.AnsweredCount != 5 {
		t.Fatalf("после пяти ответов ожидалась готовность к завершению: %+v", out)
	}

	r, err := svc.Finish(context.Background(), sess, TriggerManual)
	if err != nil {
		t.Fatalf("Finish вернул ошибку: %v", err)
	}
	if r.Score != 4 || r.TotalPoints != 5 || len(b.submitted) != 5 {
		t.Errorf("неожиданный итог %+v, отправлено %d", r, len(b.submitted))
	}
}
