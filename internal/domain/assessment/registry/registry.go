package registry

import (
	"sort"
	"sync"

	"github.com/IT-Nick/assessbot/internal/domain/assessment/service"
)

// Stopper останавливает обратный отсчет сессии
type Stopper interface {
	Stop()
}

// Entry активная сессия пользователя и все, что с ней связано в чате
type Entry struct {
	TelegramID int64
	Session    *service.Session
	Timer      Stopper
	// TimerMessageID сообщение с таймером, QuestionMessageID сообщение с текущим вопросом
	TimerMessageID    int
	QuestionMessageID int
}

// Registry хранит активные сессии в памяти. После перезапуска бота сессии
// восстанавливаются через resume на сервере.
type Registry struct {
	data map[int64]*Entry
	// starting пользователи, у которых идет старт или возобновление теста
	starting map[int64]struct{}
	mu       sync.RWMutex
}

func New() *Registry {
	return &Registry{data: make(map[int64]*Entry), starting: make(map[int64]struct{})}
}

// BeginStart занимает старт для пользователя. false, если старт уже идет.
// Каждый успешный BeginStart завершается EndStart.
func (r *Registry) BeginStart(telegramID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.starting[telegramID]; busy {
		return false
	}
	r.starting[telegramID] = struct{}{}
	return true
}

func (r *Registry) EndStart(telegramID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.starting, telegramID)
}

func (r *Registry) Get(telegramID int64) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.data[telegramID]
	return e, ok
}

// Put сохраняет сессию пользователя. Предыдущая сессия, если была, останавливается.
func (r *Registry) Put(e *Entry) {
	r.mu.Lock()
	prev := r.data[e.TelegramID]
	r.data[e.TelegramID] = e
	r.mu.Unlock()

	if prev != nil && prev != e && prev.Timer != nil {
		prev.Timer.Stop()
	}
}

// Remove удаляет сессию только если она все еще принадлежит assessmentID,
// чтобы запоздавшее завершение не удалило новую сессию.
func (r *Registry) Remove(telegramID int64, assessmentID string) bool {
	r.mu.Lock()
	e, ok := r.data[telegramID]
	if !ok || e.Session.ID() != assessmentID {
		r.mu.Unlock()
		return false
	}
	delete(r.data, telegramID)
	r.mu.Unlock()

	if e.Timer != nil {
		e.Timer.Stop()
	}
	return true
}

// SetMessages запоминает идентификаторы сообщений для последующего редактирования
func (r *Registry) SetMessages(telegramID int64, timerMessageID, questionMessageID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.data[telegramID]; ok {
		if timerMessageID != 0 {
			e.TimerMessageID = timerMessageID
		}
		if questionMessageID != 0 {
			e.QuestionMessageID = questionMessageID
		}
	}
}

// Messages идентификаторы сообщений таймера и вопроса
func (r *Registry) Messages(telegramID int64) (timerMessageID, questionMessageID int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.data[telegramID]; ok {
		return e.TimerMessageID, e.QuestionMessageID
	}
	return 0, 0
}

// ActiveSession строка отчета по активной сессии
type ActiveSession struct {
	TelegramID int64 `json:"telegram_id"`
	service.Snapshot
}

// List все активные сессии, упорядоченные по времени старта
func (r *Registry) List() []ActiveSession {
	r.mu.RLock()
	out := make([]ActiveSession, 0, len(r.data))
	for id, e := range r.data {
		out = append(out, ActiveSession{TelegramID: id, Snapshot: e.Session.Snapshot()})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// StopAll останавливает все таймеры при завершении работы
func (r *Registry) StopAll() {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.data))
	for _, e := range r.data {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	for _, e := range entries {
		if e.Timer != nil {
			e.Timer.Stop()
		}
	}
}
