package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

type fakeClock struct {
	mu        sync.Mutex
	remaining int
	status    model.SessionStatus
}

func (f *fakeClock) ID() string { return "a-1" }

func (f *fakeClock) Status() model.SessionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeClock) Tick() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining > 0 {
		f.remaining--
	}
	return f.remaining, f.remaining == 0
}

func (f *fakeClock) CorrectRemaining(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining = seconds
}

func (f *fakeClock) setStatus(s model.SessionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func waitDone(t *testing.T, c *Countdown) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("отсчет не завершился")
	}
}

func TestCountdown_ExpiresOnce(t *testing.T) {
	clock := &fakeClock{remaining: 3, status: model.StatusInProgress}
	var expired atomic.Int32
	var ticks []int
	var mu sync.Mutex

	c := NewCountdown(clock, Options{
		Interval: time.Millisecond,
		OnTick: func(remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		},
		OnExpire: func(ctx context.Context) {
			expired.Add(1)
		},
	}, zap.NewNop())

	c.Start(context.Background())
	c.Start(context.Background())
	waitDone(t, c)

	if n := expired.Load(); n != 1 {
		t.Errorf("OnExpire должен вызываться один раз, вызван %d", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(ticks) != 3 || ticks[len(ticks)-1] != 0 {
		t.Errorf("неожиданные тики: %v", ticks)
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] > ticks[i-1] {
			t.Errorf("оставшееся время выросло: %v", ticks)
		}
	}
}

func TestCountdown_StopsWhenSessionFinished(t *testing.T) {
	clock := &fakeClock{remaining: 1000, status: model.StatusInProgress}
	var expired atomic.Int32

	c := NewCountdown(clock, Options{
		Interval: time.Millisecond,
		OnExpire: func(ctx context.Context) { expired.Add(1) },
	}, zap.NewNop())
	c.Start(context.Background())

	time.Sleep(5 * time.Millisecond)
	clock.setStatus(model.StatusSubmitted)
	waitDone(t, c)

	if expired.Load() != 0 {
		t.Errorf("завершенная сессия не должна истекать")
	}
}

func TestCountdown_StopIsIdempotent(t *testing.T) {
	clock := &fakeClock{remaining: 1000, status: model.StatusInProgress}
	c := NewCountdown(clock, Options{Interval: time.Millisecond}, zap.NewNop())

	c.Start(context.Background())
	c.Stop()
	c.Stop()
	waitDone(t, c)
}

func TestCountdown_StopBeforeStart(t *testing.T) {
	clock := &fakeClock{remaining: 10, status: model.StatusInProgress}
	c := NewCountdown(clock, Options{Interval: time.Millisecond}, zap.NewNop())

	c.Stop()
	c.Start(context.Background())
	waitDone(t, c)

	if clock.remaining != 10 {
		t.Errorf("остановленный до старта отсчет не должен тикать")
	}
}

func TestCountdown_StopFromOnExpire(t *testing.T) {
	clock := &fakeClock{remaining: 1, status: model.StatusInProgress}
	var c *Countdown
	c = NewCountdown(clock, Options{
		Interval: time.Millisecond,
		OnExpire: func(ctx context.Context) {
			c.Stop()
			if ctx.Err() != nil {
				t.Errorf("контекст завершения не должен отменяться остановкой")
			}
		},
	}, zap.NewNop())

	c.Start(context.Background())
	waitDone(t, c)
}

func TestCountdown_Resync(t *testing.T) {
	clock := &fakeClock{remaining: 1000, status: model.StatusInProgress}
	var calls atomic.Int32
	var expired atomic.Int32

	c := NewCountdown(clock, Options{
		Interval:    time.Millisecond,
		ResyncEvery: 2,
		Resync: func(ctx context.Context, id string) (int, error) {
			calls.Add(1)
			return 0, nil
		},
		OnExpire: func(ctx context.Context) { expired.Add(1) },
	}, zap.NewNop())
	c.Start(context.Background())
	waitDone(t, c)

	if calls.Load() != 1 {
		t.Errorf("ожидалась одна сверка, получено %d", calls.Load())
	}
	if expired.Load() != 1 {
		t.Errorf("нулевое время от сервера должно завершить сессию")
	}
}
