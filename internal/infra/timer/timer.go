package timer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

// Clock сессия, у которой идет обратный отсчет
type Clock interface {
	ID() string
	Status() model.SessionStatus
	Tick() (remaining int, expired bool)
	CorrectRemaining(seconds int)
}

// Options настройки обратного отсчета
type Options struct {
	// Interval период тика, по умолчанию секунда
	Interval time.Duration
	// ResyncEvery через сколько тиков запрашивать Resync (0 - никогда)
	ResyncEvery int
	// Resync возвращает оставшееся время по данным сервера
	Resync func(ctx context.Context, assessmentID string) (int, error)
	// OnTick вызывается после каждого тика
	OnTick func(remaining int)
	// OnExpire вызывается ровно один раз, когда время вышло
	OnExpire func(ctx context.Context)
}

// Countdown обратный отсчет одной сессии в отдельной горутине
type Countdown struct {
	clock  Clock
	opts   Options
	logger *zap.Logger

	cancel     context.CancelFunc
	done       chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
	expireOnce sync.Once
}

func NewCountdown(clock Clock, opts Options, logger *zap.Logger) *Countdown {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Countdown{
		clock:  clock,
		opts:   opts,
		logger: logger.Named("timer").With(zap.String("assessment_id", clock.ID())),
		done:   make(chan struct{}),
	}
}

// Start запускает отсчет. Повторный вызов ничего не делает.
func (c *Countdown) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		go c.run(ctx)
	})
}

// Stop останавливает отсчет, не дожидаясь горутины (ждать можно через Done).
// Безопасен для повторного вызова и вызова из OnExpire.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		c.startOnce.Do(func() {
			close(c.done)
		})
		if c.cancel != nil {
			c.cancel()
		}
	})
}

// Done закрывается, когда отсчет завершился
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

func (c *Countdown) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("countdown cancelled")
			return
		case <-ticker.C:
			if c.clock.Status() != model.StatusInProgress {
				c.logger.Debug("session left in_progress, countdown stopped")
				return
			}

			ticks++
			if c.opts.ResyncEvery > 0 && c.opts.Resync != nil && ticks%c.opts.ResyncEvery == 0 {
				c.resync(ctx)
			}

			remaining, expired := c.clock.Tick()
			if c.opts.OnTick != nil {
				c.opts.OnTick(remaining)
			}
			if expired {
				c.expire(ctx)
				return
			}
		}
	}
}

func (c *Countdown) resync(ctx context.Context) {
	remaining, err := c.opts.Resync(ctx, c.clock.ID())
	if err != nil {
		c.logger.Warn("remaining time resync failed", zap.Error(err))
		return
	}
	// тик ниже вычтет секунду, поэтому подставляем значение на секунду больше
	c.clock.CorrectRemaining(remaining + 1)
}

func (c *Countdown) expire(ctx context.Context) {
	c.expireOnce.Do(func() {
		c.logger.Info("time is up")
		if c.opts.OnExpire != nil {
			// завершение не должно прерываться остановкой таймера
			c.opts.OnExpire(context.WithoutCancel(ctx))
		}
	})
}
