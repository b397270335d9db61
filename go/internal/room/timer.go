package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TickInterval is the countdown granularity.
const TickInterval = time.Second

// TimerService owns the clock used for question countdowns and settle delays.
// In production, use clockwork.NewRealClock(). In tests, a fake clock.
type TimerService struct {
	clock clockwork.Clock
}

// NewTimerService creates a TimerService on the given clock.
func NewTimerService(clock clockwork.Clock) *TimerService {
	return &TimerService{clock: clock}
}

// Now returns the service clock's current time.
func (t *TimerService) Now() time.Time {
	return t.clock.Now()
}

// Countdown is a cancellable one-second ticker bound to a single question.
type Countdown struct {
	ticker clockwork.Ticker
	done   chan struct{}
	once   sync.Once
}

// StartCountdown begins delivering onTick once per TickInterval until Stop is called.
// onTick receives the countdown that fired so the receiver can discard ticks from a
// countdown it no longer owns.
func (t *TimerService) StartCountdown(onTick func(c *Countdown)) *Countdown {
	c := &Countdown{
		ticker: t.clock.NewTicker(TickInterval),
		done:   make(chan struct{}),
	}

	go func() {
		for {
			select {
			case <-c.done:
				return
			case <-c.ticker.Chan():
				onTick(c)
			}
		}
	}()

	return c
}

// Stop cancels the countdown. Safe to call multiple times.
func (c *Countdown) Stop() {
	c.once.Do(func() {
		c.ticker.Stop()
		close(c.done)
	})
}

// Settle is a one-shot delayed transition.
type Settle struct {
	timer clockwork.Timer
	done  chan struct{}
	once  sync.Once
}

// ScheduleSettle calls onFire once after delay unless Cancel is called first.
func (t *TimerService) ScheduleSettle(delay time.Duration, onFire func(s *Settle)) *Settle {
	s := &Settle{
		timer: t.clock.NewTimer(delay),
		done:  make(chan struct{}),
	}

	go func() {
		select {
		case <-s.timer.Chan():
			onFire(s)
		case <-s.done:
			log.Debug().Dur("delay", delay).Msg("settle timer cancelled")
		}
	}()

	return s
}

// Cancel prevents the transition from firing. Safe to call multiple times.
func (s *Settle) Cancel() {
	s.once.Do(func() {
		stopAndDrainTimer(s.timer)
		close(s.done)
	})
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// replaceCountdownLocked cancels any running countdown for the room before storing the
// new one, so a room never holds more than one clock. Caller holds r.mu.
func (r *Room) replaceCountdownLocked(c *Countdown) {
	if r.timer != nil {
		r.timer.Stop()
		log.Debug().Str("room_code", r.code).Msg("replaced existing countdown")
	}
	r.timer = c
}

// cancelTimersLocked stops the countdown and any pending settle transition. Caller holds r.mu.
func (r *Room) cancelTimersLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.advance != nil {
		r.advance.Cancel()
		r.advance = nil
	}
}
