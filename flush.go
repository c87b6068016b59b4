package st7789

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// FlushStats reports the flush engine's activity.
type FlushStats struct {
	Ticks    uint64 // Flush attempts, periodic and forced
	Failures uint64 // Failed attempts
	Disabled bool   // True once the engine gave up

	// Generation counts frame mutations (Draw, Write, WriteAt, SetPixel,
	// Fill) up to the snapshot the last successful flush sent.
	Generation uint64
}

type request struct {
	fn    func() error // nil means a flush tick
	reply chan error
}

// flusher runs the periodic flush on its own goroutine. That goroutine is the
// only one doing I/O while the engine runs; other callers hand it work
// through reqs.
type flusher struct {
	tick        func() error
	period      time.Duration
	maxFailures int
	log         *slog.Logger

	reqs     chan request
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	consecutive int // owned by the run goroutine
	ticks       atomic.Uint64
	failures    atomic.Uint64
	disabled    atomic.Bool
}

func newFlusher(tick func() error, period time.Duration, maxFailures int, log *slog.Logger) *flusher {
	return &flusher{
		tick:        tick,
		period:      period,
		maxFailures: maxFailures,
		log:         log,
		reqs:        make(chan request),
		done:        make(chan struct{}),
	}
}

func (f *flusher) start() {
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go f.run(ctx)
}

// stop cancels the schedule and waits for an in-flight tick to finish.
func (f *flusher) stop() {
	f.stopOnce.Do(func() {
		f.cancel()
		<-f.done
	})
}

func (f *flusher) run(ctx context.Context) {
	defer close(f.done)
	t := time.NewTicker(f.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if ctx.Err() != nil {
				return
			}
			_ = f.runTick()
		case req := <-f.reqs:
			if ctx.Err() != nil {
				req.reply <- ErrHalted
				return
			}
			if req.fn == nil {
				req.reply <- f.runTick()
			} else {
				req.reply <- req.fn()
			}
		}
	}
}

func (f *flusher) runTick() error {
	if f.disabled.Load() {
		return ErrDisabled
	}
	f.ticks.Add(1)
	err := f.tick()
	if err == nil {
		if f.consecutive > 0 {
			f.log.Info("st7789: flush recovered", "after", f.consecutive)
		}
		f.consecutive = 0
		return nil
	}
	f.failures.Add(1)
	f.consecutive++
	f.log.Warn("st7789: flush failed", "err", err, "consecutive", f.consecutive)
	if f.maxFailures > 0 && f.consecutive >= f.maxFailures {
		f.disabled.Store(true)
		f.log.Error("st7789: flush disabled", "failures", f.consecutive)
	}
	return err
}

// do runs fn on the flush goroutine, or a flush tick when fn is nil, and
// returns its result.
func (f *flusher) do(ctx context.Context, fn func() error) error {
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case f.reqs <- req:
	case <-f.done:
		return ErrHalted
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *flusher) stats() FlushStats {
	return FlushStats{
		Ticks:    f.ticks.Load(),
		Failures: f.failures.Load(),
		Disabled: f.disabled.Load(),
	}
}
