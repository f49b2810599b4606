package syringe

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultBolusInterval is how often a Watcher polls the pump while a
// bolus is in flight. It bounds how quickly completion is noticed, not
// command latency.
const DefaultBolusInterval = 100 * time.Millisecond

type priorState struct {
	rate    float64
	unit    Unit
	dir     Direction
	running bool
}

// Watcher supervises one discrete bolus dose: it polls the pump until
// the device stops itself at the target volume, then restores whatever
// rate, direction and running state were in effect before the bolus.
type Watcher struct {
	pump     Pump
	interval time.Duration
	logger   *zap.Logger
	prior    priorState

	abort     chan struct{}
	abortOnce sync.Once
	done      chan struct{}
	err       error
}

// Bolus stops the pump if needed, programs an infusion of volumeUL
// microliters at the given rate, starts it, and hands supervision to a
// Watcher. The returned Watcher is already running.
func Bolus(p Pump, volumeUL, rate float64, unit Unit, interval time.Duration, logger *zap.Logger) (*Watcher, error) {
	if p == nil {
		panic("syringe: Bolus called with nil pump")
	}
	if volumeUL < MinValue || volumeUL > MaxValue {
		return nil, fmt.Errorf("%w: bolus volume %g uL", ErrValueOutOfRange, volumeUL)
	}
	if rate < MinValue || rate > MaxValue {
		return nil, fmt.Errorf("%w: bolus rate %g", ErrValueOutOfRange, rate)
	}
	if interval <= 0 {
		interval = DefaultBolusInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	prevRate, prevUnit, err := p.Rate()
	if err != nil {
		return nil, err
	}
	prevDir, err := p.Direction()
	if err != nil {
		return nil, err
	}
	prior := priorState{
		rate:    prevRate,
		unit:    prevUnit,
		dir:     prevDir,
		running: prevDir != Stopped,
	}

	if prior.running {
		if err := p.Stop(); err != nil {
			return nil, err
		}
	}
	if err := p.SetDirection(Infusing); err != nil {
		return nil, err
	}
	if err := p.SetRate(rate, unit); err != nil {
		return nil, err
	}
	if err := p.SetTargetVolume(volumeUL); err != nil {
		return nil, err
	}
	if err := p.Start(); err != nil {
		return nil, err
	}

	w := &Watcher{
		pump:     p,
		interval: interval,
		logger:   logger,
		prior:    prior,
		abort:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.abort:
			// stop already issued by Abort; nothing to restore
			w.logger.Info("bolus aborted")
			return
		case <-ticker.C:
			running, err := w.pump.IsRunning()
			if err != nil {
				w.err = err
				return
			}
			if running {
				w.logger.Debug("bolus still running")
				continue
			}
			select {
			case <-w.abort:
				w.logger.Info("bolus aborted")
			default:
				w.logger.Debug("bolus finished, restoring pump state")
				w.err = w.restore()
			}
			return
		}
	}
}

// restore puts the pump back the way it was before the bolus. A pump
// that was infusing continuously gets its target cleared first so the
// resumed infusion does not stop again at the bolus target.
func (w *Watcher) restore() error {
	if err := w.pump.SetRate(w.prior.rate, w.prior.unit); err != nil {
		return err
	}
	if !w.prior.running {
		return nil
	}
	if err := w.pump.ClearTargetVolume(); err != nil {
		return err
	}
	if err := w.pump.SetDirection(w.prior.dir); err != nil {
		return err
	}
	return w.pump.Start()
}

// Abort cancels the bolus: the pump is stopped directly and the watcher
// exits on its next poll without restoring the prior running state.
func (w *Watcher) Abort() error {
	w.abortOnce.Do(func() { close(w.abort) })
	return w.pump.Stop()
}

// Done is closed once the watcher has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the bolus completes or is aborted and returns the
// first error the watcher hit while polling or restoring.
func (w *Watcher) Wait() error {
	<-w.done
	return w.err
}
