// Package sim is an in-memory pump used by tests and for driving the
// CLI without hardware. It models the one autonomous behavior that
// matters to callers: a pump with a target volume stops itself once the
// target has been delivered at the programmed rate.
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/jt05610/syringe"
)

// Pump holds its whole state locally. Safe for concurrent use, unlike
// the serial adapters, since there is no line to corrupt.
type Pump struct {
	mu        sync.Mutex
	dir       syringe.Direction // flow direction, applied on Start
	state     syringe.Direction // Stopped or the running direction
	diameter  float64
	rate      float64
	unit      syringe.Unit
	target    float64 // µL; 0 means continuous
	volume    float64 // accumulated µL
	startedAt time.Time

	// Now is the clock used to decide when a target volume completes.
	// Tests swap it to drive completion deterministically.
	Now func() time.Time
}

func New() *Pump {
	return &Pump{
		dir:      syringe.Infusing,
		state:    syringe.Stopped,
		diameter: 10,
		rate:     20,
		unit:     syringe.MilliliterPerHour,
		Now:      time.Now,
	}
}

// tick applies autonomous target-volume completion.
func (p *Pump) tick() {
	if p.state == syringe.Stopped || p.target <= 0 {
		return
	}
	perMin := p.unit.MicrolitersPerMinute(p.rate)
	if perMin <= 0 {
		return
	}
	d := time.Duration(p.target / perMin * float64(time.Minute))
	if p.Now().Sub(p.startedAt) >= d {
		p.state = syringe.Stopped
		p.volume += p.target
	}
}

func (p *Pump) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == syringe.Stopped {
		p.state = p.dir
		p.startedAt = p.Now()
	}
	return nil
}

func (p *Pump) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = syringe.Stopped
	return nil
}

func (p *Pump) Reverse() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dir == syringe.Infusing {
		p.dir = syringe.Withdrawing
	} else {
		p.dir = syringe.Infusing
	}
	if p.state != syringe.Stopped {
		p.state = p.dir
	}
	return nil
}

func (p *Pump) IsRunning() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tick()
	return p.state != syringe.Stopped, nil
}

func (p *Pump) Direction() (syringe.Direction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tick()
	return p.state, nil
}

func (p *Pump) SetDirection(d syringe.Direction) error {
	if d != syringe.Infusing && d != syringe.Withdrawing {
		return fmt.Errorf("%w: cannot set direction to stopped", syringe.ErrInvalidCommand)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dir = d
	if p.state != syringe.Stopped {
		p.state = d
	}
	return nil
}

func (p *Pump) SetDiameter(mm float64) error {
	if mm <= 0 {
		return fmt.Errorf("%w: diameter must be positive", syringe.ErrValueOutOfRange)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.diameter = mm
	return nil
}

func (p *Pump) Diameter() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.diameter, nil
}

func (p *Pump) SetRate(value float64, unit syringe.Unit) error {
	if value <= 0 {
		return fmt.Errorf("%w: rate must be positive", syringe.ErrValueOutOfRange)
	}
	if !unit.Valid() {
		return fmt.Errorf("%w: unit index %d", syringe.ErrValueOutOfRange, int(unit))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = value
	p.unit = unit
	return nil
}

func (p *Pump) Rate() (float64, syringe.Unit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate, p.unit, nil
}

func (p *Pump) PossibleUnits() []string {
	return syringe.Units()
}

func (p *Pump) ClearVolume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = 0
	return nil
}

func (p *Pump) ClearTargetVolume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = 0
	return nil
}

func (p *Pump) SetTargetVolume(uL float64) error {
	if uL <= 0 {
		return fmt.Errorf("%w: target volume must be positive", syringe.ErrValueOutOfRange)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = uL
	return nil
}

func (p *Pump) TargetVolume() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target, nil
}

func (p *Pump) Volume() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tick()
	return p.volume, nil
}

var _ syringe.Pump = (*Pump)(nil)
