// Package devices knows every supported pump model and how to bring one
// up on a transport.
package devices

import (
	"fmt"

	"github.com/jt05610/syringe"
	"github.com/jt05610/syringe/devices/aladdin"
	"github.com/jt05610/syringe/devices/elite"
	"github.com/jt05610/syringe/devices/model11"
	"github.com/jt05610/syringe/devices/sim"
	"github.com/jt05610/syringe/wire"
	"go.uber.org/zap"
)

// Model selects a vendor protocol. The set is closed; adding a model
// means adding an adapter package and a case below.
type Model string

const (
	Model11 Model = "model11"
	Aladdin Model = "aladdin"
	Elite   Model = "elite"
	Sim     Model = "sim"
)

// Models lists the supported model names.
func Models() []Model {
	return []Model{Model11, Aladdin, Elite, Sim}
}

// New constructs the adapter for one pump. addr is ignored by models
// that are not addressable.
func New(m Model, t wire.Transport, addr int, logger *zap.Logger) (syringe.Pump, error) {
	switch m {
	case Model11:
		return model11.New(t, logger), nil
	case Aladdin:
		return aladdin.New(t, addr, logger)
	case Elite:
		return elite.New(t, addr, logger)
	case Sim:
		return sim.New(), nil
	}
	return nil, fmt.Errorf("unknown pump model %q", m)
}

// Outcome is the result of one bring-up round. Failed leaves the
// retry-or-give-up decision with the caller; bring-up itself never loops
// forever.
type Outcome int

const (
	Connected Outcome = iota
	Failed
)

// bringUpAttempts bounds one bring-up round. It sometimes takes a
// couple of tries before a freshly powered pump answers.
const bringUpAttempts = 3

// BringUp attaches to a pump: construct the adapter, probe liveness
// with IsRunning, and beep once so whoever is at the hardware hears
// which pump answered. Up to bringUpAttempts tries before giving up
// with Failed.
func BringUp(m Model, t wire.Transport, addr int, logger *zap.Logger) (syringe.Pump, Outcome) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for attempt := 1; attempt <= bringUpAttempts; attempt++ {
		p, err := New(m, t, addr, logger)
		if err == nil {
			_, err = p.IsRunning()
		}
		if err != nil {
			logger.Warn("pump not answering",
				zap.String("model", string(m)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		if b, ok := p.(syringe.Beeper); ok {
			if err := b.Beep(1); err != nil {
				logger.Warn("beep failed", zap.Error(err))
			}
		}
		return p, Connected
	}
	return nil, Failed
}
