// Package model11 drives a legacy single-syringe pump that speaks a bare
// prompt protocol: short ASCII commands terminated by a carriage return,
// answers recognized by one of three prompt suffixes that double as the
// pump's run status.
package model11

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jt05610/syringe"
	"github.com/jt05610/syringe/wire"
	"go.uber.org/zap"
)

const readTimeout = 1 * time.Second

// Response prompts. The prompt itself carries the run status.
const (
	promptStopped = "\r\n:"
	promptForward = "\r\n>"
	promptReverse = "\r\n<"
	ansOutOfRange = "\r\nOOR"
	ansUnknown    = "\r\n?"
)

const (
	cmdRun         = "RUN\r"
	cmdStop        = "STP\r"
	cmdClearVolume = "CLV\r"
	cmdClearTarget = "CLT\r"
	cmdReverse     = "REV\r"
	cmdSetDiameter = "MMD %5.4f\r"
	cmdSetTarget   = "MLT %5.4f\r"
	cmdGetDiameter = "DIA\r"
	cmdGetRate     = "RAT\r"
	cmdGetUnits    = "RNG\r"
	cmdGetVolume   = "VOL\r"
	cmdGetVersion  = "VER\r"
	cmdGetTarget   = "TAR\r"
	cmdQuitRemote  = "KEY\r"
	cmdStatus      = "\r"
)

// Rate commands indexed by canonical unit.
var rateCmds = []string{
	syringe.MilliliterPerHour:   "MLH %5.4f\r",
	syringe.MilliliterPerMinute: "MLM %5.4f\r",
	syringe.MicroliterPerHour:   "ULH %5.4f\r",
	syringe.MicroliterPerMinute: "ULM %5.4f\r",
}

// The prompt characters end every well-formed answer.
var promptDelims = []byte{':', '>', '<'}

var unitAnswers = map[string]syringe.Unit{
	"ML/HR":  syringe.MilliliterPerHour,
	"ML/MIN": syringe.MilliliterPerMinute,
	"UL/HR":  syringe.MicroliterPerHour,
	"UL/MIN": syringe.MicroliterPerMinute,
}

// Pump drives one Model 11 plus over its transport.
type Pump struct {
	d      *wire.Dispatcher
	logger *zap.Logger
}

func New(t wire.Transport, logger *zap.Logger) *Pump {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pump{
		d:      wire.NewDispatcher(t, readTimeout, logger),
		logger: logger,
	}
}

// send runs one exchange and classifies the device's error markers.
// Error answers carry no prompt suffix, so they surface from the
// dispatcher as a timeout with a partial buffer.
func (p *Pump) send(cmd string) (string, error) {
	raw, err := p.d.Exchange([]byte(cmd), promptDelims)
	ans := string(raw)
	switch {
	case strings.HasPrefix(ans, ansOutOfRange):
		return "", fmt.Errorf("%w: device answered OOR", syringe.ErrValueOutOfRange)
	case strings.HasPrefix(ans, ansUnknown):
		return "", fmt.Errorf("%w: %q", syringe.ErrUnknownCommand, strings.TrimSpace(cmd))
	}
	if err != nil {
		if errors.Is(err, syringe.ErrReadTimeout) && len(raw) > 0 {
			return "", fmt.Errorf("%w: %q", syringe.ErrInvalidAnswer, ans)
		}
		return "", err
	}
	return ans, nil
}

// stripPrompt removes any prompt suffix and surrounding whitespace from
// a query answer.
func stripPrompt(s string) string {
	for _, p := range []string{promptStopped, promptForward, promptReverse} {
		s = strings.ReplaceAll(s, p, "")
	}
	return strings.TrimSpace(s)
}

func (p *Pump) query(cmd string) (float64, error) {
	ans, err := p.send(cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(stripPrompt(ans), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", syringe.ErrUnforeseen, stripPrompt(ans))
	}
	return v, nil
}

func (p *Pump) Start() error {
	if _, err := p.send(cmdRun); err != nil {
		return err
	}
	dir, err := p.Direction()
	if err != nil {
		return err
	}
	if dir == syringe.Stopped {
		return syringe.ErrPumpNotRunning
	}
	return nil
}

func (p *Pump) Stop() error {
	if _, err := p.send(cmdStop); err != nil {
		return err
	}
	dir, err := p.Direction()
	if err != nil {
		return err
	}
	if dir != syringe.Stopped {
		return syringe.ErrPumpNotStopped
	}
	return nil
}

func (p *Pump) Reverse() error {
	_, err := p.send(cmdReverse)
	return err
}

// Direction reads the run status off the prompt an empty command
// produces.
func (p *Pump) Direction() (syringe.Direction, error) {
	ans, err := p.send(cmdStatus)
	if err != nil {
		return syringe.Stopped, err
	}
	switch {
	case strings.HasSuffix(ans, promptForward):
		return syringe.Infusing, nil
	case strings.HasSuffix(ans, promptReverse):
		return syringe.Withdrawing, nil
	case strings.HasSuffix(ans, promptStopped):
		return syringe.Stopped, nil
	}
	return syringe.Stopped, fmt.Errorf("%w: no prompt in %q", syringe.ErrInvalidAnswer, ans)
}

func (p *Pump) IsRunning() (bool, error) {
	dir, err := p.Direction()
	if err != nil {
		return false, err
	}
	return dir != syringe.Stopped, nil
}

// SetDirection reverses the flow when the pump is running the other
// way. While stopped the device hides its flow direction behind the
// `:` prompt and RUN resumes whatever it last was, so there is nothing
// to queue.
func (p *Pump) SetDirection(d syringe.Direction) error {
	if d == syringe.Stopped {
		return fmt.Errorf("%w: cannot set direction to stopped", syringe.ErrInvalidCommand)
	}
	cur, err := p.Direction()
	if err != nil {
		return err
	}
	if cur == syringe.Stopped || cur == d {
		return nil
	}
	return p.Reverse()
}

func (p *Pump) SetDiameter(mm float64) error {
	if mm <= 0 {
		return fmt.Errorf("%w: diameter must be positive", syringe.ErrValueOutOfRange)
	}
	_, err := p.send(fmt.Sprintf(cmdSetDiameter, mm))
	return err
}

func (p *Pump) Diameter() (float64, error) {
	return p.query(cmdGetDiameter)
}

func (p *Pump) SetRate(value float64, unit syringe.Unit) error {
	if value <= 0 {
		return fmt.Errorf("%w: rate must be positive", syringe.ErrValueOutOfRange)
	}
	if !unit.Valid() {
		return fmt.Errorf("%w: unit index %d", syringe.ErrValueOutOfRange, int(unit))
	}
	_, err := p.send(fmt.Sprintf(rateCmds[unit], value))
	return err
}

func (p *Pump) Rate() (float64, syringe.Unit, error) {
	value, err := p.query(cmdGetRate)
	if err != nil {
		return 0, 0, err
	}
	ans, err := p.send(cmdGetUnits)
	if err != nil {
		return 0, 0, err
	}
	unit, ok := unitAnswers[stripPrompt(ans)]
	if !ok {
		return 0, 0, fmt.Errorf("%w: unit answer %q", syringe.ErrUnforeseen, stripPrompt(ans))
	}
	return value, unit, nil
}

func (p *Pump) PossibleUnits() []string {
	return syringe.Units()
}

func (p *Pump) ClearVolume() error {
	_, err := p.send(cmdClearVolume)
	return err
}

func (p *Pump) ClearTargetVolume() error {
	_, err := p.send(cmdClearTarget)
	return err
}

// SetTargetVolume presets the stop volume. The device takes milliliters.
func (p *Pump) SetTargetVolume(uL float64) error {
	if uL <= 0 {
		return fmt.Errorf("%w: target volume must be positive", syringe.ErrValueOutOfRange)
	}
	mL := syringe.FromMicroliters(uL, syringe.Milliliter)
	_, err := p.send(fmt.Sprintf(cmdSetTarget, mL.Value))
	return err
}

func (p *Pump) TargetVolume() (float64, error) {
	mL, err := p.query(cmdGetTarget)
	if err != nil {
		return 0, err
	}
	return syringe.Volume{Value: mL, Unit: syringe.Milliliter}.Microliters(), nil
}

func (p *Pump) Volume() (float64, error) {
	mL, err := p.query(cmdGetVolume)
	if err != nil {
		return 0, err
	}
	return syringe.Volume{Value: mL, Unit: syringe.Milliliter}.Microliters(), nil
}

func (p *Pump) Version() (string, error) {
	ans, err := p.send(cmdGetVersion)
	if err != nil {
		return "", err
	}
	return stripPrompt(ans), nil
}

// Close hands control back to the front-panel keypad.
func (p *Pump) Close() error {
	_, err := p.send(cmdQuitRemote)
	return err
}

var _ syringe.Pump = (*Pump)(nil)
