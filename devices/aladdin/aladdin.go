// Package aladdin drives networkable multi-pump devices speaking the
// addressed frame protocol: commands carry a two-digit zero-padded
// address, answers come wrapped in STX/ETX with the echoed address, a
// one-letter status code or an alarm marker, and a message payload.
package aladdin

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jt05610/syringe"
	"github.com/jt05610/syringe/wire"
	"go.uber.org/zap"
)

const readTimeout = 1 * time.Second

const (
	stx = 0x02
	etx = 0x03
)

// Status codes echoed in every frame.
const (
	statusInfusing    = 'I'
	statusWithdrawing = 'W'
	statusStopped     = 'S'
	statusPaused      = 'P'
	statusPausePhase  = 'T'
	statusTriggerWait = 'U'
)

// Direction arguments for the DIR command.
const (
	dirInfuse   = "INF"
	dirWithdraw = "WDR"
	dirReverse  = "REV"
)

// Rate unit codes indexed by canonical unit.
var unitCodes = []string{
	syringe.MilliliterPerHour:   "MH",
	syringe.MilliliterPerMinute: "MM",
	syringe.MicroliterPerHour:   "UH",
	syringe.MicroliterPerMinute: "UM",
}

// volUnitThreshold splits the syringe diameters for which the device
// expresses volumes in µL (at or below) from those using mL (above).
// Hard-coded from this vendor's datasheet; no other codec consults it.
const volUnitThreshold = 14.0

// ansPattern is the full frame grammar: STX, echoed address, status
// letter or alarm marker with sub-code, message, ETX.
var ansPattern = regexp.MustCompile(`^\x02([0-9]{2})([IWSPTU]|A\?[RSTEO])(.*)\x03$`)

var (
	verPattern = regexp.MustCompile(`^NE([0-9]+)V([0-9]+)\.([0-9]+)$`)
	disPattern = regexp.MustCompile(`^I([0-9.]+)W([0-9.]+)([UM]L)$`)
)

var alarmCodes = map[byte]syringe.AlarmCode{
	'R': syringe.AlarmReset,
	'S': syringe.AlarmStalled,
	'T': syringe.AlarmTimeout,
	'E': syringe.AlarmProgramError,
	'O': syringe.AlarmPhaseOutOfRange,
}

// wireFloat renders a value into the fixed 5-character field the
// protocol uses. Values too wide for the field truncate rather than
// round; kept as observed on the device.
func wireFloat(v float64) string {
	s := fmt.Sprintf("%05.3f", v)
	if len(s) > 5 {
		s = s[:5]
	}
	return s
}

type frame struct {
	addr   int
	status byte
	msg    string
}

func (f *frame) running() bool {
	return f.status == statusInfusing || f.status == statusWithdrawing
}

// decode validates raw against the frame grammar. A frame carrying an
// alarm marker comes back as an AlarmError, an error code in the message
// as the matching taxonomy error.
func decode(raw []byte, wantAddr int) (*frame, error) {
	m := ansPattern.FindStringSubmatch(string(raw))
	if m == nil {
		return nil, fmt.Errorf("%w: %q does not match frame grammar", syringe.ErrInvalidAnswer, raw)
	}
	addr, err := strconv.Atoi(m[1])
	if err != nil || addr != wantAddr {
		return nil, fmt.Errorf("%w: frame for address %s, want %02d", syringe.ErrInvalidAnswer, m[1], wantAddr)
	}
	if strings.HasPrefix(m[2], "A?") {
		return nil, &syringe.AlarmError{Code: alarmCodes[m[2][2]]}
	}
	f := &frame{addr: addr, status: m[2][0], msg: m[3]}
	if strings.HasPrefix(f.msg, "?") {
		return nil, decodeErrorCode(f.msg)
	}
	return f, nil
}

func decodeErrorCode(msg string) error {
	switch {
	case strings.HasPrefix(msg, "?OOR"):
		return fmt.Errorf("%w: command data out of range", syringe.ErrValueOutOfRange)
	case strings.HasPrefix(msg, "?NA"):
		return fmt.Errorf("%w: not currently applicable", syringe.ErrInvalidCommand)
	case strings.HasPrefix(msg, "?COM"):
		return fmt.Errorf("%w: device saw an invalid packet", syringe.ErrUnforeseen)
	case strings.HasPrefix(msg, "?IGN"):
		return fmt.Errorf("%w: command ignored at phase start", syringe.ErrUnforeseen)
	default:
		return fmt.Errorf("%w: device did not recognize the command", syringe.ErrUnknownCommand)
	}
}

// Pump drives one pump on a shared multi-drop line.
type Pump struct {
	d      *wire.Dispatcher
	addr   int
	logger *zap.Logger
}

func New(t wire.Transport, addr int, logger *zap.Logger) (*Pump, error) {
	if addr < 0 || addr > 99 {
		return nil, fmt.Errorf("%w: address %d outside 0-99", syringe.ErrValueOutOfRange, addr)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pump{
		d:      wire.NewDispatcher(t, readTimeout, logger),
		addr:   addr,
		logger: logger,
	}, nil
}

// send addresses, frames and dispatches one command and decodes the
// answer frame.
func (p *Pump) send(cmd string) (*frame, error) {
	full := fmt.Sprintf("%02d%s\r", p.addr, cmd)
	raw, err := p.d.Exchange([]byte(full), []byte{etx})
	if err != nil {
		return nil, err
	}
	return decode(raw, p.addr)
}

func (p *Pump) Start() error {
	f, err := p.send("RUN1")
	if err != nil {
		return err
	}
	if !f.running() {
		return syringe.ErrPumpNotRunning
	}
	return nil
}

func (p *Pump) Stop() error {
	f, err := p.send("STP")
	if err != nil {
		return err
	}
	if f.status != statusPaused && f.status != statusStopped {
		return syringe.ErrPumpNotStopped
	}
	return nil
}

func (p *Pump) Reverse() error {
	_, err := p.send("DIR" + dirReverse)
	return err
}

// IsRunning queries the status an empty command echoes back.
func (p *Pump) IsRunning() (bool, error) {
	f, err := p.send("")
	if err != nil {
		return false, err
	}
	return f.running(), nil
}

func (p *Pump) Direction() (syringe.Direction, error) {
	f, err := p.send("")
	if err != nil {
		return syringe.Stopped, err
	}
	if !f.running() {
		return syringe.Stopped, nil
	}
	dir, err := p.send("DIR")
	if err != nil {
		return syringe.Stopped, err
	}
	switch dir.msg {
	case dirInfuse:
		return syringe.Infusing, nil
	case dirWithdraw:
		return syringe.Withdrawing, nil
	}
	return syringe.Stopped, fmt.Errorf("%w: direction %q", syringe.ErrUnforeseen, dir.msg)
}

func (p *Pump) SetDirection(d syringe.Direction) error {
	var arg string
	switch d {
	case syringe.Infusing:
		arg = dirInfuse
	case syringe.Withdrawing:
		arg = dirWithdraw
	default:
		return fmt.Errorf("%w: cannot set direction to stopped", syringe.ErrInvalidCommand)
	}
	_, err := p.send("DIR" + arg)
	return err
}

func (p *Pump) SetDiameter(mm float64) error {
	if mm <= 0 {
		return fmt.Errorf("%w: diameter must be positive", syringe.ErrValueOutOfRange)
	}
	_, err := p.send("DIA" + wireFloat(mm))
	return err
}

func (p *Pump) Diameter() (float64, error) {
	f, err := p.send("DIA")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(f.msg, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: diameter %q", syringe.ErrUnforeseen, f.msg)
	}
	return v, nil
}

func (p *Pump) SetRate(value float64, unit syringe.Unit) error {
	if value <= 0 {
		return fmt.Errorf("%w: rate must be positive", syringe.ErrValueOutOfRange)
	}
	if !unit.Valid() {
		return fmt.Errorf("%w: unit index %d", syringe.ErrValueOutOfRange, int(unit))
	}
	_, err := p.send("RAT" + wireFloat(value) + unitCodes[unit])
	return err
}

func (p *Pump) Rate() (float64, syringe.Unit, error) {
	f, err := p.send("RAT")
	if err != nil {
		return 0, 0, err
	}
	if len(f.msg) < 3 {
		return 0, 0, fmt.Errorf("%w: rate %q", syringe.ErrUnforeseen, f.msg)
	}
	code := f.msg[len(f.msg)-2:]
	value, err := strconv.ParseFloat(f.msg[:len(f.msg)-2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: rate %q", syringe.ErrUnforeseen, f.msg)
	}
	for u, c := range unitCodes {
		if c == code {
			return value, syringe.Unit(u), nil
		}
	}
	return 0, 0, fmt.Errorf("%w: rate unit code %q", syringe.ErrUnforeseen, code)
}

func (p *Pump) PossibleUnits() []string {
	return syringe.Units()
}

// ClearVolume resets both dispensed-volume accumulators.
func (p *Pump) ClearVolume() error {
	if _, err := p.send("CLD" + dirInfuse); err != nil {
		return err
	}
	_, err := p.send("CLD" + dirWithdraw)
	return err
}

func (p *Pump) ClearTargetVolume() error {
	_, err := p.send("VOL" + wireFloat(0))
	return err
}

// volumeUnit picks the wire unit the device expects for volume fields,
// from the diameter currently programmed on the device.
func (p *Pump) volumeUnit() (syringe.VolumeUnit, error) {
	dia, err := p.Diameter()
	if err != nil {
		return syringe.Microliter, err
	}
	if dia <= volUnitThreshold {
		return syringe.Microliter, nil
	}
	return syringe.Milliliter, nil
}

func (p *Pump) SetTargetVolume(uL float64) error {
	if uL <= 0 {
		return fmt.Errorf("%w: target volume must be positive", syringe.ErrValueOutOfRange)
	}
	unit, err := p.volumeUnit()
	if err != nil {
		return err
	}
	wv := syringe.FromMicroliters(uL, unit)
	_, err = p.send("VOL" + wireFloat(wv.Value))
	return err
}

// parseVolume splits a value with its 2-letter unit suffix. The decode
// side trusts the unit the device reports rather than re-deriving it
// from the diameter.
func parseVolume(msg string) (syringe.Volume, error) {
	if len(msg) < 3 {
		return syringe.Volume{}, fmt.Errorf("%w: volume %q", syringe.ErrUnforeseen, msg)
	}
	value, err := strconv.ParseFloat(msg[:len(msg)-2], 64)
	if err != nil {
		return syringe.Volume{}, fmt.Errorf("%w: volume %q", syringe.ErrUnforeseen, msg)
	}
	switch msg[len(msg)-2:] {
	case "UL":
		return syringe.Volume{Value: value, Unit: syringe.Microliter}, nil
	case "ML":
		return syringe.Volume{Value: value, Unit: syringe.Milliliter}, nil
	}
	return syringe.Volume{}, fmt.Errorf("%w: volume unit in %q", syringe.ErrUnforeseen, msg)
}

func (p *Pump) TargetVolume() (float64, error) {
	f, err := p.send("VOL")
	if err != nil {
		return 0, err
	}
	v, err := parseVolume(f.msg)
	if err != nil {
		return 0, err
	}
	return v.Microliters(), nil
}

// Volume reports the infused accumulator from the DIS answer, which
// carries both directions plus the unit.
func (p *Pump) Volume() (float64, error) {
	inf, _, err := p.dispensed()
	return inf, err
}

// WithdrawnVolume reports the withdrawal accumulator in microliters.
func (p *Pump) WithdrawnVolume() (float64, error) {
	_, wdr, err := p.dispensed()
	return wdr, err
}

func (p *Pump) dispensed() (float64, float64, error) {
	f, err := p.send("DIS")
	if err != nil {
		return 0, 0, err
	}
	m := disPattern.FindStringSubmatch(f.msg)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: dispensed volume %q", syringe.ErrUnforeseen, f.msg)
	}
	unit := syringe.Microliter
	if m[3] == "ML" {
		unit = syringe.Milliliter
	}
	inf, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: dispensed volume %q", syringe.ErrUnforeseen, f.msg)
	}
	wdr, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: dispensed volume %q", syringe.ErrUnforeseen, f.msg)
	}
	return syringe.Volume{Value: inf, Unit: unit}.Microliters(),
		syringe.Volume{Value: wdr, Unit: unit}.Microliters(), nil
}

func (p *Pump) Version() (string, error) {
	f, err := p.send("VER")
	if err != nil {
		return "", err
	}
	m := verPattern.FindStringSubmatch(f.msg)
	if m == nil {
		return "", fmt.Errorf("%w: version %q", syringe.ErrUnforeseen, f.msg)
	}
	return fmt.Sprintf("Model #%s, firmware v%s.%s", m[1], m[2], m[3]), nil
}

// Beep sounds the buzzer n times.
func (p *Pump) Beep(n int) error {
	_, err := p.send(fmt.Sprintf("BUZ1%d", n))
	return err
}

var (
	_ syringe.Pump   = (*Pump)(nil)
	_ syringe.Beeper = (*Pump)(nil)
)
