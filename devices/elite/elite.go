// Package elite drives newer syringe pumps that speak the poll-mode
// protocol: after a "poll on" handshake every reply is terminated by an
// XON control byte, and the status query answers one whitespace-split
// line of rate, elapsed time, dispensed volume and a flag string.
package elite

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jt05610/syringe"
	"github.com/jt05610/syringe/wire"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const readTimeout = 1 * time.Second

// xon terminates every reply once polling is enabled.
const xon = 0x11

// Rate unit arguments indexed by canonical unit.
var unitArgs = []string{
	syringe.MilliliterPerHour:   "ml/hr",
	syringe.MilliliterPerMinute: "ml/min",
	syringe.MicroliterPerHour:   "ul/hr",
	syringe.MicroliterPerMinute: "ul/min",
}

// femto converts the femtoliter wire fields to microliters.
var femto = decimal.NewFromInt(1_000_000_000)

// Status is one decoded poll line. Rate and Volume are in the device's
// wire units (femtoliters per second, femtoliters).
type Status struct {
	Rate    float64
	Elapsed time.Duration
	Volume  float64
	Flags   string
}

// Direction classifies the first flag character: a lower-case letter
// means stopped, upper-case I or W identify the running direction.
func (s *Status) Direction() (syringe.Direction, error) {
	c := rune(s.Flags[0])
	if unicode.IsLower(c) {
		return syringe.Stopped, nil
	}
	switch c {
	case 'I':
		return syringe.Infusing, nil
	case 'W':
		return syringe.Withdrawing, nil
	}
	return syringe.Stopped, fmt.Errorf("%w: status flag %q", syringe.ErrUnforeseen, s.Flags)
}

// Stalled reports the embedded motor stall flag.
func (s *Status) Stalled() bool {
	return strings.ContainsRune(s.Flags[1:], 'S')
}

// TargetReached reports the embedded target-volume flag.
func (s *Status) TargetReached() bool {
	return strings.ContainsRune(s.Flags[1:], 'T')
}

// VolumeMicroliters converts the dispensed-volume field.
func (s *Status) VolumeMicroliters() float64 {
	return decimal.NewFromFloat(s.Volume).Div(femto).InexactFloat64()
}

// ParseStatus decodes one poll line. A line with the wrong shape is an
// invalid answer; a field that will not parse inside a well-shaped line
// is surfaced, never guessed.
func ParseStatus(line string) (*Status, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 || fields[3] == "" {
		return nil, fmt.Errorf("%w: status line %q", syringe.ErrInvalidAnswer, line)
	}
	rate, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: rate field %q", syringe.ErrUnforeseen, fields[0])
	}
	ms, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: elapsed field %q", syringe.ErrUnforeseen, fields[1])
	}
	vol, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: volume field %q", syringe.ErrUnforeseen, fields[2])
	}
	return &Status{
		Rate:    rate,
		Elapsed: time.Duration(ms) * time.Millisecond,
		Volume:  vol,
		Flags:   fields[3],
	}, nil
}

// Pump drives one poll-mode pump.
type Pump struct {
	d      *wire.Dispatcher
	addr   int
	logger *zap.Logger
	// direction applied by the next Start; the device has no idle
	// direction state of its own.
	dir syringe.Direction
}

// New enables poll mode on the device before returning.
func New(t wire.Transport, addr int, logger *zap.Logger) (*Pump, error) {
	if addr < 0 || addr > 99 {
		return nil, fmt.Errorf("%w: address %d outside 0-99", syringe.ErrValueOutOfRange, addr)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pump{
		d:      wire.NewDispatcher(t, readTimeout, logger),
		addr:   addr,
		logger: logger,
		dir:    syringe.Infusing,
	}
	if _, err := p.send("poll on"); err != nil {
		return nil, err
	}
	return p, nil
}

// send frames one command and strips the reply down to its payload.
func (p *Pump) send(cmd string) (string, error) {
	full := fmt.Sprintf("%02d%s\r\n", p.addr, cmd)
	raw, err := p.d.Exchange([]byte(full), []byte{xon})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(string(raw)), string(rune(xon)))), nil
}

func (p *Pump) status() (*Status, error) {
	line, err := p.send("status")
	if err != nil {
		return nil, err
	}
	s, err := ParseStatus(line)
	if err != nil {
		return nil, err
	}
	if s.Stalled() {
		return nil, &syringe.AlarmError{Code: syringe.AlarmStalled}
	}
	return s, nil
}

func (p *Pump) run(d syringe.Direction) error {
	cmd := "irun"
	if d == syringe.Withdrawing {
		cmd = "wrun"
	}
	if _, err := p.send(cmd); err != nil {
		return err
	}
	s, err := p.status()
	if err != nil {
		return err
	}
	dir, err := s.Direction()
	if err != nil {
		return err
	}
	if dir == syringe.Stopped {
		return syringe.ErrPumpNotRunning
	}
	return nil
}

func (p *Pump) Start() error {
	return p.run(p.dir)
}

func (p *Pump) Stop() error {
	if _, err := p.send("stop"); err != nil {
		return err
	}
	s, err := p.status()
	if err != nil {
		return err
	}
	dir, err := s.Direction()
	if err != nil {
		return err
	}
	if dir != syringe.Stopped {
		return syringe.ErrPumpNotStopped
	}
	return nil
}

func (p *Pump) IsRunning() (bool, error) {
	s, err := p.status()
	if err != nil {
		return false, err
	}
	dir, err := s.Direction()
	if err != nil {
		return false, err
	}
	return dir != syringe.Stopped, nil
}

func (p *Pump) Direction() (syringe.Direction, error) {
	s, err := p.status()
	if err != nil {
		return syringe.Stopped, err
	}
	return s.Direction()
}

// SetDirection queues the direction for the next Start, or switches a
// running pump immediately.
func (p *Pump) SetDirection(d syringe.Direction) error {
	if d != syringe.Infusing && d != syringe.Withdrawing {
		return fmt.Errorf("%w: cannot set direction to stopped", syringe.ErrInvalidCommand)
	}
	cur, err := p.Direction()
	if err != nil {
		return err
	}
	p.dir = d
	if cur != syringe.Stopped && cur != d {
		return p.run(d)
	}
	return nil
}

func (p *Pump) Reverse() error {
	if p.dir == syringe.Infusing {
		return p.SetDirection(syringe.Withdrawing)
	}
	return p.SetDirection(syringe.Infusing)
}

func (p *Pump) SetDiameter(mm float64) error {
	if mm <= 0 {
		return fmt.Errorf("%w: diameter must be positive", syringe.ErrValueOutOfRange)
	}
	_, err := p.send(fmt.Sprintf("diameter %.4f", mm))
	return err
}

func (p *Pump) Diameter() (float64, error) {
	ans, err := p.send("diameter")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(ans)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: diameter answer %q", syringe.ErrInvalidAnswer, ans)
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: diameter %q", syringe.ErrUnforeseen, fields[0])
	}
	return v, nil
}

// SetRate programs both the infusion and withdrawal rates so a reversed
// run keeps the requested rate.
func (p *Pump) SetRate(value float64, unit syringe.Unit) error {
	if value <= 0 {
		return fmt.Errorf("%w: rate must be positive", syringe.ErrValueOutOfRange)
	}
	if !unit.Valid() {
		return fmt.Errorf("%w: unit index %d", syringe.ErrValueOutOfRange, int(unit))
	}
	if _, err := p.send(fmt.Sprintf("irate %.4f %s", value, unitArgs[unit])); err != nil {
		return err
	}
	_, err := p.send(fmt.Sprintf("wrate %.4f %s", value, unitArgs[unit]))
	return err
}

func (p *Pump) Rate() (float64, syringe.Unit, error) {
	ans, err := p.send("irate")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(ans)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: rate answer %q", syringe.ErrInvalidAnswer, ans)
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: rate %q", syringe.ErrUnforeseen, fields[0])
	}
	for u, arg := range unitArgs {
		if arg == fields[1] {
			return value, syringe.Unit(u), nil
		}
	}
	return 0, 0, fmt.Errorf("%w: rate unit %q", syringe.ErrUnforeseen, fields[1])
}

func (p *Pump) PossibleUnits() []string {
	return syringe.Units()
}

func (p *Pump) ClearVolume() error {
	_, err := p.send("cvolume")
	return err
}

func (p *Pump) ClearTargetVolume() error {
	_, err := p.send("ctvolume")
	return err
}

func (p *Pump) SetTargetVolume(uL float64) error {
	if uL <= 0 {
		return fmt.Errorf("%w: target volume must be positive", syringe.ErrValueOutOfRange)
	}
	_, err := p.send(fmt.Sprintf("tvolume %.4f ul", uL))
	return err
}

func (p *Pump) TargetVolume() (float64, error) {
	ans, err := p.send("tvolume")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(ans)
	if len(fields) != 2 {
		return 0, fmt.Errorf("%w: target volume answer %q", syringe.ErrInvalidAnswer, ans)
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: target volume %q", syringe.ErrUnforeseen, fields[0])
	}
	switch fields[1] {
	case "ul":
		return value, nil
	case "ml":
		return syringe.Volume{Value: value, Unit: syringe.Milliliter}.Microliters(), nil
	}
	return 0, fmt.Errorf("%w: target volume unit %q", syringe.ErrUnforeseen, fields[1])
}

// Volume reports the dispensed volume off the poll line.
func (p *Pump) Volume() (float64, error) {
	s, err := p.status()
	if err != nil {
		return 0, err
	}
	return s.VolumeMicroliters(), nil
}

var _ syringe.Pump = (*Pump)(nil)
