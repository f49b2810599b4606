// Package syringe is a hardware abstraction layer for motorized syringe
// pumps. Physically different pump models speak different serial
// protocols with different framing, status encodings and unit
// conventions; this package presents one unit-normalized control surface
// on top of all of them. Volumes cross the API boundary in microliters,
// rates as a value plus one of four canonical units.
package syringe

// Direction is the running state of a pump. Exactly one holds at any
// time; it changes only through explicit commands or when the device
// stops itself after reaching a target volume.
type Direction int

const (
	Stopped Direction = iota
	Infusing
	Withdrawing
)

var directions = []string{
	Stopped:     "STOPPED",
	Infusing:    "INFUSING",
	Withdrawing: "WITHDRAWING",
}

func (d Direction) String() string {
	if d < Stopped || d > Withdrawing {
		return "UNKNOWN"
	}
	return directions[d]
}

// Local bounds applied to rates, diameters and volumes before anything
// is sent to a device.
const (
	MinValue = 0.001
	MaxValue = 9999
)

// Default rate for discrete bolus doses.
const (
	BolusRate     = 1.0
	BolusRateUnit = MilliliterPerMinute
)

// Pump is the uniform capability set shared by every supported pump
// model. Implementations own their transport exclusively and must not be
// shared between goroutines without external locking; interleaved writes
// on one serial line corrupt framing.
//
// Volume arguments and results are always in microliters. Adapters
// convert to and from whatever unit their wire protocol wants.
type Pump interface {
	// Start runs the pump in its current direction. ErrPumpNotRunning is
	// returned when the device accepts the command but its status still
	// reports stopped.
	Start() error
	// Stop halts the pump. ErrPumpNotStopped is returned when the
	// device's status disagrees afterwards.
	Stop() error
	// Reverse flips the flow direction on devices that support it.
	Reverse() error

	IsRunning() (bool, error)
	Direction() (Direction, error)
	// SetDirection selects the flow direction. While stopped the
	// direction is queued for the next Start; while running it switches
	// immediately on devices that support it. Stopped is not a valid
	// argument and is rejected with ErrInvalidCommand.
	SetDirection(d Direction) error

	// SetDiameter sets the syringe diameter in millimeters.
	SetDiameter(mm float64) error
	Diameter() (float64, error)

	SetRate(value float64, unit Unit) error
	Rate() (float64, Unit, error)
	PossibleUnits() []string

	// ClearVolume resets the accumulated (dispensed) volume to zero.
	ClearVolume() error
	// ClearTargetVolume removes the target volume, putting the pump in
	// continuous mode.
	ClearTargetVolume() error
	// SetTargetVolume presets the volume, in microliters, after which
	// the device autonomously stops.
	SetTargetVolume(uL float64) error
	TargetVolume() (float64, error)
	// Volume reports the accumulated dispensed volume in microliters.
	Volume() (float64, error)
}

// Beeper is implemented by pumps with an audible buzzer. Bring-up beeps
// once after a successful connection so whoever is standing at the
// hardware hears which pump answered.
type Beeper interface {
	Beep(n int) error
}
