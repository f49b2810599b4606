package syringe

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Unit is a canonical rate unit. The integer values are the unit indices
// used across the public API and match the order every supported vendor
// lists its units in.
type Unit int

const (
	MilliliterPerHour Unit = iota
	MilliliterPerMinute
	MicroliterPerHour
	MicroliterPerMinute
)

var unitNames = []string{
	MilliliterPerHour:   "mL/hr",
	MilliliterPerMinute: "mL/min",
	MicroliterPerHour:   "uL/hr",
	MicroliterPerMinute: "uL/min",
}

func (u Unit) Valid() bool {
	return u >= MilliliterPerHour && u <= MicroliterPerMinute
}

func (u Unit) String() string {
	if !u.Valid() {
		return fmt.Sprintf("Unit(%d)", int(u))
	}
	return unitNames[u]
}

// Units lists the canonical rate units in index order.
func Units() []string {
	out := make([]string, len(unitNames))
	copy(out, unitNames)
	return out
}

// ParseUnit resolves a unit name as printed by String.
func ParseUnit(s string) (Unit, error) {
	for i, n := range unitNames {
		if n == s {
			return Unit(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown rate unit %q", ErrValueOutOfRange, s)
}

var (
	thousand = decimal.NewFromInt(1000)
	sixty    = decimal.NewFromInt(60)
)

// MicrolitersPerMinute normalizes a rate in this unit to µL/min.
func (u Unit) MicrolitersPerMinute(value float64) float64 {
	d := decimal.NewFromFloat(value)
	switch u {
	case MilliliterPerHour:
		d = d.Mul(thousand).Div(sixty)
	case MilliliterPerMinute:
		d = d.Mul(thousand)
	case MicroliterPerHour:
		d = d.Div(sixty)
	}
	return d.InexactFloat64()
}
