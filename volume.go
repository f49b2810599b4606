package syringe

import "github.com/shopspring/decimal"

// VolumeUnit tags a volume the way it appears on a wire protocol. The
// canonical unit everywhere else in this package is the microliter.
type VolumeUnit int

const (
	Microliter VolumeUnit = iota
	Milliliter
)

func (u VolumeUnit) String() string {
	if u == Milliliter {
		return "ML"
	}
	return "UL"
}

// Volume is a value plus its wire unit. It only exists at the protocol
// boundary; adapters convert to plain microliters before returning
// anything to a caller.
type Volume struct {
	Value float64
	Unit  VolumeUnit
}

// Microliters converts the volume to the canonical unit.
func (v Volume) Microliters() float64 {
	if v.Unit == Milliliter {
		return decimal.NewFromFloat(v.Value).Mul(thousand).InexactFloat64()
	}
	return v.Value
}

// FromMicroliters expresses a canonical volume in the given wire unit.
func FromMicroliters(uL float64, unit VolumeUnit) Volume {
	if unit == Milliliter {
		return Volume{
			Value: decimal.NewFromFloat(uL).Div(thousand).InexactFloat64(),
			Unit:  Milliliter,
		}
	}
	return Volume{Value: uL, Unit: Microliter}
}
