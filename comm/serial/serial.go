// Package serial binds the wire.Transport contract to a physical serial
// line via go.bug.st/serial.
package serial

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jt05610/syringe"
	"go.bug.st/serial"
)

// pollTimeout is the per-read timeout used inside ReadUntil so the
// deadline check runs even when the line is silent.
const pollTimeout = 50 * time.Millisecond

type Config struct {
	Port     string
	Baud     int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
}

var DefaultConfig = &Config{
	Baud:     19200,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// ParseParity maps the config-file spelling ("none", "even", "odd") to a
// serial mode value.
func ParseParity(s string) (serial.Parity, error) {
	switch s {
	case "", "none", "N":
		return serial.NoParity, nil
	case "even", "E":
		return serial.EvenParity, nil
	case "odd", "O":
		return serial.OddParity, nil
	}
	return serial.NoParity, fmt.Errorf("unknown parity %q", s)
}

// ParseStopBits maps the config-file stop bit count (1, 1.5, 2).
func ParseStopBits(v float64) (serial.StopBits, error) {
	switch v {
	case 0, 1:
		return serial.OneStopBit, nil
	case 1.5:
		return serial.OnePointFiveStopBits, nil
	case 2:
		return serial.TwoStopBits, nil
	}
	return serial.OneStopBit, fmt.Errorf("unknown stop bit count %v", v)
}

// Port is a serial line implementing wire.Transport.
type Port struct {
	port serial.Port
}

func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

func Open(cfg *Config) (*Port, error) {
	if cfg == nil {
		cfg = DefaultConfig
	}
	p, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: cfg.DataBits,
		Parity:   cfg.Parity,
		StopBits: cfg.StopBits,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(pollTimeout); err != nil {
		_ = p.Close()
		return nil, err
	}
	return &Port{port: p}, nil
}

func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// ReadUntil accumulates bytes until one of delims shows up or the
// deadline passes. Partial reads are returned alongside
// syringe.ErrReadTimeout.
func (p *Port) ReadUntil(delims []byte, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 0, 64)
	chunk := make([]byte, 16)
	for {
		n, err := p.port.Read(chunk)
		if err != nil {
			return buf, err
		}
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if bytes.IndexAny(buf[len(buf)-n:], string(delims)) >= 0 {
				return buf, nil
			}
		}
		if time.Now().After(deadline) {
			return buf, syringe.ErrReadTimeout
		}
	}
}

// Flush drops whatever is pending on both sides of the line.
func (p *Port) Flush() error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return err
	}
	return p.port.ResetOutputBuffer()
}

func (p *Port) Close() error {
	return p.port.Close()
}
