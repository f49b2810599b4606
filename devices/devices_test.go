package devices_test

import (
	"testing"

	"github.com/jt05610/syringe"
	"github.com/jt05610/syringe/devices"
	"github.com/jt05610/syringe/wire/wiretest"
)

// A silent pump fails bring-up after the bounded number of probes.
func TestBringUpGivesUp(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "\r", Err: syringe.ErrReadTimeout},
		{Expect: "\r", Err: syringe.ErrReadTimeout},
		{Expect: "\r", Err: syringe.ErrReadTimeout},
	}}
	p, outcome := devices.BringUp(devices.Model11, tr, 0, nil)
	if outcome != devices.Failed {
		t.Fatalf("outcome %v, want Failed", outcome)
	}
	if p != nil {
		t.Fatal("failed bring-up returned a pump")
	}
	if len(tr.Writes) != 3 {
		t.Fatalf("probed %d times, want 3", len(tr.Writes))
	}
	if !tr.Exhausted() {
		t.Fatal("script not consumed")
	}
}

// A pump that misses the first probe but answers the second connects.
func TestBringUpRetriesWithinRound(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "\r", Err: syringe.ErrReadTimeout},
		{Expect: "\r", Reply: "\r\n:"},
	}}
	p, outcome := devices.BringUp(devices.Model11, tr, 0, nil)
	if outcome != devices.Connected {
		t.Fatalf("outcome %v, want Connected", outcome)
	}
	if p == nil {
		t.Fatal("connected bring-up returned no pump")
	}
	if !tr.Exhausted() {
		t.Fatal("script not consumed")
	}
}

// A pump with a buzzer beeps once after the probe succeeds.
func TestBringUpBeeps(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "00\r", Reply: "\x0200S\x03"},
		{Expect: "00BUZ11\r", Reply: "\x0200S\x03"},
	}}
	_, outcome := devices.BringUp(devices.Aladdin, tr, 0, nil)
	if outcome != devices.Connected {
		t.Fatalf("outcome %v, want Connected", outcome)
	}
	if !tr.Exhausted() {
		t.Fatal("no beep after bring-up")
	}
}

func TestBringUpSim(t *testing.T) {
	p, outcome := devices.BringUp(devices.Sim, nil, 0, nil)
	if outcome != devices.Connected || p == nil {
		t.Fatalf("sim bring-up: %v, %v", p, outcome)
	}
}

func TestNewRejectsUnknownModel(t *testing.T) {
	if _, err := devices.New("centrifuge", &wiretest.Replay{}, 0, nil); err == nil {
		t.Fatal("expected an error for an unknown model")
	}
}
