package model11_test

import (
	"errors"
	"testing"

	"github.com/jt05610/syringe"
	"github.com/jt05610/syringe/devices/model11"
	"github.com/jt05610/syringe/wire/wiretest"
)

func TestInfusionSetup(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "MMD 10.0000\r", Reply: "\r\n:"},
		{Expect: "ULM 2.5000\r", Reply: "\r\n:"},
		{Expect: "RUN\r", Reply: "\r\n>"},
		{Expect: "\r", Reply: "\r\n>"}, // run verification
		{Expect: "\r", Reply: "\r\n>"},
	}}
	p := model11.New(tr, nil)
	if err := p.SetDiameter(10); err != nil {
		t.Fatal(err)
	}
	if err := p.SetRate(2.5, syringe.MicroliterPerMinute); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	dir, err := p.Direction()
	if err != nil {
		t.Fatal(err)
	}
	if dir != syringe.Infusing {
		t.Fatalf("direction %s, want INFUSING", dir)
	}
	if !tr.Exhausted() {
		t.Fatal("script not consumed")
	}
}

func TestDirectionFromPrompt(t *testing.T) {
	cases := []struct {
		prompt string
		want   syringe.Direction
	}{
		{"\r\n:", syringe.Stopped},
		{"\r\n>", syringe.Infusing},
		{"\r\n<", syringe.Withdrawing},
	}
	for _, tc := range cases {
		tr := &wiretest.Replay{Script: []wiretest.Step{
			{Expect: "\r", Reply: tc.prompt},
		}}
		p := model11.New(tr, nil)
		dir, err := p.Direction()
		if err != nil {
			t.Fatal(err)
		}
		if dir != tc.want {
			t.Fatalf("prompt %q: direction %s, want %s", tc.prompt, dir, tc.want)
		}
	}
}

func TestRateRoundTrip(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "MLH 3.3000\r", Reply: "\r\n:"},
		{Expect: "RAT\r", Reply: "\r\n3.3000\r\n:"},
		{Expect: "RNG\r", Reply: "\r\nML/HR\r\n:"},
	}}
	p := model11.New(tr, nil)
	if err := p.SetRate(3.3, syringe.MilliliterPerHour); err != nil {
		t.Fatal(err)
	}
	value, unit, err := p.Rate()
	if err != nil {
		t.Fatal(err)
	}
	if value != 3.3 || unit != syringe.MilliliterPerHour {
		t.Fatalf("got %v %s", value, unit)
	}
}

// Target volumes cross the wire in milliliters but the API stays in
// microliters.
func TestTargetVolumeUnits(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "MLT 0.5000\r", Reply: "\r\n:"},
		{Expect: "TAR\r", Reply: "\r\n0.5000\r\n:"},
	}}
	p := model11.New(tr, nil)
	if err := p.SetTargetVolume(500); err != nil {
		t.Fatal(err)
	}
	uL, err := p.TargetVolume()
	if err != nil {
		t.Fatal(err)
	}
	if uL != 500 {
		t.Fatalf("target %v uL, want 500", uL)
	}
}

func TestOutOfRangeAnswer(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "ULM 9999.0000\r", Reply: "\r\nOOR", Err: syringe.ErrReadTimeout},
	}}
	p := model11.New(tr, nil)
	err := p.SetRate(9999, syringe.MicroliterPerMinute)
	if !errors.Is(err, syringe.ErrValueOutOfRange) {
		t.Fatalf("err = %v, want value out of range", err)
	}
}

func TestUnknownCommandAnswer(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "VER\r", Reply: "\r\n?", Err: syringe.ErrReadTimeout},
	}}
	p := model11.New(tr, nil)
	_, err := p.Version()
	if !errors.Is(err, syringe.ErrUnknownCommand) {
		t.Fatalf("err = %v, want unknown command", err)
	}
}

func TestGarbledAnswer(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "\r", Reply: "\x00\xff", Err: syringe.ErrReadTimeout},
	}}
	p := model11.New(tr, nil)
	_, err := p.Direction()
	if !errors.Is(err, syringe.ErrInvalidAnswer) {
		t.Fatalf("err = %v, want invalid answer", err)
	}
}

func TestSilentDevice(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "\r", Err: syringe.ErrReadTimeout},
	}}
	p := model11.New(tr, nil)
	_, err := p.Direction()
	if !errors.Is(err, syringe.ErrReadTimeout) {
		t.Fatalf("err = %v, want read timeout", err)
	}
}

func TestStartVerifiesRunning(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "RUN\r", Reply: "\r\n:"},
		{Expect: "\r", Reply: "\r\n:"},
	}}
	p := model11.New(tr, nil)
	if err := p.Start(); !errors.Is(err, syringe.ErrPumpNotRunning) {
		t.Fatalf("err = %v, want pump not running", err)
	}
}

func TestStopVerifiesStopped(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "STP\r", Reply: "\r\n>"},
		{Expect: "\r", Reply: "\r\n>"},
	}}
	p := model11.New(tr, nil)
	if err := p.Stop(); !errors.Is(err, syringe.ErrPumpNotStopped) {
		t.Fatalf("err = %v, want pump not stopped", err)
	}
}

// Reversing while running the other way; no-op when already matching or
// stopped.
func TestSetDirection(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "\r", Reply: "\r\n<"},
		{Expect: "REV\r", Reply: "\r\n>"},
		{Expect: "\r", Reply: "\r\n:"},
	}}
	p := model11.New(tr, nil)
	if err := p.SetDirection(syringe.Infusing); err != nil {
		t.Fatal(err)
	}
	if err := p.SetDirection(syringe.Infusing); err != nil {
		t.Fatal(err)
	}
	if !tr.Exhausted() {
		t.Fatal("script not consumed")
	}
	if err := p.SetDirection(syringe.Stopped); !errors.Is(err, syringe.ErrInvalidCommand) {
		t.Fatalf("err = %v, want invalid command", err)
	}
}
