package aladdin

import (
	"errors"
	"testing"

	"github.com/jt05610/syringe"
	"github.com/jt05610/syringe/wire/wiretest"
)

func newPump(t *testing.T, addr int, script []wiretest.Step) (*Pump, *wiretest.Replay) {
	t.Helper()
	tr := &wiretest.Replay{Script: script}
	p, err := New(tr, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p, tr
}

func TestWireFloat(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.000"},
		{2.5, "2.500"},
		{12.345, "12.34"},
		{500, "500.0"},
		{5000, "5000."},
	}
	for _, tc := range cases {
		if got := wireFloat(tc.in); got != tc.want {
			t.Fatalf("wireFloat(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing ETX", "\x0200S"},
		{"missing STX", "00S\x03"},
		{"one digit address", "\x020S\x03"},
		{"bad status letter", "\x0200X\x03"},
		{"empty", ""},
	}
	for _, tc := range cases {
		if _, err := decode([]byte(tc.raw), 0); !errors.Is(err, syringe.ErrInvalidAnswer) {
			t.Fatalf("%s: err = %v, want invalid answer", tc.name, err)
		}
	}
}

func TestDecodeRejectsWrongAddress(t *testing.T) {
	if _, err := decode([]byte("\x0201S\x03"), 0); !errors.Is(err, syringe.ErrInvalidAnswer) {
		t.Fatalf("err = %v, want invalid answer", err)
	}
}

func TestDecodeAlarms(t *testing.T) {
	cases := []struct {
		marker string
		code   syringe.AlarmCode
	}{
		{"A?R", syringe.AlarmReset},
		{"A?S", syringe.AlarmStalled},
		{"A?T", syringe.AlarmTimeout},
		{"A?E", syringe.AlarmProgramError},
		{"A?O", syringe.AlarmPhaseOutOfRange},
	}
	for _, tc := range cases {
		_, err := decode([]byte("\x0200"+tc.marker+"\x03"), 0)
		var alarm *syringe.AlarmError
		if !errors.As(err, &alarm) {
			t.Fatalf("%s: err = %v, want alarm", tc.marker, err)
		}
		if alarm.Code != tc.code {
			t.Fatalf("%s: code %v, want %v", tc.marker, alarm.Code, tc.code)
		}
	}
}

func TestDecodeErrorCodes(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"?OOR", syringe.ErrValueOutOfRange},
		{"?NA", syringe.ErrInvalidCommand},
		{"?COM", syringe.ErrUnforeseen},
		{"?IGN", syringe.ErrUnforeseen},
		{"?", syringe.ErrUnknownCommand},
	}
	for _, tc := range cases {
		_, err := decode([]byte("\x0200S"+tc.msg+"\x03"), 0)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.msg, err, tc.want)
		}
	}
}

func TestAddressPrefix(t *testing.T) {
	p, tr := newPump(t, 7, []wiretest.Step{
		{Expect: "07\r", Reply: "\x0207S\x03"},
	})
	running, err := p.IsRunning()
	if err != nil {
		t.Fatal(err)
	}
	if running {
		t.Fatal("stopped frame reported running")
	}
	if !tr.Exhausted() {
		t.Fatal("script not consumed")
	}
}

func TestNewRejectsBadAddress(t *testing.T) {
	if _, err := New(&wiretest.Replay{}, 100, nil); !errors.Is(err, syringe.ErrValueOutOfRange) {
		t.Fatalf("err = %v, want value out of range", err)
	}
}

func TestStartStop(t *testing.T) {
	p, _ := newPump(t, 0, []wiretest.Step{
		{Expect: "00RUN1\r", Reply: "\x0200I\x03"},
		{Expect: "00STP\r", Reply: "\x0200P\x03"},
	})
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestStartVerifiesRunning(t *testing.T) {
	p, _ := newPump(t, 0, []wiretest.Step{
		{Expect: "00RUN1\r", Reply: "\x0200S\x03"},
	})
	if err := p.Start(); !errors.Is(err, syringe.ErrPumpNotRunning) {
		t.Fatalf("err = %v, want pump not running", err)
	}
}

func TestRateRoundTrip(t *testing.T) {
	p, _ := newPump(t, 0, []wiretest.Step{
		{Expect: "00RAT2.500UM\r", Reply: "\x0200S\x03"},
		{Expect: "00RAT\r", Reply: "\x0200S2.500UM\x03"},
	})
	if err := p.SetRate(2.5, syringe.MicroliterPerMinute); err != nil {
		t.Fatal(err)
	}
	value, unit, err := p.Rate()
	if err != nil {
		t.Fatal(err)
	}
	if value != 2.5 || unit != syringe.MicroliterPerMinute {
		t.Fatalf("got %v %s", value, unit)
	}
}

// Below the diameter threshold volumes cross the wire in microliters.
func TestTargetVolumeNarrowSyringe(t *testing.T) {
	p, _ := newPump(t, 0, []wiretest.Step{
		{Expect: "00DIA\r", Reply: "\x0200S10.0\x03"},
		{Expect: "00VOL500.0\r", Reply: "\x0200S\x03"},
		{Expect: "00VOL\r", Reply: "\x0200S500.0UL\x03"},
	})
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

// Above the threshold the same request goes out in milliliters, and the
// readback converts from the reported unit.
func TestTargetVolumeWideSyringe(t *testing.T) {
	p, _ := newPump(t, 0, []wiretest.Step{
		{Expect: "00DIA\r", Reply: "\x0200S20.0\x03"},
		{Expect: "00VOL5.000\r", Reply: "\x0200S\x03"},
		{Expect: "00VOL\r", Reply: "\x0200S5.000ML\x03"},
	})
	if err := p.SetTargetVolume(5000); err != nil {
		t.Fatal(err)
	}
	uL, err := p.TargetVolume()
	if err != nil {
		t.Fatal(err)
	}
	if uL != 5000 {
		t.Fatalf("target %v uL, want 5000", uL)
	}
}

func TestDispensedVolumes(t *testing.T) {
	p, _ := newPump(t, 0, []wiretest.Step{
		{Expect: "00DIS\r", Reply: "\x0200SI1.250W0.500UL\x03"},
		{Expect: "00DIS\r", Reply: "\x0200SI1.250W0.500UL\x03"},
	})
	inf, err := p.Volume()
	if err != nil {
		t.Fatal(err)
	}
	if inf != 1.25 {
		t.Fatalf("infused %v uL, want 1.25", inf)
	}
	wdr, err := p.WithdrawnVolume()
	if err != nil {
		t.Fatal(err)
	}
	if wdr != 0.5 {
		t.Fatalf("withdrawn %v uL, want 0.5", wdr)
	}
}

func TestDirection(t *testing.T) {
	p, _ := newPump(t, 0, []wiretest.Step{
		{Expect: "00\r", Reply: "\x0200W\x03"},
		{Expect: "00DIR\r", Reply: "\x0200WWDR\x03"},
	})
	dir, err := p.Direction()
	if err != nil {
		t.Fatal(err)
	}
	if dir != syringe.Withdrawing {
		t.Fatalf("direction %s, want WITHDRAWING", dir)
	}
}

func TestVersion(t *testing.T) {
	p, _ := newPump(t, 0, []wiretest.Step{
		{Expect: "00VER\r", Reply: "\x0200SNE1000V3.928\x03"},
	})
	v, err := p.Version()
	if err != nil {
		t.Fatal(err)
	}
	if v != "Model #1000, firmware v3.928" {
		t.Fatalf("version %q", v)
	}
}

func TestBeep(t *testing.T) {
	p, tr := newPump(t, 0, []wiretest.Step{
		{Expect: "00BUZ12\r", Reply: "\x0200S\x03"},
	})
	if err := p.Beep(2); err != nil {
		t.Fatal(err)
	}
	if !tr.Exhausted() {
		t.Fatal("script not consumed")
	}
}
