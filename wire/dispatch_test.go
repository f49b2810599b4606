package wire_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jt05610/syringe"
	"github.com/jt05610/syringe/wire"
	"github.com/jt05610/syringe/wire/wiretest"
)

func TestExchange(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "VER\r", Reply: "\r\n11 PLUS V1.0\r\n:"},
	}}
	d := wire.NewDispatcher(tr, time.Second, nil)
	ans, err := d.Exchange([]byte("VER\r"), []byte{':'})
	if err != nil {
		t.Fatal(err)
	}
	if string(ans) != "\r\n11 PLUS V1.0\r\n:" {
		t.Fatalf("got %q", ans)
	}
	if tr.Flushes != 1 {
		t.Fatalf("flushed %d times, want 1", tr.Flushes)
	}
	if len(tr.Writes) != 1 || tr.Writes[0] != "VER\r" {
		t.Fatalf("writes %q", tr.Writes)
	}
}

// A timed-out exchange still hands back whatever arrived, so codecs can
// classify promptless error answers.
func TestExchangeTimeoutKeepsPartial(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "RUN\r", Reply: "\r\nOOR", Err: syringe.ErrReadTimeout},
	}}
	d := wire.NewDispatcher(tr, time.Second, nil)
	ans, err := d.Exchange([]byte("RUN\r"), []byte{':'})
	if !errors.Is(err, syringe.ErrReadTimeout) {
		t.Fatalf("err = %v, want read timeout", err)
	}
	if string(ans) != "\r\nOOR" {
		t.Fatalf("partial answer %q", ans)
	}
}

func TestExchangeFlushesBeforeWriting(t *testing.T) {
	tr := &wiretest.Replay{Script: []wiretest.Step{
		{Expect: "A\r", Reply: "\r\n:"},
		{Expect: "B\r", Reply: "\r\n:"},
	}}
	d := wire.NewDispatcher(tr, 0, nil)
	for _, cmd := range []string{"A\r", "B\r"} {
		if _, err := d.Exchange([]byte(cmd), []byte{':'}); err != nil {
			t.Fatal(err)
		}
	}
	if tr.Flushes != 2 {
		t.Fatalf("flushed %d times, want one per exchange", tr.Flushes)
	}
	if !tr.Exhausted() {
		t.Fatal("script not consumed")
	}
}
