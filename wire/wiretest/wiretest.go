// Package wiretest provides an in-memory Transport that plays the
// device side of scripted exchanges, so codecs and adapters can be
// tested without a serial line.
package wiretest

import (
	"fmt"
	"time"
)

// Step is one scripted exchange: the bytes the device expects to
// receive and the bytes (and error) it answers with.
type Step struct {
	Expect string
	Reply  string
	Err    error
}

// Replay is a Transport fed from a script. Each Write is matched against
// the next step's Expect; the following ReadUntil returns that step's
// Reply and Err regardless of delimiters, the way a real device answers
// whatever it pleases.
type Replay struct {
	Script  []Step
	Writes  []string
	Flushes int
	step    int
}

func (r *Replay) Write(p []byte) (int, error) {
	r.Writes = append(r.Writes, string(p))
	if r.step >= len(r.Script) {
		return 0, fmt.Errorf("wiretest: unexpected write %q after script end", p)
	}
	if want := r.Script[r.step].Expect; want != "" && want != string(p) {
		return 0, fmt.Errorf("wiretest: step %d wrote %q, want %q", r.step, p, want)
	}
	return len(p), nil
}

func (r *Replay) ReadUntil(delims []byte, timeout time.Duration) ([]byte, error) {
	if r.step >= len(r.Script) {
		return nil, fmt.Errorf("wiretest: read past script end")
	}
	s := r.Script[r.step]
	r.step++
	return []byte(s.Reply), s.Err
}

func (r *Replay) Flush() error {
	r.Flushes++
	return nil
}

// Exhausted reports whether the whole script was consumed.
func (r *Replay) Exhausted() bool {
	return r.step == len(r.Script)
}
