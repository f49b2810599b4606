// Package wire drives single request/response exchanges against a pump's
// byte-stream transport. It knows nothing about any vendor's grammar
// beyond the delimiter bytes that end a frame.
package wire

import "time"

// Transport is a duplex byte stream bound to one physical line. Pure
// byte I/O: no retries, no interpretation of content. A Transport is
// owned exclusively by one pump for that pump's whole lifetime.
type Transport interface {
	Write(p []byte) (n int, err error)
	// ReadUntil accumulates bytes until one of delims is seen or the
	// deadline elapses. On timeout it returns whatever was read together
	// with syringe.ErrReadTimeout, so callers can still classify partial
	// answers from devices that terminate some replies irregularly.
	ReadUntil(delims []byte, timeout time.Duration) ([]byte, error)
	// Flush discards anything pending in the line buffers.
	Flush() error
}
