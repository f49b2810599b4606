package wire

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds one exchange when the caller does not say
// otherwise.
const DefaultTimeout = 1 * time.Second

// Dispatcher drives one command/response exchange at a time over a
// Transport: flush, write, accumulate until a frame delimiter or the
// deadline. The mutex guarantees at most one outstanding command per
// transport; a second call blocks until the first has returned.
type Dispatcher struct {
	mu      sync.Mutex
	t       Transport
	timeout time.Duration
	logger  *zap.Logger
}

func NewDispatcher(t Transport, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if t == nil {
		panic("wire: NewDispatcher called with nil transport")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{t: t, timeout: timeout, logger: logger}
}

// Exchange sends cmd and reads the reply up to one of delims. Whatever
// was read is returned even on error so codecs can inspect partial
// frames.
func (d *Dispatcher) Exchange(cmd []byte, delims []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.t.Flush(); err != nil {
		return nil, err
	}
	d.logger.Debug("sending command", zap.String("cmd", strconv.Quote(string(cmd))))
	if _, err := d.t.Write(cmd); err != nil {
		return nil, err
	}
	ans, err := d.t.ReadUntil(delims, d.timeout)
	d.logger.Debug("received answer",
		zap.String("ans", strconv.Quote(string(ans))),
		zap.Int("bytes", len(ans)),
		zap.Error(err),
	)
	return ans, err
}
