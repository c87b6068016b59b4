package st7789

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/devices/v3/st7789/panelsim"
)

// recordPauses replaces sleep for the duration of the test and returns the
// pauses requested so far.
func recordPauses(t *testing.T) func() []time.Duration {
	t.Helper()
	var mu sync.Mutex
	var pauses []time.Duration
	old := sleep
	sleep = func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		pauses = append(pauses, d)
	}
	t.Cleanup(func() { sleep = old })
	return func() []time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return append([]time.Duration(nil), pauses...)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testOpts returns options with a schedule slow enough that only explicit
// flushes happen during a test.
func testOpts() *Opts {
	return &Opts{
		FlushPeriod: time.Hour,
		Logger:      quietLogger(),
	}
}

func attach(t *testing.T, p *panelsim.Panel, opts *Opts) *Dev {
	t.Helper()
	recordPauses(t)
	d, err := NewSPI(p.Port(), p.DC(), p.RST(), opts)
	if err != nil {
		t.Fatalf("NewSPI() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// commandBytes returns the bytes sent with DC low.
func commandBytes(ops []panelsim.Transfer) []byte {
	var out []byte
	for _, op := range ops {
		if op.DC == gpio.Low {
			out = append(out, op.W...)
		}
	}
	return out
}

// pixelStreams returns the data sent after each RAMWR, one slice per RAMWR.
func pixelStreams(ops []panelsim.Transfer) [][]byte {
	var out [][]byte
	var cur []byte
	in := false
	for _, op := range ops {
		if op.DC == gpio.Low {
			if in {
				out = append(out, cur)
			}
			in = len(op.W) > 0 && op.W[len(op.W)-1] == memWrite
			cur = nil
			continue
		}
		if in {
			cur = append(cur, op.W...)
		}
	}
	if in {
		out = append(out, cur)
	}
	return out
}

// uniform reports whether stream holds only the big-endian pixel c.
func uniform(stream []byte, c uint16) bool {
	for i := 0; i+1 < len(stream); i += 2 {
		if stream[i] != byte(c>>8) || stream[i+1] != byte(c) {
			return false
		}
	}
	return true
}
