package st7789

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// channel speaks the command/data protocol: the DC line selects whether the
// bytes that follow are a command (low) or parameters/pixels (high).
//
// A channel is used by one goroutine at a time; Dev hands it to the flush
// goroutine once initialization is done.
type channel struct {
	c       conn.Conn
	dc      gpio.PinOut
	timeout time.Duration
	maxTx   int // 0 means no limit

	// With a timeout, transfers run on one long-lived goroutine: tx hands
	// it a run on work and waits on result, bounded by timer.
	work   chan []byte
	result chan error
	timer  *time.Timer
	// busy is set when a transfer timed out and its Tx call has not
	// returned yet. No new transfer starts until it does.
	busy bool
}

func newChannel(c conn.Conn, dc gpio.PinOut, timeout time.Duration) *channel {
	ch := &channel{c: c, dc: dc, timeout: timeout}
	if l, ok := c.(conn.Limits); ok {
		ch.maxTx = l.MaxTxSize()
	}
	if timeout > 0 {
		ch.work = make(chan []byte)
		ch.result = make(chan error, 1)
		ch.timer = time.NewTimer(timeout)
		ch.timer.Stop()
		go ch.transfer()
	}
	return ch
}

// transfer runs every Tx while a timeout is configured.
func (ch *channel) transfer() {
	for p := range ch.work {
		ch.result <- ch.c.Tx(p, nil)
	}
}

// writeCommand sends a single command byte.
func (ch *channel) writeCommand(cmd byte) error {
	if err := ch.setLine(gpio.Low); err != nil {
		return err
	}
	return ch.tx([]byte{cmd})
}

// writeData sends parameter bytes as one run.
func (ch *channel) writeData(data ...byte) error {
	if err := ch.dataMode(); err != nil {
		return err
	}
	return ch.stream(data)
}

// dataMode drives DC high. Runs sent with stream afterwards are data until
// the next command.
func (ch *channel) dataMode() error {
	return ch.setLine(gpio.High)
}

// stream transmits p without touching DC, split to the connection's
// maximum transfer size.
func (ch *channel) stream(p []byte) error {
	for len(p) != 0 {
		chunk := p
		if ch.maxTx > 0 && len(chunk) > ch.maxTx {
			chunk = p[:ch.maxTx]
		}
		if err := ch.tx(chunk); err != nil {
			return err
		}
		p = p[len(chunk):]
	}
	return nil
}

func (ch *channel) setLine(l gpio.Level) error {
	if err := ch.ready(); err != nil {
		return err
	}
	if err := ch.dc.Out(l); err != nil {
		return fmt.Errorf("%w: dc %s: %w", ErrTransport, l, err)
	}
	return nil
}

// ready fails while a timed out transfer is still running.
func (ch *channel) ready() error {
	if !ch.busy {
		return nil
	}
	select {
	case <-ch.result:
		ch.busy = false
		return nil
	default:
		return fmt.Errorf("%w: previous transfer still in progress", ErrTransport)
	}
}

func (ch *channel) tx(p []byte) error {
	if err := ch.ready(); err != nil {
		return err
	}
	if ch.work == nil {
		if err := ch.c.Tx(p, nil); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return nil
	}

	ch.work <- p
	ch.timer.Reset(ch.timeout)
	select {
	case err := <-ch.result:
		ch.timer.Stop()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return nil
	case <-ch.timer.C:
		ch.busy = true
		return fmt.Errorf("%w: %d byte transfer timed out after %s", ErrTransport, len(p), ch.timeout)
	}
}

// drain blocks until a timed out transfer has returned, so the link can be
// released safely.
func (ch *channel) drain() {
	if ch.busy {
		<-ch.result
		ch.busy = false
	}
}

// close drains the link and stops the transfer goroutine. The channel is
// unusable afterwards.
func (ch *channel) close() {
	ch.drain()
	if ch.work != nil {
		close(ch.work)
		ch.work = nil
	}
}
