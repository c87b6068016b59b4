// Package panelsim emulates the controller end of an ST7789 SPI link.
//
// A Panel decodes the command/data stream the way the chip does: it tracks
// the DC and RST lines, applies CASET/RASET windows and writes RAMWR pixel
// data into a 240×320 RAM. It stands in for hardware in tests and in the
// desktop simulator.
package panelsim

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/st7789/rgb565"
)

// Controller RAM size.
const (
	RAMWidth  = 240
	RAMHeight = 320
)

// Commands understood by the emulator.
const (
	cmdSWRESET = 0x01
	cmdSLPIN   = 0x10
	cmdSLPOUT  = 0x11
	cmdNORON   = 0x13
	cmdINVOFF  = 0x20
	cmdINVON   = 0x21
	cmdDISPOFF = 0x28
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A
	cmdRASET   = 0x2B
	cmdRAMWR   = 0x2C
	cmdMADCTL  = 0x36
	cmdCOLMOD  = 0x3A
)

const maxCommandLog = 4096

// Transfer is one recorded Tx call.
type Transfer struct {
	DC gpio.Level // Low for commands, High for data
	W  []byte
}

// State is the controller state visible to tests.
type State struct {
	Sleeping  bool
	DisplayOn bool
	Inverted  bool
	Normal    bool
	ColorMode byte
	MADCTL    byte
	Window    image.Rectangle // Current RAM window, in RAM coordinates
}

// Panel is an emulated controller. The zero value is not usable, use New.
type Panel struct {
	dc  *Line
	rst *Line

	mu       sync.Mutex
	ram      []uint16
	st       State
	inReset  bool
	resets   int
	cmd      byte
	params   []byte
	writing  bool
	x, y     int
	half     int // first byte of a pixel split across transfers, or -1
	frames   int
	pixels   int
	commands []byte
	txCount  int
	maxTx    int
	record   bool
	ops      []Transfer
	hook     func(n int, w []byte) error

	freq    physic.Frequency
	mode    spi.Mode
	bits    int
	connErr error
	closed  bool
}

// New returns a powered panel with RAM cleared, waiting for a reset.
func New() *Panel {
	p := &Panel{
		ram:  make([]uint16, RAMWidth*RAMHeight),
		half: -1,
	}
	p.dc = &Line{Pin: gpiotest.Pin{N: "DC", Num: 25}}
	p.rst = &Line{Pin: gpiotest.Pin{N: "RST", Num: 27}, onOut: p.resetLine}
	p.powerOn()
	return p
}

func (p *Panel) powerOn() {
	p.st = State{
		Sleeping: true,
		Normal:   true,
		Window:   image.Rect(0, 0, RAMWidth, RAMHeight),
	}
	p.cmd = 0
	p.params = nil
	p.writing = false
	p.half = -1
}

// DC returns the Data/Command line.
func (p *Panel) DC() *Line { return p.dc }

// RST returns the reset line.
func (p *Panel) RST() *Line { return p.rst }

// Port returns an SPI port connected to the panel.
func (p *Panel) Port() spi.PortCloser { return &port{p: p} }

// SetMaxTxSize limits the size of a single transfer, as spidev does.
func (p *Panel) SetMaxTxSize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxTx = n
}

// FailConnect makes the next Connect calls fail with err.
func (p *Panel) FailConnect(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connErr = err
}

// Hook installs fn, called before each transfer with its 1-based index. A
// non-nil error fails the transfer without the panel seeing it. fn runs
// without the panel lock held and may block.
func (p *Panel) Hook(fn func(n int, w []byte) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hook = fn
}

// Record turns the transfer transcript on or off. Turning it on clears it.
func (p *Panel) Record(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record = on
	p.ops = nil
}

// Transcript returns the transfers recorded since Record(true).
func (p *Panel) Transcript() []Transfer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Transfer(nil), p.ops...)
}

// String implements conn.Conn.
func (p *Panel) String() string { return "panelsim" }

// Duplex implements conn.Conn.
func (p *Panel) Duplex() conn.Duplex { return conn.Half }

// MaxTxSize implements conn.Limits.
func (p *Panel) MaxTxSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxTx
}

// TxPackets implements spi.Conn.
func (p *Panel) TxPackets(pkts []spi.Packet) error {
	for _, pkt := range pkts {
		if err := p.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

// Tx implements conn.Conn. The link is write only; r must be empty.
func (p *Panel) Tx(w, r []byte) error {
	if len(r) != 0 {
		return errors.New("panelsim: reads are not supported")
	}
	p.mu.Lock()
	p.txCount++
	n := p.txCount
	hook := p.hook
	maxTx := p.maxTx
	p.mu.Unlock()

	if maxTx > 0 && len(w) > maxTx {
		return fmt.Errorf("panelsim: %d byte transfer exceeds limit of %d", len(w), maxTx)
	}
	if hook != nil {
		if err := hook(n, w); err != nil {
			return err
		}
	}

	dc := p.dc.Read()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.record {
		p.ops = append(p.ops, Transfer{DC: dc, W: append([]byte(nil), w...)})
	}
	if p.inReset {
		return nil
	}
	if dc == gpio.Low {
		for _, b := range w {
			p.command(b)
		}
		return nil
	}
	p.data(w)
	return nil
}

func (p *Panel) resetLine(l gpio.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l == gpio.Low {
		p.inReset = true
		return
	}
	if p.inReset {
		p.inReset = false
		p.resets++
		p.powerOn()
	}
}

func (p *Panel) command(b byte) {
	p.cmd = b
	p.params = p.params[:0]
	p.writing = false
	p.half = -1
	if len(p.commands) < maxCommandLog {
		p.commands = append(p.commands, b)
	}

	switch b {
	case cmdSWRESET:
		p.powerOn()
	case cmdSLPIN:
		p.st.Sleeping = true
	case cmdSLPOUT:
		p.st.Sleeping = false
	case cmdNORON:
		p.st.Normal = true
	case cmdINVOFF:
		p.st.Inverted = false
	case cmdINVON:
		p.st.Inverted = true
	case cmdDISPOFF:
		p.st.DisplayOn = false
	case cmdDISPON:
		p.st.DisplayOn = true
	case cmdRAMWR:
		p.writing = true
		p.x, p.y = p.st.Window.Min.X, p.st.Window.Min.Y
	}
}

func (p *Panel) data(w []byte) {
	if p.writing {
		p.pixelData(w)
		return
	}
	p.params = append(p.params, w...)
	switch p.cmd {
	case cmdCASET:
		if len(p.params) >= 4 {
			s, e := be16(p.params[0:]), be16(p.params[2:])
			p.st.Window.Min.X, p.st.Window.Max.X = clampRange(s, e, RAMWidth)
		}
	case cmdRASET:
		if len(p.params) >= 4 {
			s, e := be16(p.params[0:]), be16(p.params[2:])
			p.st.Window.Min.Y, p.st.Window.Max.Y = clampRange(s, e, RAMHeight)
		}
	case cmdCOLMOD:
		p.st.ColorMode = p.params[0]
	case cmdMADCTL:
		p.st.MADCTL = p.params[0]
	}
}

func (p *Panel) pixelData(w []byte) {
	win := p.st.Window
	if win.Empty() {
		return
	}
	for _, b := range w {
		if p.half < 0 {
			p.half = int(b)
			continue
		}
		v := uint16(p.half)<<8 | uint16(b)
		p.half = -1
		p.ram[p.y*RAMWidth+p.x] = v
		p.pixels++
		p.x++
		if p.x >= win.Max.X {
			p.x = win.Min.X
			p.y++
			if p.y >= win.Max.Y {
				p.y = win.Min.Y
				p.frames++
			}
		}
	}
}

func be16(b []byte) int {
	return int(b[0])<<8 | int(b[1])
}

// clampRange turns an inclusive address range into a half open one inside
// [0, limit).
func clampRange(start, end, limit int) (int, int) {
	if end >= limit {
		end = limit - 1
	}
	if start > end {
		return start, start
	}
	return start, end + 1
}

// State returns the controller state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st
}

// Resets returns how many hardware resets the panel went through.
func (p *Panel) Resets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets
}

// Commands returns the command bytes received so far, oldest first.
func (p *Panel) Commands() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.commands...)
}

// Frames returns how many times a RAMWR stream filled its whole window.
func (p *Panel) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Pixels returns the number of pixels written to RAM.
func (p *Panel) Pixels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pixels
}

// At returns the RAM word at column x, row y.
func (p *Panel) At(x, y int) rgb565.RGB565 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if x < 0 || x >= RAMWidth || y < 0 || y >= RAMHeight {
		return 0
	}
	return rgb565.RGB565(p.ram[y*RAMWidth+x])
}

// RAM copies the RAM region r into an image whose bounds start at (0, 0).
func (p *Panel) RAM(r image.Rectangle) *rgb565.Image {
	r = r.Intersect(image.Rect(0, 0, RAMWidth, RAMHeight))
	img := rgb565.NewImage(image.Rect(0, 0, r.Dx(), r.Dy()))
	p.mu.Lock()
	defer p.mu.Unlock()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGB565(x-r.Min.X, y-r.Min.Y, rgb565.RGB565(p.ram[y*RAMWidth+x]))
		}
	}
	return img
}

// Render draws what a viewer would see of the RAM region r into dst, which
// must be at least r.Dx()×r.Dy(). A panel that is off or asleep shows black.
// These panels invert colors unless INVON is set.
func (p *Panel) Render(dst *image.RGBA, r image.Rectangle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lit := p.st.DisplayOn && !p.st.Sleeping && !p.inReset
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := dst.PixOffset(x-r.Min.X, y-r.Min.Y)
			if !lit || x < 0 || x >= RAMWidth || y < 0 || y >= RAMHeight {
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = 0, 0, 0, 0xFF
				continue
			}
			v := rgb565.RGB565(p.ram[y*RAMWidth+x])
			if !p.st.Inverted {
				v = ^v
			}
			cr, cg, cb := v.Components()
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = cr, cg, cb, 0xFF
		}
	}
}

// Line is an emulated GPIO output wired to the panel.
type Line struct {
	gpiotest.Pin
	onOut func(gpio.Level)

	mu     sync.Mutex
	err    error
	halted bool
}

// Fail makes subsequent Out calls return err. A nil err clears the failure.
func (l *Line) Fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// Out implements gpio.PinOut.
func (l *Line) Out(v gpio.Level) error {
	l.mu.Lock()
	err := l.err
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if err := l.Pin.Out(v); err != nil {
		return err
	}
	if l.onOut != nil {
		l.onOut(v)
	}
	return nil
}

// Halt implements conn.Resource and records the call.
func (l *Line) Halt() error {
	l.mu.Lock()
	l.halted = true
	l.mu.Unlock()
	return l.Pin.Halt()
}

// Halted reports whether Halt was called.
func (l *Line) Halted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted
}

// port is the SPI port side of the panel.
type port struct {
	p *Panel
}

func (s *port) String() string { return "panelsim-spi" }

func (s *port) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connErr != nil {
		return nil, p.connErr
	}
	if p.closed {
		return nil, errors.New("panelsim: port closed")
	}
	p.freq, p.mode, p.bits = f, mode, bits
	return p, nil
}

func (s *port) LimitSpeed(f physic.Frequency) error { return nil }

func (s *port) Close() error {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Bus returns the parameters of the last successful Connect.
func (p *Panel) Bus() (f physic.Frequency, mode spi.Mode, bits int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freq, p.mode, p.bits
}

// Closed reports whether the port was closed.
func (p *Panel) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
