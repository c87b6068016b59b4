package st7789

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/st7789/rgb565"
)

// Compatible is the device tree compatible string of the panel.
const Compatible = "my,st7789v2"

// Opts is the configuration for the ST7789 display.
type Opts struct {
	// SPI bus settings
	Frequency physic.Frequency // Clock (default: 40MHz)
	Mode      spi.Mode         // Bus mode (default: Mode0)

	// Orientation is the MADCTL byte (default: 0x00)
	Orientation byte

	// Flush engine
	FlushPeriod time.Duration // Time between frame pushes (default: 50ms)
	TxTimeout   time.Duration // Per-transfer timeout (default: 1s, negative disables)
	MaxFailures int           // Consecutive failed flushes before giving up (default: 10, negative never)

	// Buffer optionally supplies the frame memory, Width*Height*2 bytes of
	// RGB565 in host byte order. When nil the driver allocates it.
	Buffer []byte

	// Registrar, if set, publishes the raster surface during attach.
	Registrar Registrar

	// Logger receives driver diagnostics (default: slog.Default())
	Logger *slog.Logger
}

func (o *Opts) withDefaults() Opts {
	var out Opts
	if o != nil {
		out = *o
	}
	if out.Frequency == 0 {
		out.Frequency = 40 * physic.MegaHertz
	}
	if out.FlushPeriod <= 0 {
		out.FlushPeriod = 50 * time.Millisecond
	}
	if out.TxTimeout == 0 {
		out.TxTimeout = time.Second
	}
	if out.MaxFailures == 0 {
		out.MaxFailures = 10
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// sleep is replaced in tests.
var sleep = time.Sleep

// Dev is the device handle for the ST7789 display.
//
// It owns the SPI connection and both control lines from attach until Close.
// Drawing only updates the in-memory frame; a background goroutine pushes the
// whole frame to the panel every FlushPeriod.
type Dev struct {
	// Communication
	ch   *channel
	rst  gpio.PinOut
	port io.Closer // Closed on Close when the device opened the connection

	// Frame
	fs      *frameStore
	staging []byte        // Wire order copy of the frame, used by the flush goroutine
	shown   atomic.Uint64 // Frame generation of the last complete flush

	fl  *flusher
	reg Registrar
	log *slog.Logger

	sleep func(time.Duration)

	// State
	halted   atomic.Bool
	haltOnce sync.Once
	haltErr  error
	closed   sync.Once
}

// NewSPI attaches to an ST7789 connected via SPI.
//
// The port is configured for 8-bit transfers at opts.Frequency. dc is the
// Data/Command line and rst the reset line; both are required. The device
// takes ownership of all three: Close releases them, and so does a failed
// attach.
//
// opts can be nil to use defaults.
func NewSPI(p spi.Port, dc, rst gpio.PinOut, opts *Opts) (*Dev, error) {
	if p == nil {
		releaseLines(dc, rst)
		return nil, fmt.Errorf("%w: no SPI port", ErrHandleAcquisition)
	}
	if err := checkLines(dc, rst); err != nil {
		releaseLines(dc, rst)
		closePort(p)
		return nil, err
	}
	o := opts.withDefaults()

	c, err := p.Connect(o.Frequency, o.Mode, 8)
	if err != nil {
		releaseLines(dc, rst)
		closePort(p)
		return nil, fmt.Errorf("%w: spi connect: %w", ErrHandleAcquisition, err)
	}
	d, err := newDev(c, dc, rst, o)
	if err != nil {
		closePort(p)
		return nil, err
	}
	if cl, ok := p.(io.Closer); ok {
		d.port = cl
	}
	return d, nil
}

// New attaches to an ST7789 over an already configured connection. It needs
// only the three handles. The caller keeps ownership of c; the device owns
// dc and rst as with NewSPI.
func New(c conn.Conn, dc, rst gpio.PinOut, opts *Opts) (*Dev, error) {
	if c == nil {
		releaseLines(dc, rst)
		return nil, fmt.Errorf("%w: no connection", ErrHandleAcquisition)
	}
	if err := checkLines(dc, rst); err != nil {
		releaseLines(dc, rst)
		return nil, err
	}
	return newDev(c, dc, rst, opts.withDefaults())
}

func checkLines(dc, rst gpio.PinOut) error {
	if dc == nil {
		return fmt.Errorf("%w: command/data line unavailable", ErrHandleAcquisition)
	}
	if rst == nil {
		return fmt.Errorf("%w: reset line unavailable", ErrHandleAcquisition)
	}
	return nil
}

func closePort(p spi.Port) {
	if cl, ok := p.(io.Closer); ok {
		_ = cl.Close()
	}
}

func newDev(c conn.Conn, dc, rst gpio.PinOut, o Opts) (*Dev, error) {
	fs, err := newFrameStore(o.Buffer)
	if err != nil {
		releaseLines(dc, rst)
		return nil, err
	}

	d := &Dev{
		ch:      newChannel(c, dc, o.TxTimeout),
		rst:     rst,
		fs:      fs,
		staging: make([]byte, frameSize),
		log:     o.Logger,
		sleep:   sleep,
	}

	// Initialize the display
	if err := d.runScript(InitScript(o.Orientation)); err != nil {
		d.ch.close()
		releaseLines(dc, rst)
		return nil, err
	}

	// The flush engine runs before registration so a registrar may already
	// draw and flush.
	d.fl = newFlusher(d.flush, o.FlushPeriod, o.MaxFailures, d.log)
	d.fl.start()

	if o.Registrar != nil {
		if err := o.Registrar.Register(d); err != nil {
			d.halted.Store(true)
			d.fl.stop()
			d.ch.close()
			releaseLines(dc, rst)
			return nil, fmt.Errorf("%w: %w", ErrSurfaceRegistration, err)
		}
		d.reg = o.Registrar
	}
	d.log.Info("st7789: attached", "dev", d.String(), "period", o.FlushPeriod)
	return d, nil
}

func releaseLines(lines ...gpio.PinOut) {
	for _, l := range lines {
		if l != nil {
			_ = l.Halt()
		}
	}
}

// flush pushes the whole frame to the panel. It runs on the flush goroutine.
func (d *Dev) flush() error {
	// A timed out transfer may still be reading staging.
	if err := d.ch.ready(); err != nil {
		return err
	}
	gen := d.fs.snapshot(d.staging)

	if err := d.ch.setWindow(0, 0, Width, Height); err != nil {
		return err
	}
	// DC stays high for the whole frame.
	if err := d.ch.dataMode(); err != nil {
		return err
	}
	const stride = Width * 2
	for y := 0; y < Height; y++ {
		if err := d.ch.stream(d.staging[y*stride : (y+1)*stride]); err != nil {
			return fmt.Errorf("row %d: %w", y, err)
		}
	}
	d.shown.Store(gen)
	return nil
}

// FlushNow pushes the frame immediately, in step with the periodic schedule,
// and returns the result of that flush.
func (d *Dev) FlushNow(ctx context.Context) error {
	if d.halted.Load() {
		return ErrHalted
	}
	return d.fl.do(ctx, nil)
}

// Fill sets every pixel to c and flushes right away.
func (d *Dev) Fill(c rgb565.RGB565) error {
	if d.halted.Load() {
		return ErrHalted
	}
	d.fs.update(func(img *rgb565.Image) {
		img.Fill(c)
	})
	return d.FlushNow(context.Background())
}

// Stats returns counters of the flush engine.
func (d *Dev) Stats() FlushStats {
	s := d.fl.stats()
	s.Generation = d.shown.Load()
	return s
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return rgb565.Model
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, Width, Height)
}

// Draw draws src into the frame. The panel shows it on the next flush.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted.Load() {
		return ErrHalted
	}
	dst = dst.Intersect(d.Bounds())
	if dst.Empty() {
		return nil
	}
	d.fs.update(func(img *rgb565.Image) {
		draw.Draw(img, dst, src, sp, draw.Src)
	})
	return nil
}

// Write replaces the frame with raw RGB565 pixels in host byte order.
// The data must be exactly Width * Height * 2 bytes.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted.Load() {
		return 0, ErrHalted
	}
	if len(pixels) != frameSize {
		return 0, errors.New("st7789: invalid buffer size")
	}
	d.fs.update(func(img *rgb565.Image) {
		copy(img.Pix, pixels)
	})
	return len(pixels), nil
}

// Invert turns display inversion on or off. The panel needs inversion on to
// show true colors, which is what the init sequence selects.
func (d *Dev) Invert(invert bool) error {
	if d.halted.Load() {
		return ErrHalted
	}
	cmd := byte(invertOff)
	if invert {
		cmd = invertOn
	}
	return d.fl.do(context.Background(), func() error {
		return d.ch.writeCommand(cmd)
	})
}

// Halt stops the flush engine, waits for the last flush to finish and puts
// the panel to sleep. Later drawing calls fail with ErrHalted.
func (d *Dev) Halt() error {
	d.haltOnce.Do(func() {
		d.halted.Store(true)
		d.fl.stop()
		d.ch.drain()
		var errs []error
		if err := d.ch.writeCommand(displayOff); err != nil {
			errs = append(errs, err)
		} else if err := d.ch.writeCommand(sleepIn); err != nil {
			errs = append(errs, err)
		}
		if d.reg != nil {
			d.reg.Unregister(d)
		}
		d.haltErr = errors.Join(errs...)
		d.log.Info("st7789: halted", "dev", d.String())
	})
	return d.haltErr
}

// Close halts the device and releases the control lines and, when NewSPI
// opened it, the SPI port.
func (d *Dev) Close() error {
	err := d.Halt()
	d.closed.Do(func() {
		d.ch.close()
		releaseLines(d.ch.dc, d.rst)
		if d.port != nil {
			if cerr := d.port.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
	})
	return err
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("st7789.Dev{%dx%d}", Width, Height)
}
