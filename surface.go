package st7789

import (
	"context"
	"image/color"
	"io"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/st7789/rgb565"
	"tinygo.org/x/drivers"
)

// Bitfield locates one color channel inside a pixel.
type Bitfield struct {
	Offset uint32
	Length uint32
}

// SurfaceInfo describes the fixed raster mode the device exposes.
type SurfaceInfo struct {
	ID           string
	Width        int
	Height       int
	BitsPerPixel int
	LineLength   int // Bytes per row
	Red          Bitfield
	Green        Bitfield
	Blue         Bitfield
}

// Registrar publishes the raster surface to a host display subsystem.
//
// Register is called once during attach, after the panel is initialized and
// the flush engine is running, so it may use every Dev method (Draw, Write,
// Fill, FlushNow, Display, Invert, Stats). It must not call Halt or Close.
// An error aborts the attach. Unregister is called from Halt.
type Registrar interface {
	Register(d *Dev) error
	Unregister(d *Dev)
}

// Info returns the raster mode: 240x280, 16 bpp RGB565.
func (d *Dev) Info() SurfaceInfo {
	return SurfaceInfo{
		ID:           "st7789",
		Width:        Width,
		Height:       Height,
		BitsPerPixel: 16,
		LineLength:   Width * 2,
		Red:          Bitfield{Offset: 11, Length: 5},
		Green:        Bitfield{Offset: 5, Length: 6},
		Blue:         Bitfield{Offset: 0, Length: 5},
	}
}

// ReadAt reads raw frame bytes (RGB565, host byte order) at offset off.
func (d *Dev) ReadAt(p []byte, off int64) (int, error) {
	return d.fs.readAt(p, off)
}

// WriteAt writes raw frame bytes at offset off. Writes past the end of the
// frame are truncated and reported with io.ErrShortWrite.
func (d *Dev) WriteAt(p []byte, off int64) (int, error) {
	if d.halted.Load() {
		return 0, ErrHalted
	}
	return d.fs.writeAt(p, off)
}

// Size implements tinygo's drivers.Displayer.
func (d *Dev) Size() (x, y int16) {
	return Width, Height
}

// SetPixel implements tinygo's drivers.Displayer. Pixels outside the panel
// are ignored.
func (d *Dev) SetPixel(x, y int16, c color.RGBA) {
	if d.halted.Load() {
		return
	}
	v := rgb565.New(c.R, c.G, c.B)
	d.fs.update(func(img *rgb565.Image) {
		img.SetRGB565(int(x), int(y), v)
	})
}

// Display implements tinygo's drivers.Displayer by flushing immediately.
// Drawing through SetPixel is picked up by the periodic flush anyway.
func (d *Dev) Display() error {
	return d.FlushNow(context.Background())
}

var (
	_ display.Drawer    = &Dev{}
	_ drivers.Displayer = &Dev{}
	_ io.ReaderAt       = &Dev{}
	_ io.WriterAt       = &Dev{}
)
