// Package st7789 controls an ST7789 TFT display via SPI.
//
// The ST7789 is a 262K color TFT controller with 240×320 pixels of RAM. This
// driver targets 240×280 panels (such as the 1.69" modules), whose visible area
// starts 20 rows into the controller RAM. It implements the display.Drawer
// interface from periph.io and the Displayer interface from tinygo drivers.
//
// # Display Characteristics
//
// - 16-bit RGB565 color
// - Fixed 240×280 resolution, 20 row RAM offset
// - Display inversion enabled by default (required by these panels)
// - Whole frame pushed periodically from an in-memory frame
//
// # Hardware Connection
//
// Connect the ST7789 display to your system via SPI:
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V
//	SCL         → SPI Clock (SCLK)
//	SDA         → SPI Data (MOSI)
//	DC          → GPIO (any available pin)
//	CS          → SPI Chip Select
//	RST         → GPIO (any available pin)
//	BL          → 3.3V or a GPIO for backlight control
//
// # Basic Usage
//
//	package main
//
//	import (
//		"image"
//		"image/color"
//		"image/draw"
//
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/conn/v3/spi/spireg"
//		"periph.io/x/devices/v3/st7789"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		host.Init()
//
//		p, _ := spireg.Open("")
//		dc := gpioreg.ByName("GPIO25")
//		rst := gpioreg.ByName("GPIO27")
//
//		dev, _ := st7789.NewSPI(p, dc, rst, nil)
//		defer dev.Close()
//
//		red := image.NewUniform(color.RGBA{R: 0xFF, A: 0xFF})
//		dev.Draw(image.Rect(20, 20, 120, 120), red, image.Point{})
//	}
//
// # Deferred Flush
//
// Draw, Write, WriteAt and SetPixel only change the in-memory frame. A
// background goroutine sends the whole frame every Opts.FlushPeriod (50ms by
// default, 20 frames per second). Use FlushNow, Display or Fill when the
// panel must reflect the frame before returning.
//
// Each flush works on a consistent copy of the frame: writers and the flush
// take the same lock, and the flush copies the frame before sending it. A
// flush never shows half of one write and half of another.
//
// A failed flush is logged and retried on the next tick. After
// Opts.MaxFailures consecutive failures the engine stops trying and FlushNow
// returns ErrDisabled.
//
// # Raw Frame Access
//
// The frame is 240×280 RGB565 in host byte order (little-endian), the layout
// of a Linux 16 bpp framebuffer. Info describes it. ReadAt and WriteAt give
// byte level access for read/write style clients, and Opts.Buffer lets the
// caller provide the memory, for example a region that is also mapped
// elsewhere. Changes made directly to that memory bypass the frame lock.
//
// # Errors
//
// Errors wrap one of the package's sentinel errors, test them with errors.Is:
//
//	dev, err := st7789.NewSPI(p, dc, rst, nil)
//	if errors.Is(err, st7789.ErrHandleAcquisition) {
//		// The port or a GPIO could not be used.
//	}
//
// # Datasheet
//
// https://www.rhydolabz.com/documents/33/ST7789.pdf
package st7789
