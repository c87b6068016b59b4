// Package rgb565 provides a 16-bit RGB565 image format for the ST7789 display controller.
//
// Each pixel takes two bytes: 5 bits red, 6 bits green and 5 bits blue.
// Pixels are stored in host byte order (least significant byte first), the
// layout a Linux framebuffer client expects when it maps a 16 bpp surface.
// The controller itself wants the most significant byte first; use
// ToBigEndian to convert a run of pixels before sending it.
//
// Memory layout example for a 2-pixel row:
//
//	Pixels: 0       1
//	Values: 0xF800  0x001F
//	Bytes:  00 F8   1F 00
//
// This package provides:
//
// - RGB565: A color type holding one packed 16-bit pixel
// - Model: A color model for converting standard Go colors to RGB565
// - Image: A draw.Image implementation backed by a byte slice
//
// Example usage:
//
//	img := rgb565.NewImage(image.Rect(0, 0, 240, 280))
//	img.SetRGB565(10, 20, rgb565.New(0xFF, 0x80, 0x00))
//	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
package rgb565
