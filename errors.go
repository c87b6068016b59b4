package st7789

import "errors"

// Error kinds returned by the driver. Errors are wrapped with context; test
// for a kind with errors.Is.
var (
	// ErrHandleAcquisition means the SPI connection, the reset line or the
	// command/data line could not be obtained.
	ErrHandleAcquisition = errors.New("st7789: handle acquisition failed")
	// ErrAllocation means frame memory could not be set up.
	ErrAllocation = errors.New("st7789: frame memory unavailable")
	// ErrTransport means a transfer on the link, or a control line change, failed.
	ErrTransport = errors.New("st7789: transport error")
	// ErrInvalidRegion means a window lies outside the panel.
	ErrInvalidRegion = errors.New("st7789: invalid region")
	// ErrSurfaceRegistration means the Registrar rejected the raster surface.
	ErrSurfaceRegistration = errors.New("st7789: surface registration failed")
	// ErrHalted is returned by operations on a halted device.
	ErrHalted = errors.New("st7789: halted")
	// ErrDisabled is returned once the flush engine gave up after too many
	// consecutive failures.
	ErrDisabled = errors.New("st7789: disabled after repeated flush failures")
)
