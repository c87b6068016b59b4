package st7789

// Controller commands used by the driver.
const (
	swReset    = 0x01 // Software reset
	sleepIn    = 0x10 // Enter sleep mode
	sleepOut   = 0x11 // Leave sleep mode
	normalOn   = 0x13 // Normal display mode
	invertOff  = 0x20 // Display inversion off
	invertOn   = 0x21 // Display inversion on
	displayOff = 0x28 // Display off
	displayOn  = 0x29 // Display on
	columnAddr = 0x2A // CASET
	rowAddr    = 0x2B // RASET
	memWrite   = 0x2C // RAMWR
	memAccess  = 0x36 // MADCTL
	colorMode  = 0x3A // COLMOD
)

// colorMode16 selects 16 bits per pixel (RGB565) for COLMOD.
const colorMode16 = 0x55
