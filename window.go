package st7789

import "fmt"

// Panel geometry. The visible area is smaller than the controller RAM
// (240x320), so row addresses are shifted by YOffset.
const (
	Width   = 240
	Height  = 280
	YOffset = 20

	ramRows = 320
)

// addressWindow computes the CASET and RASET parameters for the rectangle
// at (x, y) of size w x h, each field most significant byte first.
func addressWindow(x, y, w, h int) (cols, rows [4]byte, err error) {
	if x < 0 || w < 1 || x+w > Width || y < 0 || h < 1 || y+h > Height {
		return cols, rows, fmt.Errorf("%w: %dx%d at (%d,%d)", ErrInvalidRegion, w, h, x, y)
	}
	xEnd := x + w - 1
	yStart := y + YOffset
	yEnd := y + h - 1 + YOffset
	if yEnd >= ramRows {
		return cols, rows, fmt.Errorf("%w: row %d beyond controller RAM", ErrInvalidRegion, yEnd)
	}
	cols = [4]byte{byte(x >> 8), byte(x), byte(xEnd >> 8), byte(xEnd)}
	rows = [4]byte{byte(yStart >> 8), byte(yStart), byte(yEnd >> 8), byte(yEnd)}
	return cols, rows, nil
}

// setWindow selects the RAM window and arms RAMWR. Pixel data sent in data
// mode afterwards fills the window row by row. Nothing is sent when the
// rectangle is invalid.
func (ch *channel) setWindow(x, y, w, h int) error {
	cols, rows, err := addressWindow(x, y, w, h)
	if err != nil {
		return err
	}
	if err := ch.writeCommand(columnAddr); err != nil {
		return err
	}
	if err := ch.writeData(cols[:]...); err != nil {
		return err
	}
	if err := ch.writeCommand(rowAddr); err != nil {
		return err
	}
	if err := ch.writeData(rows[:]...); err != nil {
		return err
	}
	return ch.writeCommand(memWrite)
}
