package st7789

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/devices/v3/st7789/panelsim"
)

func TestAddressWindow(t *testing.T) {
	tests := []struct {
		name       string
		x, y, w, h int
		wantCols   [4]byte
		wantRows   [4]byte
	}{
		{"full frame", 0, 0, 240, 280, [4]byte{0x00, 0x00, 0x00, 0xEF}, [4]byte{0x00, 0x14, 0x01, 0x2B}},
		{"single pixel origin", 0, 0, 1, 1, [4]byte{0, 0, 0, 0}, [4]byte{0, 20, 0, 20}},
		{"last pixel", 239, 279, 1, 1, [4]byte{0, 239, 0, 239}, [4]byte{0x01, 0x2B, 0x01, 0x2B}},
		{"row crossing 256", 10, 230, 20, 50, [4]byte{0, 10, 0, 29}, [4]byte{0x00, 0xFA, 0x01, 0x2B}},
		{"middle", 100, 100, 40, 40, [4]byte{0, 100, 0, 139}, [4]byte{0, 120, 0, 159}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, rows, err := addressWindow(tt.x, tt.y, tt.w, tt.h)
			if err != nil {
				t.Fatalf("addressWindow() error = %v", err)
			}
			if cols != tt.wantCols {
				t.Errorf("cols = % X, want % X", cols, tt.wantCols)
			}
			if rows != tt.wantRows {
				t.Errorf("rows = % X, want % X", rows, tt.wantRows)
			}
		})
	}
}

func TestAddressWindowInvalid(t *testing.T) {
	tests := []struct {
		name       string
		x, y, w, h int
	}{
		{"negative x", -1, 0, 10, 10},
		{"negative y", 0, -1, 10, 10},
		{"zero width", 0, 0, 0, 10},
		{"zero height", 0, 0, 10, 0},
		{"too wide", 1, 0, 240, 10},
		{"too tall", 0, 1, 10, 280},
		{"past bottom", 0, 280, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := addressWindow(tt.x, tt.y, tt.w, tt.h)
			if !errors.Is(err, ErrInvalidRegion) {
				t.Errorf("addressWindow() error = %v, want ErrInvalidRegion", err)
			}
		})
	}
}

func TestSetWindowWire(t *testing.T) {
	p := panelsim.New()
	ch := newChannel(p, p.DC(), 0)
	p.Record(true)

	if err := ch.setWindow(0, 0, Width, Height); err != nil {
		t.Fatalf("setWindow() error = %v", err)
	}

	want := []panelsim.Transfer{
		{DC: gpio.Low, W: []byte{0x2A}},
		{DC: gpio.High, W: []byte{0x00, 0x00, 0x00, 0xEF}},
		{DC: gpio.Low, W: []byte{0x2B}},
		{DC: gpio.High, W: []byte{0x00, 0x14, 0x01, 0x2B}},
		{DC: gpio.Low, W: []byte{0x2C}},
	}
	got := p.Transcript()
	if len(got) != len(want) {
		t.Fatalf("got %d transfers, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].DC != want[i].DC || string(got[i].W) != string(want[i].W) {
			t.Errorf("transfer %d = {%s % X}, want {%s % X}", i, got[i].DC, got[i].W, want[i].DC, want[i].W)
		}
	}
}

func TestSetWindowByteCounts(t *testing.T) {
	p := panelsim.New()
	ch := newChannel(p, p.DC(), 0)

	for y := 0; y < Height; y += 37 {
		for x := 0; x < Width; x += 41 {
			w, h := Width-x, Height-y
			p.Record(true)
			if err := ch.setWindow(x, y, w, h); err != nil {
				t.Fatalf("setWindow(%d, %d, %d, %d) error = %v", x, y, w, h, err)
			}
			ops := p.Transcript()

			var cmds, data []byte
			for _, op := range ops {
				if op.DC == gpio.Low {
					cmds = append(cmds, op.W...)
				} else {
					data = append(data, op.W...)
				}
			}
			if len(cmds) != 3 || len(data) != 8 {
				t.Fatalf("setWindow(%d, %d, %d, %d) sent %d command and %d data bytes, want 3 and 8", x, y, w, h, len(cmds), len(data))
			}
			if gotX := int(data[0])<<8 | int(data[1]); gotX != x {
				t.Errorf("column start = %d, want %d", gotX, x)
			}
			if gotY := int(data[4])<<8 | int(data[5]); gotY != y+YOffset {
				t.Errorf("row start = %d, want %d", gotY, y+YOffset)
			}
			if gotYEnd := int(data[6])<<8 | int(data[7]); gotYEnd != y+h-1+YOffset {
				t.Errorf("row end = %d, want %d", gotYEnd, y+h-1+YOffset)
			}
		}
	}
}

func TestSetWindowInvalidSendsNothing(t *testing.T) {
	p := panelsim.New()
	ch := newChannel(p, p.DC(), 0)
	p.Record(true)

	if err := ch.setWindow(0, 10, Width, Height); !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("setWindow() error = %v, want ErrInvalidRegion", err)
	}
	if ops := p.Transcript(); len(ops) != 0 {
		t.Errorf("invalid window sent %d transfers", len(ops))
	}
}
