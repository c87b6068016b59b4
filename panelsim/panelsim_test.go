package panelsim

import (
	"errors"
	"image"
	"testing"

	qt "github.com/frankban/quicktest"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/st7789/rgb565"
)

func cmd(c *qt.C, p *Panel, b ...byte) {
	c.Helper()
	c.Assert(p.DC().Out(gpio.Low), qt.IsNil)
	c.Assert(p.Tx(b, nil), qt.IsNil)
}

func data(c *qt.C, p *Panel, b ...byte) {
	c.Helper()
	c.Assert(p.DC().Out(gpio.High), qt.IsNil)
	c.Assert(p.Tx(b, nil), qt.IsNil)
}

func TestPowerOnState(t *testing.T) {
	c := qt.New(t)
	p := New()

	st := p.State()
	c.Assert(st.Sleeping, qt.IsTrue)
	c.Assert(st.DisplayOn, qt.IsFalse)
	c.Assert(st.Window, qt.Equals, image.Rect(0, 0, RAMWidth, RAMHeight))
}

func TestResetPulse(t *testing.T) {
	c := qt.New(t)
	p := New()

	cmd(c, p, cmdSLPOUT)
	c.Assert(p.State().Sleeping, qt.IsFalse)

	c.Assert(p.RST().Out(gpio.Low), qt.IsNil)
	// Bytes sent while reset is held are ignored.
	cmd(c, p, cmdDISPON)
	c.Assert(p.RST().Out(gpio.High), qt.IsNil)

	c.Assert(p.Resets(), qt.Equals, 1)
	c.Assert(p.State().Sleeping, qt.IsTrue)
	c.Assert(p.State().DisplayOn, qt.IsFalse)
}

func TestStateCommands(t *testing.T) {
	c := qt.New(t)
	p := New()

	cmd(c, p, cmdSLPOUT)
	cmd(c, p, cmdCOLMOD)
	data(c, p, 0x55)
	cmd(c, p, cmdMADCTL)
	data(c, p, 0x60)
	cmd(c, p, cmdINVON)
	cmd(c, p, cmdNORON)
	cmd(c, p, cmdDISPON)

	st := p.State()
	c.Assert(st.Sleeping, qt.IsFalse)
	c.Assert(st.ColorMode, qt.Equals, byte(0x55))
	c.Assert(st.MADCTL, qt.Equals, byte(0x60))
	c.Assert(st.Inverted, qt.IsTrue)
	c.Assert(st.Normal, qt.IsTrue)
	c.Assert(st.DisplayOn, qt.IsTrue)
	c.Assert(p.Commands(), qt.DeepEquals, []byte{cmdSLPOUT, cmdCOLMOD, cmdMADCTL, cmdINVON, cmdNORON, cmdDISPON})

	cmd(c, p, cmdDISPOFF)
	cmd(c, p, cmdSLPIN)
	cmd(c, p, cmdINVOFF)
	st = p.State()
	c.Assert(st.DisplayOn, qt.IsFalse)
	c.Assert(st.Sleeping, qt.IsTrue)
	c.Assert(st.Inverted, qt.IsFalse)
}

func TestWindowWrite(t *testing.T) {
	c := qt.New(t)
	p := New()

	// 2x2 window at column 10, row 20.
	cmd(c, p, cmdCASET)
	data(c, p, 0x00, 0x0A, 0x00, 0x0B)
	cmd(c, p, cmdRASET)
	data(c, p, 0x00, 0x14, 0x00, 0x15)
	c.Assert(p.State().Window, qt.Equals, image.Rect(10, 20, 12, 22))

	cmd(c, p, cmdRAMWR)
	// Split a pixel across transfers.
	data(c, p, 0xF8, 0x00, 0x07)
	data(c, p, 0xE0, 0x00, 0x1F, 0xFF, 0xFF)

	c.Assert(p.At(10, 20), qt.Equals, uint16ToColor(0xF800))
	c.Assert(p.At(11, 20), qt.Equals, uint16ToColor(0x07E0))
	c.Assert(p.At(10, 21), qt.Equals, uint16ToColor(0x001F))
	c.Assert(p.At(11, 21), qt.Equals, uint16ToColor(0xFFFF))
	c.Assert(p.Frames(), qt.Equals, 1)
	c.Assert(p.Pixels(), qt.Equals, 4)

	img := p.RAM(image.Rect(10, 20, 12, 22))
	c.Assert(img.RGB565At(1, 1), qt.Equals, uint16ToColor(0xFFFF))
}

func TestRecordAndHook(t *testing.T) {
	c := qt.New(t)
	p := New()
	p.Record(true)

	cmd(c, p, cmdSLPOUT)
	data(c, p, 1, 2, 3)
	c.Assert(p.Transcript(), qt.DeepEquals, []Transfer{
		{DC: gpio.Low, W: []byte{cmdSLPOUT}},
		{DC: gpio.High, W: []byte{1, 2, 3}},
	})

	boom := errors.New("boom")
	p.Hook(func(n int, w []byte) error {
		if n == 3 {
			return boom
		}
		return nil
	})
	c.Assert(p.Tx([]byte{cmdDISPON}, nil), qt.Equals, boom)
	c.Assert(p.Tx([]byte{cmdDISPON}, nil), qt.IsNil)
	c.Assert(len(p.Transcript()), qt.Equals, 3)
}

func TestMaxTxSize(t *testing.T) {
	c := qt.New(t)
	p := New()
	p.SetMaxTxSize(4)

	c.Assert(p.MaxTxSize(), qt.Equals, 4)
	c.Assert(p.Tx(make([]byte, 5), nil), qt.ErrorMatches, `panelsim: 5 byte transfer exceeds limit of 4`)
}

func TestPort(t *testing.T) {
	c := qt.New(t)
	p := New()
	port := p.Port()

	sc, err := port.Connect(40*physic.MegaHertz, spi.Mode3, 8)
	c.Assert(err, qt.IsNil)
	c.Assert(sc.Duplex(), qt.Equals, conn.Half)
	f, mode, bits := p.Bus()
	c.Assert(f, qt.Equals, 40*physic.MegaHertz)
	c.Assert(mode, qt.Equals, spi.Mode3)
	c.Assert(bits, qt.Equals, 8)

	c.Assert(port.Close(), qt.IsNil)
	c.Assert(p.Closed(), qt.IsTrue)
	_, err = port.Connect(40*physic.MegaHertz, spi.Mode0, 8)
	c.Assert(err, qt.IsNotNil)

	q := New()
	q.FailConnect(errors.New("busy"))
	_, err = q.Port().Connect(physic.MegaHertz, spi.Mode0, 8)
	c.Assert(err, qt.ErrorMatches, "busy")
}

func TestLineFailAndHalt(t *testing.T) {
	c := qt.New(t)
	p := New()

	p.DC().Fail(errors.New("gpio gone"))
	c.Assert(p.DC().Out(gpio.High), qt.ErrorMatches, "gpio gone")
	p.DC().Fail(nil)
	c.Assert(p.DC().Out(gpio.High), qt.IsNil)

	c.Assert(p.RST().Halted(), qt.IsFalse)
	c.Assert(p.RST().Halt(), qt.IsNil)
	c.Assert(p.RST().Halted(), qt.IsTrue)
}

func TestRender(t *testing.T) {
	c := qt.New(t)
	p := New()
	cmd(c, p, cmdCASET)
	data(c, p, 0, 0, 0, 0)
	cmd(c, p, cmdRASET)
	data(c, p, 0, 0, 0, 0)
	cmd(c, p, cmdRAMWR)
	data(c, p, 0xF8, 0x00)

	dst := image.NewRGBA(image.Rect(0, 0, 1, 1))

	// Asleep and off: black.
	p.Render(dst, image.Rect(0, 0, 1, 1))
	c.Assert(dst.Pix, qt.DeepEquals, []byte{0, 0, 0, 0xFF})

	cmd(c, p, cmdSLPOUT)
	cmd(c, p, cmdDISPON)
	// Without INVON the panel shows the complement.
	p.Render(dst, image.Rect(0, 0, 1, 1))
	c.Assert(dst.Pix, qt.DeepEquals, []byte{0, 0xFF, 0xFF, 0xFF})

	cmd(c, p, cmdINVON)
	p.Render(dst, image.Rect(0, 0, 1, 1))
	c.Assert(dst.Pix, qt.DeepEquals, []byte{0xFF, 0, 0, 0xFF})
}

func uint16ToColor(v uint16) rgb565.RGB565 { return rgb565.RGB565(v) }
