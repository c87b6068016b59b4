package st7789

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"periph.io/x/devices/v3/st7789/rgb565"
)

// frameSize is the size of one frame in bytes.
const frameSize = Width * Height * 2

// frameStore holds the pixels the host draws into and the flush goroutine
// reads from. Every mutation and every snapshot happens under mu, so a
// snapshot never mixes two writes.
type frameStore struct {
	mu  sync.Mutex
	img *rgb565.Image
	gen uint64 // bumped on each mutation
}

// newFrameStore wraps buf, or allocates a frame when buf is nil.
func newFrameStore(buf []byte) (*frameStore, error) {
	r := image.Rect(0, 0, Width, Height)
	if buf == nil {
		return &frameStore{img: rgb565.NewImage(r)}, nil
	}
	img, err := rgb565.FromBytes(r, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %d byte buffer, need %d: %w", ErrAllocation, len(buf), frameSize, err)
	}
	return &frameStore{img: img}, nil
}

// update runs fn with exclusive access to the frame.
func (f *frameStore) update(fn func(img *rgb565.Image)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.img)
	f.gen++
}

// snapshot copies the whole frame into dst in wire (big-endian) order and
// returns the generation it observed.
func (f *frameStore) snapshot(dst []byte) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	rgb565.ToBigEndian(dst, f.img.Pix)
	return f.gen
}

func (f *frameStore) readAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("st7789: negative offset")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if off >= int64(len(f.img.Pix)) {
		return 0, io.EOF
	}
	n := copy(p, f.img.Pix[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *frameStore) writeAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("st7789: negative offset")
	}
	var n int
	f.update(func(img *rgb565.Image) {
		if off < int64(len(img.Pix)) {
			n = copy(img.Pix[off:], p)
		}
	})
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
