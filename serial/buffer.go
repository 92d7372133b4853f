package serial

import (
	"io"

	"github.com/pkg/errors"
)

// errDataLeft is returned by fill when the previous read has not been
// fully consumed yet.
var errDataLeft = errors.New("serial: buffer has data left")

// buffer holds at most one Read()'s worth of bytes from the port.
// Keeping it to a single read keeps the port's timeout behavior visible
// to the caller: fill blocks for at most one read timeout.
type buffer struct {
	data []byte
	pos  int
	end  int
}

func newBuffer(size int) *buffer {
	return &buffer{data: make([]byte, size)}
}

func (b *buffer) hasLeft() bool {
	return b.pos < b.end
}

// fill replaces the buffer contents with one read from r. It fails when
// unconsumed data is still present.
func (b *buffer) fill(r io.Reader) (int, error) {
	if b.hasLeft() {
		return 0, errDataLeft
	}
	n, err := r.Read(b.data)
	if err != nil {
		return 0, err
	}
	b.pos = 0
	b.end = n
	return n, nil
}

// readToLF returns the bytes up to and including the next LF, or nil
// when the buffer holds no complete line.
func (b *buffer) readToLF() []byte {
	if !b.hasLeft() {
		return nil
	}
	for i := b.pos; i < b.end; i++ {
		if b.data[i] == '\n' {
			begin := b.pos
			b.pos = i + 1
			return b.data[begin:b.pos]
		}
	}
	return nil
}

// remain drains whatever is left in the buffer.
func (b *buffer) remain() []byte {
	if !b.hasLeft() {
		return nil
	}
	begin := b.pos
	b.pos = b.end
	return b.data[begin:b.end]
}
